package models

// BlockChanges is the Normalization Layer's output for one block: the block
// header, merged per-address account updates, newly observed protocol
// components, and protocol-state/balance deltas ready for the store (§4.2
// "Output").
type BlockChanges struct {
	Block               Block
	AccountUpdates      []TxAccountDelta
	NewComponents       []ProtocolComponent
	ProtocolStateDeltas []TxProtocolStateDelta
	BalanceChanges      []ComponentBalanceRow
	Revert              bool
}

// Empty reports whether this block carried no payload worth persisting,
// per §4.3 "validate non-emptiness (empty → update cursor and ack without
// emit)".
func (b BlockChanges) Empty() bool {
	return len(b.AccountUpdates) == 0 &&
		len(b.NewComponents) == 0 &&
		len(b.ProtocolStateDeltas) == 0 &&
		len(b.BalanceChanges) == 0
}
