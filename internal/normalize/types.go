// Package normalize implements the Normalization Layer (§4.2): it turns
// decoded wire messages into the Versioned Store's input shapes, folding
// per-transaction updates into per-block aggregates and running the
// pluggable post-processors.
package normalize

import "github.com/synnergy-labs/chain-indexer/internal/models"

// addressUpdate is the parse stage's intermediate per-(tx, address) record,
// carrying the transaction's block-local index so merge can fold in tx
// order and pick the correct "last write wins" / "earliest change type
// wins" outcome per §4.2 transform 3.
type addressUpdate struct {
	txHash  models.Hash
	txIndex uint32
	update  models.AccountUpdate
}

// componentStateUpdate mirrors addressUpdate for protocol-state deltas.
type componentStateUpdate struct {
	txHash  models.Hash
	txIndex uint32
	delta   models.ProtocolStateDelta
}
