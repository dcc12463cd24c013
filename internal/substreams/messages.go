// Package substreams wraps the upstream resumable block-delta stream (§6
// "Upstream stream") behind a small Go interface. The wire shapes here are
// the gRPC-adjacent envelope the stream speaks: a Clock header, a single
// length-delimited map_output payload, and the New/Undo/Progress message
// kinds. The map_output's own payload (BlockContractChanges /
// BlockEntityChanges) is decoded separately by the wire package; this
// package only unwraps the envelope around it.
package substreams

// Clock identifies a block position in the upstream stream.
type Clock struct {
	ID        []byte
	Number    uint64
	Timestamp int64 // unix seconds, per the envelope's fixed encoding
}

// MapOutput is the named, typed payload a substreams module emits for one
// block. TypeURL distinguishes which normalization path Value decodes
// through (contract changes vs entity changes); Name is the module name
// the extractor subscribed to.
type MapOutput struct {
	Name    string
	TypeURL string
	Value   []byte
}

// Kind discriminates the three message shapes the upstream stream can
// deliver (§6).
type Kind int

const (
	KindNew Kind = iota
	KindUndo
	KindProgress
)

// NewMessage is a forward block delta: a cursor to resume from, the block
// clock, and the module's map output for that block.
type NewMessage struct {
	Cursor string
	Clock  Clock
	Output MapOutput
}

// UndoMessage notifies that blocks after LastValidBlock are no longer
// canonical; the runtime must revert to that block before resuming.
type UndoMessage struct {
	LastValidBlock  Clock
	LastValidCursor string
}

// Envelope is one message off the stream, tagged by Kind. Only the field
// matching Kind is populated. Progress messages carry neither payload;
// they exist so callers can distinguish "nothing happened yet" from a
// closed stream, per §6's "Progress messages accepted but ignored".
type Envelope struct {
	Kind  Kind
	New   NewMessage
	Undo  UndoMessage
}
