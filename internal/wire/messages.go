// Package wire decodes the upstream stream's two length-delimited map
// output encodings (§6 "Wire encoding of map outputs") into plain Go
// structs the Normalization Layer consumes. It intentionally does not
// depend on generated protobuf types: both message shapes are wire-stable
// already and decoding field-by-field with protowire avoids shipping a
// .proto/.pb.go pair for a schema owned upstream.
package wire

import "time"

// ClockHeader identifies the block a map output describes, mirroring the
// upstream stream's clock{id, number, timestamp} (§6).
type ClockHeader struct {
	BlockHash []byte
	Number    uint64
	Timestamp time.Time
}

// TxHeader is the per-group transaction header shared by both message
// kinds.
type TxHeader struct {
	Hash  []byte
	From  []byte
	To    []byte
	Index uint64
}

// ContractChange is one address's raw delta within a BlockContractChanges
// transaction group.
type ContractChange struct {
	Address    []byte
	Balance    []byte // nil if unchanged
	Code       []byte // nil if unchanged
	Slots      map[string][]byte
	ChangeType int32 // 0=unspecified(invalid), 1=update, 2=creation, 3=deletion
}

// TxContractChanges groups one transaction's contract changes.
type TxContractChanges struct {
	Tx      TxHeader
	Changes []ContractChange
}

// BlockContractChanges is the first of the two map output encodings §6
// requires: a block header plus per-transaction contract-change groups.
type BlockContractChanges struct {
	Block    ClockHeader
	TxGroups []TxContractChanges
}

// EntityChange is one protocol component's raw delta within a
// BlockEntityChanges transaction group.
type EntityChange struct {
	ComponentID       string
	ProtocolSystem    string
	UpdatedAttributes map[string][]byte
	DeletedAttributes []string
	NewComponent      *NewComponent // non-nil when this entry creates a component
	BalanceChanges    []BalanceChange
}

// NewComponent is embedded in an EntityChange when the upstream message
// announces a just-created protocol component.
type NewComponent struct {
	ExternalID       string
	ProtocolType     string
	Tokens           [][]byte
	ContractAddrs    [][]byte
	StaticAttributes map[string][]byte
}

// BalanceChange is one component/token balance update.
type BalanceChange struct {
	Token      []byte
	NewBalance []byte
}

// TxEntityChanges groups one transaction's entity-state deltas.
type TxEntityChanges struct {
	Tx      TxHeader
	Changes []EntityChange
}

// BlockEntityChanges is the second map output encoding: a block header plus
// per-transaction entity-change groups.
type BlockEntityChanges struct {
	Block    ClockHeader
	TxGroups []TxEntityChanges
}
