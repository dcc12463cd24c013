package models

import "time"

// ProtocolSystem, ProtocolType, FinancialType, ImplementationType are lookup
// enums persisted as tables (§3), mirroring Chain's extensibility story.
type ProtocolSystem string
type ProtocolType string
type FinancialType string
type ImplementationType string

// ComponentID is the identity of a ProtocolComponent: (chain, protocol_system,
// external_id).
type ComponentID struct {
	Chain          Chain
	ProtocolSystem ProtocolSystem
	ExternalID     string
}

// ProtocolComponent is immutable after insert (§3): dynamic data lives in
// ProtocolState/ComponentBalance rows, never here.
type ProtocolComponent struct {
	ID                ComponentID
	ProtocolType       ProtocolType
	Tokens             []Address
	ContractIDs        []AccountID
	StaticAttributes   map[string]Bytes
	CreationTx         Hash
	CreatedAt          time.Time
	DeletedAt          *time.Time
}

// ProtocolStateRow is one version of one attribute in a component's sparse
// attribute bag. A nil Value is a tombstone written by a deletion (§4.1
// update_protocol_states: "deletions are represented by writing a tombstone
// row").
type ProtocolStateRow struct {
	Component     ComponentID
	AttributeName string
	Value         Bytes // nil => tombstone
	ValidFrom     time.Time
	ValidTo       *time.Time
	ModifyTx      Hash
}

// ProtocolState is the materialized attribute bag for a component as of some
// version: the set of currently-valid, non-tombstoned attribute rows.
type ProtocolState struct {
	Component  ComponentID
	Attributes map[string]Bytes
}

// ProtocolStateDelta is one component's worth of changed attributes between
// two versions, with deleted attribute names called out separately so a
// caller can distinguish "set to X" from "unset" (§4.1, scenario 5/6).
type ProtocolStateDelta struct {
	Component         ComponentID
	UpdatedAttributes map[string]Bytes
	DeletedAttributes []string
}

// TxProtocolStateDelta pairs a ProtocolStateDelta with its originating
// transaction, as required by update_protocol_states.
type TxProtocolStateDelta struct {
	TxHash Hash
	Delta  ProtocolStateDelta
}

// ComponentBalanceRow versions a component's holding of one token.
type ComponentBalanceRow struct {
	Component  ComponentID
	Token      Address
	NewBalance Bytes
	ValidFrom  time.Time
	ValidTo    *time.Time
	ModifyTx   Hash
}

// ComponentBalance is the materialized balance for one (component, token)
// as of some version.
type ComponentBalance struct {
	Component  ComponentID
	Token      Address
	NewBalance Bytes
}

// BalanceDelta mirrors AccountDelta for component balances.
type BalanceDelta struct {
	Component  ComponentID
	Token      Address
	NewBalance Bytes
	Deleted    bool
}
