package models

import "time"

// AccountID is the identity of an Account/Contract: (chain, address).
type AccountID struct {
	Chain   Chain
	Address Address
}

// Account is a contract or plain account. CreationTx/CreationTs are set only
// for accounts the indexer observed being created; DeletedTs is set once a
// soft-delete (delete_contract) has closed the account's state.
type Account struct {
	ID          AccountID
	Title       string
	CreationTx  *Hash
	CreationTs  *time.Time
	DeletedTs   *time.Time
}

// Code is the current code of a contract account, with its own versioned
// history via ContractCodeRow.
type Code struct {
	Bytes Bytes
	Hash  Hash
}

// ContractSlotRow is one version of one storage slot. Ordinal mirrors
// ModifyTxIndex and exists purely so point-in-time reads can order by a
// plain integer column instead of joining through modify_tx (§4.1).
type ContractSlotRow struct {
	Account   AccountID
	Slot      Hash
	Value     Bytes
	ValidFrom time.Time
	ValidTo   *time.Time
	ModifyTx  Hash
	Ordinal   uint32
}

// AccountBalanceRow and ContractCodeRow share the slot row's versioning shape
// but without Ordinal: the spec notes at most one balance/code change can
// occur per transaction, so modify_tx.index alone disambiguates same-block
// rows without a redundant column.
type AccountBalanceRow struct {
	Account   AccountID
	Balance   Bytes
	ValidFrom time.Time
	ValidTo   *time.Time
	ModifyTx  Hash
}

type ContractCodeRow struct {
	Account   AccountID
	Code      Bytes
	CodeHash  Hash
	ValidFrom time.Time
	ValidTo   *time.Time
	ModifyTx  Hash
}

// Contract is an Account materialized as of some version, optionally with
// its full slot set, for get_contract/get_contracts responses.
type Contract struct {
	Account
	Balance Bytes
	Code    *Code
	Slots   map[Hash]Bytes // nil unless include_slots was requested
}

// ChangeType classifies an account delta's origin; creation dominates update
// when two per-tx updates against the same address are folded (§4.2
// transform 3: "change type is preserved from the earliest").
type ChangeType int

const (
	ChangeUpdate ChangeType = iota
	ChangeCreation
	ChangeDeletion
)

// AccountUpdate is the per-block, per-address aggregate the Normalization
// Layer produces and the Versioned Store consumes in update_contracts.
type AccountUpdate struct {
	Address    Address
	Slots      map[Hash]Bytes // dirty slots only
	Balance    *Bytes
	Code       *Bytes
	ChangeType ChangeType
}

// TxAccountDelta pairs an AccountUpdate with the transaction that produced
// it, as required by update_contracts(chain, [(tx_hash, delta)]).
type TxAccountDelta struct {
	TxHash Hash
	Update AccountUpdate
}

// AccountDelta is one entry of get_accounts_delta's result: the value an
// account must be given to move from start to end (§4.1 "Delta algorithm").
type AccountDelta struct {
	Address    Address
	Slots      map[Hash]Bytes
	Balance    *Bytes
	Code       *Bytes
	Deleted    bool
}
