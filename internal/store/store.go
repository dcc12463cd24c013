package store

import (
	"context"

	"github.com/synnergy-labs/chain-indexer/internal/models"
)

// VersionedStore is the Versioned Store's public contract (§4.1), grouped by
// concern exactly as the spec lists them. Every write that touches more than
// one row family commits as a single database transaction; see the postgres
// implementation for the transaction boundaries.
type VersionedStore interface {
	// Chain/Block/Tx
	UpsertBlock(ctx context.Context, b models.Block) error
	GetBlock(ctx context.Context, id models.BlockIdentifier) (models.Block, error)
	UpsertTx(ctx context.Context, t models.Transaction) error
	GetTx(ctx context.Context, hash models.Hash) (models.Transaction, error)
	RevertState(ctx context.Context, to models.BlockIdentifier) error

	// Contract state
	GetContract(ctx context.Context, id models.AccountID, version models.Version, includeSlots bool) (models.Contract, error)
	GetContracts(ctx context.Context, chain models.Chain, addresses []models.Address, version models.Version, includeSlots bool) ([]models.Contract, error)
	InsertContract(ctx context.Context, c models.Account) error
	UpdateContracts(ctx context.Context, chain models.Chain, deltas []models.TxAccountDelta) error
	DeleteContract(ctx context.Context, id models.AccountID, atTx models.Hash) error
	GetAccountsDelta(ctx context.Context, chain models.Chain, start, end models.Version) ([]models.AccountDelta, error)

	// Protocol state
	GetProtocolStates(ctx context.Context, chain models.Chain, version models.Version, system *models.ProtocolSystem, ids []models.ComponentID) ([]models.ProtocolState, error)
	UpdateProtocolStates(ctx context.Context, chain models.Chain, deltas []models.TxProtocolStateDelta) error
	GetProtocolStatesDelta(ctx context.Context, chain models.Chain, start, end models.Version) ([]models.ProtocolStateDelta, error)

	// Components, tokens, balances
	GetProtocolComponents(ctx context.Context, chain models.Chain, system *models.ProtocolSystem, ids []string, blockRange *BlockRange) ([]models.ProtocolComponent, error)
	AddProtocolComponents(ctx context.Context, components []models.ProtocolComponent) error
	DeleteProtocolComponents(ctx context.Context, ids []models.ComponentID, ts models.Version) error
	AddTokens(ctx context.Context, tokens []models.Token) error
	GetTokens(ctx context.Context, chain models.Chain, addresses []models.Address) ([]models.Token, error)
	AddComponentBalances(ctx context.Context, balances []models.ComponentBalanceRow) error
	GetBalanceDeltas(ctx context.Context, chain models.Chain, start, end models.Version) ([]models.BalanceDelta, error)

	// Extractor state
	GetState(ctx context.Context, name string, chain models.Chain) (models.ExtractionState, error)
	SaveState(ctx context.Context, state models.ExtractionState) error

	// ApplyBlockChanges commits every write for one block — account
	// deltas, protocol-state deltas, newly observed components, component
	// balances, and the extractor's advanced cursor — in a single
	// transaction (§4.3 "Atomicity"). The Extractor Runtime calls this
	// once per non-empty upstream block instead of the individual
	// Update*/Add*/SaveState methods, which remain on the interface for
	// callers (migrations, tests, backfills) that don't need the combined
	// atomic write.
	ApplyBlockChanges(ctx context.Context, chain models.Chain, changes models.BlockChanges, state models.ExtractionState) error

	// ApplyRevert commits a revert_state(to) and the extractor's new
	// cursor in one transaction, mirroring ApplyBlockChanges' atomicity
	// guarantee for the undo path (§4.3 "revert_state + save_cursor").
	ApplyRevert(ctx context.Context, to models.BlockIdentifier, state models.ExtractionState) error
}

// BlockRange bounds get_protocol_components by [start_block, end_block].
type BlockRange struct {
	Start uint64
	End   uint64
}
