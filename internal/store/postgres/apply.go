package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/synnergy-labs/chain-indexer/internal/models"
)

// ApplyBlockChanges commits one block's worth of writes and its cursor
// advance in a single transaction (§4.3 "Atomicity"): on a rolled-back
// transaction neither the block's rows nor its cursor are saved, and the
// error is returned to the Extractor Runtime, which stops on it.
func (s *Store) ApplyBlockChanges(ctx context.Context, chain models.Chain, changes models.BlockChanges, state models.ExtractionState) error {
	chainID, err := s.Chains.ID(chain)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if len(changes.AccountUpdates) > 0 {
			if err := s.updateContractsTx(ctx, tx, chainID, changes.AccountUpdates); err != nil {
				return err
			}
		}
		if len(changes.NewComponents) > 0 {
			if err := s.addProtocolComponentsTx(ctx, tx, changes.NewComponents); err != nil {
				return err
			}
		}
		if len(changes.ProtocolStateDeltas) > 0 {
			if err := s.updateProtocolStatesTx(ctx, tx, changes.ProtocolStateDeltas); err != nil {
				return err
			}
		}
		if len(changes.BalanceChanges) > 0 {
			if err := s.addComponentBalancesTx(ctx, tx, changes.BalanceChanges); err != nil {
				return err
			}
		}
		return s.saveStateTx(ctx, tx, state)
	})
}

// ApplyRevert runs revert_state and the cursor save atomically (§4.3).
func (s *Store) ApplyRevert(ctx context.Context, to models.BlockIdentifier, state models.ExtractionState) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if err := s.revertStateTx(ctx, tx, to); err != nil {
			return err
		}
		return s.saveStateTx(ctx, tx, state)
	})
}
