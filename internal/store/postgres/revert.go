package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/synnergy-labs/chain-indexer/internal/models"
)

// RevertState deletes every block strictly newer than `to` on the same
// chain, cascades to their transactions and every row whose modify_tx sat
// in one of those blocks, then reopens any row whose valid_to pointed at a
// deleted block's ts (§3 revert invariant, §4.1 revert_state). ON DELETE
// CASCADE from transaction carries the cascade into every versioned child
// table (§6); the valid_to re-open has to happen explicitly since it is not
// expressible as a cascade.
//
// Idempotent under re-application: if `to` is already the chain head, the
// DELETE affects zero rows and the UPDATE affects zero rows.
func (s *Store) RevertState(ctx context.Context, to models.BlockIdentifier) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		return s.revertStateTx(ctx, tx, to)
	})
}

// revertStateTx is RevertState's body, factored out so ApplyRevert can run
// it alongside the cursor save for the same undo in one transaction.
func (s *Store) revertStateTx(ctx context.Context, tx pgx.Tx, to models.BlockIdentifier) error {
	target, err := s.GetBlock(ctx, to)
	if err != nil {
		return err
	}
	chainID, err := s.Chains.ID(target.Chain)
	if err != nil {
		return err
	}

	{
		// Collect the timestamps of blocks about to be deleted so the
		// valid_to reopen below can target exactly those instants.
		rows, err := tx.Query(ctx, `
			SELECT ts FROM block WHERE chain_id = $1 AND number > $2`, chainID, target.Number)
		if err != nil {
			return classify(err, "block", target.String())
		}
		var deletedTimestamps []any
		for rows.Next() {
			var ts any
			if err := rows.Scan(&ts); err != nil {
				rows.Close()
				return classify(err, "block", target.String())
			}
			deletedTimestamps = append(deletedTimestamps, ts)
		}
		rows.Close()

		if _, err := tx.Exec(ctx, `
			DELETE FROM block WHERE chain_id = $1 AND number > $2`, chainID, target.Number); err != nil {
			return classify(err, "block", target.String())
		}

		if len(deletedTimestamps) == 0 {
			return nil // no-op: already at or before the requested head
		}

		// Every reopen below is scoped to chainID: a valid_to on another
		// chain that happens to equal one of these timestamps must not be
		// touched (§8 invariant 4, per-chain revert).
		reopenViaAccount := func(table string) error {
			_, err := tx.Exec(ctx, `
				UPDATE `+table+` t SET valid_to = NULL
				FROM account a
				WHERE t.account_id = a.id AND a.chain_id = $1 AND t.valid_to = ANY($2::timestamp[])`,
				chainID, deletedTimestamps)
			return err
		}
		for _, table := range []string{"account_balance", "contract_code", "contract_storage"} {
			if err := reopenViaAccount(table); err != nil {
				return classify(err, table, target.String())
			}
		}

		reopenViaComponent := func(table string) error {
			_, err := tx.Exec(ctx, `
				UPDATE `+table+` t SET valid_to = NULL
				FROM protocol_component pc
				WHERE t.component_id = pc.id AND pc.chain_id = $1 AND t.valid_to = ANY($2::timestamp[])`,
				chainID, deletedTimestamps)
			return err
		}
		for _, table := range []string{"protocol_state", "component_balance"} {
			if err := reopenViaComponent(table); err != nil {
				return classify(err, table, target.String())
			}
		}

		if _, err := tx.Exec(ctx, `
			UPDATE protocol_component SET deleted_at = NULL
			WHERE chain_id = $1 AND deleted_at = ANY($2::timestamp[])`, chainID, deletedTimestamps); err != nil {
			return classify(err, "protocol_component", target.String())
		}
		if _, err := tx.Exec(ctx, `
			UPDATE account SET deleted_ts = NULL
			WHERE chain_id = $1 AND deleted_ts = ANY($2::timestamp[])`, chainID, deletedTimestamps); err != nil {
			return classify(err, "account", target.String())
		}
		return nil
	}
}
