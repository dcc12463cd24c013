package postgres

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/jackc/pgx/v5"

	"github.com/synnergy-labs/chain-indexer/internal/models"
	"github.com/synnergy-labs/chain-indexer/internal/store"
)

// InsertContract fails DuplicateEntry if (chain, address) already exists; if
// CreationTx is set, it must name a stored transaction, which is recorded as
// the account's creation_tx (§4.1 insert_contract). It inserts only the
// Account row itself — initial state rows are supplied by the caller via a
// following UpdateContracts call tagged with ChangeCreation, mirroring how
// the Normalization Layer always emits a full AccountUpdate for a new
// contract rather than a bare Account.
func (s *Store) InsertContract(ctx context.Context, c models.Account) error {
	chainID, err := s.Chains.ID(c.ID.Chain)
	if err != nil {
		return err
	}
	var creationTxID any
	if c.CreationTx != nil {
		row := s.pool.QueryRow(ctx, `SELECT id FROM transaction WHERE hash = $1`, c.CreationTx.Bytes())
		var id int64
		if err := row.Scan(&id); err != nil {
			return classify(err, "transaction", c.CreationTx.Hex())
		}
		creationTxID = id
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO account (chain_id, address, title, creation_tx, creation_ts)
		VALUES ($1, $2, $3, $4, $5)`,
		chainID, c.ID.Address.Bytes(), c.Title, creationTxID, c.CreationTs)
	if err != nil {
		return classify(err, "account", c.ID.Address.Hex())
	}
	return nil
}

// DeleteContract soft-deletes: sets deleted_ts and closes every open slot,
// code and balance row for the account (§4.1 delete_contract).
func (s *Store) DeleteContract(ctx context.Context, id models.AccountID, atTx models.Hash) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		var accountID, txID int64
		var ts time.Time
		if err := tx.QueryRow(ctx, `
			SELECT a.id FROM account a JOIN chain c ON c.id = a.chain_id
			WHERE c.name = $1 AND a.address = $2`, string(id.Chain), id.Address.Bytes()).Scan(&accountID); err != nil {
			return classify(err, "account", id.Address.Hex())
		}
		if err := tx.QueryRow(ctx, `
			SELECT t.id, b.ts FROM transaction t JOIN block b ON b.id = t.block_id
			WHERE t.hash = $1`, atTx.Bytes()).Scan(&txID, &ts); err != nil {
			return classify(err, "transaction", atTx.Hex())
		}
		if _, err := tx.Exec(ctx, `UPDATE account SET deleted_ts = $1 WHERE id = $2`, ts, accountID); err != nil {
			return classify(err, "account", id.Address.Hex())
		}
		for _, table := range []string{"contract_storage", "contract_code", "account_balance"} {
			if _, err := tx.Exec(ctx, `
				UPDATE `+table+` SET valid_to = $1, modify_tx = $2
				WHERE account_id = $3 AND valid_to IS NULL`, ts, txID, accountID); err != nil {
				return classify(err, table, id.Address.Hex())
			}
		}
		return nil
	})
}

// UpdateContracts applies a batch of per-tx deltas in one database
// transaction (§4.1 update_contracts). Every dirty slot, and any non-nil
// balance/code, closes its previous row (if present) and opens a new one.
func (s *Store) UpdateContracts(ctx context.Context, chain models.Chain, deltas []models.TxAccountDelta) error {
	chainID, err := s.Chains.ID(chain)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		return s.updateContractsTx(ctx, tx, chainID, deltas)
	})
}

// updateContractsTx is UpdateContracts' body, factored out so
// ApplyBlockChanges can run it inside a transaction shared with the
// protocol-state and cursor writes for the same block (§4.3 atomicity).
func (s *Store) updateContractsTx(ctx context.Context, tx pgx.Tx, chainID int32, deltas []models.TxAccountDelta) error {
	for _, d := range deltas {
		var txID int64
		var txIndex int32
		var ts time.Time
		if err := tx.QueryRow(ctx, `
			SELECT t.id, t.index, b.ts FROM transaction t JOIN block b ON b.id = t.block_id
			WHERE t.hash = $1`, d.TxHash.Bytes()).Scan(&txID, &txIndex, &ts); err != nil {
			return classify(err, "transaction", d.TxHash.Hex())
		}

		accountID, err := s.resolveOrCreateAccount(ctx, tx, chainID, d.Update.Address, d.Update.ChangeType, txID, ts)
		if err != nil {
			return err
		}

		if d.Update.ChangeType == models.ChangeDeletion {
			if _, err := tx.Exec(ctx, `UPDATE account SET deleted_ts = $1 WHERE id = $2`, ts, accountID); err != nil {
				return classify(err, "account", d.Update.Address.Hex())
			}
		}

		for slot, value := range d.Update.Slots {
			if err := closeAndInsert(ctx, tx, "contract_storage", accountID, ts, txID,
				`INSERT INTO contract_storage (account_id, slot, value, ordinal, valid_from, modify_tx)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				[]any{accountID, slot.Bytes(), []byte(value), txIndex, ts, txID},
				`slot = $1`, []any{slot.Bytes()}); err != nil {
				return classify(err, "contract_storage", d.Update.Address.Hex())
			}
		}
		if d.Update.Balance != nil {
			if err := closeAndInsert(ctx, tx, "account_balance", accountID, ts, txID,
				`INSERT INTO account_balance (account_id, balance, valid_from, modify_tx) VALUES ($1, $2, $3, $4)`,
				[]any{accountID, []byte(*d.Update.Balance), ts, txID},
				"", nil); err != nil {
				return classify(err, "account_balance", d.Update.Address.Hex())
			}
		}
		if d.Update.Code != nil {
			hash := models.Hash(crypto.Keccak256Hash(*d.Update.Code))
			if err := closeAndInsert(ctx, tx, "contract_code", accountID, ts, txID,
				`INSERT INTO contract_code (account_id, code, code_hash, valid_from, modify_tx) VALUES ($1, $2, $3, $4, $5)`,
				[]any{accountID, []byte(*d.Update.Code), hash.Bytes(), ts, txID},
				"", nil); err != nil {
				return classify(err, "contract_code", d.Update.Address.Hex())
			}
		}
	}
	return nil
}

// resolveOrCreateAccount looks up the account id for (chainID, addr),
// creating it when the update's change type is ChangeCreation and no row
// exists yet.
func (s *Store) resolveOrCreateAccount(ctx context.Context, tx pgx.Tx, chainID int32, addr models.Address, changeType models.ChangeType, txID int64, ts time.Time) (int64, error) {
	var accountID int64
	err := tx.QueryRow(ctx, `SELECT id FROM account WHERE chain_id = $1 AND address = $2`, chainID, addr.Bytes()).Scan(&accountID)
	if err == nil {
		return accountID, nil
	}
	if changeType != models.ChangeCreation {
		return 0, classify(err, "account", addr.Hex())
	}
	if err := tx.QueryRow(ctx, `
		INSERT INTO account (chain_id, address, creation_tx, creation_ts) VALUES ($1, $2, $3, $4)
		RETURNING id`, chainID, addr.Bytes(), txID, ts).Scan(&accountID); err != nil {
		return 0, classify(err, "account", addr.Hex())
	}
	return accountID, nil
}

// closeAndInsert closes the currently-open row for (table, accountID) [and
// extraCond, if given, for per-slot identity within contract_storage] then
// inserts the new row via insertSQL/insertArgs. This is the write half of
// the versioning discipline §3/§4.1 describe.
func closeAndInsert(ctx context.Context, tx pgx.Tx, table string, accountID int64, ts time.Time, txID int64, insertSQL string, insertArgs []any, extraCond string, extraArgs []any) error {
	closeSQL := `UPDATE ` + table + ` SET valid_to = $1 WHERE account_id = $2 AND valid_to IS NULL`
	args := []any{ts, accountID}
	if extraCond != "" {
		closeSQL += ` AND ` + extraCond
		args = append(args, extraArgs...)
	}
	if _, err := tx.Exec(ctx, closeSQL, args...); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, insertSQL, insertArgs...)
	return err
}

// GetContract materializes an account as of version (default: latest).
func (s *Store) GetContract(ctx context.Context, id models.AccountID, version models.Version, includeSlots bool) (models.Contract, error) {
	contracts, err := s.GetContracts(ctx, id.Chain, []models.Address{id.Address}, version, includeSlots)
	if err != nil {
		return models.Contract{}, err
	}
	if len(contracts) == 0 {
		return models.Contract{}, store.NotFound("account", id.Address.Hex())
	}
	return contracts[0], nil
}

// GetContracts batches GetContract with an optional address filter. The
// point-in-time read algorithm (§4.1 "Read algorithm") resolves T and, for
// each identity key, the winning row via store.ResolveWindow.
func (s *Store) GetContracts(ctx context.Context, chain models.Chain, addresses []models.Address, version models.Version, includeSlots bool) ([]models.Contract, error) {
	at, kind, idx, err := s.resolveVersionTime(ctx, chain, version)
	if err != nil {
		return nil, err
	}

	addrFilter := ""
	args := []any{chain, at}
	if len(addresses) > 0 {
		addrFilter = "AND a.address = ANY($3::bytea[])"
		bs := make([][]byte, len(addresses))
		for i, a := range addresses {
			bs[i] = a.Bytes()
		}
		args = append(args, bs)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT a.id, a.address, a.title, a.deleted_ts
		FROM account a JOIN chain c ON c.id = a.chain_id
		WHERE c.name = $1 AND (a.creation_ts <= $2 OR a.creation_ts IS NULL) `+addrFilter, args...)
	if err != nil {
		return nil, classify(err, "account", string(chain))
	}
	defer rows.Close()

	type accRow struct {
		id        int64
		address   []byte
		title     *string
		deletedTs *time.Time
	}
	var accs []accRow
	for rows.Next() {
		var a accRow
		if err := rows.Scan(&a.id, &a.address, &a.title, &a.deletedTs); err != nil {
			return nil, classify(err, "account", string(chain))
		}
		accs = append(accs, a)
	}

	out := make([]models.Contract, 0, len(accs))
	for _, a := range accs {
		balance, err := s.latestBalance(ctx, a.id, at, kind, idx)
		if err != nil {
			return nil, err
		}
		var code *models.Code
		if c, ok, err := s.latestCode(ctx, a.id, at, kind, idx); err != nil {
			return nil, err
		} else if ok {
			code = &c
		}
		var slots map[models.Hash]models.Bytes
		if includeSlots {
			slots, err = s.allSlots(ctx, a.id, at, kind, idx)
			if err != nil {
				return nil, err
			}
		}
		title := ""
		if a.title != nil {
			title = *a.title
		}
		out = append(out, models.Contract{
			Account: models.Account{
				ID:        models.AccountID{Chain: chain, Address: models.PadAddress(a.address)},
				Title:     title,
				DeletedTs: a.deletedTs,
			},
			Balance: balance,
			Code:    code,
			Slots:   slots,
		})
	}
	return out, nil
}
