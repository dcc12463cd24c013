package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/synnergy-labs/chain-indexer/internal/models"
	"github.com/synnergy-labs/chain-indexer/internal/store"
)

// GetProtocolComponents returns components filtered by system (optional),
// external id (optional), and block range (optional), per §4.1
// get_protocol_components. Components are immutable after insert, so this is
// a plain row read with no version resolution.
func (s *Store) GetProtocolComponents(ctx context.Context, chain models.Chain, system *models.ProtocolSystem, ids []string, blockRange *store.BlockRange) ([]models.ProtocolComponent, error) {
	filter := ""
	args := []any{string(chain)}
	if system != nil {
		filter += " AND ps.name = $2"
		args = append(args, string(*system))
	}
	if len(ids) > 0 {
		filter += fmt.Sprintf(" AND pc.external_id = ANY($%d)", len(args)+1)
		args = append(args, ids)
	}
	if blockRange != nil {
		filter += fmt.Sprintf(" AND b.number BETWEEN $%d AND $%d", len(args)+1, len(args)+2)
		args = append(args, blockRange.Start, blockRange.End)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT pc.external_id, ps.name, pt.name, pc.static_attributes, th.hash, pc.created_at, pc.deleted_at
		FROM protocol_component pc
		JOIN chain c ON c.id = pc.chain_id
		JOIN protocol_system ps ON ps.id = pc.protocol_system_id
		JOIN protocol_type pt ON pt.id = pc.protocol_type_id
		JOIN transaction th ON th.id = pc.creation_tx
		JOIN block b ON b.id = th.block_id
		WHERE c.name = $1`+filter, args...)
	if err != nil {
		return nil, classify(err, "protocol_component", "")
	}
	defer rows.Close()

	var out []models.ProtocolComponent
	for rows.Next() {
		var (
			extID, psName, ptName string
			staticAttrs            []byte
			creationTxHash         []byte
			createdAt              time.Time
			deletedAt              *time.Time
		)
		if err := rows.Scan(&extID, &psName, &ptName, &staticAttrs, &creationTxHash, &createdAt, &deletedAt); err != nil {
			return nil, classify(err, "protocol_component", "")
		}
		attrs := make(map[string]models.Bytes)
		if len(staticAttrs) > 0 {
			var raw map[string]string
			if err := json.Unmarshal(staticAttrs, &raw); err != nil {
				return nil, store.Unexpected(err)
			}
			for k, v := range raw {
				b, err := models.BytesFromHex(v)
				if err != nil {
					return nil, store.DecodeErrorf("static attribute %q: %v", k, err)
				}
				attrs[k] = b
			}
		}
		out = append(out, models.ProtocolComponent{
			ID:               models.ComponentID{Chain: chain, ProtocolSystem: models.ProtocolSystem(psName), ExternalID: extID},
			ProtocolType:     models.ProtocolType(ptName),
			StaticAttributes: attrs,
			CreationTx:       models.PadHash(creationTxHash),
			CreatedAt:        createdAt,
			DeletedAt:        deletedAt,
		})
	}

	if err := s.attachComponentRelations(ctx, chain, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachComponentRelations fills in Tokens/ContractIDs for each component,
// which live in their own join tables (§6 protocol_component_holds_token,
// protocol_component_holds_contract) rather than inline columns.
func (s *Store) attachComponentRelations(ctx context.Context, chain models.Chain, components []models.ProtocolComponent) error {
	for i := range components {
		rowID, err := s.componentRowID(ctx, s.pool, components[i].ID)
		if err != nil {
			return err
		}

		tokRows, err := s.pool.Query(ctx, `SELECT token_address FROM protocol_component_holds_token WHERE protocol_component_id = $1`, rowID)
		if err != nil {
			return classify(err, "protocol_component_holds_token", "")
		}
		for tokRows.Next() {
			var addr []byte
			if err := tokRows.Scan(&addr); err != nil {
				tokRows.Close()
				return classify(err, "protocol_component_holds_token", "")
			}
			components[i].Tokens = append(components[i].Tokens, models.PadAddress(addr))
		}
		tokRows.Close()

		ctrRows, err := s.pool.Query(ctx, `SELECT a.address FROM protocol_component_holds_contract h JOIN account a ON a.id = h.account_id WHERE h.protocol_component_id = $1`, rowID)
		if err != nil {
			return classify(err, "protocol_component_holds_contract", "")
		}
		for ctrRows.Next() {
			var addr []byte
			if err := ctrRows.Scan(&addr); err != nil {
				ctrRows.Close()
				return classify(err, "protocol_component_holds_contract", "")
			}
			components[i].ContractIDs = append(components[i].ContractIDs, models.AccountID{Chain: chain, Address: models.PadAddress(addr)})
		}
		ctrRows.Close()
	}
	return nil
}

// AddProtocolComponents inserts new immutable components plus their token
// and contract relations, one database transaction per call (§4.1
// add_protocol_components).
func (s *Store) AddProtocolComponents(ctx context.Context, components []models.ProtocolComponent) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		return s.addProtocolComponentsTx(ctx, tx, components)
	})
}

// addProtocolComponentsTx is AddProtocolComponents' body, factored out so
// ApplyBlockChanges can run it alongside the other writes for one block in
// a single transaction.
func (s *Store) addProtocolComponentsTx(ctx context.Context, tx pgx.Tx, components []models.ProtocolComponent) error {
	for _, c := range components {
			chainID, err := s.Chains.ID(c.ID.Chain)
			if err != nil {
				return err
			}
			systemID, err := upsertLookup(ctx, tx, "protocol_system", string(c.ID.ProtocolSystem))
			if err != nil {
				return err
			}
			typeID, err := upsertLookup(ctx, tx, "protocol_type", string(c.ProtocolType))
			if err != nil {
				return err
			}
			var txID int64
			if err := tx.QueryRow(ctx, `SELECT id FROM transaction WHERE hash = $1`, c.CreationTx.Bytes()).Scan(&txID); err != nil {
				return classify(err, "transaction", c.CreationTx.Hex())
			}

			raw := make(map[string]string, len(c.StaticAttributes))
			for k, v := range c.StaticAttributes {
				raw[k] = v.Hex()
			}
			attrJSON, err := json.Marshal(raw)
			if err != nil {
				return store.Unexpected(err)
			}

			var componentRowID int64
			if err := tx.QueryRow(ctx, `
				INSERT INTO protocol_component (external_id, chain_id, protocol_system_id, protocol_type_id, static_attributes, creation_tx, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING id`, c.ID.ExternalID, chainID, systemID, typeID, attrJSON, txID, c.CreatedAt).Scan(&componentRowID); err != nil {
				return classify(err, "protocol_component", c.ID.ExternalID)
			}

			for _, token := range c.Tokens {
				if _, err := tx.Exec(ctx, `INSERT INTO protocol_component_holds_token (protocol_component_id, token_address) VALUES ($1, $2)`, componentRowID, token.Bytes()); err != nil {
					return classify(err, "protocol_component_holds_token", c.ID.ExternalID)
				}
			}
			for _, accID := range c.ContractIDs {
				var accRowID int64
				if err := tx.QueryRow(ctx, `SELECT a.id FROM account a JOIN chain ch ON ch.id = a.chain_id WHERE ch.name = $1 AND a.address = $2`,
					string(accID.Chain), accID.Address.Bytes()).Scan(&accRowID); err != nil {
					return classify(err, "account", accID.Address.Hex())
				}
				if _, err := tx.Exec(ctx, `INSERT INTO protocol_component_holds_contract (protocol_component_id, account_id) VALUES ($1, $2)`, componentRowID, accRowID); err != nil {
					return classify(err, "protocol_component_holds_contract", c.ID.ExternalID)
				}
			}
	}
	return nil
}

// upsertLookup resolves name in a (id, name UNIQUE) lookup table, inserting
// it if absent — shared by every extensible enum table (protocol_system,
// protocol_type) the way ensureChains does for chain.
func upsertLookup(ctx context.Context, tx pgx.Tx, table, name string) (int32, error) {
	var id int32
	err := tx.QueryRow(ctx, `
		INSERT INTO `+table+` (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, name).Scan(&id)
	if err != nil {
		return 0, classify(err, table, name)
	}
	return id, nil
}

// DeleteProtocolComponents soft-deletes by stamping deleted_at, resolved
// from ts the same way other writes resolve a Version to a concrete time
// (§4.1 delete_protocol_components).
func (s *Store) DeleteProtocolComponents(ctx context.Context, ids []models.ComponentID, ts models.Version) error {
	if len(ids) == 0 {
		return nil
	}
	at, _, _, err := s.resolveVersionTime(ctx, ids[0].Chain, ts)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		for _, id := range ids {
			rowID, err := s.componentRowID(ctx, tx, id)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `UPDATE protocol_component SET deleted_at = $1 WHERE id = $2`, at, rowID); err != nil {
				return classify(err, "protocol_component", id.ExternalID)
			}
		}
		return nil
	})
}

// AddTokens inserts token rows, deduplicating the backing account by
// (chain, address) rather than creating a duplicate account row for an
// address the indexer already tracks (§4.1 add_tokens, §3 Token).
func (s *Store) AddTokens(ctx context.Context, tokens []models.Token) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		for _, t := range tokens {
			chainID, err := s.Chains.ID(t.Account.Chain)
			if err != nil {
				return err
			}
			var accountID int64
			err = tx.QueryRow(ctx, `SELECT id FROM account WHERE chain_id = $1 AND address = $2`, chainID, t.Account.Address.Bytes()).Scan(&accountID)
			if err != nil {
				if err := tx.QueryRow(ctx, `
					INSERT INTO account (chain_id, address) VALUES ($1, $2) RETURNING id`,
					chainID, t.Account.Address.Bytes()).Scan(&accountID); err != nil {
					return classify(err, "account", t.Account.Address.Hex())
				}
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO token (account_id, symbol, decimals, tax, gas_cost) VALUES ($1, $2, $3, $4, $5)`,
				accountID, t.Symbol, t.Decimals, t.Tax, t.GasCost); err != nil {
				return classify(err, "token", t.Account.Address.Hex())
			}
		}
		return nil
	})
}

// GetTokens returns every token on chain, optionally filtered by address.
func (s *Store) GetTokens(ctx context.Context, chain models.Chain, addresses []models.Address) ([]models.Token, error) {
	filter := ""
	args := []any{string(chain)}
	if len(addresses) > 0 {
		bs := make([][]byte, len(addresses))
		for i, a := range addresses {
			bs[i] = a.Bytes()
		}
		filter = " AND a.address = ANY($2::bytea[])"
		args = append(args, bs)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT a.address, tk.symbol, tk.decimals, tk.tax, tk.gas_cost
		FROM token tk JOIN account a ON a.id = tk.account_id JOIN chain c ON c.id = a.chain_id
		WHERE c.name = $1`+filter, args...)
	if err != nil {
		return nil, classify(err, "token", "")
	}
	defer rows.Close()

	var out []models.Token
	for rows.Next() {
		var addr []byte
		var t models.Token
		if err := rows.Scan(&addr, &t.Symbol, &t.Decimals, &t.Tax, &t.GasCost); err != nil {
			return nil, classify(err, "token", "")
		}
		t.Account = models.AccountID{Chain: chain, Address: models.PadAddress(addr)}
		out = append(out, t)
	}
	return out, nil
}

// AddComponentBalances closes any currently-open balance row for the same
// (component, token) and opens the new one, mirroring closeAndInsert's
// versioning discipline for account balances (§4.1 add_component_balances).
func (s *Store) AddComponentBalances(ctx context.Context, balances []models.ComponentBalanceRow) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		return s.addComponentBalancesTx(ctx, tx, balances)
	})
}

// addComponentBalancesTx is AddComponentBalances' body, factored out for
// ApplyBlockChanges.
func (s *Store) addComponentBalancesTx(ctx context.Context, tx pgx.Tx, balances []models.ComponentBalanceRow) error {
	for _, b := range balances {
			componentID, err := s.componentRowID(ctx, tx, b.Component)
			if err != nil {
				return err
			}
			var txID int64
			if err := tx.QueryRow(ctx, `SELECT id FROM transaction WHERE hash = $1`, b.ModifyTx.Bytes()).Scan(&txID); err != nil {
				return classify(err, "transaction", b.ModifyTx.Hex())
			}
			if _, err := tx.Exec(ctx, `
				UPDATE component_balance SET valid_to = $1
				WHERE component_id = $2 AND token = $3 AND valid_to IS NULL`, b.ValidFrom, componentID, b.Token.Bytes()); err != nil {
				return classify(err, "component_balance", b.Component.ExternalID)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO component_balance (component_id, token, new_balance, valid_from, modify_tx)
				VALUES ($1, $2, $3, $4, $5)`, componentID, b.Token.Bytes(), []byte(b.NewBalance), b.ValidFrom, txID); err != nil {
				return classify(err, "component_balance", b.Component.ExternalID)
			}
	}
	return nil
}

// GetBalanceDeltas mirrors GetAccountsDelta's forward/backward window logic
// for component token balances (§4.1 "Delta algorithm").
func (s *Store) GetBalanceDeltas(ctx context.Context, chain models.Chain, start, end models.Version) ([]models.BalanceDelta, error) {
	startAt, _, _, err := s.resolveVersionTime(ctx, chain, start)
	if err != nil {
		return nil, err
	}
	endAt, endKind, endIdx, err := s.resolveVersionTime(ctx, chain, end)
	if err != nil {
		return nil, err
	}
	forward := !endAt.Before(startAt)
	lo, hi := startAt, endAt
	if !forward {
		lo, hi = endAt, startAt
	}

	rows, err := s.pool.Query(ctx, `
		SELECT pc.external_id, ps.name, cb.token
		FROM component_balance cb
		JOIN protocol_component pc ON pc.id = cb.component_id
		JOIN chain c ON c.id = pc.chain_id
		JOIN protocol_system ps ON ps.id = pc.protocol_system_id
		WHERE c.name = $1 AND cb.valid_from > $2 AND cb.valid_from <= $3`, string(chain), lo, hi)
	if err != nil {
		return nil, classify(err, "component_balance", "")
	}
	defer rows.Close()

	type key struct {
		component models.ComponentID
		token     models.Address
	}
	changed := make(map[key]bool)
	for rows.Next() {
		var extID, psName string
		var token []byte
		if err := rows.Scan(&extID, &psName, &token); err != nil {
			return nil, classify(err, "component_balance", "")
		}
		k := key{
			component: models.ComponentID{Chain: chain, ProtocolSystem: models.ProtocolSystem(psName), ExternalID: extID},
			token:     models.PadAddress(token),
		}
		changed[k] = true
	}

	out := make([]models.BalanceDelta, 0, len(changed))
	for k := range changed {
		componentID, err := s.componentRowID(ctx, s.pool, k.component)
		if err != nil {
			return nil, err
		}
		value, ok, err := s.componentBalanceAt(ctx, componentID, k.token, endAt, endKind, endIdx)
		if err != nil {
			return nil, err
		}
		out = append(out, models.BalanceDelta{Component: k.component, Token: k.token, NewBalance: value, Deleted: !ok})
	}
	return out, nil
}

func (s *Store) componentBalanceAt(ctx context.Context, componentID int64, token models.Address, at time.Time, kind models.VersionKind, idx int64) (models.Bytes, bool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT cb.new_balance, cb.valid_from, cb.valid_to, t.index
		FROM component_balance cb JOIN transaction t ON t.id = cb.modify_tx
		WHERE cb.component_id = $1 AND cb.token = $2 AND `+timeFilterForAlias("cb"),
		componentID, token.Bytes(), at)
	if err != nil {
		return nil, false, classify(err, "component_balance", "")
	}
	defer rows.Close()
	var candidates []candidateRow
	for rows.Next() {
		var c candidateRow
		var idx32 int32
		if err := rows.Scan(&c.value, &c.validFrom, &c.validTo, &idx32); err != nil {
			return nil, false, classify(err, "component_balance", "")
		}
		c.txIndex = uint32(idx32)
		candidates = append(candidates, c)
	}
	winner, ok := store.ResolveWindow(candidates, kind, idx)
	if !ok {
		return nil, false, nil
	}
	return models.Bytes(winner.value), true, nil
}
