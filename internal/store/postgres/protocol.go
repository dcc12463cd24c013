package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/synnergy-labs/chain-indexer/internal/models"
	"github.com/synnergy-labs/chain-indexer/internal/store"
)

// componentRowID resolves a ComponentID to its protocol_component.id, the
// join key every protocol_state/component_balance query needs.
func (s *Store) componentRowID(ctx context.Context, q queryer, id models.ComponentID) (int64, error) {
	var rowID int64
	err := q.QueryRow(ctx, `
		SELECT pc.id FROM protocol_component pc
		JOIN chain c ON c.id = pc.chain_id
		JOIN protocol_system ps ON ps.id = pc.protocol_system_id
		WHERE c.name = $1 AND ps.name = $2 AND pc.external_id = $3`,
		string(id.Chain), string(id.ProtocolSystem), id.ExternalID).Scan(&rowID)
	if err != nil {
		return 0, classify(err, "protocol_component", id.ExternalID)
	}
	return rowID, nil
}

// queryer is satisfied by both *pgxpool.Pool and pgx.Tx, letting helpers run
// inside or outside an explicit transaction without duplicating their SQL.
type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// GetProtocolStates materializes each requested (or, if ids is empty, every)
// component's attribute bag as of version, filtered to system when non-nil
// (§4.1 get_protocol_states). Tombstoned attributes (nil value) are simply
// left out of the Attributes map.
func (s *Store) GetProtocolStates(ctx context.Context, chain models.Chain, version models.Version, system *models.ProtocolSystem, ids []models.ComponentID) ([]models.ProtocolState, error) {
	at, kind, idx, err := s.resolveVersionTime(ctx, chain, version)
	if err != nil {
		return nil, err
	}

	filter := ""
	args := []any{chain, at}
	if system != nil {
		filter += " AND ps.name = $3"
		args = append(args, string(*system))
	}
	if len(ids) > 0 {
		extIDs := make([]string, len(ids))
		for i, id := range ids {
			extIDs[i] = id.ExternalID
		}
		filter += fmt.Sprintf(" AND pc.external_id = ANY($%d)", len(args)+1)
		args = append(args, extIDs)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT pc.id, pc.external_id, ps.name, pst.attribute_name, pst.attribute_value, pst.valid_from, pst.valid_to, t.index
		FROM protocol_state pst
		JOIN protocol_component pc ON pc.id = pst.component_id
		JOIN chain c ON c.id = pc.chain_id
		JOIN protocol_system ps ON ps.id = pc.protocol_system_id
		JOIN transaction t ON t.id = pst.modify_tx
		WHERE c.name = $1 AND `+timeFilterForAlias("pst")+filter, args...)
	if err != nil {
		return nil, classify(err, "protocol_state", "")
	}
	defer rows.Close()

	type attrCandidate struct {
		candidateRow
		component  models.ComponentID
		attribute  string
	}
	byComponent := make(map[models.ComponentID][]attrCandidate)
	for rows.Next() {
		var (
			pcID                                        int64
			extID, psName, attrName                     string
			value                                        []byte
			validFrom                                    time.Time
			validTo                                      *time.Time
			txIdx                                        int32
		)
		if err := rows.Scan(&pcID, &extID, &psName, &attrName, &value, &validFrom, &validTo, &txIdx); err != nil {
			return nil, classify(err, "protocol_state", "")
		}
		cid := models.ComponentID{Chain: chain, ProtocolSystem: models.ProtocolSystem(psName), ExternalID: extID}
		c := attrCandidate{
			candidateRow: candidateRow{validFrom: validFrom, validTo: validTo, txIndex: uint32(txIdx), value: value, key: attrName},
			component:    cid,
			attribute:    attrName,
		}
		byComponent[cid] = append(byComponent[cid], c)
	}

	out := make([]models.ProtocolState, 0, len(byComponent))
	for cid, candidates := range byComponent {
		byAttr := make(map[string][]attrCandidate)
		for _, c := range candidates {
			byAttr[c.attribute] = append(byAttr[c.attribute], c)
		}
		attrs := make(map[string]models.Bytes)
		for name, cands := range byAttr {
			rowCands := make([]candidateRow, len(cands))
			for i, c := range cands {
				rowCands[i] = c.candidateRow
			}
			winner, ok := store.ResolveWindow(rowCands, kind, idx)
			if ok && winner.value != nil {
				attrs[name] = models.Bytes(winner.value)
			}
		}
		out = append(out, models.ProtocolState{Component: cid, Attributes: attrs})
	}
	return out, nil
}

// UpdateProtocolStates applies a batch of per-tx attribute deltas in a single
// transaction, writing a tombstone row (nil attribute_value) for every
// deleted attribute name (§4.1 update_protocol_states).
func (s *Store) UpdateProtocolStates(ctx context.Context, chain models.Chain, deltas []models.TxProtocolStateDelta) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		return s.updateProtocolStatesTx(ctx, tx, deltas)
	})
}

// updateProtocolStatesTx is UpdateProtocolStates' body, factored out for
// ApplyBlockChanges to share a transaction with the account and cursor
// writes for the same block.
func (s *Store) updateProtocolStatesTx(ctx context.Context, tx pgx.Tx, deltas []models.TxProtocolStateDelta) error {
	for _, d := range deltas {
		var txID int64
		var ts time.Time
		if err := tx.QueryRow(ctx, `
			SELECT t.id, b.ts FROM transaction t JOIN block b ON b.id = t.block_id
			WHERE t.hash = $1`, d.TxHash.Bytes()).Scan(&txID, &ts); err != nil {
			return classify(err, "transaction", d.TxHash.Hex())
		}
		componentID, err := s.componentRowID(ctx, tx, d.Delta.Component)
		if err != nil {
			return err
		}
		for name, value := range d.Delta.UpdatedAttributes {
			if err := s.writeAttribute(ctx, tx, componentID, name, []byte(value), ts, txID); err != nil {
				return err
			}
		}
		for _, name := range d.Delta.DeletedAttributes {
			if err := s.writeAttribute(ctx, tx, componentID, name, nil, ts, txID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) writeAttribute(ctx context.Context, tx pgx.Tx, componentID int64, name string, value []byte, ts time.Time, txID int64) error {
	if _, err := tx.Exec(ctx, `
		UPDATE protocol_state SET valid_to = $1
		WHERE component_id = $2 AND attribute_name = $3 AND valid_to IS NULL`, ts, componentID, name); err != nil {
		return classify(err, "protocol_state", name)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO protocol_state (component_id, attribute_name, attribute_value, valid_from, modify_tx)
		VALUES ($1, $2, $3, $4, $5)`, componentID, name, value, ts, txID); err != nil {
		return classify(err, "protocol_state", name)
	}
	return nil
}

// GetProtocolStatesDelta mirrors GetAccountsDelta's forward/backward window
// logic for protocol attribute bags (§4.1 "Delta algorithm").
func (s *Store) GetProtocolStatesDelta(ctx context.Context, chain models.Chain, start, end models.Version) ([]models.ProtocolStateDelta, error) {
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
		SELECT pc.id, pc.external_id, ps.name, pst.attribute_name
		FROM protocol_state pst
		JOIN protocol_component pc ON pc.id = pst.component_id
		JOIN chain c ON c.id = pc.chain_id
		JOIN protocol_system ps ON ps.id = pc.protocol_system_id
		WHERE c.name = $1 AND pst.valid_from > $2 AND pst.valid_from <= $3`,
		string(chain), lo, hi)
	if err != nil {
		return nil, classify(err, "protocol_state", "")
	}
	defer rows.Close()

	changedAttrs := make(map[models.ComponentID]map[string]bool)
	for rows.Next() {
		var extID, psName, attrName string
		var pcID int64
		if err := rows.Scan(&pcID, &extID, &psName, &attrName); err != nil {
			return nil, classify(err, "protocol_state", "")
		}
		cid := models.ComponentID{Chain: chain, ProtocolSystem: models.ProtocolSystem(psName), ExternalID: extID}
		if changedAttrs[cid] == nil {
			changedAttrs[cid] = make(map[string]bool)
		}
		changedAttrs[cid][attrName] = true
	}

	out := make([]models.ProtocolStateDelta, 0, len(changedAttrs))
	for cid, attrNames := range changedAttrs {
		componentID, err := s.componentRowID(ctx, s.pool, cid)
		if err != nil {
			return nil, err
		}
		delta := models.ProtocolStateDelta{Component: cid, UpdatedAttributes: make(map[string]models.Bytes)}
		for name := range attrNames {
			value, ok, err := s.attributeValueAt(ctx, componentID, name, endAt, endKind, endIdx)
			if err != nil {
				return nil, err
			}
			if !ok {
				delta.DeletedAttributes = append(delta.DeletedAttributes, name)
				continue
			}
			delta.UpdatedAttributes[name] = value
		}
		out = append(out, delta)
	}
	return out, nil
}

func (s *Store) attributeValueAt(ctx context.Context, componentID int64, name string, at time.Time, kind models.VersionKind, idx int64) (models.Bytes, bool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT attribute_value, valid_from, valid_to, t.index
		FROM protocol_state pst JOIN transaction t ON t.id = pst.modify_tx
		WHERE pst.component_id = $1 AND pst.attribute_name = $2 AND `+timeFilterForAlias("pst"),
		componentID, name, at)
	if err != nil {
		return nil, false, classify(err, "protocol_state", name)
	}
	defer rows.Close()
	var candidates []candidateRow
	for rows.Next() {
		var c candidateRow
		var idx32 int32
		if err := rows.Scan(&c.value, &c.validFrom, &c.validTo, &idx32); err != nil {
			return nil, false, classify(err, "protocol_state", name)
		}
		c.txIndex = uint32(idx32)
		candidates = append(candidates, c)
	}
	winner, ok := store.ResolveWindow(candidates, kind, idx)
	if !ok || winner.value == nil {
		return nil, false, nil
	}
	return models.Bytes(winner.value), true, nil
}

// timeFilterForAlias is timeFilterSQL generalized to a table alias other
// than the bare second positional parameter used by the single-table
// helpers in version_query.go.
func timeFilterForAlias(alias string) string {
	return alias + `.valid_from <= $2 AND (` + alias + `.valid_to IS NULL OR ` + alias + `.valid_to > $2)`
}

