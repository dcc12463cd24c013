package postgres

import (
	"context"
	"encoding/json"

	"github.com/synnergy-labs/chain-indexer/internal/models"
	"github.com/synnergy-labs/chain-indexer/internal/store"
)

// GetState returns the single row an extractor owns for (name, chain),
// including its resumption cursor. NotFound on the extractor's first run,
// which callers treat as "start from genesis" (§4.1 get_state).
func (s *Store) GetState(ctx context.Context, name string, chain models.Chain) (models.ExtractionState, error) {
	chainID, err := s.Chains.ID(chain)
	if err != nil {
		return models.ExtractionState{}, err
	}
	var attrsJSON []byte
	var cursor string
	err = s.pool.QueryRow(ctx, `
		SELECT attributes, cursor FROM extraction_state
		WHERE extractor_name = $1 AND chain_id = $2`, name, chainID).Scan(&attrsJSON, &cursor)
	if err != nil {
		return models.ExtractionState{}, classify(err, "extraction_state", name)
	}
	attrs := make(map[string]string)
	if len(attrsJSON) > 0 {
		if err := json.Unmarshal(attrsJSON, &attrs); err != nil {
			return models.ExtractionState{}, store.Unexpected(err)
		}
	}
	return models.ExtractionState{ExtractorName: name, Chain: chain, Attributes: attrs, Cursor: cursor}, nil
}

// SaveState upserts the extractor's state row, overwriting the whole
// attribute bag and cursor (§4.1 save_state). The Extractor Runtime calls
// this only for empty blocks; a block with changes saves its cursor through
// ApplyBlockChanges, in the same transaction as its data writes.
func (s *Store) SaveState(ctx context.Context, state models.ExtractionState) error {
	return s.saveStateTx(ctx, s.pool, state)
}

// saveStateTx is SaveState's body against the queryer interface, so
// ApplyBlockChanges can save the cursor inside the same transaction as the
// block's data writes (§4.3 atomicity).
func (s *Store) saveStateTx(ctx context.Context, q queryer, state models.ExtractionState) error {
	chainID, err := s.Chains.ID(state.Chain)
	if err != nil {
		return err
	}
	attrsJSON, err := json.Marshal(state.Attributes)
	if err != nil {
		return store.Unexpected(err)
	}
	_, err = q.Exec(ctx, `
		INSERT INTO extraction_state (extractor_name, chain_id, attributes, cursor)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (extractor_name, chain_id) DO UPDATE
		SET attributes = EXCLUDED.attributes, cursor = EXCLUDED.cursor`,
		state.ExtractorName, chainID, attrsJSON, state.Cursor)
	if err != nil {
		return classify(err, "extraction_state", state.ExtractorName)
	}
	return nil
}
