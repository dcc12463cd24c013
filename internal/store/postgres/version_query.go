package postgres

import (
	"context"
	"time"

	"github.com/synnergy-labs/chain-indexer/internal/models"
	"github.com/synnergy-labs/chain-indexer/internal/store"
)

// resolveVersionTime turns a models.Version into a concrete timestamp T plus
// the VersionKind/index used to break same-block ties (§4.1 "Version
// semantics"). VersionLatest resolves to "now" with VersionLast, which is
// equivalent to "no upper bound, take the currently valid row".
func (s *Store) resolveVersionTime(ctx context.Context, chain models.Chain, v models.Version) (time.Time, models.VersionKind, int64, error) {
	if v.IsLatest() {
		return time.Now().UTC(), models.VersionLast, 0, nil
	}
	if v.Timestamp != nil {
		return *v.Timestamp, models.VersionLast, 0, nil
	}
	// v.Block is set.
	blk, err := s.GetBlock(ctx, *v.Block)
	if err != nil {
		return time.Time{}, 0, 0, err
	}
	switch v.Kind {
	case models.VersionFirst:
		// "as of the end of the previous block" needs an exclusive upper
		// bound against the prior block's tail, which timeFilterSQL's
		// inclusive valid_from <= $at can't express without a second
		// query to find that prior block. Not implemented; §9 permits
		// returning Unsupported instead of silently answering with Last.
		return time.Time{}, 0, 0, store.Unsupportedf("version kind First is not supported")
	case models.VersionIndex:
		return blk.Ts, models.VersionIndex, v.Index, nil
	default:
		return blk.Ts, models.VersionLast, 0, nil
	}
}

// timeFilterSQL is the SQL fragment used by every point-in-time read, with
// $2 bound to the resolved time: valid_from <= $at AND (valid_to IS NULL OR valid_to > $at). Rows
// sharing the block's ts are overfetched and resolved by
// store.ResolveWindow in Go, since VersionIndex can't be expressed as a
// single SQL predicate.
const timeFilterSQL = `valid_from <= $2 AND (valid_to IS NULL OR valid_to > $2)`

func (s *Store) latestBalance(ctx context.Context, accountID int64, at time.Time, kind models.VersionKind, idx int64) (models.Bytes, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ab.balance, ab.valid_from, ab.valid_to, t.index
		FROM account_balance ab JOIN transaction t ON t.id = ab.modify_tx
		WHERE ab.account_id = $1 AND `+timeFilterSQL, accountID, at)
	if err != nil {
		return nil, classify(err, "account_balance", "")
	}
	defer rows.Close()

	var candidates []candidateRow
	for rows.Next() {
		var c candidateRow
		var idx32 int32
		if err := rows.Scan(&c.value, &c.validFrom, &c.validTo, &idx32); err != nil {
			return nil, classify(err, "account_balance", "")
		}
		c.txIndex = uint32(idx32)
		candidates = append(candidates, c)
	}
	winner, ok := store.ResolveWindow(candidates, kind, idx)
	if !ok {
		return nil, nil
	}
	return models.Bytes(winner.value), nil
}

func (s *Store) latestCode(ctx context.Context, accountID int64, at time.Time, kind models.VersionKind, idx int64) (models.Code, bool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT cc.code, cc.code_hash, cc.valid_from, cc.valid_to, t.index
		FROM contract_code cc JOIN transaction t ON t.id = cc.modify_tx
		WHERE cc.account_id = $1 AND `+timeFilterSQL, accountID, at)
	if err != nil {
		return models.Code{}, false, classify(err, "contract_code", "")
	}
	defer rows.Close()

	type codeCandidate struct {
		candidateRow
		hash []byte
	}
	var candidates []codeCandidate
	for rows.Next() {
		var c codeCandidate
		var idx32 int32
		if err := rows.Scan(&c.value, &c.hash, &c.validFrom, &c.validTo, &idx32); err != nil {
			return models.Code{}, false, classify(err, "contract_code", "")
		}
		c.txIndex = uint32(idx32)
		candidates = append(candidates, c)
	}
	winner, ok := store.ResolveWindow(candidates, kind, idx)
	if !ok {
		return models.Code{}, false, nil
	}
	return models.Code{Bytes: models.Bytes(winner.value), Hash: models.PadHash(winner.hash)}, true, nil
}

func (s *Store) allSlots(ctx context.Context, accountID int64, at time.Time, kind models.VersionKind, idx int64) (map[models.Hash]models.Bytes, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT cs.slot, cs.value, cs.valid_from, cs.valid_to, cs.ordinal
		FROM contract_storage cs
		WHERE cs.account_id = $1 AND `+timeFilterSQL, accountID, at)
	if err != nil {
		return nil, classify(err, "contract_storage", "")
	}
	defer rows.Close()

	type slotCandidate struct {
		candidateRow
		slot []byte
	}
	bySlot := make(map[string][]slotCandidate)
	for rows.Next() {
		var c slotCandidate
		var ordinal int32
		if err := rows.Scan(&c.slot, &c.value, &c.validFrom, &c.validTo, &ordinal); err != nil {
			return nil, classify(err, "contract_storage", "")
		}
		c.txIndex = uint32(ordinal)
		bySlot[string(c.slot)] = append(bySlot[string(c.slot)], c)
	}

	out := make(map[models.Hash]models.Bytes, len(bySlot))
	for slotHex, candidates := range bySlot {
		winner, ok := store.ResolveWindow(candidates, kind, idx)
		if !ok {
			continue
		}
		out[models.PadHash([]byte(slotHex))] = models.Bytes(winner.value)
	}
	return out, nil
}
