package store

import (
	"time"

	"github.com/synnergy-labs/chain-indexer/internal/models"
)

// VersionedRow is the shape every row family (slots, balances, code,
// protocol state, component balances) shares for the purposes of point-in-
// time resolution: a validity window plus the index of the transaction that
// wrote it.
type VersionedRow interface {
	ValidFrom() time.Time
	ValidTo() *time.Time
	ModifyTxIndex() uint32
}

// ResolveWindow picks the winning row for a single identity key out of the
// candidate rows already filtered to `valid_from <= at && (valid_to == nil ||
// *valid_to > at)` by the caller's SQL WHERE clause (§4.1 "Read algorithm,
// (b)"). When several rows share the same valid_from (same-block writes),
// VersionKind breaks the tie (§4.1 "Version semantics"):
//
//   - VersionLast: the row with the maximum ModifyTxIndex.
//   - VersionIndex: the row with the maximum ModifyTxIndex that is <= the
//     requested index.
//
// VersionFirst is not resolved here: the postgres store rejects it with
// Unsupported before a query is ever built, since "as of the end of the
// previous block" needs the prior block's tail, not a same-block tie-break.
//
// Returns false if candidates is empty or (for VersionIndex) no candidate
// satisfies the index bound.
func ResolveWindow[T VersionedRow](candidates []T, kind models.VersionKind, index int64) (T, bool) {
	var zero T
	if len(candidates) == 0 {
		return zero, false
	}
	best := -1
	for i, c := range candidates {
		switch kind {
		case models.VersionIndex:
			if int64(c.ModifyTxIndex()) <= index {
				if best == -1 || c.ModifyTxIndex() > candidates[best].ModifyTxIndex() {
					best = i
				}
			}
		default:
			if best == -1 || c.ModifyTxIndex() > candidates[best].ModifyTxIndex() {
				best = i
			}
		}
	}
	if best == -1 {
		return zero, false
	}
	return candidates[best], true
}

// DistinctLatestPerKey groups candidates by a caller-supplied key and keeps
// only the ResolveWindow winner per key — the Go-side equivalent of the SQL
// "DISTINCT ON (K) ... ORDER BY modify_tx.index DESC" used by the
// point-in-time read algorithm (§4.1 "Read algorithm, (c)/(d)").
func DistinctLatestPerKey[K comparable, T VersionedRow](candidates []T, keyOf func(T) K, kind models.VersionKind, index int64) map[K]T {
	byKey := make(map[K][]T)
	for _, c := range candidates {
		k := keyOf(c)
		byKey[k] = append(byKey[k], c)
	}
	out := make(map[K]T, len(byKey))
	for k, rows := range byKey {
		if winner, ok := ResolveWindow(rows, kind, index); ok {
			out[k] = winner
		}
	}
	return out
}

// InWindowExclusiveInclusive reports whether t falls in the half-open
// interval (lo, hi] used by the forward delta algorithm (§4.1 "Delta
// algorithm"). Callers pass the already-ordered bounds.
func InWindowExclusiveInclusive(t, lo, hi time.Time) bool {
	return t.After(lo) && !t.After(hi)
}

// InWindowInclusiveExclusive reports whether t falls in [lo, hi).
func InWindowInclusiveExclusive(t, lo, hi time.Time) bool {
	return !t.Before(lo) && t.Before(hi)
}
