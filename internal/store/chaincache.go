package store

import "github.com/synnergy-labs/chain-indexer/internal/models"

// ChainCache is an immutable snapshot of the chain lookup table, loaded once
// at startup by the ensure-chains routine and then passed explicitly into
// every gateway that needs to resolve a Chain to its database id (§5).
//
// §9's design note replaces the original's process-wide panicking cache with
// this explicitly-constructed, shared-by-reference map: callers that ask for
// an unknown chain get an error, not a panic, and there is no global mutable
// singleton for tests to fight over.
type ChainCache struct {
	ids map[models.Chain]int32
}

// NewChainCache builds an immutable cache from the rows the ensure-chains
// routine wrote (or found already present) in the `chain` table.
func NewChainCache(ids map[models.Chain]int32) *ChainCache {
	frozen := make(map[models.Chain]int32, len(ids))
	for k, v := range ids {
		frozen[k] = v
	}
	return &ChainCache{ids: frozen}
}

// ID returns the database id for chain, or a NotFound error if it was not
// present in the chain table at startup.
func (c *ChainCache) ID(chain models.Chain) (int32, error) {
	id, ok := c.ids[chain]
	if !ok {
		return 0, NotFound("chain", string(chain))
	}
	return id, nil
}

// Chains returns the set of chains this cache knows about.
func (c *ChainCache) Chains() []models.Chain {
	out := make([]models.Chain, 0, len(c.ids))
	for k := range c.ids {
		out = append(out, k)
	}
	return out
}
