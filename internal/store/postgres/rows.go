package postgres

import (
	"time"

	"github.com/synnergy-labs/chain-indexer/internal/store"
)

var _ store.VersionedRow = candidateRow{}

// candidateRow adapts a raw SQL row into store.VersionedRow so the shared
// ResolveWindow/DistinctLatestPerKey helpers (internal/store/version.go) can
// pick the winner among same-block writes without duplicating that logic
// per row family.
type candidateRow struct {
	validFrom time.Time
	validTo   *time.Time
	txIndex   uint32
	value     []byte
	key       string // slot hex, or "" for single-row families
}

func (c candidateRow) ValidFrom() time.Time  { return c.validFrom }
func (c candidateRow) ValidTo() *time.Time   { return c.validTo }
func (c candidateRow) ModifyTxIndex() uint32 { return c.txIndex }
