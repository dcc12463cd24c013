package store

import (
	"testing"
	"time"

	"github.com/synnergy-labs/chain-indexer/internal/models"
)

type fakeRow struct {
	validFrom time.Time
	validTo   *time.Time
	txIndex   uint32
}

func (f fakeRow) ValidFrom() time.Time    { return f.validFrom }
func (f fakeRow) ValidTo() *time.Time     { return f.validTo }
func (f fakeRow) ModifyTxIndex() uint32   { return f.txIndex }

func TestResolveWindowLast(t *testing.T) {
	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []fakeRow{
		{validFrom: now, txIndex: 0},
		{validFrom: now, txIndex: 2},
		{validFrom: now, txIndex: 1},
	}
	got, ok := ResolveWindow(rows, models.VersionLast, 0)
	if !ok || got.txIndex != 2 {
		t.Fatalf("expected tx index 2, got %+v ok=%v", got, ok)
	}
}

func TestResolveWindowIndex(t *testing.T) {
	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []fakeRow{
		{validFrom: now, txIndex: 0},
		{validFrom: now, txIndex: 1},
		{validFrom: now, txIndex: 2},
	}
	got, ok := ResolveWindow(rows, models.VersionIndex, 1)
	if !ok || got.txIndex != 1 {
		t.Fatalf("expected tx index 1 (<=1 max), got %+v ok=%v", got, ok)
	}
}

func TestResolveWindowIndexNoMatch(t *testing.T) {
	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []fakeRow{{validFrom: now, txIndex: 5}}
	_, ok := ResolveWindow(rows, models.VersionIndex, 1)
	if ok {
		t.Fatal("expected no match when all candidate indices exceed the requested index")
	}
}

func TestResolveWindowEmpty(t *testing.T) {
	_, ok := ResolveWindow([]fakeRow{}, models.VersionLast, 0)
	if ok {
		t.Fatal("expected false for empty candidates")
	}
}

func TestDistinctLatestPerKey(t *testing.T) {
	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []fakeRow{
		{validFrom: now, txIndex: 0},
		{validFrom: now, txIndex: 3},
	}
	byKey := DistinctLatestPerKey(rows, func(fakeRow) string { return "only-key" }, models.VersionLast, 0)
	if len(byKey) != 1 || byKey["only-key"].txIndex != 3 {
		t.Fatalf("expected single winning row with tx index 3, got %+v", byKey)
	}
}

func TestInWindowHelpers(t *testing.T) {
	lo := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	hi := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	mid := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)
	if !InWindowExclusiveInclusive(mid, lo, hi) {
		t.Fatal("mid should fall in (lo, hi]")
	}
	if InWindowExclusiveInclusive(lo, lo, hi) {
		t.Fatal("lo should be excluded from (lo, hi]")
	}
	if !InWindowExclusiveInclusive(hi, lo, hi) {
		t.Fatal("hi should be included in (lo, hi]")
	}
	if !InWindowInclusiveExclusive(lo, lo, hi) {
		t.Fatal("lo should be included in [lo, hi)")
	}
	if InWindowInclusiveExclusive(hi, lo, hi) {
		t.Fatal("hi should be excluded from [lo, hi)")
	}
}
