package api

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/synnergy-labs/chain-indexer/internal/models"
)

func TestParseVersionNilMeansLatest(t *testing.T) {
	v, err := parseVersion(models.ChainEthereum, nil)
	if err != nil {
		t.Fatalf("parseVersion: %v", err)
	}
	if !v.IsLatest() {
		t.Errorf("v = %+v, want latest", v)
	}
}

func TestParseVersionBlockHashWinsOverNumber(t *testing.T) {
	hash := common.HexToHash("0x01")
	number := uint64(5)
	v, err := parseVersion(models.ChainEthereum, &versionParam{
		Block: &blockIDParam{Hash: &hash, Number: &number},
	})
	if err != nil {
		t.Fatalf("parseVersion: %v", err)
	}
	if v.Block == nil || v.Block.Kind != models.BlockIDHash || v.Block.Hash != hash {
		t.Errorf("v.Block = %+v, want hash-kind block at %s", v.Block, hash)
	}
}

func TestParseVersionBlockNumberUsesPathChainWhenUnset(t *testing.T) {
	number := uint64(42)
	v, err := parseVersion(models.ChainStarknet, &versionParam{
		Block: &blockIDParam{Number: &number},
	})
	if err != nil {
		t.Fatalf("parseVersion: %v", err)
	}
	if v.Block == nil || v.Block.Chain != models.ChainStarknet || v.Block.Number != number {
		t.Errorf("v.Block = %+v, want number %d on %s", v.Block, number, models.ChainStarknet)
	}
}

func TestParseVersionFallsBackToTimestamp(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v, err := parseVersion(models.ChainEthereum, &versionParam{Timestamp: &ts})
	if err != nil {
		t.Fatalf("parseVersion: %v", err)
	}
	if v.Timestamp == nil || !v.Timestamp.Equal(ts) {
		t.Errorf("v.Timestamp = %v, want %v", v.Timestamp, ts)
	}
}

func TestParseVersionFailsWithoutBlockOrTimestamp(t *testing.T) {
	_, err := parseVersion(models.ChainEthereum, &versionParam{})
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, ok := err.(*parseError); !ok {
		t.Errorf("err = %T, want *parseError", err)
	}
}
