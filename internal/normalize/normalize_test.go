package normalize

import (
	"testing"

	"github.com/synnergy-labs/chain-indexer/internal/models"
	"github.com/synnergy-labs/chain-indexer/internal/wire"
)

func TestContractChangesRejectsUnspecifiedChangeType(t *testing.T) {
	raw := wire.BlockContractChanges{
		TxGroups: []wire.TxContractChanges{{
			Tx:      wire.TxHeader{Hash: []byte{0x01}, Index: 0},
			Changes: []wire.ContractChange{{Address: []byte{0x02}, ChangeType: 0}},
		}},
	}
	if _, err := ContractChanges(models.ChainEthereum, raw); err == nil {
		t.Fatal("expected a decode error for an unspecified change type")
	}
}

func TestContractChangesMergesPerAddressAcrossTransactions(t *testing.T) {
	addr := []byte{0xAB}
	slot := []byte{0x01}
	balance1, balance2 := []byte{0x10}, []byte{0x20}

	raw := wire.BlockContractChanges{
		TxGroups: []wire.TxContractChanges{
			{
				Tx: wire.TxHeader{Hash: []byte{0x01}, Index: 0},
				Changes: []wire.ContractChange{{
					Address:    addr,
					Balance:    balance1,
					Slots:      map[string][]byte{string(slot): {0x01}},
					ChangeType: 2, // creation
				}},
			},
			{
				Tx: wire.TxHeader{Hash: []byte{0x02}, Index: 1},
				Changes: []wire.ContractChange{{
					Address:    addr,
					Balance:    balance2,
					Slots:      map[string][]byte{string(slot): {0x02}},
					ChangeType: 1, // update
				}},
			},
		},
	}

	out, err := ContractChanges(models.ChainEthereum, raw)
	if err != nil {
		t.Fatalf("ContractChanges: %v", err)
	}
	if len(out.AccountUpdates) != 1 {
		t.Fatalf("account updates = %d, want 1 (merged)", len(out.AccountUpdates))
	}
	d := out.AccountUpdates[0]
	if d.TxHash != models.PadHash([]byte{0x02}) {
		t.Fatalf("merged delta tagged with wrong tx: %x", d.TxHash)
	}
	if d.Update.ChangeType != models.ChangeCreation {
		t.Fatalf("change type = %v, want ChangeCreation (dominates)", d.Update.ChangeType)
	}
	if string(*d.Update.Balance) != string(balance2) {
		t.Fatalf("balance = %x, want the later tx's value", *d.Update.Balance)
	}
	if got := d.Update.Slots[models.PadHash(slot)]; string(got) != "\x02" {
		t.Fatalf("slot = %x, want the later tx's value", got)
	}
}

func TestEntityChangesInjectsDefaultUniswapV3Attributes(t *testing.T) {
	componentID := "0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"
	raw := wire.BlockEntityChanges{
		TxGroups: []wire.TxEntityChanges{{
			Tx: wire.TxHeader{Hash: []byte{0x0a}, Index: 10},
			Changes: []wire.EntityChange{
				{
					ComponentID:       componentID,
					ProtocolSystem:    "uniswap_v3",
					UpdatedAttributes: map[string][]byte{"tick": {0x01}},
				},
				{
					ComponentID:    componentID,
					ProtocolSystem: "uniswap_v3",
					NewComponent: &wire.NewComponent{
						ExternalID:   componentID,
						ProtocolType: "uniswap_v3",
					},
				},
			},
		}},
	}

	out, err := EntityChanges(models.ChainEthereum, raw)
	if err != nil {
		t.Fatalf("EntityChanges: %v", err)
	}
	if len(out.ProtocolStateDeltas) != 1 {
		t.Fatalf("protocol state deltas = %d, want 1", len(out.ProtocolStateDeltas))
	}
	attrs := out.ProtocolStateDeltas[0].Delta.UpdatedAttributes
	for _, name := range []string{"liquidity", "tick", "sqrt_price_x96"} {
		if _, ok := attrs[name]; !ok {
			t.Errorf("missing mandatory attribute %q", name)
		}
	}
	if string(attrs["tick"]) != "\x01" {
		t.Errorf("pre-existing attribute value was overwritten: %x", attrs["tick"])
	}
	if string(attrs["liquidity"]) != string(zeroBytes32) {
		t.Errorf("injected attribute not zero-filled: %x", attrs["liquidity"])
	}
}

func TestZeroTokenTrimmingStripsZeroAddressFromPlainPool(t *testing.T) {
	changes := models.BlockChanges{
		NewComponents: []models.ProtocolComponent{{
			ID: models.ComponentID{ExternalID: "pool-1"},
			StaticAttributes: map[string]models.Bytes{
				"factory_name": models.Bytes(stableSwapFactory),
				"pool_type":    models.Bytes(plainPool),
			},
			Tokens: []models.Address{models.PadAddress([]byte{0x01}), {}, models.PadAddress([]byte{0x02})},
		}},
	}
	applyZeroTokenTrimming(&changes)
	tokens := changes.NewComponents[0].Tokens
	if len(tokens) != 2 {
		t.Fatalf("tokens = %d, want 2 after trimming the zero entry", len(tokens))
	}
	for _, tok := range tokens {
		if tok == (models.Address{}) {
			t.Fatalf("zero address token survived trimming: %+v", tokens)
		}
	}
}
