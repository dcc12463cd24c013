package wire

import (
	"testing"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// appendBytesField and appendVarintField are a minimal hand-rolled protobuf
// encoder used only to build wire fixtures for these tests; production
// code never encodes this format, it only decodes what the upstream
// stream sends.
func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func buildClock(hash []byte, number uint64, ts int64) []byte {
	var b []byte
	b = appendBytesField(b, fieldClockBlockHash, hash)
	b = appendVarintField(b, fieldClockNumber, number)
	b = appendVarintField(b, fieldClockTimestamp, uint64(ts))
	return b
}

func buildTxHeader(hash, from, to []byte, index uint64) []byte {
	var b []byte
	b = appendBytesField(b, fieldTxHash, hash)
	b = appendBytesField(b, fieldTxFrom, from)
	b = appendBytesField(b, fieldTxTo, to)
	b = appendVarintField(b, fieldTxIndex, index)
	return b
}

func TestDecodeBlockContractChanges(t *testing.T) {
	clock := buildClock([]byte{0xaa}, 100, 1_700_000_000)
	tx := buildTxHeader([]byte{0x01}, []byte{0x02}, []byte{0x03}, 1)

	var slot []byte
	slot = appendBytesField(slot, fieldSlotKey, []byte{0x01})
	slot = appendBytesField(slot, fieldSlotValue, []byte{0x02})

	var change []byte
	change = appendBytesField(change, fieldContractChangeAddress, []byte{0x04})
	change = appendBytesField(change, fieldContractChangeBalance, []byte{0x05})
	change = appendBytesField(change, fieldContractChangeSlot, slot)
	change = appendVarintField(change, fieldContractChangeChangeType, 2)

	var group []byte
	group = appendBytesField(group, fieldTxGroupTx, tx)
	group = appendBytesField(group, fieldTxGroupChanges, change)

	var msg []byte
	msg = appendBytesField(msg, fieldBlockChangesBlock, clock)
	msg = appendBytesField(msg, fieldBlockChangesTxGroups, group)
	// An unknown field number must be skipped without error.
	msg = appendVarintField(msg, 99, 42)

	out, err := DecodeBlockContractChanges(msg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Block.Number != 100 {
		t.Fatalf("block number = %d, want 100", out.Block.Number)
	}
	if !out.Block.Timestamp.Equal(time.Unix(1_700_000_000, 0).UTC()) {
		t.Fatalf("block timestamp = %v", out.Block.Timestamp)
	}
	if len(out.TxGroups) != 1 {
		t.Fatalf("tx groups = %d, want 1", len(out.TxGroups))
	}
	g := out.TxGroups[0]
	if g.Tx.Index != 1 {
		t.Fatalf("tx index = %d, want 1", g.Tx.Index)
	}
	if len(g.Changes) != 1 {
		t.Fatalf("changes = %d, want 1", len(g.Changes))
	}
	c := g.Changes[0]
	if string(c.Address) != "\x04" || string(c.Balance) != "\x05" || c.ChangeType != 2 {
		t.Fatalf("unexpected contract change: %+v", c)
	}
	if string(c.Slots["\x01"]) != "\x02" {
		t.Fatalf("slot not decoded: %+v", c.Slots)
	}
}

func TestDecodeBlockEntityChanges(t *testing.T) {
	clock := buildClock([]byte{0xbb}, 7, 1_700_000_500)
	tx := buildTxHeader([]byte{0x11}, []byte{0x12}, nil, 0)

	var attr []byte
	attr = appendBytesField(attr, fieldAttrName, []byte("liquidity"))
	attr = appendBytesField(attr, fieldAttrValue, []byte{0x09})

	var balanceChange []byte
	balanceChange = appendBytesField(balanceChange, fieldBalanceChangeToken, []byte{0x20})
	balanceChange = appendBytesField(balanceChange, fieldBalanceChangeNewBalance, []byte{0x21})

	var newComponent []byte
	newComponent = appendBytesField(newComponent, fieldNewComponentExternalID, []byte("pool-1"))
	newComponent = appendBytesField(newComponent, fieldNewComponentProtocolType, []byte("pool"))
	newComponent = appendBytesField(newComponent, fieldNewComponentTokens, []byte{0x30})

	var entityChange []byte
	entityChange = appendBytesField(entityChange, fieldEntityChangeComponentID, []byte("pool-1"))
	entityChange = appendBytesField(entityChange, fieldEntityChangeProtocolSystem, []byte("uniswap_v2"))
	entityChange = appendBytesField(entityChange, fieldEntityChangeUpdatedAttr, attr)
	entityChange = appendBytesField(entityChange, fieldEntityChangeDeletedAttr, []byte("stale_attr"))
	entityChange = appendBytesField(entityChange, fieldEntityChangeNewComponent, newComponent)
	entityChange = appendBytesField(entityChange, fieldEntityChangeBalanceChange, balanceChange)

	var group []byte
	group = appendBytesField(group, fieldTxGroupTx, tx)
	group = appendBytesField(group, fieldTxGroupChanges, entityChange)

	var msg []byte
	msg = appendBytesField(msg, fieldBlockChangesBlock, clock)
	msg = appendBytesField(msg, fieldBlockChangesTxGroups, group)

	out, err := DecodeBlockEntityChanges(msg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Block.Number != 7 {
		t.Fatalf("block number = %d, want 7", out.Block.Number)
	}
	if len(out.TxGroups) != 1 || len(out.TxGroups[0].Changes) != 1 {
		t.Fatalf("unexpected shape: %+v", out)
	}
	ec := out.TxGroups[0].Changes[0]
	if ec.ComponentID != "pool-1" || ec.ProtocolSystem != "uniswap_v2" {
		t.Fatalf("unexpected entity change identity: %+v", ec)
	}
	if string(ec.UpdatedAttributes["liquidity"]) != "\x09" {
		t.Fatalf("updated attribute not decoded: %+v", ec.UpdatedAttributes)
	}
	if len(ec.DeletedAttributes) != 1 || ec.DeletedAttributes[0] != "stale_attr" {
		t.Fatalf("deleted attribute not decoded: %+v", ec.DeletedAttributes)
	}
	if ec.NewComponent == nil || ec.NewComponent.ExternalID != "pool-1" {
		t.Fatalf("new component not decoded: %+v", ec.NewComponent)
	}
	if len(ec.BalanceChanges) != 1 || string(ec.BalanceChanges[0].Token) != "\x20" {
		t.Fatalf("balance change not decoded: %+v", ec.BalanceChanges)
	}
}

func TestDecodeRejectsTruncatedTag(t *testing.T) {
	// A lone continuation byte with the MSB set is an incomplete varint tag.
	_, err := DecodeBlockContractChanges([]byte{0x80})
	if err == nil {
		t.Fatal("expected a decode error for a truncated tag")
	}
}
