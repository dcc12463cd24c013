package wire

import (
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/synnergy-labs/chain-indexer/internal/store"
)

// Field numbers for the two length-delimited encodings (§6 "Wire encoding
// of map outputs"). Decoding walks tag/value pairs directly with protowire
// rather than generated message types, since both schemas are fixed and
// owned by the upstream producer.
const (
	fieldBlockChangesBlock    = 1
	fieldBlockChangesTxGroups = 2

	fieldClockBlockHash = 1
	fieldClockNumber    = 2
	fieldClockTimestamp = 3

	fieldTxHash  = 1
	fieldTxFrom  = 2
	fieldTxTo    = 3
	fieldTxIndex = 4

	fieldTxGroupTx      = 1
	fieldTxGroupChanges = 2

	fieldContractChangeAddress    = 1
	fieldContractChangeBalance    = 2
	fieldContractChangeCode       = 3
	fieldContractChangeSlot       = 4
	fieldContractChangeChangeType = 5

	fieldSlotKey   = 1
	fieldSlotValue = 2

	fieldEntityChangeComponentID       = 1
	fieldEntityChangeProtocolSystem    = 2
	fieldEntityChangeUpdatedAttr       = 3
	fieldEntityChangeDeletedAttr       = 4
	fieldEntityChangeNewComponent      = 5
	fieldEntityChangeBalanceChange     = 6

	fieldAttrName  = 1
	fieldAttrValue = 2

	fieldNewComponentExternalID       = 1
	fieldNewComponentProtocolType     = 2
	fieldNewComponentTokens           = 3
	fieldNewComponentContractAddrs    = 4
	fieldNewComponentStaticAttribute = 5

	fieldBalanceChangeToken      = 1
	fieldBalanceChangeNewBalance = 2
)

// DecodeBlockContractChanges parses a BlockContractChanges map output
// (§6, §4.2 step 1 "parse and address-normalize" happens downstream in
// normalize; this layer only decodes the wire shape).
func DecodeBlockContractChanges(data []byte) (BlockContractChanges, error) {
	var out BlockContractChanges
	err := WalkMessage(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case fieldBlockChangesBlock:
			clock, err := decodeClock(v)
			if err != nil {
				return err
			}
			out.Block = clock
		case fieldBlockChangesTxGroups:
			group, err := decodeTxContractChanges(v)
			if err != nil {
				return err
			}
			out.TxGroups = append(out.TxGroups, group)
		}
		return nil
	})
	if err != nil {
		return BlockContractChanges{}, err
	}
	return out, nil
}

// DecodeBlockEntityChanges parses a BlockEntityChanges map output.
func DecodeBlockEntityChanges(data []byte) (BlockEntityChanges, error) {
	var out BlockEntityChanges
	err := WalkMessage(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case fieldBlockChangesBlock:
			clock, err := decodeClock(v)
			if err != nil {
				return err
			}
			out.Block = clock
		case fieldBlockChangesTxGroups:
			group, err := decodeTxEntityChanges(v)
			if err != nil {
				return err
			}
			out.TxGroups = append(out.TxGroups, group)
		}
		return nil
	})
	if err != nil {
		return BlockEntityChanges{}, err
	}
	return out, nil
}

func decodeClock(data []byte) (ClockHeader, error) {
	var out ClockHeader
	var seconds int64
	err := WalkMessage(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case fieldClockBlockHash:
			out.BlockHash = v
		case fieldClockNumber:
			n, _ := protowire.ConsumeVarint(v)
			out.Number = n
		case fieldClockTimestamp:
			n, _ := protowire.ConsumeVarint(v)
			seconds = int64(n)
		}
		return nil
	})
	out.Timestamp = time.Unix(seconds, 0).UTC()
	return out, err
}

func decodeTxHeader(data []byte) (TxHeader, error) {
	var out TxHeader
	err := WalkMessage(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case fieldTxHash:
			out.Hash = v
		case fieldTxFrom:
			out.From = v
		case fieldTxTo:
			out.To = v
		case fieldTxIndex:
			n, _ := protowire.ConsumeVarint(v)
			out.Index = n
		}
		return nil
	})
	return out, err
}

func decodeTxContractChanges(data []byte) (TxContractChanges, error) {
	var out TxContractChanges
	err := WalkMessage(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case fieldTxGroupTx:
			tx, err := decodeTxHeader(v)
			if err != nil {
				return err
			}
			out.Tx = tx
		case fieldTxGroupChanges:
			c, err := decodeContractChange(v)
			if err != nil {
				return err
			}
			out.Changes = append(out.Changes, c)
		}
		return nil
	})
	return out, err
}

func decodeContractChange(data []byte) (ContractChange, error) {
	out := ContractChange{Slots: make(map[string][]byte)}
	err := WalkMessage(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case fieldContractChangeAddress:
			out.Address = v
		case fieldContractChangeBalance:
			out.Balance = v
		case fieldContractChangeCode:
			out.Code = v
		case fieldContractChangeSlot:
			key, value, err := decodeSlotEntry(v)
			if err != nil {
				return err
			}
			out.Slots[string(key)] = value
		case fieldContractChangeChangeType:
			n, _ := protowire.ConsumeVarint(v)
			out.ChangeType = int32(n)
		}
		return nil
	})
	return out, err
}

func decodeSlotEntry(data []byte) (key, value []byte, err error) {
	err = WalkMessage(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case fieldSlotKey:
			key = v
		case fieldSlotValue:
			value = v
		}
		return nil
	})
	return key, value, err
}

func decodeTxEntityChanges(data []byte) (TxEntityChanges, error) {
	var out TxEntityChanges
	err := WalkMessage(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case fieldTxGroupTx:
			tx, err := decodeTxHeader(v)
			if err != nil {
				return err
			}
			out.Tx = tx
		case fieldTxGroupChanges:
			c, err := decodeEntityChange(v)
			if err != nil {
				return err
			}
			out.Changes = append(out.Changes, c)
		}
		return nil
	})
	return out, err
}

func decodeEntityChange(data []byte) (EntityChange, error) {
	out := EntityChange{UpdatedAttributes: make(map[string][]byte)}
	err := WalkMessage(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case fieldEntityChangeComponentID:
			out.ComponentID = string(v)
		case fieldEntityChangeProtocolSystem:
			out.ProtocolSystem = string(v)
		case fieldEntityChangeUpdatedAttr:
			name, value, err := decodeAttrEntry(v)
			if err != nil {
				return err
			}
			out.UpdatedAttributes[name] = value
		case fieldEntityChangeDeletedAttr:
			out.DeletedAttributes = append(out.DeletedAttributes, string(v))
		case fieldEntityChangeNewComponent:
			nc, err := decodeNewComponent(v)
			if err != nil {
				return err
			}
			out.NewComponent = &nc
		case fieldEntityChangeBalanceChange:
			bc, err := decodeBalanceChange(v)
			if err != nil {
				return err
			}
			out.BalanceChanges = append(out.BalanceChanges, bc)
		}
		return nil
	})
	return out, err
}

func decodeAttrEntry(data []byte) (name string, value []byte, err error) {
	err = WalkMessage(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case fieldAttrName:
			name = string(v)
		case fieldAttrValue:
			value = v
		}
		return nil
	})
	return name, value, err
}

func decodeNewComponent(data []byte) (NewComponent, error) {
	out := NewComponent{StaticAttributes: make(map[string][]byte)}
	err := WalkMessage(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case fieldNewComponentExternalID:
			out.ExternalID = string(v)
		case fieldNewComponentProtocolType:
			out.ProtocolType = string(v)
		case fieldNewComponentTokens:
			out.Tokens = append(out.Tokens, v)
		case fieldNewComponentContractAddrs:
			out.ContractAddrs = append(out.ContractAddrs, v)
		case fieldNewComponentStaticAttribute:
			name, value, err := decodeAttrEntry(v)
			if err != nil {
				return err
			}
			out.StaticAttributes[name] = value
		}
		return nil
	})
	return out, err
}

func decodeBalanceChange(data []byte) (BalanceChange, error) {
	var out BalanceChange
	err := WalkMessage(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case fieldBalanceChangeToken:
			out.Token = v
		case fieldBalanceChangeNewBalance:
			out.NewBalance = v
		}
		return nil
	})
	return out, err
}

// WalkMessage iterates every top-level field of a length-delimited protobuf
// message, calling fn for each varint and length-delimited field with the
// field's number, wire type, and raw value bytes (varints already consumed
// to their canonical []byte form via protowire.AppendVarint so callers can
// re-consume them uniformly). Fixed32, fixed64 and group fields are skipped
// without calling fn. Unknown field numbers are simply skipped, matching
// protobuf's forward-compatible decoding contract.
func WalkMessage(data []byte, fn func(num protowire.Number, typ protowire.Type, v []byte) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return store.DecodeErrorf("wire: invalid tag: %v", protowire.ParseError(n))
		}
		data = data[n:]

		switch typ {
		case protowire.VarintType:
			val, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return store.DecodeErrorf("wire: invalid varint: %v", protowire.ParseError(m))
			}
			if err := fn(num, typ, protowire.AppendVarint(nil, val)); err != nil {
				return err
			}
			data = data[m:]
		case protowire.BytesType:
			val, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return store.DecodeErrorf("wire: invalid length-delimited field: %v", protowire.ParseError(m))
			}
			if err := fn(num, typ, val); err != nil {
				return err
			}
			data = data[m:]
		case protowire.Fixed32Type:
			_, m := protowire.ConsumeFixed32(data)
			if m < 0 {
				return store.DecodeErrorf("wire: invalid fixed32: %v", protowire.ParseError(m))
			}
			data = data[m:]
		case protowire.Fixed64Type:
			_, m := protowire.ConsumeFixed64(data)
			if m < 0 {
				return store.DecodeErrorf("wire: invalid fixed64: %v", protowire.ParseError(m))
			}
			data = data[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return store.DecodeErrorf("wire: unsupported wire type %v", typ)
			}
			data = data[m:]
		}
	}
	return nil
}
