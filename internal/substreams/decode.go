package substreams

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/synnergy-labs/chain-indexer/internal/store"
	"github.com/synnergy-labs/chain-indexer/internal/wire"
)

// Field numbers for the stream response envelope (§6). Mirrors the real
// substreams sink wire layout: a response carries exactly one of a
// block-scoped data message, an undo signal, or a progress update, each
// itself length-delimited. Reuses wire.WalkMessage rather than
// duplicating the tag/value walking loop in a second package.
const (
	fieldResponseBlockScopedData = 1
	fieldResponseUndo            = 2
	fieldResponseProgress        = 3

	fieldBlockScopedDataOutput = 1
	fieldBlockScopedDataClock  = 2
	fieldBlockScopedDataCursor = 3

	fieldMapOutputName    = 1
	fieldMapOutputTypeURL = 2
	fieldMapOutputValue   = 3

	fieldClockID        = 1
	fieldClockNumber    = 2
	fieldClockTimestamp = 3

	fieldUndoLastValidBlock  = 1
	fieldUndoLastValidCursor = 2
)

// DecodeEnvelope parses one response message off the stream into an
// Envelope. Progress messages decode to a bare KindProgress envelope with
// no payload, matching §6's "Progress messages accepted but ignored".
func DecodeEnvelope(data []byte) (Envelope, error) {
	var out Envelope
	seen := false
	err := wire.WalkMessage(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case fieldResponseBlockScopedData:
			msg, err := decodeNewMessage(v)
			if err != nil {
				return err
			}
			out = Envelope{Kind: KindNew, New: msg}
			seen = true
		case fieldResponseUndo:
			msg, err := decodeUndoMessage(v)
			if err != nil {
				return err
			}
			out = Envelope{Kind: KindUndo, Undo: msg}
			seen = true
		case fieldResponseProgress:
			out = Envelope{Kind: KindProgress}
			seen = true
		}
		return nil
	})
	if err != nil {
		return Envelope{}, err
	}
	if !seen {
		return Envelope{}, store.DecodeErrorf("substreams: response carried none of block_scoped_data/undo/progress")
	}
	return out, nil
}

func decodeNewMessage(data []byte) (NewMessage, error) {
	var out NewMessage
	err := wire.WalkMessage(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case fieldBlockScopedDataOutput:
			output, err := decodeMapOutput(v)
			if err != nil {
				return err
			}
			out.Output = output
		case fieldBlockScopedDataClock:
			clock, err := decodeClock(v)
			if err != nil {
				return err
			}
			out.Clock = clock
		case fieldBlockScopedDataCursor:
			out.Cursor = string(v)
		}
		return nil
	})
	return out, err
}

func decodeMapOutput(data []byte) (MapOutput, error) {
	var out MapOutput
	err := wire.WalkMessage(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case fieldMapOutputName:
			out.Name = string(v)
		case fieldMapOutputTypeURL:
			out.TypeURL = string(v)
		case fieldMapOutputValue:
			out.Value = v
		}
		return nil
	})
	return out, err
}

func decodeClock(data []byte) (Clock, error) {
	var out Clock
	err := wire.WalkMessage(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case fieldClockID:
			out.ID = v
		case fieldClockNumber:
			n, _ := protowire.ConsumeVarint(v)
			out.Number = n
		case fieldClockTimestamp:
			n, _ := protowire.ConsumeVarint(v)
			out.Timestamp = int64(n)
		}
		return nil
	})
	return out, err
}

func decodeUndoMessage(data []byte) (UndoMessage, error) {
	var out UndoMessage
	err := wire.WalkMessage(data, func(num protowire.Number, typ protowire.Type, v []byte) error {
		switch num {
		case fieldUndoLastValidBlock:
			clock, err := decodeClock(v)
			if err != nil {
				return err
			}
			out.LastValidBlock = clock
		case fieldUndoLastValidCursor:
			out.LastValidCursor = string(v)
		}
		return nil
	})
	return out, err
}
