package models

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Address and Hash reuse go-ethereum's fixed-size byte arrays rather than
// reinventing 20/32-byte value types; §3 requires 20-byte left-padding for
// addresses and 32-byte left-padding for hashes, which is exactly what
// common.BytesToAddress/common.BytesToHash already implement.
type Address = common.Address
type Hash = common.Hash

// Bytes is a variable-length byte literal: storage slot values, balances,
// contract code, attribute values. Hex-encoded with a 0x prefix on the wire.
type Bytes []byte

func BytesFromHex(s string) (Bytes, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, err
	}
	return Bytes(b), nil
}

func (b Bytes) Hex() string { return hexutil.Encode(b) }

func (b Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Hex())
}

func (b *Bytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := hexutil.Decode(s)
	if err != nil {
		return err
	}
	*b = Bytes(decoded)
	return nil
}

// PadAddress left-pads b to 20 bytes, per §4.2 transform 1.
func PadAddress(b []byte) Address { return common.BytesToAddress(b) }

// PadHash left-pads b to 32 bytes, per §4.2 transform 1.
func PadHash(b []byte) Hash { return common.BytesToHash(b) }
