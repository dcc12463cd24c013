// Package models defines the versioned data model shared by the store,
// normalization, extractor and API layers: chains, blocks, transactions,
// contract/account state, protocol components and their dynamic state.
package models

import (
	"fmt"
	"time"
)

// Chain is a closed tag set persisted as a lookup table so that adding a
// new chain needs no schema change, only a new row plus a cache refresh.
type Chain string

const (
	ChainEthereum Chain = "ethereum"
	ChainStarknet Chain = "starknet"
	ChainZKSync   Chain = "zksync"
)

// KnownChains lists the chains this build ships support for out of the box.
// Additional chains may still be synced into the database at runtime; this
// list only seeds the ensure-chains routine (see internal/store.ChainCache).
var KnownChains = []Chain{ChainEthereum, ChainStarknet, ChainZKSync}

func (c Chain) String() string { return string(c) }

// Valid reports whether c is one of the known chain tags.
func (c Chain) Valid() bool {
	for _, k := range KnownChains {
		if k == c {
			return true
		}
	}
	return false
}

// Block identifies a block by hash, with (chain, number) unique within a
// non-forked suffix. Ts is UTC-naive: callers must not attach a location.
type Block struct {
	Chain      Chain
	Number     uint64
	Hash       Hash
	ParentHash Hash
	Ts         time.Time
}

func (b Block) String() string {
	return fmt.Sprintf("Block(chain=%s, number=%d, hash=%s)", b.Chain, b.Number, b.Hash)
}

// Transaction identifies a transaction by hash. Index is the position within
// the block and is the intra-block tie-break used by versioning (§4.1).
type Transaction struct {
	BlockHash Hash
	Index     uint32
	Hash      Hash
	From      Address
	To        Address
}

// BlockIdentifier selects a block by one of three means. Exactly one variant
// is populated; Kind disambiguates.
type BlockIdentifierKind int

const (
	BlockIDNumber BlockIdentifierKind = iota
	BlockIDHash
	BlockIDLatest
)

type BlockIdentifier struct {
	Kind   BlockIdentifierKind
	Chain  Chain  // used by Number and Latest
	Number uint64 // used by Number
	Hash   Hash   // used by Hash
}

func BlockByNumber(chain Chain, number uint64) BlockIdentifier {
	return BlockIdentifier{Kind: BlockIDNumber, Chain: chain, Number: number}
}

func BlockByHash(hash Hash) BlockIdentifier {
	return BlockIdentifier{Kind: BlockIDHash, Hash: hash}
}

func LatestBlock(chain Chain) BlockIdentifier {
	return BlockIdentifier{Kind: BlockIDLatest, Chain: chain}
}

func (b BlockIdentifier) String() string {
	switch b.Kind {
	case BlockIDNumber:
		return fmt.Sprintf("Number(%s, %d)", b.Chain, b.Number)
	case BlockIDHash:
		return fmt.Sprintf("Hash(%s)", b.Hash)
	default:
		return fmt.Sprintf("Latest(%s)", b.Chain)
	}
}
