// Package rpc implements the best-effort ERC-20 token metadata
// pre-processor (§1 "out of scope: ABI decoding... from an RPC node" —
// only the degrade-gracefully contract is in scope, not full ABI/RPC
// internals), supplemented from
// original_source/tycho-indexer/src/extractor/evm/token_pre_processor.rs:
// call symbol()/decimals() on an ERC-20 contract, substitute a fallback
// when either call reverts rather than failing the whole block.
package rpc

import (
	"context"
	"math/big"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/synnergy-labs/chain-indexer/internal/models"
	"github.com/synnergy-labs/chain-indexer/internal/store"
)

const (
	defaultDecimals = 18
	cacheSize       = 4096
)

var (
	symbolSelector   = selectorFor("symbol()")
	decimalsSelector = selectorFor("decimals()")

	stringType, _ = abi.NewType("string", "", nil)
	uint8Type, _  = abi.NewType("uint8", "", nil)
)

func selectorFor(sig string) []byte {
	return crypto.Keccak256([]byte(sig))[:4]
}

// CallContracter is the subset of ethclient.Client the preprocessor
// needs, so tests can substitute a fake RPC node.
type CallContracter interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// TokenPreprocessor fetches ERC-20 metadata for newly observed token
// addresses, caching successes so a busy chain with repeated token
// references doesn't re-dial the RPC node per block.
type TokenPreprocessor struct {
	client CallContracter
	cache  *lru.Cache[models.Address, models.Token]
}

// NewTokenPreprocessor dials rpcURL via ethclient, matching the
// teacher's ethereum/go-ethereum direct dependency.
func NewTokenPreprocessor(rpcURL string, cacheEntries int) (*TokenPreprocessor, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, store.RPCErrorf("rpc: dial %s: %v", rpcURL, err)
	}
	return newTokenPreprocessor(client, cacheEntries)
}

func newTokenPreprocessor(client CallContracter, cacheEntries int) (*TokenPreprocessor, error) {
	if cacheEntries <= 0 {
		cacheEntries = cacheSize
	}
	cache, err := lru.New[models.Address, models.Token](cacheEntries)
	if err != nil {
		return nil, err
	}
	return &TokenPreprocessor{client: client, cache: cache}, nil
}

// FetchTokens resolves metadata for each address, in order, never
// failing the batch: a contract that doesn't implement symbol()/
// decimals() still yields a Token with degraded defaults (§ supplemented
// from token_pre_processor.rs's (symbol, decimals, quality) match).
func (p *TokenPreprocessor) FetchTokens(ctx context.Context, chain models.Chain, addresses []models.Address) []models.Token {
	tokens := make([]models.Token, 0, len(addresses))
	for _, addr := range addresses {
		tokens = append(tokens, p.fetchOne(ctx, chain, addr))
	}
	return tokens
}

func (p *TokenPreprocessor) fetchOne(ctx context.Context, chain models.Chain, addr models.Address) models.Token {
	if cached, ok := p.cache.Get(addr); ok {
		return cached
	}

	symbol, symbolErr := p.callSymbol(ctx, addr)
	decimals, decimalsErr := p.callDecimals(ctx, addr)

	if symbolErr != nil {
		symbol = strings.ToLower(addr.Hex())
	}
	if decimalsErr != nil {
		decimals = defaultDecimals
	}

	token := models.Token{
		Account:  models.AccountID{Chain: chain, Address: addr},
		Symbol:   symbol,
		Decimals: decimals,
	}
	p.cache.Add(addr, token)
	return token
}

func (p *TokenPreprocessor) callSymbol(ctx context.Context, addr models.Address) (string, error) {
	out, err := p.client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: symbolSelector}, nil)
	if err != nil {
		return "", store.RPCErrorf("rpc: symbol(%s): %v", addr, err)
	}
	values, err := (abi.Arguments{{Type: stringType}}).Unpack(out)
	if err != nil || len(values) != 1 {
		return "", store.RPCErrorf("rpc: decode symbol(%s): %v", addr, err)
	}
	symbol, ok := values[0].(string)
	if !ok {
		return "", store.RPCErrorf("rpc: symbol(%s): unexpected return type", addr)
	}
	return symbol, nil
}

func (p *TokenPreprocessor) callDecimals(ctx context.Context, addr models.Address) (uint8, error) {
	out, err := p.client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: decimalsSelector}, nil)
	if err != nil {
		return 0, store.RPCErrorf("rpc: decimals(%s): %v", addr, err)
	}
	values, err := (abi.Arguments{{Type: uint8Type}}).Unpack(out)
	if err != nil || len(values) != 1 {
		return 0, store.RPCErrorf("rpc: decode decimals(%s): %v", addr, err)
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return 0, store.RPCErrorf("rpc: decimals(%s): unexpected return type", addr)
	}
	return decimals, nil
}
