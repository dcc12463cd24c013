package rpc

import (
	"context"
	"errors"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/synnergy-labs/chain-indexer/internal/models"
)

// fakeNode answers symbol()/decimals() calls by selector, letting each
// test script which method reverts.
type fakeNode struct {
	symbolErr   error
	decimalsErr error
	symbol      string
	decimals    uint8
}

func (f *fakeNode) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	switch {
	case len(msg.Data) >= 4 && string(msg.Data[:4]) == string(symbolSelector):
		if f.symbolErr != nil {
			return nil, f.symbolErr
		}
		packed, err := (abi.Arguments{{Type: stringType}}).Pack(f.symbol)
		return packed, err
	case len(msg.Data) >= 4 && string(msg.Data[:4]) == string(decimalsSelector):
		if f.decimalsErr != nil {
			return nil, f.decimalsErr
		}
		packed, err := (abi.Arguments{{Type: uint8Type}}).Pack(f.decimals)
		return packed, err
	default:
		return nil, errors.New("unknown selector")
	}
}

func TestFetchTokensHappyPath(t *testing.T) {
	node := &fakeNode{symbol: "WETH", decimals: 18}
	p, err := newTokenPreprocessor(node, 0)
	if err != nil {
		t.Fatalf("newTokenPreprocessor: %v", err)
	}

	addr := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	tokens := p.FetchTokens(context.Background(), models.ChainEthereum, []models.Address{addr})
	if len(tokens) != 1 {
		t.Fatalf("expected 1 token, got %d", len(tokens))
	}
	if tokens[0].Symbol != "WETH" || tokens[0].Decimals != 18 {
		t.Errorf("token = %+v, want symbol=WETH decimals=18", tokens[0])
	}
}

func TestFetchTokensDegradesOnRevert(t *testing.T) {
	node := &fakeNode{symbolErr: errors.New("execution reverted"), decimalsErr: errors.New("execution reverted")}
	p, err := newTokenPreprocessor(node, 0)
	if err != nil {
		t.Fatalf("newTokenPreprocessor: %v", err)
	}

	addr := common.HexToAddress("0xA0b86991c7456b36c1d19D4a2e9Eb0cE3606eB48")
	tokens := p.FetchTokens(context.Background(), models.ChainEthereum, []models.Address{addr})
	if len(tokens) != 1 {
		t.Fatalf("expected 1 token, got %d", len(tokens))
	}
	if tokens[0].Decimals != defaultDecimals {
		t.Errorf("decimals = %d, want default %d", tokens[0].Decimals, defaultDecimals)
	}
	if tokens[0].Symbol == "" {
		t.Error("expected a fallback symbol, got empty string")
	}
}

func TestFetchTokensCachesResults(t *testing.T) {
	node := &fakeNode{symbol: "USDC", decimals: 6}
	p, err := newTokenPreprocessor(node, 0)
	if err != nil {
		t.Fatalf("newTokenPreprocessor: %v", err)
	}

	addr := common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	first := p.FetchTokens(context.Background(), models.ChainEthereum, []models.Address{addr})
	node.symbol = "CHANGED"
	second := p.FetchTokens(context.Background(), models.ChainEthereum, []models.Address{addr})

	if first[0].Symbol != second[0].Symbol {
		t.Errorf("expected cached symbol to stick: first=%s second=%s", first[0].Symbol, second[0].Symbol)
	}
}
