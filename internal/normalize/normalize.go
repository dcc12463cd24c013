package normalize

import (
	"github.com/synnergy-labs/chain-indexer/internal/models"
	"github.com/synnergy-labs/chain-indexer/internal/wire"
)

// ContractChanges runs the full pipeline (§4.2 transforms 1-4) over a
// decoded BlockContractChanges map output: parse/normalize/reject, fold
// per-tx updates per address, then post-process.
func ContractChanges(chain models.Chain, raw wire.BlockContractChanges) (models.BlockChanges, error) {
	updates, err := parseContractChanges(raw)
	if err != nil {
		return models.BlockChanges{}, err
	}
	out := models.BlockChanges{
		Block:          parseBlock(chain, raw.Block),
		AccountUpdates: mergeAddressUpdates(updates),
	}
	applyPostProcessors(&out)
	return out, nil
}

// EntityChanges runs the same pipeline over a decoded BlockEntityChanges
// map output.
func EntityChanges(chain models.Chain, raw wire.BlockEntityChanges) (models.BlockChanges, error) {
	stateUpdates, components, balances := parseEntityChanges(chain, raw)
	out := models.BlockChanges{
		Block:               parseBlock(chain, raw.Block),
		NewComponents:       components,
		ProtocolStateDeltas: mergeProtocolStateUpdates(stateUpdates),
		BalanceChanges:      balances,
	}
	applyPostProcessors(&out)
	return out, nil
}
