package extractor

import (
	"github.com/synnergy-labs/chain-indexer/internal/models"
	"github.com/synnergy-labs/chain-indexer/internal/normalize"
	"github.com/synnergy-labs/chain-indexer/internal/wire"
)

// Decoder turns one map_output payload into a normalized BlockChanges. Each
// extractor is configured with exactly one Decoder for the lifetime of its
// run, matching how a substreams module's output type never changes
// mid-stream.
type Decoder func(payload []byte) (models.BlockChanges, error)

// ContractChangesDecoder decodes a BlockContractChanges map output.
func ContractChangesDecoder(chain models.Chain) Decoder {
	return func(payload []byte) (models.BlockChanges, error) {
		raw, err := wire.DecodeBlockContractChanges(payload)
		if err != nil {
			return models.BlockChanges{}, err
		}
		return normalize.ContractChanges(chain, raw)
	}
}

// EntityChangesDecoder decodes a BlockEntityChanges map output.
func EntityChangesDecoder(chain models.Chain) Decoder {
	return func(payload []byte) (models.BlockChanges, error) {
		raw, err := wire.DecodeBlockEntityChanges(payload)
		if err != nil {
			return models.BlockChanges{}, err
		}
		return normalize.EntityChanges(chain, raw)
	}
}
