package api

import (
	"time"

	"github.com/synnergy-labs/chain-indexer/internal/models"
)

// versionParam is the wire shape of a request body's "version" field.
// Precedence (§4.5): if Block is present, use it — within Block, Hash wins
// over (Chain, Number). Else use Timestamp. Else Parse fails.
type versionParam struct {
	Timestamp *time.Time    `json:"timestamp"`
	Block     *blockIDParam `json:"block"`
}

type blockIDParam struct {
	Hash   *models.Hash `json:"hash"`
	Chain  models.Chain `json:"chain"`
	Number *uint64      `json:"number"`
}

// parseVersion resolves a versionParam into a models.Version, or a
// parseError if neither a block nor a timestamp was given. chain is the
// request's path-parameter chain, used when the block identifier is given
// by number without its own chain.
func parseVersion(chain models.Chain, v *versionParam) (models.Version, error) {
	if v == nil {
		return models.VersionLatest, nil
	}

	if v.Block != nil {
		switch {
		case v.Block.Hash != nil:
			return models.AtBlock(models.BlockByHash(*v.Block.Hash), models.VersionLast), nil
		case v.Block.Number != nil:
			blockChain := v.Block.Chain
			if blockChain == "" {
				blockChain = chain
			}
			return models.AtBlock(models.BlockByNumber(blockChain, *v.Block.Number), models.VersionLast), nil
		}
	}

	if v.Timestamp != nil {
		return models.AtTimestamp(*v.Timestamp), nil
	}

	return models.Version{}, newParseError("missing timestamp or block identifier")
}
