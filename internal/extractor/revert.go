package extractor

import (
	"context"

	"github.com/synnergy-labs/chain-indexer/internal/models"
	"github.com/synnergy-labs/chain-indexer/internal/store"
)

// buildRevertChanges materializes the entity changes needed to bring a
// subscriber back from the current head to target (§4.3 "the store returns
// the set of entity changes needed to bring clients back to that
// version"), by reading the delta between the two versions rather than
// replaying writes.
func buildRevertChanges(ctx context.Context, s store.VersionedStore, chain models.Chain, head, target models.Block) (models.BlockChanges, error) {
	startV := models.AtBlock(models.BlockByHash(head.Hash), models.VersionLast)
	endV := models.AtBlock(models.BlockByHash(target.Hash), models.VersionLast)

	accounts, err := s.GetAccountsDelta(ctx, chain, startV, endV)
	if err != nil {
		return models.BlockChanges{}, err
	}
	states, err := s.GetProtocolStatesDelta(ctx, chain, startV, endV)
	if err != nil {
		return models.BlockChanges{}, err
	}
	balances, err := s.GetBalanceDeltas(ctx, chain, startV, endV)
	if err != nil {
		return models.BlockChanges{}, err
	}

	out := models.BlockChanges{Block: target, Revert: true}

	for _, d := range accounts {
		changeType := models.ChangeUpdate
		if d.Deleted {
			changeType = models.ChangeDeletion
		}
		out.AccountUpdates = append(out.AccountUpdates, models.TxAccountDelta{
			Update: models.AccountUpdate{
				Address:    d.Address,
				Slots:      d.Slots,
				Balance:    d.Balance,
				Code:       d.Code,
				ChangeType: changeType,
			},
		})
	}

	for _, d := range states {
		out.ProtocolStateDeltas = append(out.ProtocolStateDeltas, models.TxProtocolStateDelta{Delta: d})
	}

	for _, d := range balances {
		if d.Deleted {
			// ComponentBalanceRow has no tombstone representation;
			// deleted balances are dropped from the emitted revert
			// message rather than forced into a zero-value row.
			continue
		}
		out.BalanceChanges = append(out.BalanceChanges, models.ComponentBalanceRow{
			Component:  d.Component,
			Token:      d.Token,
			NewBalance: d.NewBalance,
			ValidFrom:  target.Ts,
		})
	}

	return out, nil
}
