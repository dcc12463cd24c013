package normalize

import (
	"sort"

	"github.com/synnergy-labs/chain-indexer/internal/models"
)

// mergeAddressUpdates folds every per-tx update against the same address
// into one per-block models.TxAccountDelta (§4.2 transform 3): later slot
// values overwrite earlier, later non-nil balance/code overwrite earlier,
// and the change type is taken from the earliest contributing transaction
// unless a later one is a creation, which dominates. The merged delta is
// tagged with the last contributing transaction's hash, since by the time
// all per-tx writes for one block are folded into a single row there is
// nothing left for the store's same-block tie-break to resolve.
func mergeAddressUpdates(updates []addressUpdate) []models.TxAccountDelta {
	byAddress := make(map[models.Address][]addressUpdate)
	var order []models.Address
	for _, u := range updates {
		if _, seen := byAddress[u.update.Address]; !seen {
			order = append(order, u.update.Address)
		}
		byAddress[u.update.Address] = append(byAddress[u.update.Address], u)
	}

	out := make([]models.TxAccountDelta, 0, len(order))
	for _, addr := range order {
		group := byAddress[addr]
		sort.SliceStable(group, func(i, j int) bool { return group[i].txIndex < group[j].txIndex })

		merged := models.AccountUpdate{Address: addr, ChangeType: group[0].update.ChangeType}
		lastTxHash := group[0].txHash
		for _, u := range group {
			lastTxHash = u.txHash
			if u.update.ChangeType == models.ChangeCreation {
				merged.ChangeType = models.ChangeCreation
			}
			for slot, value := range u.update.Slots {
				if merged.Slots == nil {
					merged.Slots = make(map[models.Hash]models.Bytes)
				}
				merged.Slots[slot] = value
			}
			if u.update.Balance != nil {
				merged.Balance = u.update.Balance
			}
			if u.update.Code != nil {
				merged.Code = u.update.Code
			}
		}
		out = append(out, models.TxAccountDelta{TxHash: lastTxHash, Update: merged})
	}
	return out
}

// mergeProtocolStateUpdates mirrors mergeAddressUpdates for protocol-state
// attribute deltas, per component.
func mergeProtocolStateUpdates(updates []componentStateUpdate) []models.TxProtocolStateDelta {
	byComponent := make(map[models.ComponentID][]componentStateUpdate)
	var order []models.ComponentID
	for _, u := range updates {
		if _, seen := byComponent[u.delta.Component]; !seen {
			order = append(order, u.delta.Component)
		}
		byComponent[u.delta.Component] = append(byComponent[u.delta.Component], u)
	}

	out := make([]models.TxProtocolStateDelta, 0, len(order))
	for _, cid := range order {
		group := byComponent[cid]
		sort.SliceStable(group, func(i, j int) bool { return group[i].txIndex < group[j].txIndex })

		merged := models.ProtocolStateDelta{Component: cid, UpdatedAttributes: make(map[string]models.Bytes)}
		deleted := make(map[string]bool)
		lastTxHash := group[0].txHash
		for _, u := range group {
			lastTxHash = u.txHash
			for name, value := range u.delta.UpdatedAttributes {
				merged.UpdatedAttributes[name] = value
				delete(deleted, name)
			}
			for _, name := range u.delta.DeletedAttributes {
				deleted[name] = true
				delete(merged.UpdatedAttributes, name)
			}
		}
		for name := range deleted {
			merged.DeletedAttributes = append(merged.DeletedAttributes, name)
		}
		out = append(out, models.TxProtocolStateDelta{TxHash: lastTxHash, Delta: merged})
	}
	return out
}
