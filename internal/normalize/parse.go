package normalize

import (
	"github.com/synnergy-labs/chain-indexer/internal/models"
	"github.com/synnergy-labs/chain-indexer/internal/store"
	"github.com/synnergy-labs/chain-indexer/internal/wire"
)

// parseBlock normalizes a wire clock header into a models.Block. The
// parent hash isn't carried on the wire clock header, so it's resolved by
// the caller from the chain's last-known head where needed; here it is
// left zero and the extractor fills it in before calling UpsertBlock.
func parseBlock(chain models.Chain, clock wire.ClockHeader) models.Block {
	return models.Block{
		Chain:  chain,
		Number: clock.Number,
		Hash:   models.PadHash(clock.BlockHash),
		Ts:     clock.Timestamp,
	}
}

// changeTypeFromWire maps the wire's change_type tag to models.ChangeType,
// rejecting the unspecified (zero) tag per §4.2 transform 1 "reject
// unknown enum tags... as DecodeError".
func changeTypeFromWire(tag int32) (models.ChangeType, error) {
	switch tag {
	case 1:
		return models.ChangeUpdate, nil
	case 2:
		return models.ChangeCreation, nil
	case 3:
		return models.ChangeDeletion, nil
	default:
		return 0, store.DecodeErrorf("contract change: unspecified change type tag %d", tag)
	}
}

// parseContractChanges runs transform 1 (parse/normalize/reject) over a
// decoded BlockContractChanges, producing one addressUpdate per (tx,
// address) pair in the wire's own transaction order — transform 2's
// ascending-by-index ordering is the upstream stream's own contract, so
// this just trusts tx_groups order rather than re-sorting defensively.
func parseContractChanges(raw wire.BlockContractChanges) ([]addressUpdate, error) {
	var out []addressUpdate
	for _, group := range raw.TxGroups {
		txHash := models.PadHash(group.Tx.Hash)
		for _, c := range group.Changes {
			changeType, err := changeTypeFromWire(c.ChangeType)
			if err != nil {
				return nil, err
			}
			update := models.AccountUpdate{
				Address:    models.PadAddress(c.Address),
				ChangeType: changeType,
			}
			if c.Balance != nil {
				b := models.Bytes(c.Balance)
				update.Balance = &b
			}
			if c.Code != nil {
				code := models.Bytes(c.Code)
				update.Code = &code
			}
			if len(c.Slots) > 0 {
				update.Slots = make(map[models.Hash]models.Bytes, len(c.Slots))
				for key, value := range c.Slots {
					update.Slots[models.PadHash([]byte(key))] = models.Bytes(value)
				}
			}
			out = append(out, addressUpdate{
				txHash:  txHash,
				txIndex: uint32(group.Tx.Index),
				update:  update,
			})
		}
	}
	return out, nil
}

// parseEntityChanges runs the same transform over a decoded
// BlockEntityChanges, additionally surfacing newly created components and
// balance changes that don't go through the address-fold path.
func parseEntityChanges(chain models.Chain, raw wire.BlockEntityChanges) ([]componentStateUpdate, []models.ProtocolComponent, []models.ComponentBalanceRow) {
	var (
		stateUpdates []componentStateUpdate
		components   []models.ProtocolComponent
		balances     []models.ComponentBalanceRow
	)
	for _, group := range raw.TxGroups {
		txHash := models.PadHash(group.Tx.Hash)
		for _, ec := range group.Changes {
			system := models.ProtocolSystem(ec.ProtocolSystem)
			cid := models.ComponentID{Chain: chain, ProtocolSystem: system, ExternalID: ec.ComponentID}

			if ec.NewComponent != nil {
				nc := ec.NewComponent
				tokens := make([]models.Address, len(nc.Tokens))
				for i, t := range nc.Tokens {
					tokens[i] = models.PadAddress(t)
				}
				contracts := make([]models.AccountID, len(nc.ContractAddrs))
				for i, a := range nc.ContractAddrs {
					contracts[i] = models.AccountID{Chain: chain, Address: models.PadAddress(a)}
				}
				attrs := make(map[string]models.Bytes, len(nc.StaticAttributes))
				for k, v := range nc.StaticAttributes {
					attrs[k] = models.Bytes(v)
				}
				components = append(components, models.ProtocolComponent{
					ID:               models.ComponentID{Chain: chain, ProtocolSystem: system, ExternalID: nc.ExternalID},
					ProtocolType:     models.ProtocolType(nc.ProtocolType),
					Tokens:           tokens,
					ContractIDs:      contracts,
					StaticAttributes: attrs,
					CreationTx:       txHash,
					CreatedAt:        raw.Block.Timestamp,
				})
			}

			if len(ec.UpdatedAttributes) > 0 || len(ec.DeletedAttributes) > 0 {
				updated := make(map[string]models.Bytes, len(ec.UpdatedAttributes))
				for name, value := range ec.UpdatedAttributes {
					updated[name] = models.Bytes(value)
				}
				stateUpdates = append(stateUpdates, componentStateUpdate{
					txHash:  txHash,
					txIndex: uint32(group.Tx.Index),
					delta: models.ProtocolStateDelta{
						Component:         cid,
						UpdatedAttributes: updated,
						DeletedAttributes: append([]string(nil), ec.DeletedAttributes...),
					},
				})
			}

			for _, bc := range ec.BalanceChanges {
				balances = append(balances, models.ComponentBalanceRow{
					Component:  cid,
					Token:      models.PadAddress(bc.Token),
					NewBalance: models.Bytes(bc.NewBalance),
					ValidFrom:  raw.Block.Timestamp,
					ModifyTx:   txHash,
				})
			}
		}
	}
	return stateUpdates, components, balances
}
