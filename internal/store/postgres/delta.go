package postgres

import (
	"context"
	"time"

	"github.com/synnergy-labs/chain-indexer/internal/models"
)

// GetAccountsDelta computes, for every account touched between start and end,
// the delta that moves it from the start state to the end state (§4.1 "Delta
// algorithm"). When end is after start this is a forward delta (normal
// extraction); when end is before start it is a backward delta (the shape
// RevertState's caller uses to roll an already-applied block back out of a
// materialized view before the row-level revert itself runs). Both
// directions share this method: only the window orientation and which side
// of it flags Deleted differ.
func (s *Store) GetAccountsDelta(ctx context.Context, chain models.Chain, start, end models.Version) ([]models.AccountDelta, error) {
	startAt, _, _, err := s.resolveVersionTime(ctx, chain, start)
	if err != nil {
		return nil, err
	}
	endAt, endKind, endIdx, err := s.resolveVersionTime(ctx, chain, end)
	if err != nil {
		return nil, err
	}

	forward := !endAt.Before(startAt)
	lo, hi := startAt, endAt
	if !forward {
		lo, hi = endAt, startAt
	}

	chainID, err := s.Chains.ID(chain)
	if err != nil {
		return nil, err
	}

	type acc struct {
		id      int64
		address []byte
	}
	changed := make(map[int64][]byte) // account id -> address
	slotAccounts := make(map[int64]bool)
	balanceAccounts := make(map[int64]bool)
	codeAccounts := make(map[int64]bool)

	collect := func(table string, mark map[int64]bool) error {
		rows, err := s.pool.Query(ctx, `
			SELECT a.id, a.address FROM `+table+` x
			JOIN account a ON a.id = x.account_id
			WHERE a.chain_id = $1 AND x.valid_from > $2 AND x.valid_from <= $3`,
			chainID, lo, hi)
		if err != nil {
			return classify(err, table, "")
		}
		defer rows.Close()
		for rows.Next() {
			var a acc
			if err := rows.Scan(&a.id, &a.address); err != nil {
				return classify(err, table, "")
			}
			changed[a.id] = a.address
			mark[a.id] = true
		}
		return nil
	}
	if err := collect("contract_storage", slotAccounts); err != nil {
		return nil, err
	}
	if err := collect("account_balance", balanceAccounts); err != nil {
		return nil, err
	}
	if err := collect("contract_code", codeAccounts); err != nil {
		return nil, err
	}

	// Accounts whose lifecycle edge (creation or deletion) falls in the
	// window need a Deleted entry rather than a value resolution: moving
	// forward past a deletion yields Deleted=true; moving backward past a
	// creation (i.e. to a point before the account existed) also yields
	// Deleted=true, since the account must be removed from the end state.
	// The opposite edge in each direction isn't a removal: moving backward
	// past a deletion means the account is restored at endAt and needs its
	// values resolved there, same as any other changed account.
	lifecycleCol := "deleted_ts"
	restoreCol := ""
	if !forward {
		lifecycleCol = "creation_ts"
		restoreCol = "deleted_ts"
	}
	deletedSet := make(map[int64]bool)
	collectEdge := func(col string, onMatch func(id int64)) error {
		rows, err := s.pool.Query(ctx, `
			SELECT id, address FROM account
			WHERE chain_id = $1 AND `+col+` > $2 AND `+col+` <= $3`, chainID, lo, hi)
		if err != nil {
			return classify(err, "account", "")
		}
		defer rows.Close()
		for rows.Next() {
			var a acc
			if err := rows.Scan(&a.id, &a.address); err != nil {
				return classify(err, "account", "")
			}
			changed[a.id] = a.address
			onMatch(a.id)
		}
		return nil
	}
	if err := collectEdge(lifecycleCol, func(id int64) { deletedSet[id] = true }); err != nil {
		return nil, err
	}
	if restoreCol != "" {
		if err := collectEdge(restoreCol, func(id int64) {
			balanceAccounts[id] = true
			codeAccounts[id] = true
			slotAccounts[id] = true
		}); err != nil {
			return nil, err
		}
	}

	out := make([]models.AccountDelta, 0, len(changed))
	for id, addrBytes := range changed {
		addr := models.PadAddress(addrBytes)
		if deletedSet[id] {
			out = append(out, models.AccountDelta{Address: addr, Deleted: true})
			continue
		}

		d := models.AccountDelta{Address: addr}
		if balanceAccounts[id] {
			b, err := s.latestBalance(ctx, id, endAt, endKind, endIdx)
			if err != nil {
				return nil, err
			}
			if b != nil {
				d.Balance = &b
			}
		}
		if codeAccounts[id] {
			c, ok, err := s.latestCode(ctx, id, endAt, endKind, endIdx)
			if err != nil {
				return nil, err
			}
			if ok {
				d.Code = &c.Bytes
			}
		}
		if slotAccounts[id] {
			allSlots, err := s.allSlots(ctx, id, endAt, endKind, endIdx)
			if err != nil {
				return nil, err
			}
			changedSlots, err := s.changedSlotKeys(ctx, id, lo, hi)
			if err != nil {
				return nil, err
			}
			d.Slots = make(map[models.Hash]models.Bytes, len(changedSlots))
			for _, slot := range changedSlots {
				d.Slots[slot] = allSlots[slot] // zero value (nil) if the slot was cleared
			}
		}
		out = append(out, d)
	}
	return out, nil
}

// changedSlotKeys returns the distinct slot keys touched within (lo, hi] for
// one account, used to scope GetAccountsDelta's slot resolution to the slots
// that actually changed rather than the account's full storage set.
func (s *Store) changedSlotKeys(ctx context.Context, accountID int64, lo, hi time.Time) ([]models.Hash, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT slot FROM contract_storage
		WHERE account_id = $1 AND valid_from > $2 AND valid_from <= $3`, accountID, lo, hi)
	if err != nil {
		return nil, classify(err, "contract_storage", "")
	}
	defer rows.Close()
	var out []models.Hash
	for rows.Next() {
		var slot []byte
		if err := rows.Scan(&slot); err != nil {
			return nil, classify(err, "contract_storage", "")
		}
		out = append(out, models.PadHash(slot))
	}
	return out, nil
}
