package postgres

import (
	"context"
	"time"

	"github.com/synnergy-labs/chain-indexer/internal/models"
)

// UpsertBlock ignores a conflicting insert with identical identity and
// keeps the existing row, per §4.1 "Upsert ignores conflicting insert with
// identical identity, keeps existing."
func (s *Store) UpsertBlock(ctx context.Context, b models.Block) error {
	chainID, err := s.Chains.ID(b.Chain)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO block (chain_id, number, hash, parent_hash, ts)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (hash) DO NOTHING`,
		chainID, b.Number, b.Hash.Bytes(), b.ParentHash.Bytes(), b.Ts)
	if err != nil {
		return classify(err, "block", b.Hash.Hex())
	}
	return nil
}

// GetBlock resolves a BlockIdentifier to its row. Latest(chain) resolves to
// the maximum block number on that chain at query time (§4.1).
func (s *Store) GetBlock(ctx context.Context, id models.BlockIdentifier) (models.Block, error) {
	var (
		chainName  string
		number     uint64
		hash       []byte
		parentHash []byte
		ts         time.Time
		row        interface {
			Scan(dest ...any) error
		}
	)

	switch id.Kind {
	case models.BlockIDHash:
		row = s.pool.QueryRow(ctx, `
			SELECT c.name, b.number, b.hash, b.parent_hash, b.ts
			FROM block b JOIN chain c ON c.id = b.chain_id
			WHERE b.hash = $1`, id.Hash.Bytes())
	case models.BlockIDNumber:
		chainID, err := s.Chains.ID(id.Chain)
		if err != nil {
			return models.Block{}, err
		}
		row = s.pool.QueryRow(ctx, `
			SELECT c.name, b.number, b.hash, b.parent_hash, b.ts
			FROM block b JOIN chain c ON c.id = b.chain_id
			WHERE b.chain_id = $1 AND b.number = $2`, chainID, id.Number)
	default: // BlockIDLatest
		chainID, err := s.Chains.ID(id.Chain)
		if err != nil {
			return models.Block{}, err
		}
		row = s.pool.QueryRow(ctx, `
			SELECT c.name, b.number, b.hash, b.parent_hash, b.ts
			FROM block b JOIN chain c ON c.id = b.chain_id
			WHERE b.chain_id = $1
			ORDER BY b.number DESC
			LIMIT 1`, chainID)
	}

	if err := row.Scan(&chainName, &number, &hash, &parentHash, &ts); err != nil {
		return models.Block{}, classify(err, "block", id.String())
	}
	return models.Block{
		Chain:      models.Chain(chainName),
		Number:     number,
		Hash:       models.PadHash(hash),
		ParentHash: models.PadHash(parentHash),
		Ts:         ts,
	}, nil
}

// UpsertTx mirrors UpsertBlock's identity semantics.
func (s *Store) UpsertTx(ctx context.Context, t models.Transaction) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transaction (block_id, index, hash, from_addr, to_addr)
		SELECT b.id, $2, $3, $4, $5 FROM block b WHERE b.hash = $1
		ON CONFLICT (hash) DO NOTHING`,
		t.BlockHash.Bytes(), t.Index, t.Hash.Bytes(), t.From.Bytes(), t.To.Bytes())
	if err != nil {
		return classify(err, "transaction", t.Hash.Hex())
	}
	return nil
}

func (s *Store) GetTx(ctx context.Context, hash models.Hash) (models.Transaction, error) {
	var (
		blockHash, from, to []byte
		index               uint32
	)
	err := s.pool.QueryRow(ctx, `
		SELECT b.hash, t.index, t.from_addr, t.to_addr
		FROM transaction t JOIN block b ON b.id = t.block_id
		WHERE t.hash = $1`, hash.Bytes()).Scan(&blockHash, &index, &from, &to)
	if err != nil {
		return models.Transaction{}, classify(err, "transaction", hash.Hex())
	}
	return models.Transaction{
		BlockHash: models.PadHash(blockHash),
		Index:     index,
		Hash:      hash,
		From:      models.PadAddress(from),
		To:        models.PadAddress(to),
	}, nil
}
