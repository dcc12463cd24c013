// Package postgres implements store.VersionedStore against a PostgreSQL
// schema laid out per spec §6 "Persisted state layout". It uses pgx
// directly rather than an ORM, matching the teacher's own preference for
// thin, explicit wrapper types (see DESIGN.md).
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/synnergy-labs/chain-indexer/internal/models"
	"github.com/synnergy-labs/chain-indexer/internal/store"
)

// Store is the PostgreSQL-backed VersionedStore. Chains is an immutable
// cache populated at construction by ensureChains; see §5's "Chain-id enum
// cache" concurrency note.
type Store struct {
	pool   *pgxpool.Pool
	log    *zap.Logger
	Chains *store.ChainCache
}

// Config bundles what's needed to dial the database; DatabaseURL comes
// straight from the DATABASE_URL environment variable (§6).
type Config struct {
	DatabaseURL string
	MaxConns    int32
}

// New connects a pgxpool against cfg.DatabaseURL and loads the chain cache.
// It does not run migrations — per §1, database migrations are an external
// collaborator out of scope for this core.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Store, error) {
	if cfg.DatabaseURL == "" {
		return nil, &store.Error{Kind: store.KindSetup, Message: "DATABASE_URL is empty"}
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, &store.Error{Kind: store.KindSetup, Message: "parse DATABASE_URL", Cause: err}
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, &store.Error{Kind: store.KindSetup, Message: "connect to database", Cause: err}
	}
	s := &Store{pool: pool, log: log}
	ids, err := s.ensureChains(ctx, models.KnownChains)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.Chains = store.NewChainCache(ids)
	return s, nil
}

func (s *Store) Close() { s.pool.Close() }

var _ store.VersionedStore = (*Store)(nil)

// ensureChains upserts every known chain tag into the `chain` lookup table
// and returns the resulting name->id map, per §5's "enum values must be
// synced into the database at startup via the ensure-chains routine".
func (s *Store) ensureChains(ctx context.Context, chains []models.Chain) (map[models.Chain]int32, error) {
	ids := make(map[models.Chain]int32, len(chains))
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		for _, c := range chains {
			var id int32
			err := tx.QueryRow(ctx, `
				INSERT INTO chain (name) VALUES ($1)
				ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
				RETURNING id`, string(c)).Scan(&id)
			if err != nil {
				return classify(err, "chain", string(c))
			}
			ids[c] = id
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// withTx runs fn inside a single database transaction, rolling back on any
// error and committing otherwise. Every multi-statement write in this
// package goes through withTx so it commits atomically (§4.3 "Atomicity",
// §5 "Writes for a block are one transaction").
func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &store.Error{Kind: store.KindUnexpected, Message: "begin transaction", Cause: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return &store.Error{Kind: store.KindUnexpected, Message: "commit transaction", Cause: err}
	}
	return nil
}

// classify maps a driver error onto the store's closed error taxonomy
// (§4.1 "Failure taxonomy"): unique-violation -> DuplicateEntry,
// foreign-key-violation -> NoRelatedEntity, no-rows -> NotFound, everything
// else -> Unexpected.
func classify(err error, entity, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.NotFound(entity, id)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return store.DuplicateEntry(entity, id)
		case "23503": // foreign_key_violation
			return store.NoRelatedEntity(entity, id, pgErr.ConstraintName)
		}
	}
	return &store.Error{Kind: store.KindUnexpected, Entity: entity, ID: id, Message: fmt.Sprintf("%s %s", entity, id), Cause: err}
}
