package price

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtlprog/vaultfee/internal/domain"
)

// PgSampleStore implements SampleStore with PostgreSQL, scoped to one vault.
// Historical price per share is immutable, so samples are never updated.
type PgSampleStore struct {
	pool    *pgxpool.Pool
	chainID uint64
	vault   domain.Address
}

// NewPgSampleStore creates a sample store for the vault on the given chain.
func NewPgSampleStore(pool *pgxpool.Pool, chainID uint64, vault domain.Address) *PgSampleStore {
	return &PgSampleStore{pool: pool, chainID: chainID, vault: vault}
}

func (s *PgSampleStore) Get(ctx context.Context, block uint64) (*big.Int, bool, error) {
	var raw string
	err := s.pool.QueryRow(ctx,
		`SELECT price_per_share::text
		 FROM pps_samples
		 WHERE chain_id = $1 AND vault = $2 AND block_number = $3`,
		int64(s.chainID), s.vault.String(), int64(block)).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("getting pps sample: %w", err)
	}

	pps, err := domain.ParseAmount(raw)
	if err != nil {
		return nil, false, fmt.Errorf("decoding pps sample at block %d: %w", block, err)
	}
	return pps, true, nil
}

func (s *PgSampleStore) Put(ctx context.Context, block uint64, pps *big.Int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pps_samples (chain_id, vault, block_number, price_per_share)
		 VALUES ($1, $2, $3, $4::numeric)
		 ON CONFLICT (chain_id, vault, block_number) DO NOTHING`,
		int64(s.chainID), s.vault.String(), int64(block), pps.String())
	if err != nil {
		return fmt.Errorf("saving pps sample: %w", err)
	}
	return nil
}
