package eventstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtlprog/vaultfee/internal/domain"
)

// PgStore reads the indexer's "Deposit", "Withdraw" and "Transfer" tables directly.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a store over the indexer database.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// vaultClause adds the optional vault filter as parameter $n.
func vaultClause(vault domain.Address, n int, args []any) (string, []any) {
	if vault == "" {
		return "", args
	}
	return fmt.Sprintf(` AND lower("vaultAddress") = $%d`, n), append(args, vault.String())
}

func (s *PgStore) Deposits(ctx context.Context, owner, vault domain.Address) ([]domain.DepositRecord, error) {
	clause, args := vaultClause(vault, 2, []any{owner.String()})
	rows, err := s.pool.Query(ctx,
		`SELECT id, sender, owner, assets::text, shares::text
		 FROM "Deposit"
		 WHERE lower(owner) = $1`+clause+`
		 ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying deposits: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.DepositRecord, error) {
		var r domain.DepositRecord
		err := row.Scan(&r.ID, &r.Sender, &r.Owner, &r.Assets, &r.Shares)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning deposits: %w", err)
	}
	return out, nil
}

func (s *PgStore) Withdrawals(ctx context.Context, owner, vault domain.Address) ([]domain.WithdrawRecord, error) {
	clause, args := vaultClause(vault, 2, []any{owner.String()})
	rows, err := s.pool.Query(ctx,
		`SELECT id, sender, receiver, owner, assets::text, shares::text
		 FROM "Withdraw"
		 WHERE lower(owner) = $1`+clause+`
		 ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying withdrawals: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.WithdrawRecord, error) {
		var r domain.WithdrawRecord
		err := row.Scan(&r.ID, &r.Sender, &r.Receiver, &r.Owner, &r.Assets, &r.Shares)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning withdrawals: %w", err)
	}
	return out, nil
}

// Transfers returns share transfers sent or received by account, excluding
// mints and burns.
func (s *PgStore) Transfers(ctx context.Context, account, vault domain.Address) ([]domain.TransferRecord, error) {
	clause, args := vaultClause(vault, 3, []any{account.String(), domain.ZeroAddress.String()})
	rows, err := s.pool.Query(ctx,
		`SELECT id, sender, receiver, value::text
		 FROM "Transfer"
		 WHERE ((lower(sender) = $1 AND lower(receiver) <> $2)
		    OR (lower(receiver) = $1 AND lower(sender) <> $2))`+clause+`
		 ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transfers: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TransferRecord, error) {
		var r domain.TransferRecord
		err := row.Scan(&r.ID, &r.Sender, &r.Receiver, &r.Value)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning transfers: %w", err)
	}
	return cleanTransfers(out), nil
}
