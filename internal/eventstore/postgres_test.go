package eventstore

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/vaultfee/internal/database/dbtest"
	"github.com/mtlprog/vaultfee/internal/domain"
)

// indexerSchema mirrors the tables the indexer writes.
var indexerSchema = []string{
	`CREATE TABLE "Deposit" (
		id TEXT PRIMARY KEY,
		sender TEXT NOT NULL,
		owner TEXT NOT NULL,
		assets NUMERIC NOT NULL,
		shares NUMERIC NOT NULL,
		"vaultAddress" TEXT NOT NULL
	)`,
	`CREATE TABLE "Withdraw" (
		id TEXT PRIMARY KEY,
		sender TEXT NOT NULL,
		receiver TEXT NOT NULL,
		owner TEXT NOT NULL,
		assets NUMERIC NOT NULL,
		shares NUMERIC NOT NULL,
		"vaultAddress" TEXT NOT NULL
	)`,
	`CREATE TABLE "Transfer" (
		id TEXT PRIMARY KEY,
		sender TEXT NOT NULL,
		receiver TEXT NOT NULL,
		value NUMERIC NOT NULL,
		"vaultAddress" TEXT NOT NULL
	)`,
}

const (
	accountChecksum = "0x1111111111111111111111111111111111111111"
	vaultChecksum   = "0xBe53A109B494E5c9f97b9Cd39Fe969BE68BF6204"
	otherVault      = "0x3333333333333333333333333333333333333333"
)

func seedIndexer(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()
	stmts := []struct {
		sql  string
		args []any
	}{
		{`INSERT INTO "Deposit" VALUES ($1, $2, $3, $4, $5, $6)`,
			[]any{"1_100_0", accountChecksum, accountChecksum, "1000000", "1000000", vaultChecksum}},
		{`INSERT INTO "Deposit" VALUES ($1, $2, $3, $4, $5, $6)`,
			[]any{"1_101_0", accountChecksum, accountChecksum, "5", "5", otherVault}},
		{`INSERT INTO "Deposit" VALUES ($1, $2, $3, $4, $5, $6)`,
			[]any{"1_102_0", other, other, "7", "7", vaultChecksum}},
		{`INSERT INTO "Withdraw" VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			[]any{"1_200_1", accountChecksum, accountChecksum, accountChecksum, "1100000", "1000000", vaultChecksum}},
		{`INSERT INTO "Transfer" VALUES ($1, $2, $3, $4, $5)`,
			[]any{"1_150_2", other, accountChecksum, "40", vaultChecksum}},
		{`INSERT INTO "Transfer" VALUES ($1, $2, $3, $4, $5)`,
			[]any{"1_160_2", accountChecksum, other, "15", vaultChecksum}},
		{`INSERT INTO "Transfer" VALUES ($1, $2, $3, $4, $5)`,
			[]any{"1_100_1", domain.ZeroAddress.String(), accountChecksum, "1000000", vaultChecksum}},
		{`INSERT INTO "Transfer" VALUES ($1, $2, $3, $4, $5)`,
			[]any{"1_170_0", accountChecksum, accountChecksum, "3", vaultChecksum}},
	}
	for _, s := range stmts {
		_, err := pool.Exec(ctx, s.sql, s.args...)
		require.NoError(t, err)
	}
}

func TestPgStore(t *testing.T) {
	pool := dbtest.New(t, indexerSchema...)
	seedIndexer(t, pool)

	store := NewPgStore(pool)
	ctx := context.Background()

	t.Run("deposits match case-insensitively within vault", func(t *testing.T) {
		rows, err := store.Deposits(ctx, account, vault)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "1_100_0", rows[0].ID)
		assert.Equal(t, domain.Numeric("1000000"), rows[0].Assets)
		assert.Equal(t, domain.Numeric("1000000"), rows[0].Shares)
	})

	t.Run("deposits without vault filter", func(t *testing.T) {
		rows, err := store.Deposits(ctx, account, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"1_100_0", "1_101_0"}, lo.Map(rows, func(r domain.DepositRecord, _ int) string { return r.ID }))
	})

	t.Run("withdrawals", func(t *testing.T) {
		rows, err := store.Withdrawals(ctx, account, vault)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, domain.Numeric("1100000"), rows[0].Assets)
		assert.Equal(t, domain.Numeric("1000000"), rows[0].Shares)
	})

	t.Run("transfers exclude mints and self transfers", func(t *testing.T) {
		rows, err := store.Transfers(ctx, account, vault)
		require.NoError(t, err)
		assert.Equal(t, []string{"1_150_2", "1_160_2"}, lo.Map(rows, func(r domain.TransferRecord, _ int) string { return r.ID }))
		assert.Equal(t, domain.Numeric("40"), rows[0].Value)
	})
}
