// Package eventstore reads a depositor's vault events from the indexer,
// either through its GraphQL endpoint or directly from its PostgreSQL tables.
package eventstore

import (
	"context"
	"strings"

	"github.com/samber/lo"

	"github.com/mtlprog/vaultfee/internal/domain"
)

// Store returns the raw event rows of one account in one vault.
// An empty vault address disables the vault filter.
type Store interface {
	Deposits(ctx context.Context, owner, vault domain.Address) ([]domain.DepositRecord, error)
	Withdrawals(ctx context.Context, owner, vault domain.Address) ([]domain.WithdrawRecord, error)
	Transfers(ctx context.Context, account, vault domain.Address) ([]domain.TransferRecord, error)
}

// cleanTransfers drops rows returned by both the sender and receiver queries
// and self-transfers, which leave the balance unchanged.
func cleanTransfers(rows []domain.TransferRecord) []domain.TransferRecord {
	unique := lo.UniqBy(rows, func(r domain.TransferRecord) string { return r.ID })
	return lo.Reject(unique, func(r domain.TransferRecord, _ int) bool {
		return strings.EqualFold(r.Sender, r.Receiver)
	})
}
