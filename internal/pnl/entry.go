package pnl

import (
	"math/big"

	"github.com/samber/lo"

	"github.com/mtlprog/vaultfee/internal/domain"
)

// WeightedAverageEntryPrice returns Σassets*scale/Σshares over deposits.
// Transfers and withdrawals do not contribute. Zero when no shares were deposited.
func WeightedAverageEntryPrice(events []domain.Event, scale *big.Int) *big.Int {
	deposits := lo.Filter(events, func(e domain.Event, _ int) bool {
		return e.Kind == domain.EventDeposit
	})

	assets := lo.Reduce(deposits, func(acc *big.Int, e domain.Event, _ int) *big.Int {
		return acc.Add(acc, e.Deposit.Assets)
	}, new(big.Int))
	shares := lo.Reduce(deposits, func(acc *big.Int, e domain.Event, _ int) *big.Int {
		return acc.Add(acc, e.Deposit.Shares)
	}, new(big.Int))

	if shares.Sign() == 0 {
		return new(big.Int)
	}
	return domain.MulDiv(assets, scale, shares)
}
