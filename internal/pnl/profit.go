// Package pnl computes mark-to-market profit, performance fees and entry
// price for a replayed vault position.
package pnl

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/mtlprog/vaultfee/internal/domain"
)

// ErrInvalidFeeRate indicates a performance fee outside [0, 10000) basis points.
var ErrInvalidFeeRate = errors.New("invalid performance fee rate")

// DefaultPerformanceFeeBps is assumed when the on-chain fee rate cannot be read.
const DefaultPerformanceFeeBps = 1000

// PriceSource returns the historical price per share at a block.
type PriceSource interface {
	PriceAt(ctx context.Context, block uint64) (*big.Int, error)
}

// ValidateFeeRate rejects fee rates that would make the gross-up undefined or negative.
func ValidateFeeRate(feeBps int) error {
	if feeBps < 0 || feeBps >= domain.BasisPoints {
		return fmt.Errorf("%w: %d bps", ErrInvalidFeeRate, feeBps)
	}
	return nil
}

// accrue walks snapshots and calls visit after each step with the block,
// the share balance held from that point on and the cumulative profit so far.
// Each step adds prevShares*(pps-prevPPS)/scale, truncated toward zero; the
// final step values the last balance at livePrice.
func accrue(
	ctx context.Context,
	snapshots []domain.PositionSnapshot,
	prices PriceSource,
	livePrice, scale *big.Int,
	visit func(block uint64, shares, profit *big.Int),
) (*big.Int, error) {
	if scale == nil || scale.Sign() <= 0 {
		return nil, fmt.Errorf("invalid price scale %v", scale)
	}

	profit := new(big.Int)
	prevShares := new(big.Int)
	prevPPS := new(big.Int).Set(livePrice)

	if len(snapshots) > 0 {
		first, err := prices.PriceAt(ctx, snapshots[0].Block)
		if err != nil {
			return nil, err
		}
		prevPPS.Set(first)
	}

	step := func(pps *big.Int) {
		delta := new(big.Int).Sub(pps, prevPPS)
		profit.Add(profit, domain.MulDiv(prevShares, delta, scale))
	}

	for _, s := range snapshots {
		pps, err := prices.PriceAt(ctx, s.Block)
		if err != nil {
			return nil, err
		}
		step(pps)
		prevShares.Set(s.SharesBalance)
		prevPPS.Set(pps)

		if visit != nil {
			visit(s.Block, new(big.Int).Set(prevShares), new(big.Int).Set(profit))
		}
	}

	step(livePrice)
	return profit, nil
}

// NetProfit returns the profit the account realized after fees, accrued
// incrementally between consecutive snapshots and up to livePrice.
func NetProfit(
	ctx context.Context,
	snapshots []domain.PositionSnapshot,
	prices PriceSource,
	livePrice, scale *big.Int,
) (*big.Int, error) {
	profit, err := accrue(ctx, snapshots, prices, livePrice, scale, nil)
	if err != nil {
		return nil, fmt.Errorf("accruing net profit: %w", err)
	}
	return profit, nil
}

// GrossUp derives the pre-fee profit and the fee from net profit.
// Fees apply only to gains: a zero or negative net carries no fee.
func GrossUp(net *big.Int, feeBps int) (gross, fee *big.Int, err error) {
	if err := ValidateFeeRate(feeBps); err != nil {
		return nil, nil, err
	}
	if net.Sign() <= 0 {
		return new(big.Int).Set(net), new(big.Int), nil
	}

	gross = domain.MulDiv(net, big.NewInt(domain.BasisPoints), big.NewInt(int64(domain.BasisPoints-feeBps)))
	fee = new(big.Int).Sub(gross, net)
	return gross, fee, nil
}

// Calculate combines NetProfit and GrossUp.
func Calculate(
	ctx context.Context,
	snapshots []domain.PositionSnapshot,
	prices PriceSource,
	livePrice, scale *big.Int,
	feeBps int,
) (domain.ProfitResult, error) {
	if err := ValidateFeeRate(feeBps); err != nil {
		return domain.ProfitResult{}, err
	}

	net, err := NetProfit(ctx, snapshots, prices, livePrice, scale)
	if err != nil {
		return domain.ProfitResult{}, err
	}

	gross, fee, err := GrossUp(net, feeBps)
	if err != nil {
		return domain.ProfitResult{}, err
	}

	return domain.ProfitResult{NetProfit: net, GrossProfit: gross, TotalFees: fee}, nil
}

// Series returns the cumulative net profit after every snapshot, plus a
// closing point at headBlock valued at livePrice.
func Series(
	ctx context.Context,
	snapshots []domain.PositionSnapshot,
	prices PriceSource,
	livePrice, scale *big.Int,
	headBlock uint64,
) ([]domain.SeriesPoint, error) {
	points := make([]domain.SeriesPoint, 0, len(snapshots)+1)
	visit := func(block uint64, shares, profit *big.Int) {
		points = append(points, domain.SeriesPoint{Block: block, Shares: shares, Profit: profit})
	}

	profit, err := accrue(ctx, snapshots, prices, livePrice, scale, visit)
	if err != nil {
		return nil, fmt.Errorf("building profit series: %w", err)
	}

	shares := new(big.Int)
	if len(snapshots) > 0 {
		shares.Set(snapshots[len(snapshots)-1].SharesBalance)
	}
	points = append(points, domain.SeriesPoint{Block: headBlock, Shares: shares, Profit: profit})
	return points, nil
}
