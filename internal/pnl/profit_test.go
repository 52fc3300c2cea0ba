package pnl

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/vaultfee/internal/domain"
)

var scale6 = big.NewInt(1_000_000)

type staticPrices map[uint64]int64

func (p staticPrices) PriceAt(_ context.Context, block uint64) (*big.Int, error) {
	v, ok := p[block]
	if !ok {
		return nil, fmt.Errorf("no price at block %d", block)
	}
	return big.NewInt(v), nil
}

func snapshot(block uint64, balance int64) domain.PositionSnapshot {
	return domain.PositionSnapshot{Block: block, SharesBalance: big.NewInt(balance)}
}

func TestSingleDepositScenario(t *testing.T) {
	snaps := []domain.PositionSnapshot{snapshot(100, 1_000_000)}
	prices := staticPrices{100: 1_000_000}

	res, err := Calculate(context.Background(), snaps, prices, big.NewInt(1_200_000), scale6, 1000)
	require.NoError(t, err)

	assert.Equal(t, "200000", res.NetProfit.String())
	assert.Equal(t, "222222", res.GrossProfit.String())
	assert.Equal(t, "22222", res.TotalFees.String())
}

func TestNetProfitAccruesBetweenSnapshots(t *testing.T) {
	snaps := []domain.PositionSnapshot{
		snapshot(1, 1_000_000),
		snapshot(2, 3_000_000),
		snapshot(3, 500_000),
	}
	prices := staticPrices{1: 1_000_000, 2: 1_100_000, 3: 1_150_000}

	net, err := NetProfit(context.Background(), snaps, prices, big.NewInt(1_250_000), scale6)
	require.NoError(t, err)

	// 1e6*0.1 + 3e6*0.05 + 0.5e6*0.1
	assert.Equal(t, "300000", net.String())
}

func TestNetProfitWithoutSnapshots(t *testing.T) {
	net, err := NetProfit(context.Background(), nil, staticPrices{}, big.NewInt(1_250_000), scale6)
	require.NoError(t, err)
	assert.Equal(t, "0", net.String())
}

func TestNetProfitTruncatesTowardZero(t *testing.T) {
	snaps := []domain.PositionSnapshot{snapshot(1, 3)}
	prices := staticPrices{1: 1_000_000}

	gain, err := NetProfit(context.Background(), snaps, prices, big.NewInt(1_500_000), scale6)
	require.NoError(t, err)
	assert.Equal(t, "1", gain.String())

	loss, err := NetProfit(context.Background(), snaps, prices, big.NewInt(500_000), scale6)
	require.NoError(t, err)
	assert.Equal(t, "-1", loss.String())
}

func TestNetProfitPropagatesPriceErrors(t *testing.T) {
	snaps := []domain.PositionSnapshot{snapshot(1, 10), snapshot(2, 20)}

	_, err := NetProfit(context.Background(), snaps, staticPrices{1: 1}, big.NewInt(1), scale6)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "block 2")
}

func TestGrossUp(t *testing.T) {
	tests := []struct {
		name      string
		net       int64
		feeBps    int
		wantGross string
		wantFee   string
	}{
		{"ten percent", 200_000, 1000, "222222", "22222"},
		{"zero fee", 200_000, 0, "200000", "0"},
		{"twenty percent", 800, 2000, "1000", "200"},
		{"zero profit", 0, 1000, "0", "0"},
		{"loss carries no fee", -5_000, 1000, "-5000", "0"},
		{"max valid fee", 1, 9999, "10000", "9999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gross, fee, err := GrossUp(big.NewInt(tt.net), tt.feeBps)
			require.NoError(t, err)
			assert.Equal(t, tt.wantGross, gross.String())
			assert.Equal(t, tt.wantFee, fee.String())

			sum := new(big.Int).Add(big.NewInt(tt.net), fee)
			assert.Equal(t, gross.String(), sum.String(), "gross must equal net + fee")
		})
	}
}

func TestGrossUpIdentityAcrossRange(t *testing.T) {
	bp := big.NewInt(domain.BasisPoints)
	for _, feeBps := range []int{0, 1, 333, 1000, 9999} {
		keep := big.NewInt(int64(domain.BasisPoints - feeBps))
		for n := int64(-50); n <= 5000; n++ {
			net := big.NewInt(n)
			gross, fee, err := GrossUp(net, feeBps)
			require.NoError(t, err)

			diff := new(big.Int).Sub(gross, fee)
			require.Equal(t, net.String(), diff.String(), "net %d fee %d", n, feeBps)
			require.GreaterOrEqual(t, fee.Sign(), 0, "net %d fee %d", n, feeBps)
			if n <= 0 {
				require.Zero(t, fee.Sign(), "net %d fee %d", n, feeBps)
				continue
			}

			// gross is floor(net*10000/(10000-fee)).
			scaled := new(big.Int).Mul(net, bp)
			low := new(big.Int).Mul(gross, keep)
			high := new(big.Int).Mul(new(big.Int).Add(gross, big.NewInt(1)), keep)
			require.True(t, low.Cmp(scaled) <= 0 && scaled.Cmp(high) < 0, "net %d fee %d gross %s", n, feeBps, gross)
		}
	}
}

func TestGrossUpRejectsInvalidRates(t *testing.T) {
	for _, bps := range []int{10000, 15000, -1} {
		_, _, err := GrossUp(big.NewInt(100), bps)
		assert.True(t, errors.Is(err, ErrInvalidFeeRate), "fee %d", bps)
	}
}

func TestCalculateRejectsInvalidRateBeforeFetching(t *testing.T) {
	_, err := Calculate(context.Background(), []domain.PositionSnapshot{snapshot(1, 1)}, staticPrices{}, big.NewInt(1), scale6, 10000)
	assert.ErrorIs(t, err, ErrInvalidFeeRate)
}

func TestSeries(t *testing.T) {
	snaps := []domain.PositionSnapshot{
		snapshot(1, 1_000_000),
		snapshot(2, 2_000_000),
	}
	prices := staticPrices{1: 1_000_000, 2: 1_100_000}

	points, err := Series(context.Background(), snaps, prices, big.NewInt(1_200_000), scale6, 50)
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.Equal(t, uint64(1), points[0].Block)
	assert.Equal(t, "0", points[0].Profit.String())
	assert.Equal(t, uint64(2), points[1].Block)
	assert.Equal(t, "100000", points[1].Profit.String())
	assert.Equal(t, "2000000", points[1].Shares.String())
	assert.Equal(t, uint64(50), points[2].Block)
	assert.Equal(t, "300000", points[2].Profit.String())

	net, err := NetProfit(context.Background(), snaps, prices, big.NewInt(1_200_000), scale6)
	require.NoError(t, err)
	assert.Equal(t, net.String(), points[2].Profit.String())
}
