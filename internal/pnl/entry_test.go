package pnl

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mtlprog/vaultfee/internal/domain"
)

func depositEvent(assets, shares int64) domain.Event {
	return domain.Event{
		Kind:    domain.EventDeposit,
		Deposit: &domain.DepositPayload{Assets: big.NewInt(assets), Shares: big.NewInt(shares)},
	}
}

func TestWeightedAverageEntryPrice(t *testing.T) {
	tests := []struct {
		name   string
		events []domain.Event
		want   string
	}{
		{
			name:   "single deposit at par",
			events: []domain.Event{depositEvent(1_000_000, 1_000_000)},
			want:   "1000000",
		},
		{
			name: "weighted by shares",
			events: []domain.Event{
				depositEvent(1_000_000, 1_000_000),
				depositEvent(3_300_000, 3_000_000),
			},
			want: "1075000",
		},
		{
			name: "ignores withdrawals and transfers",
			events: []domain.Event{
				depositEvent(2_000_000, 1_000_000),
				{Kind: domain.EventWithdraw, Withdraw: &domain.WithdrawPayload{Assets: big.NewInt(9), Shares: big.NewInt(1)}},
				{Kind: domain.EventTransferIn, Transfer: &domain.TransferPayload{Value: big.NewInt(5_000_000)}},
			},
			want: "2000000",
		},
		{
			name:   "transfer only",
			events: []domain.Event{{Kind: domain.EventTransferIn, Transfer: &domain.TransferPayload{Value: big.NewInt(500_000)}}},
			want:   "0",
		},
		{
			name:   "no events",
			events: nil,
			want:   "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeightedAverageEntryPrice(tt.events, big.NewInt(1_000_000))
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestWeightedAverageEntryPriceDoesNotMutateEvents(t *testing.T) {
	e := depositEvent(10, 10)
	WeightedAverageEntryPrice([]domain.Event{e, e}, big.NewInt(1))

	assert.Equal(t, "10", e.Deposit.Assets.String())
	assert.Equal(t, "10", e.Deposit.Shares.String())
}
