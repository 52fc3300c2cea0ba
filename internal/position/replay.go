// Package position replays an ordered account timeline into share-balance snapshots.
package position

import (
	"fmt"
	"log/slog"
	"math/big"

	"github.com/mtlprog/vaultfee/internal/domain"
)

// Replay walks events in order, tracking the running share balance,
// cumulative deposited and withdrawn assets, and the peak balance.
// A negative balance is recorded as an anomaly but does not stop the replay.
func Replay(events []domain.Event) (domain.ReplayResult, error) {
	balance := new(big.Int)
	deposited := new(big.Int)
	withdrawn := new(big.Int)
	peak := new(big.Int)
	var peakBlock uint64

	snapshots := make([]domain.PositionSnapshot, 0, len(events))
	var anomalies []domain.Anomaly

	for _, e := range events {
		delta, err := e.ShareDelta()
		if err != nil {
			return domain.ReplayResult{}, fmt.Errorf("replaying position: %w", err)
		}
		balance.Add(balance, delta)

		switch e.Kind {
		case domain.EventDeposit:
			deposited.Add(deposited, e.Deposit.Assets)
		case domain.EventWithdraw:
			withdrawn.Add(withdrawn, e.Withdraw.Assets)
		case domain.EventTransferIn, domain.EventTransferOut:
		default:
			return domain.ReplayResult{}, fmt.Errorf("replaying position: %w: %q", domain.ErrUnknownEventKind, e.Kind)
		}

		if balance.Cmp(peak) > 0 {
			peak.Set(balance)
			peakBlock = e.Key.Block
		}

		if balance.Sign() < 0 {
			slog.Warn("negative share balance, event history may be incomplete",
				"event", e.ID, "block", e.Key.Block, "balance", balance.String())
			anomalies = append(anomalies, domain.Anomaly{
				Block:    e.Key.Block,
				LogIndex: e.Key.LogIndex,
				Balance:  new(big.Int).Set(balance),
				Reason:   "negative share balance",
			})
		}

		snapshots = append(snapshots, domain.PositionSnapshot{
			Block:           e.Key.Block,
			LogIndex:        e.Key.LogIndex,
			Kind:            e.Kind,
			SharesBalance:   new(big.Int).Set(balance),
			SharesChange:    delta,
			AssetsDeposited: new(big.Int).Set(deposited),
			AssetsWithdrawn: new(big.Int).Set(withdrawn),
		})
	}

	return domain.ReplayResult{
		CurrentShares:   balance,
		TotalDeposited:  deposited,
		TotalWithdrawn:  withdrawn,
		Snapshots:       snapshots,
		PeakShares:      peak,
		PeakSharesBlock: peakBlock,
		Anomalies:       anomalies,
	}, nil
}
