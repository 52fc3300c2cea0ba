package report

import (
	"encoding/json"
	"io"
	"math/big"
	"time"

	"github.com/samber/lo"

	"github.com/mtlprog/vaultfee/internal/domain"
)

// amount is a fixed-point integer in base-10 string form.
type amount string

func amt(v *big.Int) amount {
	if v == nil {
		return "0"
	}
	return amount(v.String())
}

func optAmt(v *big.Int) *amount {
	if v == nil {
		return nil
	}
	a := amt(v)
	return &a
}

type resultJSON struct {
	CurrentShares         amount `json:"currentShares"`
	TotalDeposited        amount `json:"totalDeposited"`
	TotalWithdrawn        amount `json:"totalWithdrawn"`
	NetProfit             amount `json:"netProfit"`
	GrossProfit           amount `json:"grossProfit"`
	TotalFees             amount `json:"totalFees"`
	WeightedAvgEntryPrice amount `json:"weightedAvgEntryPrice"`
	PeakShares            amount `json:"peakShares"`
	PeakSharesBlock       uint64 `json:"peakSharesBlock"`
}

type feeJSON struct {
	PerformanceFeeBps int      `json:"performanceFeeBps"`
	FeeRateAssumed    bool     `json:"feeRateAssumed"`
	VerifiedAtBlocks  []uint64 `json:"verifiedAtBlocks,omitempty"`
	ShareOfGrossBps   amount   `json:"shareOfGrossBps"`
}

type transfersJSON struct {
	InCount   int    `json:"inCount"`
	OutCount  int    `json:"outCount"`
	SharesIn  amount `json:"sharesIn"`
	SharesOut amount `json:"sharesOut"`
	NetShares amount `json:"netShares"`
}

type eventJSON struct {
	Block    uint64           `json:"block"`
	LogIndex uint64           `json:"logIndex"`
	Kind     domain.EventKind `json:"kind"`
	Shares   amount           `json:"shares"`
	Assets   *amount          `json:"assets,omitempty"`
}

type snapshotJSON struct {
	Block           uint64           `json:"block"`
	LogIndex        uint64           `json:"logIndex"`
	Kind            domain.EventKind `json:"kind"`
	SharesBalance   amount           `json:"sharesBalance"`
	SharesChange    amount           `json:"sharesChange"`
	AssetsDeposited amount           `json:"assetsDeposited"`
	AssetsWithdrawn amount           `json:"assetsWithdrawn"`
}

type seriesJSON struct {
	Block  uint64 `json:"block"`
	Shares amount `json:"shares"`
	Profit amount `json:"profit"`
}

type anomalyJSON struct {
	Block    uint64 `json:"block"`
	LogIndex uint64 `json:"logIndex"`
	Balance  amount `json:"balance"`
	Reason   string `json:"reason"`
}

type reportJSON struct {
	Account     domain.Address   `json:"account"`
	Vault       domain.VaultInfo `json:"vault"`
	GeneratedAt time.Time        `json:"generatedAt"`

	Result resultJSON `json:"result"`

	CurrentPricePerShare   amount `json:"currentPricePerShare"`
	CurrentValue           amount `json:"currentValue"`
	NetDeposited           amount `json:"netDeposited"`
	TransferAdjustedNet    amount `json:"transferAdjustedNet"`
	ROIBps                 amount `json:"roiBps"`
	TransferAdjustedROIBps amount `json:"transferAdjustedRoiBps"`
	PPSChange              amount `json:"ppsChange"`
	PPSChangeBps           amount `json:"ppsChangeBps"`

	PeakValue *amount    `json:"peakValue,omitempty"`
	PeakTime  *time.Time `json:"peakTime,omitempty"`

	FirstInteractionBlock *uint64    `json:"firstInteractionBlock,omitempty"`
	FirstInteractionTime  *time.Time `json:"firstInteractionTime,omitempty"`

	Fee             feeJSON       `json:"fee"`
	DepositCount    int           `json:"depositCount"`
	WithdrawalCount int           `json:"withdrawalCount"`
	Transfers       transfersJSON `json:"transfers"`

	Timeline  []eventJSON    `json:"timeline"`
	Snapshots []snapshotJSON `json:"snapshots"`
	Series    []seriesJSON   `json:"series"`
	Anomalies []anomalyJSON  `json:"anomalies,omitempty"`
	Warnings  []string       `json:"warnings,omitempty"`
}

// WriteJSON writes the report as indented JSON. Every integer amount is a
// base-10 string.
func WriteJSON(w io.Writer, r domain.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(toJSON(r))
}

func toJSON(r domain.Report) reportJSON {
	out := reportJSON{
		Account:     r.Account,
		Vault:       r.Vault,
		GeneratedAt: r.GeneratedAt,
		Result: resultJSON{
			CurrentShares:         amt(r.Result.CurrentShares),
			TotalDeposited:        amt(r.Result.TotalDeposited),
			TotalWithdrawn:        amt(r.Result.TotalWithdrawn),
			NetProfit:             amt(r.Result.NetProfit),
			GrossProfit:           amt(r.Result.GrossProfit),
			TotalFees:             amt(r.Result.TotalFees),
			WeightedAvgEntryPrice: amt(r.Result.WeightedAvgEntryPrice),
			PeakShares:            amt(r.Result.PeakShares),
			PeakSharesBlock:       r.Result.PeakSharesBlock,
		},
		CurrentPricePerShare:   amt(r.CurrentPricePerShare),
		CurrentValue:           amt(r.CurrentValue),
		NetDeposited:           amt(r.NetDeposited),
		TransferAdjustedNet:    amt(r.TransferAdjustedNet),
		ROIBps:                 amt(r.ROIBps),
		TransferAdjustedROIBps: amt(r.TransferAdjustedROI),
		PPSChange:              amt(r.PPSChange),
		PPSChangeBps:           amt(r.PPSChangeBps),
		PeakValue:              optAmt(r.PeakValue),
		PeakTime:               r.PeakTime,
		FirstInteractionTime:   r.FirstInteractionTime,
		Fee: feeJSON{
			PerformanceFeeBps: r.Fee.PerformanceFeeBps,
			FeeRateAssumed:    r.Fee.Assumed,
			VerifiedAtBlocks:  r.Fee.VerifiedAtBlocks,
			ShareOfGrossBps:   amt(r.Fee.ShareOfGrossBps),
		},
		DepositCount:    r.DepositCount,
		WithdrawalCount: r.WithdrawalCount,
		Transfers: transfersJSON{
			InCount:   r.Transfers.InCount,
			OutCount:  r.Transfers.OutCount,
			SharesIn:  amt(r.Transfers.SharesIn),
			SharesOut: amt(r.Transfers.SharesOut),
			NetShares: amt(r.Transfers.NetShares),
		},
		Warnings: r.Warnings,
	}

	if len(r.Timeline) > 0 {
		out.FirstInteractionBlock = &r.FirstInteractionBlock
	}

	out.Timeline = lo.Map(r.Timeline, func(e domain.TimelineEntry, _ int) eventJSON {
		return eventJSON{Block: e.Block, LogIndex: e.LogIndex, Kind: e.Kind, Shares: amt(e.Shares), Assets: optAmt(e.Assets)}
	})
	out.Snapshots = lo.Map(r.Snapshots, func(s domain.PositionSnapshot, _ int) snapshotJSON {
		return snapshotJSON{
			Block:           s.Block,
			LogIndex:        s.LogIndex,
			Kind:            s.Kind,
			SharesBalance:   amt(s.SharesBalance),
			SharesChange:    amt(s.SharesChange),
			AssetsDeposited: amt(s.AssetsDeposited),
			AssetsWithdrawn: amt(s.AssetsWithdrawn),
		}
	})
	out.Series = lo.Map(r.Series, func(s domain.SeriesPoint, _ int) seriesJSON {
		return seriesJSON{Block: s.Block, Shares: amt(s.Shares), Profit: amt(s.Profit)}
	})
	if len(r.Anomalies) > 0 {
		out.Anomalies = lo.Map(r.Anomalies, func(a domain.Anomaly, _ int) anomalyJSON {
			return anomalyJSON{Block: a.Block, LogIndex: a.LogIndex, Balance: amt(a.Balance), Reason: a.Reason}
		})
	}

	return out
}
