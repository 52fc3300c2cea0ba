package export

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mtlprog/vaultfee/internal/domain"
	"github.com/mtlprog/vaultfee/internal/pnl"
)

// Sheet names written by Export.
const (
	SummarySheet  = "SUMMARY"
	TimelineSheet = "TIMELINE"
	SeriesSheet   = "SERIES"
)

// MaxSeriesPoints caps the SERIES sheet; longer series are downsampled.
const MaxSeriesPoints = 300

// Sheet is one named table. The first row is the header.
type Sheet struct {
	Name string
	Rows [][]any
}

// SheetWriter writes sheets to a spreadsheet destination, replacing their contents.
type SheetWriter interface {
	Write(ctx context.Context, sheets []Sheet) error
}

// HistoryAppender is implemented by writers that keep one row per run.
type HistoryAppender interface {
	AppendHistory(ctx context.Context, header, row []any) error
}

// Service builds spreadsheet rows from a report and delegates writing to a SheetWriter.
type Service struct {
	writer SheetWriter
	now    func() time.Time
}

// NewService creates a new export Service.
func NewService(writer SheetWriter) *Service {
	if writer == nil {
		panic("export.NewService: writer is nil")
	}
	return &Service{writer: writer, now: time.Now}
}

// Export writes the summary, timeline and series sheets, then appends a
// history row when the writer supports it.
func (s *Service) Export(ctx context.Context, r domain.Report) error {
	sheets := []Sheet{
		{Name: SummarySheet, Rows: buildSummary(r)},
		{Name: TimelineSheet, Rows: buildTimeline(r)},
		{Name: SeriesSheet, Rows: buildSeries(r)},
	}
	if err := s.writer.Write(ctx, sheets); err != nil {
		return fmt.Errorf("writing sheets: %w", err)
	}

	if h, ok := s.writer.(HistoryAppender); ok {
		header, row := buildHistoryRow(r, s.now())
		if err := h.AppendHistory(ctx, header, row); err != nil {
			return fmt.Errorf("appending history: %w", err)
		}
	}
	return nil
}

// buildSummary builds the SUMMARY sheet as metric/value pairs.
func buildSummary(r domain.Report) [][]any {
	d := r.Vault.Decimals
	rows := [][]any{
		{"Metric", "Value"},
		{"Account", r.Account.String()},
		{"Vault", r.Vault.Address.String()},
		{"Chain", fmt.Sprintf("%s (%d)", r.Vault.ChainName, r.Vault.ChainID)},
		{"Asset", r.Vault.AssetSymbol},
		{"Generated", r.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Current Shares", units(r.Result.CurrentShares, d)},
		{"Current Value", units(r.CurrentValue, d)},
		{"Total Deposited", units(r.Result.TotalDeposited, d)},
		{"Total Withdrawn", units(r.Result.TotalWithdrawn, d)},
		{"Net Deposited", units(r.NetDeposited, d)},
		{"Entry PPS", units(r.Result.WeightedAvgEntryPrice, d)},
		{"Current PPS", units(r.CurrentPricePerShare, d)},
		{"Gross Profit", units(r.Result.GrossProfit, d)},
		{"Net Profit", units(r.Result.NetProfit, d)},
		{"Total Fees", units(r.Result.TotalFees, d)},
		{"Performance Fee %", feePercent(r.Fee.PerformanceFeeBps)},
		{"Fee Rate Assumed", r.Fee.Assumed},
		{"ROI % (cash)", bps(r.ROIBps)},
		{"ROI % (transfer adjusted)", bps(r.TransferAdjustedROI)},
		{"Peak Shares", units(r.Result.PeakShares, d)},
		{"Peak Block", r.Result.PeakSharesBlock},
	}
	if r.PeakValue != nil {
		rows = append(rows, []any{"Peak Value", units(r.PeakValue, d)})
	}
	for _, w := range r.Warnings {
		rows = append(rows, []any{"Warning", w})
	}
	return rows
}

// buildTimeline builds the TIMELINE sheet: one row per event with the balance after it.
// Columns: # | Block | Log | Type | Shares | Assets | Balance
func buildTimeline(r domain.Report) [][]any {
	d := r.Vault.Decimals
	rows := make([][]any, 0, len(r.Timeline)+1)
	rows = append(rows, []any{"#", "Block", "Log", "Type", "Shares", "Assets", "Balance"})

	for i, e := range r.Timeline {
		var assets any
		if e.Assets != nil {
			assets = units(e.Assets, d)
		}
		var balance any
		if i < len(r.Snapshots) {
			balance = units(r.Snapshots[i].SharesBalance, d)
		}
		rows = append(rows, []any{i + 1, e.Block, e.LogIndex, e.Kind.Label(), units(e.Shares, d), assets, balance})
	}
	return rows
}

// buildSeries builds the SERIES sheet from the downsampled balance/profit curve.
// Columns: Block | Shares | Profit
func buildSeries(r domain.Report) [][]any {
	d := r.Vault.Decimals
	points := pnl.SampleSeries(r.Series, MaxSeriesPoints)

	rows := make([][]any, 0, len(points)+1)
	rows = append(rows, []any{"Block", "Shares", "Profit"})
	for _, p := range points {
		rows = append(rows, []any{p.Block, units(p.Shares, d), units(p.Profit, d)})
	}
	return rows
}

func units(v *big.Int, decimals uint8) float64 {
	if v == nil {
		return 0
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).InexactFloat64()
}

func feePercent(feeBps int) float64 {
	return decimal.New(int64(feeBps), -2).InexactFloat64()
}

func bps(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	return decimal.NewFromBigInt(v, -2).InexactFloat64()
}
