// Package analysis runs the full depositor analysis: fetch, merge, replay,
// pricing, fee resolution and report assembly.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/mtlprog/vaultfee/internal/chain"
	"github.com/mtlprog/vaultfee/internal/domain"
	"github.com/mtlprog/vaultfee/internal/metrics"
	"github.com/mtlprog/vaultfee/internal/pnl"
	"github.com/mtlprog/vaultfee/internal/position"
	"github.com/mtlprog/vaultfee/internal/timeline"
)

// ErrFeeChanged indicates the performance fee differed across the account's history.
var ErrFeeChanged = errors.New("performance fee changed during depositor activity")

// ErrVaultMismatch indicates a request for a vault other than the one the service reads.
var ErrVaultMismatch = errors.New("vault mismatch")

const (
	// FeeStabilityChecks is the number of blocks sampled by the fee stability check.
	FeeStabilityChecks = 5

	// DefaultAssetSymbol is shown when the asset symbol cannot be read.
	DefaultAssetSymbol = "TOKEN"

	// headBlockFallbackOffset approximates the head block when it cannot be read.
	headBlockFallbackOffset = 1000
)

// EventSource fetches the account's raw vault events.
type EventSource interface {
	Deposits(ctx context.Context, owner, vault domain.Address) ([]domain.DepositRecord, error)
	Withdrawals(ctx context.Context, owner, vault domain.Address) ([]domain.WithdrawRecord, error)
	Transfers(ctx context.Context, account, vault domain.Address) ([]domain.TransferRecord, error)
}

// VaultState reads live and historical vault state from the chain.
type VaultState interface {
	Vault() domain.Address
	Validate(ctx context.Context) error
	CurrentPricePerShare(ctx context.Context) (*big.Int, error)
	Decimals(ctx context.Context) (uint8, error)
	Asset(ctx context.Context) (domain.Address, error)
	AssetSymbol(ctx context.Context) (string, error)
	PerformanceFeeBps(ctx context.Context, block *uint64) (int, error)
	FeeConfig(ctx context.Context, block *uint64) (chain.FeeConfig, error)
	LatestBlock(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, block uint64) (time.Time, bool, error)
}

// PriceCache serves historical price per share and can be warmed in bulk.
type PriceCache interface {
	pnl.PriceSource
	Prefetch(ctx context.Context, blocks []uint64, concurrency int) error
}

// Options tunes a Service. Zero values are usable.
type Options struct {
	ChainName           string
	PrefetchConcurrency int
	Metrics             *metrics.Metrics
	Now                 func() time.Time
}

// Request selects the account and vault to analyse.
type Request struct {
	Account            domain.Address
	Vault              domain.Address
	ChainID            uint64
	VerifyFeeStability bool
}

// Service orchestrates the analysis of one vault.
type Service struct {
	events EventSource
	vault  VaultState
	prices PriceCache
	opts   Options
}

// NewService creates a new analysis Service. All dependencies are required.
func NewService(events EventSource, vault VaultState, prices PriceCache, opts Options) *Service {
	if events == nil {
		panic("analysis.NewService: events is nil")
	}
	if vault == nil {
		panic("analysis.NewService: vault is nil")
	}
	if prices == nil {
		panic("analysis.NewService: prices is nil")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PrefetchConcurrency <= 0 {
		opts.PrefetchConcurrency = 1
	}
	return &Service{events: events, vault: vault, prices: prices, opts: opts}
}

type rawEvents struct {
	deposits    []domain.DepositRecord
	withdrawals []domain.WithdrawRecord
	transfers   []domain.TransferRecord
}

// Analyze produces the full report for req.Account.
func (s *Service) Analyze(ctx context.Context, req Request) (domain.Report, error) {
	if req.Vault != s.vault.Vault() {
		return domain.Report{}, fmt.Errorf("%w: requested %s, reading %s", ErrVaultMismatch, req.Vault, s.vault.Vault())
	}

	if err := s.vault.Validate(ctx); err != nil {
		return domain.Report{}, fmt.Errorf("validating vault %s: %w", req.Vault, err)
	}

	raw, err := s.fetchEvents(ctx, req.Account, req.Vault)
	if err != nil {
		return domain.Report{}, err
	}

	events, err := timeline.Merge(raw.deposits, raw.withdrawals, raw.transfers, req.Account)
	if err != nil {
		return domain.Report{}, fmt.Errorf("merging events: %w", err)
	}

	replay, err := position.Replay(events)
	if err != nil {
		return domain.Report{}, fmt.Errorf("replaying position: %w", err)
	}

	livePPS, err := s.vault.CurrentPricePerShare(ctx)
	if err != nil {
		return domain.Report{}, fmt.Errorf("reading current price per share: %w", err)
	}
	decimals, err := s.vault.Decimals(ctx)
	if err != nil {
		return domain.Report{}, fmt.Errorf("reading vault decimals: %w", err)
	}
	scale := domain.Pow10(decimals)

	rep := domain.Report{
		Account:              req.Account,
		GeneratedAt:          s.opts.Now().UTC(),
		CurrentPricePerShare: livePPS,
		Snapshots:            replay.Snapshots,
		Anomalies:            replay.Anomalies,
		Timeline:             timelineEntries(events),
		DepositCount:         len(raw.deposits),
		WithdrawalCount:      len(raw.withdrawals),
		Transfers:            summarizeTransfers(events),
	}
	rep.Vault = s.vaultInfo(ctx, req, decimals, &rep)

	feeBps, assumed := s.resolveFeeRate(ctx)
	if err := pnl.ValidateFeeRate(feeBps); err != nil {
		return domain.Report{}, err
	}
	rep.Fee = domain.FeeInfo{PerformanceFeeBps: feeBps, Assumed: assumed}
	if assumed {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf(
			"performance fee rate could not be read; assumed %s%%", domain.FormatBps(big.NewInt(int64(feeBps)))))
	}

	first, hasEvents := replay.FirstBlock()
	last, _ := replay.LastBlock()

	if req.VerifyFeeStability && hasEvents {
		checked, err := s.verifyFeeStability(ctx, first, last, feeBps)
		if err != nil {
			return domain.Report{}, err
		}
		rep.Fee.VerifiedAtBlocks = checked
	}

	blocks := lo.Map(replay.Snapshots, func(snap domain.PositionSnapshot, _ int) uint64 { return snap.Block })
	if replay.PeakSharesBlock > 0 {
		blocks = append(blocks, replay.PeakSharesBlock)
	}
	if err := s.prices.Prefetch(ctx, blocks, s.opts.PrefetchConcurrency); err != nil {
		return domain.Report{}, fmt.Errorf("prefetching prices: %w", err)
	}

	profit, err := pnl.Calculate(ctx, replay.Snapshots, s.prices, livePPS, scale, feeBps)
	if err != nil {
		return domain.Report{}, fmt.Errorf("calculating profit: %w", err)
	}
	entry := pnl.WeightedAverageEntryPrice(events, scale)

	rep.Result = domain.Result{
		CurrentShares:         replay.CurrentShares,
		TotalDeposited:        replay.TotalDeposited,
		TotalWithdrawn:        replay.TotalWithdrawn,
		NetProfit:             profit.NetProfit,
		GrossProfit:           profit.GrossProfit,
		TotalFees:             profit.TotalFees,
		WeightedAvgEntryPrice: entry,
		PeakShares:            replay.PeakShares,
		PeakSharesBlock:       replay.PeakSharesBlock,
	}
	rep.Fee.ShareOfGrossBps = domain.RatioBps(profit.TotalFees, profit.GrossProfit)

	rep.CurrentValue = domain.MulDiv(replay.CurrentShares, livePPS, scale)
	rep.NetDeposited = new(big.Int).Sub(replay.TotalDeposited, replay.TotalWithdrawn)
	rep.ROIBps = domain.RatioBps(profit.NetProfit, rep.NetDeposited)

	rep.TransferAdjustedNet, err = s.transferAdjustedNet(ctx, events, rep.NetDeposited, scale)
	if err != nil {
		return domain.Report{}, err
	}
	rep.TransferAdjustedROI = domain.RatioBps(profit.NetProfit, rep.TransferAdjustedNet)

	rep.PPSChange = new(big.Int).Sub(livePPS, entry)
	rep.PPSChangeBps = domain.RatioBps(rep.PPSChange, entry)

	if hasEvents {
		rep.FirstInteractionBlock = first
		rep.FirstInteractionTime = s.timestamp(ctx, first, &rep)

		head := s.headBlock(ctx, last)
		rep.Series, err = pnl.Series(ctx, replay.Snapshots, s.prices, livePPS, scale, head)
		if err != nil {
			return domain.Report{}, err
		}
	}

	s.peak(ctx, replay, scale, &rep)

	if rep.Transfers.HasTransfers() {
		rep.Warnings = append(rep.Warnings, "transferred shares may have a different cost basis")
	}
	for _, a := range replay.Anomalies {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf(
			"share balance negative (%s) at block %d; event history may be incomplete", a.Balance.String(), a.Block))
	}

	return rep, nil
}

func (s *Service) fetchEvents(ctx context.Context, account, vault domain.Address) (rawEvents, error) {
	var raw rawEvents
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := s.events.Deposits(gctx, account, vault)
		if err != nil {
			return fmt.Errorf("fetching deposits: %w", err)
		}
		raw.deposits = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.events.Withdrawals(gctx, account, vault)
		if err != nil {
			return fmt.Errorf("fetching withdrawals: %w", err)
		}
		raw.withdrawals = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.events.Transfers(gctx, account, vault)
		if err != nil {
			return fmt.Errorf("fetching transfers: %w", err)
		}
		raw.transfers = rows
		return nil
	})

	if err := g.Wait(); err != nil {
		return rawEvents{}, err
	}

	s.opts.Metrics.AddEvents("deposit", len(raw.deposits))
	s.opts.Metrics.AddEvents("withdraw", len(raw.withdrawals))
	s.opts.Metrics.AddEvents("transfer", len(raw.transfers))
	slog.Info("fetched events",
		"deposits", len(raw.deposits),
		"withdrawals", len(raw.withdrawals),
		"transfers", len(raw.transfers))

	return raw, nil
}

func (s *Service) vaultInfo(ctx context.Context, req Request, decimals uint8, rep *domain.Report) domain.VaultInfo {
	info := domain.VaultInfo{
		Address:   req.Vault,
		ChainID:   req.ChainID,
		ChainName: s.opts.ChainName,
		Decimals:  decimals,
	}

	asset, err := s.vault.Asset(ctx)
	if err != nil {
		slog.Warn("could not read vault asset", "error", err)
	} else {
		info.AssetAddress = asset
	}

	symbol, err := s.vault.AssetSymbol(ctx)
	if err != nil || strings.TrimSpace(symbol) == "" {
		slog.Warn("could not read asset symbol, using default", "default", DefaultAssetSymbol, "error", err)
		rep.Warnings = append(rep.Warnings, "asset symbol unavailable")
		symbol = DefaultAssetSymbol
	}
	info.AssetSymbol = symbol

	return info
}

// resolveFeeRate reads the live performance fee, falling back to
// pnl.DefaultPerformanceFeeBps. assumed reports whether the fallback was used.
func (s *Service) resolveFeeRate(ctx context.Context) (bps int, assumed bool) {
	bps, err := s.vault.PerformanceFeeBps(ctx, nil)
	if err != nil {
		slog.Warn("could not fetch performance fee rate, using default",
			"default_bps", pnl.DefaultPerformanceFeeBps, "error", err)
		return pnl.DefaultPerformanceFeeBps, true
	}
	slog.Info("performance fee rate", "bps", bps)
	return bps, false
}

// verifyFeeStability checks that the fee config at evenly sampled blocks
// between first and last has zero management fee and the reference rate.
func (s *Service) verifyFeeStability(ctx context.Context, first, last uint64, referenceBps int) ([]uint64, error) {
	blocks := SampleBlocks(first, last, FeeStabilityChecks)
	slog.Info("verifying performance fee stability", "datapoints", len(blocks))

	observed := make([]string, 0, len(blocks))
	changed := false
	for _, b := range blocks {
		cfg, err := s.vault.FeeConfig(ctx, &b)
		if err != nil {
			return nil, fmt.Errorf("reading fee config at block %d: %w", b, err)
		}
		bps, err := cfg.PerformanceFeeBps()
		if err != nil {
			return nil, fmt.Errorf("fee config at block %d: %w", b, err)
		}
		observed = append(observed, fmt.Sprintf("block %d: %s%%", b, domain.FormatBps(big.NewInt(int64(bps)))))
		if bps != referenceBps {
			changed = true
		}
	}

	if changed {
		return nil, fmt.Errorf("%w: expected %s%%, observed [%s]", ErrFeeChanged,
			domain.FormatBps(big.NewInt(int64(referenceBps))), strings.Join(observed, ", "))
	}
	return blocks, nil
}

// SampleBlocks returns checks blocks spread evenly over [start, end], both ends included.
// A single check or an empty span repeats start.
func SampleBlocks(start, end uint64, checks int) []uint64 {
	if checks <= 0 {
		return nil
	}
	if checks == 1 || end <= start {
		return lo.Times(checks, func(int) uint64 { return start })
	}

	span := end - start
	return lo.Times(checks, func(i int) uint64 {
		return start + span*uint64(i)/uint64(checks-1)
	})
}

// transferAdjustedNet adds incoming transfers and subtracts outgoing ones,
// each valued at the price per share of its block.
func (s *Service) transferAdjustedNet(ctx context.Context, events []domain.Event, netDeposited, scale *big.Int) (*big.Int, error) {
	net := new(big.Int).Set(netDeposited)
	for _, e := range events {
		if e.Kind != domain.EventTransferIn && e.Kind != domain.EventTransferOut {
			continue
		}
		pps, err := s.prices.PriceAt(ctx, e.Key.Block)
		if err != nil {
			return nil, fmt.Errorf("valuing transfer %s: %w", e.ID, err)
		}
		assets := domain.MulDiv(e.Transfer.Value, pps, scale)
		if e.Kind == domain.EventTransferIn {
			net.Add(net, assets)
		} else {
			net.Sub(net, assets)
		}
	}
	return net, nil
}

func (s *Service) peak(ctx context.Context, replay domain.ReplayResult, scale *big.Int, rep *domain.Report) {
	if replay.PeakShares.Sign() <= 0 || replay.PeakSharesBlock == 0 {
		return
	}

	pps, err := s.prices.PriceAt(ctx, replay.PeakSharesBlock)
	if err != nil {
		slog.Warn("could not fetch peak position value", "block", replay.PeakSharesBlock, "error", err)
		rep.Warnings = append(rep.Warnings, "peak position value unavailable")
		return
	}
	rep.PeakValue = domain.MulDiv(replay.PeakShares, pps, scale)
	rep.PeakTime = s.timestamp(ctx, replay.PeakSharesBlock, rep)
}

func (s *Service) timestamp(ctx context.Context, block uint64, rep *domain.Report) *time.Time {
	ts, estimated, err := s.vault.BlockTimestamp(ctx, block)
	if err != nil {
		slog.Warn("could not fetch block timestamp", "block", block, "error", err)
		return nil
	}
	if estimated {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("timestamp of block %d is estimated", block))
	}
	ts = ts.UTC()
	return &ts
}

func (s *Service) headBlock(ctx context.Context, last uint64) uint64 {
	head, err := s.vault.LatestBlock(ctx)
	if err != nil {
		slog.Warn("could not fetch head block, approximating", "error", err)
		return last + headBlockFallbackOffset
	}
	return head
}

func timelineEntries(events []domain.Event) []domain.TimelineEntry {
	return lo.Map(events, func(e domain.Event, _ int) domain.TimelineEntry {
		return domain.TimelineEntry{
			Block:    e.Key.Block,
			LogIndex: e.Key.LogIndex,
			Kind:     e.Kind,
			Shares:   e.Shares(),
			Assets:   e.Assets(),
		}
	})
}

func summarizeTransfers(events []domain.Event) domain.TransferSummary {
	sum := domain.TransferSummary{
		SharesIn:  new(big.Int),
		SharesOut: new(big.Int),
	}
	for _, e := range events {
		switch e.Kind {
		case domain.EventTransferIn:
			sum.InCount++
			sum.SharesIn.Add(sum.SharesIn, e.Transfer.Value)
		case domain.EventTransferOut:
			sum.OutCount++
			sum.SharesOut.Add(sum.SharesOut, e.Transfer.Value)
		}
	}
	sum.NetShares = new(big.Int).Sub(sum.SharesIn, sum.SharesOut)
	return sum
}
