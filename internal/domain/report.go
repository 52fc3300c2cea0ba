package domain

import (
	"math/big"
	"time"
)

// Result is the core outcome of a depositor analysis. All amounts are
// fixed-point integers in the vault's native decimals.
type Result struct {
	CurrentShares         *big.Int `json:"currentShares"`
	TotalDeposited        *big.Int `json:"totalDeposited"`
	TotalWithdrawn        *big.Int `json:"totalWithdrawn"`
	NetProfit             *big.Int `json:"netProfit"`
	GrossProfit           *big.Int `json:"grossProfit"`
	TotalFees             *big.Int `json:"totalFees"`
	WeightedAvgEntryPrice *big.Int `json:"weightedAvgEntryPrice"`
	PeakShares            *big.Int `json:"peakShares"`
	PeakSharesBlock       uint64   `json:"peakSharesBlock"`
}

// VaultInfo describes the analysed vault.
type VaultInfo struct {
	Address      Address `json:"address"`
	ChainID      uint64  `json:"chainId"`
	ChainName    string  `json:"chainName"`
	AssetAddress Address `json:"assetAddress,omitempty"`
	AssetSymbol  string  `json:"assetSymbol"`
	Decimals     uint8   `json:"decimals"`
}

// TransferSummary aggregates share transfers in and out of the account.
type TransferSummary struct {
	InCount   int      `json:"inCount"`
	OutCount  int      `json:"outCount"`
	SharesIn  *big.Int `json:"sharesIn"`
	SharesOut *big.Int `json:"sharesOut"`
	NetShares *big.Int `json:"netShares"`
}

// HasTransfers reports whether any non-mint/burn transfer touched the account.
func (t TransferSummary) HasTransfers() bool {
	return t.InCount > 0 || t.OutCount > 0
}

// TimelineEntry is a report-friendly view of one event.
type TimelineEntry struct {
	Block    uint64    `json:"block"`
	LogIndex uint64    `json:"logIndex"`
	Kind     EventKind `json:"kind"`
	Shares   *big.Int  `json:"shares"`
	Assets   *big.Int  `json:"assets,omitempty"`
}

// FeeInfo describes the performance fee applied to the account's profit.
type FeeInfo struct {
	PerformanceFeeBps int      `json:"performanceFeeBps"`
	Assumed           bool     `json:"assumed"`
	VerifiedAtBlocks  []uint64 `json:"verifiedAtBlocks,omitempty"`
	ShareOfGrossBps   *big.Int `json:"shareOfGrossBps"`
}

// Report is everything the analysis produces for presentation and export.
type Report struct {
	Account     Address   `json:"account"`
	Vault       VaultInfo `json:"vault"`
	GeneratedAt time.Time `json:"generatedAt"`

	Result Result `json:"result"`

	CurrentPricePerShare *big.Int `json:"currentPricePerShare"`
	CurrentValue         *big.Int `json:"currentValue"`
	NetDeposited         *big.Int `json:"netDeposited"`
	TransferAdjustedNet  *big.Int `json:"transferAdjustedNet"`
	ROIBps               *big.Int `json:"roiBps"`
	TransferAdjustedROI  *big.Int `json:"transferAdjustedRoiBps"`
	PPSChange            *big.Int `json:"ppsChange"`
	PPSChangeBps         *big.Int `json:"ppsChangeBps"`

	PeakValue *big.Int   `json:"peakValue,omitempty"`
	PeakTime  *time.Time `json:"peakTime,omitempty"`

	FirstInteractionBlock uint64     `json:"firstInteractionBlock,omitempty"`
	FirstInteractionTime  *time.Time `json:"firstInteractionTime,omitempty"`

	Fee FeeInfo `json:"fee"`

	DepositCount    int             `json:"depositCount"`
	WithdrawalCount int             `json:"withdrawalCount"`
	Transfers       TransferSummary `json:"transfers"`

	Timeline  []TimelineEntry    `json:"timeline"`
	Snapshots []PositionSnapshot `json:"snapshots"`
	Series    []SeriesPoint      `json:"series"`
	Anomalies []Anomaly          `json:"anomalies,omitempty"`
	Warnings  []string           `json:"warnings,omitempty"`
}
