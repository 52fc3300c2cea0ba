package domain

import "math/big"

// PositionSnapshot is the account state right after one timeline event.
type PositionSnapshot struct {
	Block           uint64    `json:"block"`
	LogIndex        uint64    `json:"logIndex"`
	Kind            EventKind `json:"kind"`
	SharesBalance   *big.Int  `json:"sharesBalance"`
	SharesChange    *big.Int  `json:"sharesChange"`
	AssetsDeposited *big.Int  `json:"assetsDeposited"`
	AssetsWithdrawn *big.Int  `json:"assetsWithdrawn"`
}

// Anomaly marks a point where the replayed balance became inconsistent,
// typically because the event set is incomplete.
type Anomaly struct {
	Block    uint64   `json:"block"`
	LogIndex uint64   `json:"logIndex"`
	Balance  *big.Int `json:"balance"`
	Reason   string   `json:"reason"`
}

// ReplayResult summarizes a full replay of an account timeline.
type ReplayResult struct {
	CurrentShares   *big.Int           `json:"currentShares"`
	TotalDeposited  *big.Int           `json:"totalDeposited"`
	TotalWithdrawn  *big.Int           `json:"totalWithdrawn"`
	Snapshots       []PositionSnapshot `json:"snapshots"`
	PeakShares      *big.Int           `json:"peakShares"`
	PeakSharesBlock uint64             `json:"peakSharesBlock"`
	Anomalies       []Anomaly          `json:"anomalies,omitempty"`
}

// FirstBlock returns the block of the first snapshot, and false for an empty replay.
func (r ReplayResult) FirstBlock() (uint64, bool) {
	if len(r.Snapshots) == 0 {
		return 0, false
	}
	return r.Snapshots[0].Block, true
}

// LastBlock returns the block of the last snapshot, and false for an empty replay.
func (r ReplayResult) LastBlock() (uint64, bool) {
	if len(r.Snapshots) == 0 {
		return 0, false
	}
	return r.Snapshots[len(r.Snapshots)-1].Block, true
}

// ProfitResult is the outcome of PPS accrual and fee gross-up.
type ProfitResult struct {
	NetProfit   *big.Int `json:"netProfit"`
	GrossProfit *big.Int `json:"grossProfit"`
	TotalFees   *big.Int `json:"totalFees"`
}

// SeriesPoint is one sample of the cumulative balance/profit curve.
type SeriesPoint struct {
	Block  uint64   `json:"block"`
	Shares *big.Int `json:"shares"`
	Profit *big.Int `json:"profit"`
}
