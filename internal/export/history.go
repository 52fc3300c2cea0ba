package export

import (
	"time"

	"github.com/mtlprog/vaultfee/internal/domain"
)

// historyColumn describes one column of the HISTORY sheet.
type historyColumn struct {
	header string
	value  func(r domain.Report) any
}

// historyColumns follow the Date column, in order.
var historyColumns = []historyColumn{
	{"Account", func(r domain.Report) any { return r.Account.String() }},
	{"Vault", func(r domain.Report) any { return r.Vault.Address.String() }},
	{"Chain", func(r domain.Report) any { return r.Vault.ChainID }},
	{"Shares", func(r domain.Report) any { return units(r.Result.CurrentShares, r.Vault.Decimals) }},
	{"Value", func(r domain.Report) any { return units(r.CurrentValue, r.Vault.Decimals) }},
	{"PPS", func(r domain.Report) any { return units(r.CurrentPricePerShare, r.Vault.Decimals) }},
	{"Net Profit", func(r domain.Report) any { return units(r.Result.NetProfit, r.Vault.Decimals) }},
	{"Gross Profit", func(r domain.Report) any { return units(r.Result.GrossProfit, r.Vault.Decimals) }},
	{"Fees", func(r domain.Report) any { return units(r.Result.TotalFees, r.Vault.Decimals) }},
	{"Fee %", func(r domain.Report) any { return feePercent(r.Fee.PerformanceFeeBps) }},
	{"ROI %", func(r domain.Report) any { return bps(r.ROIBps) }},
}

// buildHistoryRow builds the HISTORY header and one data row for the run at at.
func buildHistoryRow(r domain.Report, at time.Time) (header, row []any) {
	header = make([]any, 1+len(historyColumns))
	row = make([]any, 1+len(historyColumns))

	header[0] = "Date"
	row[0] = at.UTC().Format("02.01.2006")
	for i, col := range historyColumns {
		header[i+1] = col.header
		row[i+1] = col.value(r)
	}
	return header, row
}
