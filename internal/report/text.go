// Package report renders an analysis Report for people and machines.
package report

import (
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/mtlprog/vaultfee/internal/domain"
)

const rule = "--------------------------------------------------------------------------------"

const dateLayout = "02/01/2006 15:04 UTC"

// WriteText writes the sectioned human-readable report.
func WriteText(w io.Writer, r domain.Report) error {
	var b strings.Builder
	p := func(format string, args ...any) { fmt.Fprintf(&b, format+"\n", args...) }

	d := r.Vault.Decimals
	sym := r.Vault.AssetSymbol
	units := func(v *big.Int) string { return domain.FormatUnitsDisplay(v, d) }
	signed := func(v *big.Int) string { return domain.Signed(v, units(v)) }
	pct := func(v *big.Int) string { return domain.Signed(v, domain.FormatBps(v)) + "%" }

	banner := strings.Repeat("=", len(rule))
	p("%s", banner)
	p("VAULT DEPOSITOR FEE & PROFIT ANALYSIS")
	p("%s", banner)

	p("\nDEPOSITOR")
	p("%s", rule)
	p("Address: %s", r.Account)
	p("Vault:   %s", r.Vault.Address)
	p("Asset:   %s (%d decimals)", sym, d)
	p("Chain:   %s (ID: %d)", chainName(r.Vault), r.Vault.ChainID)
	if r.FirstInteractionTime != nil {
		p("First Interaction: Block %d (%s)", r.FirstInteractionBlock, formatTime(*r.FirstInteractionTime))
	}

	p("\nPOSITION")
	p("%s", rule)
	p("Current Shares:     %s shares", units(r.Result.CurrentShares))
	p("Current Value:      %s %s", units(r.CurrentValue), sym)
	p("Total Deposited:    %s %s", units(r.Result.TotalDeposited), sym)
	p("Total Withdrawn:    %s %s", units(r.Result.TotalWithdrawn), sym)
	p("Net Deposited:      %s %s", units(r.NetDeposited), sym)

	if r.Result.PeakShares != nil && r.Result.PeakShares.Sign() > 0 {
		p("\nPEAK POSITION")
		p("%s", rule)
		p("Highest Shares:     %s shares", units(r.Result.PeakShares))
		if r.PeakValue != nil {
			p("Peak Value:         %s %s", units(r.PeakValue), sym)
		}
		if r.PeakTime != nil {
			p("Peak Date:          Block %d (%s)", r.Result.PeakSharesBlock, formatTime(*r.PeakTime))
		} else {
			p("Peak Block:         %d", r.Result.PeakSharesBlock)
		}

		diff := new(big.Int).Sub(r.Result.CurrentShares, r.Result.PeakShares)
		switch diff.Sign() {
		case 0:
			p("Change from peak:   currently at peak")
		case -1:
			diffBps := domain.RatioBps(new(big.Int).Neg(diff), r.Result.PeakShares)
			p("Change from peak:   %s shares lower (%s%%)", units(new(big.Int).Neg(diff)), domain.FormatBps(diffBps))
		}
	}

	p("\nPRICE PER SHARE")
	p("%s", rule)
	p("Weighted Avg Entry PPS: %s", units(r.Result.WeightedAvgEntryPrice))
	p("Current PPS:            %s", units(r.CurrentPricePerShare))
	p("PPS Change:             %s (%s)", signed(r.PPSChange), pct(r.PPSChangeBps))

	p("\nPROFIT/LOSS")
	p("%s", rule)
	p("Gross Profit (before fees):  %s %s", signed(r.Result.GrossProfit), sym)
	p("Net Profit (after fees):     %s %s", signed(r.Result.NetProfit), sym)
	p("Return on Investment (cash): %s", pct(r.ROIBps))
	p("Return on Investment (xfer): %s", pct(r.TransferAdjustedROI))

	p("\nFEES")
	p("%s", rule)
	rate := domain.FormatBps(big.NewInt(int64(r.Fee.PerformanceFeeBps))) + "%"
	if r.Fee.Assumed {
		rate += " (assumed)"
	}
	p("Performance Fee Rate:   %s", rate)
	p("Total Fees Paid:        %s %s", units(r.Result.TotalFees), sym)
	if r.Result.GrossProfit != nil && r.Result.GrossProfit.Sign() > 0 {
		p("Fees as %% of Gross:     %s%%", domain.FormatBps(r.Fee.ShareOfGrossBps))
	}
	if len(r.Fee.VerifiedAtBlocks) > 0 {
		p("Fee verified stable at %d blocks", len(r.Fee.VerifiedAtBlocks))
	}

	p("\nEVENTS")
	p("%s", rule)
	p("Total Deposits:     %d", r.DepositCount)
	p("Total Withdrawals:  %d", r.WithdrawalCount)
	p("Total Transfers:    %d (excluding mint/burn)", r.Transfers.InCount+r.Transfers.OutCount)
	p("  - Transfers IN:   %d", r.Transfers.InCount)
	p("  - Transfers OUT:  %d", r.Transfers.OutCount)

	for i, e := range r.Timeline {
		p("  %d. %s", i+1, describeEntry(e, units, sym))
	}

	if len(r.Warnings) > 0 {
		p("\nWARNINGS")
		p("%s", rule)
		for _, warning := range r.Warnings {
			p("! %s", warning)
		}
	}

	p("%s", banner)

	_, err := io.WriteString(w, b.String())
	return err
}

func describeEntry(e domain.TimelineEntry, units func(*big.Int) string, sym string) string {
	switch e.Kind {
	case domain.EventDeposit:
		return fmt.Sprintf("Block %d: Deposit %s %s -> %s shares", e.Block, units(e.Assets), sym, units(e.Shares))
	case domain.EventWithdraw:
		return fmt.Sprintf("Block %d: Withdraw %s shares -> %s %s", e.Block, units(e.Shares), units(e.Assets), sym)
	default:
		return fmt.Sprintf("Block %d: %s %s shares", e.Block, e.Kind.Label(), units(e.Shares))
	}
}

func chainName(v domain.VaultInfo) string {
	if v.ChainName == "" {
		return "Unknown"
	}
	return v.ChainName
}

func formatTime(t time.Time) string {
	return t.UTC().Format(dateLayout)
}
