package domain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// BasisPoints is 100% expressed in basis points.
const BasisPoints = 10000

// ErrMalformedAmount indicates an amount that is not a non-negative base-10 integer.
var ErrMalformedAmount = errors.New("malformed amount")

// ParseAmount parses a uint256 amount from its base-10 string form.
func ParseAmount(value string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMalformedAmount, value)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative value %q", ErrMalformedAmount, value)
	}
	return n, nil
}

// Pow10 returns 10^decimals, the fixed-point scale of a token.
func Pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

// MulDiv returns a*b/c truncated toward zero. c must be non-zero.
func MulDiv(a, b, c *big.Int) *big.Int {
	p := new(big.Int).Mul(a, b)
	return p.Quo(p, c)
}

// RatioBps returns num*10000/den, or zero when den is not positive.
func RatioBps(num, den *big.Int) *big.Int {
	if den == nil || den.Sign() <= 0 {
		return new(big.Int)
	}
	return MulDiv(num, big.NewInt(BasisPoints), den)
}

// FormatUnits renders a fixed-point integer exactly, without trailing zeros.
func FormatUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -int32(decimals)).String()
}

// FormatUnitsDisplay renders a fixed-point integer truncated to a readable precision:
// 8 fractional digits for 8- and 18+-decimal tokens, 6 otherwise.
func FormatUnitsDisplay(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	maxFrac := int32(6)
	if decimals >= 18 || decimals == 8 {
		maxFrac = 8
	}
	return decimal.NewFromBigInt(value, -int32(decimals)).Truncate(maxFrac).String()
}

// FormatBps renders basis points as a percentage with two decimals, e.g. 1000 -> "10.00".
func FormatBps(bps *big.Int) string {
	if bps == nil {
		return "0.00"
	}
	return decimal.NewFromBigInt(bps, -2).StringFixed(2)
}

// Signed prefixes non-negative values with "+".
func Signed(value *big.Int, formatted string) string {
	if value != nil && value.Sign() >= 0 {
		return "+" + formatted
	}
	return formatted
}
