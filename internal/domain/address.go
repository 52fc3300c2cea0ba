package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidAddress indicates a string that is not a 20-byte hex address.
var ErrInvalidAddress = errors.New("invalid address")

// ZeroAddress is the mint/burn counterparty of share transfers.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Address is an EVM account or contract address, always stored lower-case.
type Address string

// ParseAddress validates s and returns its canonical lower-case form.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !addressPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return Address(strings.ToLower(s)), nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	return string(a)
}

// Is compares against a raw address string, ignoring case.
func (a Address) Is(raw string) bool {
	return strings.EqualFold(string(a), strings.TrimSpace(raw))
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a.Is(string(ZeroAddress))
}

// Word returns the address left-padded to a 32-byte ABI word, hex without prefix.
func (a Address) Word() string {
	return fmt.Sprintf("%064s", strings.TrimPrefix(string(a), "0x"))
}

// NormalizeAddress lower-cases an address read from a trusted source
// such as the indexer, without validating it.
func NormalizeAddress(raw string) Address {
	return Address(strings.ToLower(strings.TrimSpace(raw)))
}
