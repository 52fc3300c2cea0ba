package chain

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mtlprog/vaultfee/internal/domain"
)

// Function selectors of the vault, token and accountant calls.
const (
	selectorPricePerShare  = "0x99530b06"
	selectorDecimals       = "0x313ce567"
	selectorAsset          = "0x38d52e0f"
	selectorSymbol         = "0x95d89b41"
	selectorAccountant     = "0x4fb3ccc5"
	selectorGetVaultConfig = "0xde1eb9a3"
)

const wordHexLen = 64

// ErrEmptyResult indicates an eth_call that returned no data, typically a
// call to an address without code or a missing function.
var ErrEmptyResult = errors.New("empty call result")

func stripHex(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}

func encodeQuantity(n uint64) string {
	return "0x" + strconv.FormatUint(n, 16)
}

func blockTag(block *uint64) string {
	if block == nil {
		return "latest"
	}
	return encodeQuantity(*block)
}

// decodeQuantity parses a hex quantity such as "0x1b4".
func decodeQuantity(s string) (uint64, error) {
	raw := stripHex(s)
	if raw == "" {
		return 0, fmt.Errorf("%w: quantity", ErrEmptyResult)
	}
	n, err := strconv.ParseUint(raw, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("decoding quantity %q: %w", s, err)
	}
	return n, nil
}

// decodeUint reads the first 32-byte word of call data as an unsigned integer.
func decodeUint(data string) (*big.Int, error) {
	return decodeWord(data, 0)
}

func decodeWord(data string, index int) (*big.Int, error) {
	raw := stripHex(data)
	if raw == "" {
		return nil, ErrEmptyResult
	}
	start := index * wordHexLen
	end := start + wordHexLen
	switch {
	case len(raw) >= end:
	case index == 0:
		end = len(raw)
	default:
		return nil, fmt.Errorf("call data too short for word %d: %d hex chars", index, len(raw))
	}
	n, ok := new(big.Int).SetString(raw[start:end], 16)
	if !ok {
		return nil, fmt.Errorf("decoding word %d of %q", index, data)
	}
	return n, nil
}

// decodeAddress reads an address from the low 20 bytes of the first word.
func decodeAddress(data string) (domain.Address, error) {
	raw := stripHex(data)
	if len(raw) < 40 {
		if raw == "" {
			return "", ErrEmptyResult
		}
		return "", fmt.Errorf("call data too short for address: %d hex chars", len(raw))
	}
	word := raw
	if len(word) > wordHexLen {
		word = word[:wordHexLen]
	}
	return domain.ParseAddress("0x" + word[len(word)-40:])
}

// decodeString decodes an ABI dynamic string, falling back to a
// NUL-padded bytes32 for tokens whose symbol() predates the string ABI.
func decodeString(data string) (string, error) {
	raw := stripHex(data)
	if raw == "" {
		return "", ErrEmptyResult
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("decoding call data: %w", err)
	}

	if len(b) >= 64 {
		offset := new(big.Int).SetBytes(b[:32])
		if offset.IsInt64() && offset.Int64()+32 <= int64(len(b)) {
			off := int(offset.Int64())
			length := new(big.Int).SetBytes(b[off : off+32])
			start := off + 32
			end := len(b)
			if length.IsInt64() && int64(start)+length.Int64() < int64(end) {
				end = start + int(length.Int64())
			}
			return cleanString(b[start:end]), nil
		}
	}

	return cleanString(b[:min(32, len(b))]), nil
}

func cleanString(b []byte) string {
	s := strings.Trim(string(b), "\x00")
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return s
}

// FeeConfig is the accountant's per-vault fee configuration.
// Fees are expressed in the accountant's own units; MaxFee is 100%.
type FeeConfig struct {
	Accountant     domain.Address
	ManagementFee  *big.Int
	PerformanceFee *big.Int
	RefundRatio    *big.Int
	MaxFee         *big.Int
}

// ErrManagementFee indicates a non-zero management fee, which the
// performance-fee gross-up model does not account for.
var ErrManagementFee = errors.New("unexpected management fee")

// ErrZeroMaxFee indicates an accountant config whose max fee is zero.
var ErrZeroMaxFee = errors.New("max fee is zero")

// PerformanceFeeBps converts the performance fee to basis points of profit.
func (c FeeConfig) PerformanceFeeBps() (int, error) {
	if c.ManagementFee.Sign() != 0 {
		return 0, fmt.Errorf("%w: %s (expected 0)", ErrManagementFee, c.ManagementFee)
	}
	if c.MaxFee.Sign() == 0 {
		return 0, ErrZeroMaxFee
	}
	bps := domain.MulDiv(c.PerformanceFee, big.NewInt(domain.BasisPoints), c.MaxFee)
	if !bps.IsInt64() {
		return 0, fmt.Errorf("performance fee out of range: %s bps", bps)
	}
	return int(bps.Int64()), nil
}

// decodeFeeConfig reads the four words returned by getVaultConfig:
// management fee, performance fee, refund ratio, max fee.
// Short payloads are right-padded with zeros.
func decodeFeeConfig(data string) (FeeConfig, error) {
	raw := stripHex(data)
	if raw == "" {
		return FeeConfig{}, fmt.Errorf("getVaultConfig: %w", ErrEmptyResult)
	}
	if len(raw) < 4*wordHexLen {
		slog.Warn("getVaultConfig returned short payload, padding", "hex_chars", len(raw), "want", 4*wordHexLen)
		raw += strings.Repeat("0", 4*wordHexLen-len(raw))
	}

	words := make([]*big.Int, 4)
	for i := range words {
		w, err := decodeWord(raw, i)
		if err != nil {
			return FeeConfig{}, fmt.Errorf("getVaultConfig: %w", err)
		}
		words[i] = w
	}

	return FeeConfig{
		ManagementFee:  words[0],
		PerformanceFee: words[1],
		RefundRatio:    words[2],
		MaxFee:         words[3],
	}, nil
}
