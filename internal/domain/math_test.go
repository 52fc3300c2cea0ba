package domain

import (
	"errors"
	"math/big"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"zero", "0", "0", false},
		{"plain", "1000000", "1000000", false},
		{"uint256 max", "115792089237316195423570985008687907853269984665640564039457584007913129639935", "115792089237316195423570985008687907853269984665640564039457584007913129639935", false},
		{"surrounding whitespace", " 42 ", "42", false},
		{"empty", "", "", true},
		{"decimal point", "3.14", "", true},
		{"hex", "0x10", "", true},
		{"negative", "-5", "", true},
		{"letters", "abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedAmount) {
					t.Fatalf("ParseAmount(%q) error = %v, want ErrMalformedAmount", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) unexpected error: %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestPow10(t *testing.T) {
	tests := []struct {
		decimals uint8
		want     string
	}{
		{0, "1"},
		{6, "1000000"},
		{8, "100000000"},
		{18, "1000000000000000000"},
	}

	for _, tt := range tests {
		if got := Pow10(tt.decimals).String(); got != tt.want {
			t.Errorf("Pow10(%d) = %s, want %s", tt.decimals, got, tt.want)
		}
	}
}

func TestMulDivTruncatesTowardZero(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c int64
		want    int64
	}{
		{"exact", 10, 10, 5, 20},
		{"positive remainder", 7, 1, 2, 3},
		{"negative remainder", -7, 1, 2, -3},
		{"negative divisor", 7, 1, -2, -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MulDiv(big.NewInt(tt.a), big.NewInt(tt.b), big.NewInt(tt.c))
			if got.Int64() != tt.want {
				t.Errorf("MulDiv(%d, %d, %d) = %s, want %d", tt.a, tt.b, tt.c, got, tt.want)
			}
		})
	}
}

func TestRatioBps(t *testing.T) {
	tests := []struct {
		name     string
		num, den *big.Int
		want     int64
	}{
		{"ten percent", big.NewInt(100), big.NewInt(1000), 1000},
		{"loss", big.NewInt(-50), big.NewInt(1000), -500},
		{"zero denominator", big.NewInt(100), big.NewInt(0), 0},
		{"negative denominator", big.NewInt(100), big.NewInt(-1), 0},
		{"nil denominator", big.NewInt(100), nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RatioBps(tt.num, tt.den); got.Int64() != tt.want {
				t.Errorf("RatioBps = %s, want %d", got, tt.want)
			}
		})
	}
}

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		name     string
		value    *big.Int
		decimals uint8
		want     string
	}{
		{"nil", nil, 6, "0"},
		{"whole", big.NewInt(1_000_000), 6, "1"},
		{"fraction", big.NewInt(1_234_567), 6, "1.234567"},
		{"below one", big.NewInt(222), 6, "0.000222"},
		{"negative", big.NewInt(-1_500_000), 6, "-1.5"},
		{"zero decimals", big.NewInt(42), 0, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatUnits(tt.value, tt.decimals); got != tt.want {
				t.Errorf("FormatUnits(%v, %d) = %q, want %q", tt.value, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestFormatUnitsDisplay(t *testing.T) {
	wei, _ := new(big.Int).SetString("1234567890123456789", 10)

	tests := []struct {
		name     string
		value    *big.Int
		decimals uint8
		want     string
	}{
		{"18 decimals keeps 8 digits", wei, 18, "1.23456789"},
		{"8 decimals keeps 8 digits", big.NewInt(123456789), 8, "1.23456789"},
		{"6 decimals keeps 6 digits", big.NewInt(1_234_567), 6, "1.234567"},
		{"12 decimals truncates to 6", big.NewInt(1_234_567_891_234), 12, "1.234567"},
		{"negative truncates toward zero", big.NewInt(-1_999_999_999), 12, "-0.001999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatUnitsDisplay(tt.value, tt.decimals); got != tt.want {
				t.Errorf("FormatUnitsDisplay(%v, %d) = %q, want %q", tt.value, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestFormatBps(t *testing.T) {
	tests := []struct {
		bps  *big.Int
		want string
	}{
		{nil, "0.00"},
		{big.NewInt(1000), "10.00"},
		{big.NewInt(1), "0.01"},
		{big.NewInt(-250), "-2.50"},
	}

	for _, tt := range tests {
		if got := FormatBps(tt.bps); got != tt.want {
			t.Errorf("FormatBps(%v) = %q, want %q", tt.bps, got, tt.want)
		}
	}
}

func TestSigned(t *testing.T) {
	if got := Signed(big.NewInt(5), "5"); got != "+5" {
		t.Errorf("Signed(5) = %q, want +5", got)
	}
	if got := Signed(big.NewInt(0), "0"); got != "+0" {
		t.Errorf("Signed(0) = %q, want +0", got)
	}
	if got := Signed(big.NewInt(-5), "-5"); got != "-5" {
		t.Errorf("Signed(-5) = %q, want -5", got)
	}
}
