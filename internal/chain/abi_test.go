package chain

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func word(hexValue string) string {
	return strings.Repeat("0", wordHexLen-len(hexValue)) + hexValue
}

func rightPad(hexValue string) string {
	return hexValue + strings.Repeat("0", wordHexLen-len(hexValue))
}

func TestDecodeStringABI(t *testing.T) {
	data := "0x" + word("20") + word("4") + rightPad("55534443")

	got, err := decodeString(data)
	require.NoError(t, err)
	assert.Equal(t, "USDC", got)
}

func TestDecodeStringBytes32(t *testing.T) {
	data := "0x" + rightPad("4d4b52")

	got, err := decodeString(data)
	require.NoError(t, err)
	assert.Equal(t, "MKR", got)
}

func TestDecodeStringEmpty(t *testing.T) {
	_, err := decodeString("0x")
	assert.ErrorIs(t, err, ErrEmptyResult)
}

func TestDecodeUint(t *testing.T) {
	got, err := decodeUint("0x" + word("f4240"))
	require.NoError(t, err)
	assert.Equal(t, "1000000", got.String())

	_, err = decodeUint("0x")
	assert.ErrorIs(t, err, ErrEmptyResult)
}

func TestDecodeAddress(t *testing.T) {
	got, err := decodeAddress("0x" + word("a0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"))
	require.NoError(t, err)
	assert.Equal(t, "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", got.String())

	_, err = decodeAddress("0x1234")
	assert.Error(t, err)
}

func TestDecodeQuantity(t *testing.T) {
	got, err := decodeQuantity("0x1b4")
	require.NoError(t, err)
	assert.Equal(t, uint64(436), got)

	_, err = decodeQuantity("0xzz")
	assert.Error(t, err)
}

func TestBlockTag(t *testing.T) {
	assert.Equal(t, "latest", blockTag(nil))
	b := uint64(255)
	assert.Equal(t, "0xff", blockTag(&b))
}

func TestDecodeFeeConfig(t *testing.T) {
	// management 0, performance 1000, refund 0, max fee 10000
	data := "0x" + word("0") + word("3e8") + word("0") + word("2710")

	cfg, err := decodeFeeConfig(data)
	require.NoError(t, err)
	assert.Equal(t, "1000", cfg.PerformanceFee.String())
	assert.Equal(t, "10000", cfg.MaxFee.String())

	bps, err := cfg.PerformanceFeeBps()
	require.NoError(t, err)
	assert.Equal(t, 1000, bps)
}

func TestDecodeFeeConfigPadsShortPayload(t *testing.T) {
	data := "0x" + word("0") + word("3e8")

	cfg, err := decodeFeeConfig(data)
	require.NoError(t, err)
	assert.Equal(t, "1000", cfg.PerformanceFee.String())
	assert.Equal(t, "0", cfg.MaxFee.String())
}

func TestPerformanceFeeBps(t *testing.T) {
	tests := []struct {
		name    string
		cfg     FeeConfig
		want    int
		wantErr error
	}{
		{
			name: "scaled max fee",
			cfg:  FeeConfig{ManagementFee: big.NewInt(0), PerformanceFee: big.NewInt(2000), MaxFee: big.NewInt(10000)},
			want: 2000,
		},
		{
			name: "non-bps units",
			cfg:  FeeConfig{ManagementFee: big.NewInt(0), PerformanceFee: big.NewInt(15), MaxFee: big.NewInt(100)},
			want: 1500,
		},
		{
			name:    "management fee",
			cfg:     FeeConfig{ManagementFee: big.NewInt(100), PerformanceFee: big.NewInt(1000), MaxFee: big.NewInt(10000)},
			wantErr: ErrManagementFee,
		},
		{
			name:    "zero max fee",
			cfg:     FeeConfig{ManagementFee: big.NewInt(0), PerformanceFee: big.NewInt(1000), MaxFee: big.NewInt(0)},
			wantErr: ErrZeroMaxFee,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.PerformanceFeeBps()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
