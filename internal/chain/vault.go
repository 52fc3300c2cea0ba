package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/mtlprog/vaultfee/internal/domain"
)

// blockTimeSampleSpan is how far back the average block time is measured.
const blockTimeSampleSpan = 1000

// VaultReader reads ERC-4626 vault state and its accountant's fee configuration.
type VaultReader struct {
	caller Caller
	vault  domain.Address
	now    func() time.Time

	mu         sync.Mutex
	timestamps map[uint64]time.Time
	blockTime  time.Duration
}

// NewVaultReader creates a reader for vault.
func NewVaultReader(caller Caller, vault domain.Address) *VaultReader {
	if caller == nil {
		panic("chain.NewVaultReader: caller must not be nil")
	}
	return &VaultReader{
		caller:     caller,
		vault:      vault,
		now:        time.Now,
		timestamps: make(map[uint64]time.Time),
	}
}

// Vault returns the vault address.
func (r *VaultReader) Vault() domain.Address {
	return r.vault
}

func (r *VaultReader) ethCall(ctx context.Context, to domain.Address, data string, block *uint64) (string, error) {
	var out string
	params := []any{
		map[string]string{"to": to.String(), "data": data},
		blockTag(block),
	}
	if err := r.caller.Call(ctx, "eth_call", params, &out); err != nil {
		return "", err
	}
	return out, nil
}

func (r *VaultReader) callUint(ctx context.Context, to domain.Address, data string, block *uint64) (*big.Int, error) {
	out, err := r.ethCall(ctx, to, data, block)
	if err != nil {
		return nil, err
	}
	return decodeUint(out)
}

// PricePerShareAt returns pricePerShare() at a historical block.
func (r *VaultReader) PricePerShareAt(ctx context.Context, block uint64) (*big.Int, error) {
	pps, err := r.callUint(ctx, r.vault, selectorPricePerShare, &block)
	if err != nil {
		return nil, fmt.Errorf("reading pricePerShare at block %d: %w", block, err)
	}
	return pps, nil
}

// CurrentPricePerShare returns pricePerShare() at the latest block.
func (r *VaultReader) CurrentPricePerShare(ctx context.Context) (*big.Int, error) {
	pps, err := r.callUint(ctx, r.vault, selectorPricePerShare, nil)
	if err != nil {
		return nil, fmt.Errorf("reading current pricePerShare: %w", err)
	}
	return pps, nil
}

// Decimals returns the vault share decimals.
func (r *VaultReader) Decimals(ctx context.Context) (uint8, error) {
	d, err := r.callUint(ctx, r.vault, selectorDecimals, nil)
	if err != nil {
		return 0, fmt.Errorf("reading decimals: %w", err)
	}
	if !d.IsUint64() || d.Uint64() > 77 {
		return 0, fmt.Errorf("reading decimals: implausible value %s", d)
	}
	return uint8(d.Uint64()), nil
}

// Asset returns the vault's underlying asset address.
func (r *VaultReader) Asset(ctx context.Context) (domain.Address, error) {
	out, err := r.ethCall(ctx, r.vault, selectorAsset, nil)
	if err != nil {
		return "", fmt.Errorf("reading asset: %w", err)
	}
	addr, err := decodeAddress(out)
	if err != nil {
		return "", fmt.Errorf("reading asset: %w", err)
	}
	return addr, nil
}

// AssetSymbol returns the symbol() of the underlying asset.
func (r *VaultReader) AssetSymbol(ctx context.Context) (string, error) {
	asset, err := r.Asset(ctx)
	if err != nil {
		return "", err
	}
	out, err := r.ethCall(ctx, asset, selectorSymbol, nil)
	if err != nil {
		return "", fmt.Errorf("reading symbol of %s: %w", asset, err)
	}
	symbol, err := decodeString(out)
	if err != nil {
		return "", fmt.Errorf("reading symbol of %s: %w", asset, err)
	}
	return symbol, nil
}

// Validate checks that the address answers the vault interface:
// asset(), decimals() and pricePerShare().
func (r *VaultReader) Validate(ctx context.Context) error {
	if _, err := r.Asset(ctx); err != nil {
		return fmt.Errorf("validating vault %s: %w", r.vault, err)
	}
	if _, err := r.Decimals(ctx); err != nil {
		return fmt.Errorf("validating vault %s: %w", r.vault, err)
	}
	if _, err := r.CurrentPricePerShare(ctx); err != nil {
		return fmt.Errorf("validating vault %s: %w", r.vault, err)
	}
	return nil
}

// FeeConfig reads accountant() from the vault, then getVaultConfig(vault)
// from the accountant, at block or at the latest block when nil.
func (r *VaultReader) FeeConfig(ctx context.Context, block *uint64) (FeeConfig, error) {
	out, err := r.ethCall(ctx, r.vault, selectorAccountant, block)
	if err != nil {
		return FeeConfig{}, fmt.Errorf("reading accountant: %w", err)
	}
	accountant, err := decodeAddress(out)
	if err != nil {
		return FeeConfig{}, fmt.Errorf("reading accountant: %w", err)
	}

	out, err = r.ethCall(ctx, accountant, selectorGetVaultConfig+r.vault.Word(), block)
	if err != nil {
		return FeeConfig{}, fmt.Errorf("reading fee config from %s: %w", accountant, err)
	}
	cfg, err := decodeFeeConfig(out)
	if err != nil {
		return FeeConfig{}, err
	}
	cfg.Accountant = accountant
	return cfg, nil
}

// PerformanceFeeBps returns the performance fee in basis points of profit.
// It fails when a management fee is configured or max fee is zero.
func (r *VaultReader) PerformanceFeeBps(ctx context.Context, block *uint64) (int, error) {
	cfg, err := r.FeeConfig(ctx, block)
	if err != nil {
		return 0, err
	}
	return cfg.PerformanceFeeBps()
}

// LatestBlock returns the current head block number.
func (r *VaultReader) LatestBlock(ctx context.Context) (uint64, error) {
	var out string
	if err := r.caller.Call(ctx, "eth_blockNumber", nil, &out); err != nil {
		return 0, fmt.Errorf("reading block number: %w", err)
	}
	return decodeQuantity(out)
}

type blockHeader struct {
	Number    string `json:"number"`
	Timestamp string `json:"timestamp"`
}

func (r *VaultReader) header(ctx context.Context, tag string) (blockHeader, error) {
	var h *blockHeader
	if err := r.caller.Call(ctx, "eth_getBlockByNumber", []any{tag, false}, &h); err != nil {
		return blockHeader{}, err
	}
	if h == nil {
		return blockHeader{}, fmt.Errorf("block %s not found", tag)
	}
	return *h, nil
}

// BlockTimestamp returns the timestamp of block. When the block cannot be read,
// it is estimated from the head block and the average block time; the
// estimate is flagged by estimated=true. Results are memoized.
func (r *VaultReader) BlockTimestamp(ctx context.Context, block uint64) (ts time.Time, estimated bool, err error) {
	r.mu.Lock()
	if cached, ok := r.timestamps[block]; ok {
		r.mu.Unlock()
		return cached, false, nil
	}
	r.mu.Unlock()

	h, err := r.header(ctx, encodeQuantity(block))
	if err == nil {
		var secs uint64
		secs, err = decodeQuantity(h.Timestamp)
		if err == nil {
			ts = time.Unix(int64(secs), 0).UTC()
			r.mu.Lock()
			r.timestamps[block] = ts
			r.mu.Unlock()
			return ts, false, nil
		}
	}

	slog.Warn("block timestamp unavailable, estimating", "block", block, "error", err)
	ts, estErr := r.estimateTimestamp(ctx, block)
	if estErr != nil {
		return time.Time{}, false, fmt.Errorf("estimating timestamp of block %d: %w", block, estErr)
	}
	return ts, true, nil
}

func (r *VaultReader) estimateTimestamp(ctx context.Context, block uint64) (time.Time, error) {
	head, err := r.LatestBlock(ctx)
	if err != nil {
		return time.Time{}, err
	}
	blockTime, err := r.averageBlockTime(ctx)
	if err != nil {
		return time.Time{}, err
	}

	var diff uint64
	if head > block {
		diff = head - block
	}
	return r.now().UTC().Add(-time.Duration(diff) * blockTime), nil
}

// averageBlockTime measures block time over the last blockTimeSampleSpan blocks.
func (r *VaultReader) averageBlockTime(ctx context.Context) (time.Duration, error) {
	r.mu.Lock()
	cached := r.blockTime
	r.mu.Unlock()
	if cached > 0 {
		return cached, nil
	}

	latest, err := r.header(ctx, "latest")
	if err != nil {
		return 0, err
	}
	latestNum, err := decodeQuantity(latest.Number)
	if err != nil {
		return 0, err
	}
	if latestNum == 0 {
		return 0, fmt.Errorf("chain has no history to sample")
	}
	sampleNum := latestNum - min(latestNum, blockTimeSampleSpan)

	older, err := r.header(ctx, encodeQuantity(sampleNum))
	if err != nil {
		return 0, err
	}
	latestTime, err := decodeQuantity(latest.Timestamp)
	if err != nil {
		return 0, err
	}
	olderTime, err := decodeQuantity(older.Timestamp)
	if err != nil {
		return 0, err
	}
	if latestTime <= olderTime {
		return 0, fmt.Errorf("non-increasing block timestamps %d..%d", olderTime, latestTime)
	}

	avg := time.Duration(latestTime-olderTime) * time.Second / time.Duration(latestNum-sampleNum)
	r.mu.Lock()
	r.blockTime = avg
	r.mu.Unlock()
	return avg, nil
}
