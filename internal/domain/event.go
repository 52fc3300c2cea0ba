package domain

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// ErrMalformedEventID indicates an indexer id that does not encode (chain, block, logIndex).
var ErrMalformedEventID = errors.New("malformed event id")

// ErrUnknownEventKind is returned by exhaustive switches over EventKind.
var ErrUnknownEventKind = errors.New("unknown event kind")

// EventKind discriminates the Event union.
type EventKind string

const (
	EventDeposit     EventKind = "deposit"
	EventWithdraw    EventKind = "withdraw"
	EventTransferIn  EventKind = "transfer_in"
	EventTransferOut EventKind = "transfer_out"
)

// Label is the human name used in reports.
func (k EventKind) Label() string {
	switch k {
	case EventDeposit:
		return "Deposit"
	case EventWithdraw:
		return "Withdraw"
	case EventTransferIn:
		return "Transfer IN"
	case EventTransferOut:
		return "Transfer OUT"
	default:
		return string(k)
	}
}

// EventKey orders events within a vault's history.
type EventKey struct {
	ChainID  uint64 `json:"chainId"`
	Block    uint64 `json:"block"`
	LogIndex uint64 `json:"logIndex"`
}

// Compare orders keys by block, then log index.
func (k EventKey) Compare(o EventKey) int {
	switch {
	case k.Block < o.Block:
		return -1
	case k.Block > o.Block:
		return 1
	case k.LogIndex < o.LogIndex:
		return -1
	case k.LogIndex > o.LogIndex:
		return 1
	default:
		return 0
	}
}

func (k EventKey) String() string {
	return fmt.Sprintf("%d_%d_%d", k.ChainID, k.Block, k.LogIndex)
}

// ParseEventID parses "{chainId}_{blockNumber}_{logIndex}".
func ParseEventID(id string) (EventKey, error) {
	parts := strings.Split(id, "_")
	if len(parts) != 3 {
		return EventKey{}, fmt.Errorf("%w: %q", ErrMalformedEventID, id)
	}

	chainID, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return EventKey{}, fmt.Errorf("%w: chain id in %q", ErrMalformedEventID, id)
	}
	block, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return EventKey{}, fmt.Errorf("%w: block number in %q", ErrMalformedEventID, id)
	}
	logIndex, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return EventKey{}, fmt.Errorf("%w: log index in %q", ErrMalformedEventID, id)
	}

	return EventKey{ChainID: chainID, Block: block, LogIndex: logIndex}, nil
}

// DepositPayload is the body of an ERC-4626 Deposit event.
type DepositPayload struct {
	Sender Address
	Owner  Address
	Assets *big.Int
	Shares *big.Int
}

// WithdrawPayload is the body of an ERC-4626 Withdraw event.
type WithdrawPayload struct {
	Sender   Address
	Receiver Address
	Owner    Address
	Assets   *big.Int
	Shares   *big.Int
}

// TransferPayload is the body of a share Transfer event.
type TransferPayload struct {
	Sender   Address
	Receiver Address
	Value    *big.Int
}

// Event is one entry of the account timeline. Exactly one payload is set,
// matching Kind: Deposit for EventDeposit, Withdraw for EventWithdraw,
// Transfer for both transfer directions.
type Event struct {
	ID       string
	Kind     EventKind
	Key      EventKey
	Deposit  *DepositPayload
	Withdraw *WithdrawPayload
	Transfer *TransferPayload
}

// ShareDelta returns the signed change this event applies to the share balance.
func (e Event) ShareDelta() (*big.Int, error) {
	switch e.Kind {
	case EventDeposit:
		return new(big.Int).Set(e.Deposit.Shares), nil
	case EventWithdraw:
		return new(big.Int).Neg(e.Withdraw.Shares), nil
	case EventTransferIn:
		return new(big.Int).Set(e.Transfer.Value), nil
	case EventTransferOut:
		return new(big.Int).Neg(e.Transfer.Value), nil
	default:
		return nil, fmt.Errorf("%w: %q in event %s", ErrUnknownEventKind, e.Kind, e.ID)
	}
}

// Shares returns the unsigned share amount moved by the event.
func (e Event) Shares() *big.Int {
	switch e.Kind {
	case EventDeposit:
		return e.Deposit.Shares
	case EventWithdraw:
		return e.Withdraw.Shares
	case EventTransferIn, EventTransferOut:
		return e.Transfer.Value
	}
	return new(big.Int)
}

// Assets returns the asset amount for deposits and withdrawals, nil for transfers.
func (e Event) Assets() *big.Int {
	switch e.Kind {
	case EventDeposit:
		return e.Deposit.Assets
	case EventWithdraw:
		return e.Withdraw.Assets
	}
	return nil
}
