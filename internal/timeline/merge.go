// Package timeline merges independently fetched vault event collections
// into one chronologically ordered account history.
package timeline

import (
	"errors"
	"fmt"
	"math/big"
	"slices"

	"github.com/mtlprog/vaultfee/internal/domain"
)

// ErrDuplicateEvent indicates two events share the same (block, logIndex) key.
var ErrDuplicateEvent = errors.New("duplicate event")

// ErrForeignTransfer indicates a transfer whose sender and receiver are both other accounts.
var ErrForeignTransfer = errors.New("transfer does not involve account")

// Merge converts indexer rows into events ordered by block number, then log index.
// Transfers are classified relative to account: sent by it is TransferOut,
// received by it is TransferIn.
func Merge(
	deposits []domain.DepositRecord,
	withdrawals []domain.WithdrawRecord,
	transfers []domain.TransferRecord,
	account domain.Address,
) ([]domain.Event, error) {
	events := make([]domain.Event, 0, len(deposits)+len(withdrawals)+len(transfers))

	for _, d := range deposits {
		e, err := depositEvent(d)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	for _, w := range withdrawals {
		e, err := withdrawEvent(w)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	for _, t := range transfers {
		e, err := transferEvent(t, account)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	slices.SortStableFunc(events, func(a, b domain.Event) int {
		return a.Key.Compare(b.Key)
	})

	for i := 1; i < len(events); i++ {
		if events[i-1].Key.Compare(events[i].Key) == 0 {
			return nil, fmt.Errorf("%w: %s and %s at block %d log %d",
				ErrDuplicateEvent, events[i-1].ID, events[i].ID, events[i].Key.Block, events[i].Key.LogIndex)
		}
	}

	return events, nil
}

func depositEvent(d domain.DepositRecord) (domain.Event, error) {
	key, err := domain.ParseEventID(d.ID)
	if err != nil {
		return domain.Event{}, fmt.Errorf("parsing deposit: %w", err)
	}
	assets, err := parseField(d.ID, "assets", string(d.Assets))
	if err != nil {
		return domain.Event{}, err
	}
	shares, err := parseField(d.ID, "shares", string(d.Shares))
	if err != nil {
		return domain.Event{}, err
	}

	return domain.Event{
		ID:   d.ID,
		Kind: domain.EventDeposit,
		Key:  key,
		Deposit: &domain.DepositPayload{
			Sender: domain.NormalizeAddress(d.Sender),
			Owner:  domain.NormalizeAddress(d.Owner),
			Assets: assets,
			Shares: shares,
		},
	}, nil
}

func withdrawEvent(w domain.WithdrawRecord) (domain.Event, error) {
	key, err := domain.ParseEventID(w.ID)
	if err != nil {
		return domain.Event{}, fmt.Errorf("parsing withdrawal: %w", err)
	}
	assets, err := parseField(w.ID, "assets", string(w.Assets))
	if err != nil {
		return domain.Event{}, err
	}
	shares, err := parseField(w.ID, "shares", string(w.Shares))
	if err != nil {
		return domain.Event{}, err
	}

	return domain.Event{
		ID:   w.ID,
		Kind: domain.EventWithdraw,
		Key:  key,
		Withdraw: &domain.WithdrawPayload{
			Sender:   domain.NormalizeAddress(w.Sender),
			Receiver: domain.NormalizeAddress(w.Receiver),
			Owner:    domain.NormalizeAddress(w.Owner),
			Assets:   assets,
			Shares:   shares,
		},
	}, nil
}

func transferEvent(t domain.TransferRecord, account domain.Address) (domain.Event, error) {
	key, err := domain.ParseEventID(t.ID)
	if err != nil {
		return domain.Event{}, fmt.Errorf("parsing transfer: %w", err)
	}
	value, err := parseField(t.ID, "value", string(t.Value))
	if err != nil {
		return domain.Event{}, err
	}

	var kind domain.EventKind
	switch {
	case account.Is(t.Sender):
		kind = domain.EventTransferOut
	case account.Is(t.Receiver):
		kind = domain.EventTransferIn
	default:
		return domain.Event{}, fmt.Errorf("%w: %s in event %s", ErrForeignTransfer, account, t.ID)
	}

	return domain.Event{
		ID:   t.ID,
		Kind: kind,
		Key:  key,
		Transfer: &domain.TransferPayload{
			Sender:   domain.NormalizeAddress(t.Sender),
			Receiver: domain.NormalizeAddress(t.Receiver),
			Value:    value,
		},
	}, nil
}

func parseField(id, field, value string) (*big.Int, error) {
	n, err := domain.ParseAmount(value)
	if err != nil {
		return nil, fmt.Errorf("parsing %s of event %s: %w", field, id, err)
	}
	return n, nil
}
