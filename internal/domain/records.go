package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Numeric is an indexer amount in base-10 string form. It decodes from a
// JSON string or a JSON number, since GraphQL numeric scalars may be either.
type Numeric string

func (n *Numeric) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Numeric(s)
		return nil
	}

	var num json.Number
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&num); err != nil {
		return fmt.Errorf("decoding numeric %s: %w", data, err)
	}
	*n = Numeric(num.String())
	return nil
}

// DepositRecord is a Deposit row as stored by the indexer.
type DepositRecord struct {
	ID     string  `json:"id"`
	Sender string  `json:"sender"`
	Owner  string  `json:"owner"`
	Assets Numeric `json:"assets"`
	Shares Numeric `json:"shares"`
}

// WithdrawRecord is a Withdraw row as stored by the indexer.
type WithdrawRecord struct {
	ID       string  `json:"id"`
	Sender   string  `json:"sender"`
	Receiver string  `json:"receiver"`
	Owner    string  `json:"owner"`
	Assets   Numeric `json:"assets"`
	Shares   Numeric `json:"shares"`
}

// TransferRecord is a share Transfer row as stored by the indexer.
type TransferRecord struct {
	ID       string  `json:"id"`
	Sender   string  `json:"sender"`
	Receiver string  `json:"receiver"`
	Value    Numeric `json:"value"`
}
