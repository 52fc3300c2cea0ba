package eventstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mtlprog/vaultfee/internal/domain"
)

// ErrGraphQL indicates the endpoint answered with a GraphQL errors array.
var ErrGraphQL = errors.New("graphql error")

// DefaultPageSize matches the row cap of hosted indexer endpoints.
const DefaultPageSize = 1000

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 500 * time.Millisecond
)

// GraphQLStore queries a Hasura-style GraphQL endpoint of the indexer.
type GraphQLStore struct {
	url        string
	password   string
	pageSize   int
	maxRetries int
	baseDelay  time.Duration
	httpClient *http.Client
}

// NewGraphQLStore creates a store for the endpoint at url. When password is
// non-empty requests carry HTTP basic auth with an empty user name.
func NewGraphQLStore(url, password string, timeout time.Duration) *GraphQLStore {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GraphQLStore{
		url:        url,
		password:   password,
		pageSize:   DefaultPageSize,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		httpClient: &http.Client{Timeout: timeout},
	}
}

const depositFields = `id sender owner assets shares`
const withdrawFields = `id sender receiver owner assets shares`
const transferFields = `id sender receiver value`

func (s *GraphQLStore) Deposits(ctx context.Context, owner, vault domain.Address) ([]domain.DepositRecord, error) {
	query := ownerQuery("Deposit", depositFields, vault != "")
	var out []domain.DepositRecord
	err := s.paginate(ctx, query, ownerVars(owner, vault), func(data json.RawMessage) (int, error) {
		var page struct {
			Deposit []domain.DepositRecord `json:"Deposit"`
		}
		if err := json.Unmarshal(data, &page); err != nil {
			return 0, err
		}
		out = append(out, page.Deposit...)
		return len(page.Deposit), nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching deposits: %w", err)
	}
	return out, nil
}

func (s *GraphQLStore) Withdrawals(ctx context.Context, owner, vault domain.Address) ([]domain.WithdrawRecord, error) {
	query := ownerQuery("Withdraw", withdrawFields, vault != "")
	var out []domain.WithdrawRecord
	err := s.paginate(ctx, query, ownerVars(owner, vault), func(data json.RawMessage) (int, error) {
		var page struct {
			Withdraw []domain.WithdrawRecord `json:"Withdraw"`
		}
		if err := json.Unmarshal(data, &page); err != nil {
			return 0, err
		}
		out = append(out, page.Withdraw...)
		return len(page.Withdraw), nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching withdrawals: %w", err)
	}
	return out, nil
}

// Transfers returns share transfers sent or received by account, excluding
// mints and burns (transfers from or to the zero address).
func (s *GraphQLStore) Transfers(ctx context.Context, account, vault domain.Address) ([]domain.TransferRecord, error) {
	query := transferQuery(vault != "")
	vars := ownerVars(account, vault)
	vars["zeroAddress"] = domain.ZeroAddress.String()

	var out []domain.TransferRecord
	err := s.paginate(ctx, query, vars, func(data json.RawMessage) (int, error) {
		var page struct {
			From []domain.TransferRecord `json:"transfersFrom"`
			To   []domain.TransferRecord `json:"transfersTo"`
		}
		if err := json.Unmarshal(data, &page); err != nil {
			return 0, err
		}
		out = append(out, page.From...)
		out = append(out, page.To...)
		return max(len(page.From), len(page.To)), nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching transfers: %w", err)
	}
	return cleanTransfers(out), nil
}

func ownerVars(owner, vault domain.Address) map[string]any {
	vars := map[string]any{"depositorAddress": owner.String()}
	if vault != "" {
		vars["vaultAddress"] = vault.String()
	}
	return vars
}

func ownerQuery(entity, fields string, byVault bool) string {
	params := `$depositorAddress: String!, $limit: Int!, $offset: Int!`
	where := `owner: { _eq: $depositorAddress }`
	if byVault {
		params += `, $vaultAddress: String!`
		where += ` vaultAddress: { _eq: $vaultAddress }`
	}
	return fmt.Sprintf(`query Get%[1]s(%[2]s) {
  %[1]s(where: { %[3]s }, order_by: { id: asc }, limit: $limit, offset: $offset) { %[4]s }
}`, entity, params, where, fields)
}

func transferQuery(byVault bool) string {
	params := `$depositorAddress: String!, $zeroAddress: String!, $limit: Int!, $offset: Int!`
	vaultFilter := ""
	if byVault {
		params += `, $vaultAddress: String!`
		vaultFilter = ` vaultAddress: { _eq: $vaultAddress }`
	}
	return fmt.Sprintf(`query GetTransfers(%[1]s) {
  transfersFrom: Transfer(where: { sender: { _eq: $depositorAddress } receiver: { _neq: $zeroAddress }%[2]s }, order_by: { id: asc }, limit: $limit, offset: $offset) { %[3]s }
  transfersTo: Transfer(where: { receiver: { _eq: $depositorAddress } sender: { _neq: $zeroAddress }%[2]s }, order_by: { id: asc }, limit: $limit, offset: $offset) { %[3]s }
}`, params, vaultFilter, transferFields)
}

// paginate runs query with increasing offsets until a page returns fewer
// than pageSize rows. consume decodes one page and returns its row count.
func (s *GraphQLStore) paginate(ctx context.Context, query string, vars map[string]any, consume func(json.RawMessage) (int, error)) error {
	for offset := 0; ; offset += s.pageSize {
		pageVars := make(map[string]any, len(vars)+2)
		for k, v := range vars {
			pageVars[k] = v
		}
		pageVars["limit"] = s.pageSize
		pageVars["offset"] = offset

		data, err := s.do(ctx, query, pageVars)
		if err != nil {
			return err
		}
		n, err := consume(data)
		if err != nil {
			return fmt.Errorf("decoding page at offset %d: %w", offset, err)
		}
		if n < s.pageSize {
			return nil
		}
	}
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

func (s *GraphQLStore) do(ctx context.Context, query string, vars map[string]any) (json.RawMessage, error) {
	payload, err := json.Marshal(map[string]any{"query": query, "variables": vars})
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}

	body, err := s.post(ctx, payload)
	if err != nil {
		return nil, err
	}

	var out graphQLResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrGraphQL, out.Errors[0].Message)
	}
	return out.Data, nil
}

// post sends payload, retrying transport failures and HTTP 429 with
// exponential backoff.
func (s *GraphQLStore) post(ctx context.Context, payload []byte) ([]byte, error) {
	var lastErr error
	for attempt := range s.maxRetries + 1 {
		if attempt > 0 {
			delay := s.baseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if s.password != "" {
			req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(":"+s.password)))
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("executing request (attempt %d/%d): %w", attempt+1, s.maxRetries+1, err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			return body, nil
		case http.StatusTooManyRequests:
			lastErr = fmt.Errorf("HTTP 429 at %s (attempt %d/%d)", s.url, attempt+1, s.maxRetries+1)
			continue
		default:
			return nil, fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, s.url, string(body))
		}
	}

	return nil, lastErr
}
