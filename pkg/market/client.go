// Package market fetches pool snapshots from the DEX indexer and derives the
// token list and USD prices the swap form is fed with.
package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"reef-swap/pkg/pool"
	"reef-swap/pkg/types"
)

const allPoolsQuery = `query allPools {
  allPools {
    address
    token1
    token2
    reserved1
    reserved2
    decimals1
    decimals2
    name1
    name2
    symbol1
    symbol2
    iconUrl1
    iconUrl2
  }
}`

// DefaultTimeout bounds a single indexer request
const DefaultTimeout = 15 * time.Second

// PoolRecord is a pool as returned by the indexer
type PoolRecord struct {
	Address   string `json:"address"`
	Token1    string `json:"token1"`
	Token2    string `json:"token2"`
	Reserved1 string `json:"reserved1"`
	Reserved2 string `json:"reserved2"`
	Decimals1 int32  `json:"decimals1"`
	Decimals2 int32  `json:"decimals2"`
	Name1     string `json:"name1"`
	Name2     string `json:"name2"`
	Symbol1   string `json:"symbol1"`
	Symbol2   string `json:"symbol2"`
	IconURL1  string `json:"iconUrl1"`
	IconURL2  string `json:"iconUrl2"`
}

// ToPool converts the record into a canonical pool snapshot
func (r PoolRecord) ToPool() types.Pool {
	return pool.Canonicalize(types.Pool{
		Token1: types.Token{
			Address:  r.Token1,
			Symbol:   r.Symbol1,
			Name:     r.Name1,
			Decimals: r.Decimals1,
			IconURL:  r.IconURL1,
		},
		Token2: types.Token{
			Address:  r.Token2,
			Symbol:   r.Symbol2,
			Name:     r.Name2,
			Decimals: r.Decimals2,
			IconURL:  r.IconURL2,
		},
		Reserve1:        r.Reserved1,
		Reserve2:        r.Reserved2,
		TotalSupply:     "0",
		PoolAddress:     r.Address,
		UserPoolBalance: "0",
	})
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type allPoolsResponse struct {
	Data struct {
		AllPools []PoolRecord `json:"allPools"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

// Client queries the DEX indexer over GraphQL
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an indexer client. A nil httpClient uses one with
// DefaultTimeout.
func NewClient(endpoint string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: httpClient,
		logger:     logger.With("component", "market"),
	}
}

// AllPools retrieves every pool with its reserves
func (c *Client) AllPools(ctx context.Context) ([]types.Pool, error) {
	var resp allPoolsResponse
	if err := c.do(ctx, graphqlRequest{Query: allPoolsQuery, Variables: map[string]interface{}{}}, &resp); err != nil {
		return nil, fmt.Errorf("failed to get pools: %w", err)
	}
	if len(resp.Errors) > 0 {
		messages := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			messages = append(messages, e.Message)
		}
		return nil, fmt.Errorf("indexer error: %s", strings.Join(messages, "; "))
	}

	pools := make([]types.Pool, 0, len(resp.Data.AllPools))
	for _, r := range resp.Data.AllPools {
		pools = append(pools, r.ToPool())
	}
	c.logger.Debug("pools fetched", "count", len(pools))
	return pools, nil
}

func (c *Client) do(ctx context.Context, body graphqlRequest, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	// Check for successful status codes (200-299)
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		if len(data) > 0 {
			return fmt.Errorf("indexer returned status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(data)))
		}
		return fmt.Errorf("indexer returned status code %d", httpResp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
