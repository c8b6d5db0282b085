// Package brokerage provides a typed HTTP client for the Wallbit
// brokerage REST API: key validation, balances, positions, asset lookup
// and trade execution.
package brokerage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradebit/internal/types"
	"golang.org/x/time/rate"
)

// APIError represents a non-2xx response from the brokerage. It carries
// the numeric HTTP status so callers can branch on 401/403 versus
// transient server errors.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsAuthError reports whether the error is a brokerage authentication
// rejection (401 or 403).
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}

// Balance represents a checking account balance
type Balance struct {
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}

// StockPosition represents one invested position
type StockPosition struct {
	Symbol     string          `json:"symbol"`
	Shares     decimal.Decimal `json:"shares"`
	USDBalance decimal.Decimal `json:"usdBalance"`
}

// Asset represents asset details for a ticker
type Asset struct {
	Symbol      string          `json:"symbol"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Sector      string          `json:"sector"`
	MarketCap   decimal.Decimal `json:"marketCap"`
	Description string          `json:"description"`
}

// TradeRequest is the trade execution wire format. The copy-trade
// engine only sends MARKET orders by amount; the remaining fields model
// the full brokerage surface.
type TradeRequest struct {
	Symbol      string            `json:"symbol"`
	Direction   types.TradeAction `json:"direction"`
	Currency    string            `json:"currency"`
	OrderType   types.OrderType   `json:"order_type"`
	Amount      *decimal.Decimal  `json:"amount,omitempty"`
	Shares      *decimal.Decimal  `json:"shares,omitempty"`
	LimitPrice  *decimal.Decimal  `json:"limit_price,omitempty"`
	StopPrice   *decimal.Decimal  `json:"stop_price,omitempty"`
	TimeInForce string            `json:"time_in_force,omitempty"`
}

// TradeResponse is the brokerage's trade execution result
type TradeResponse struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Symbol    string          `json:"symbol"`
	Direction string          `json:"direction"`
	Amount    decimal.Decimal `json:"amount"`
	Shares    decimal.Decimal `json:"shares"`
}

// Client issues authenticated requests against the brokerage API
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient creates a brokerage client. The timeout bounds every
// request so an unresponsive brokerage cannot hold a pending copy-trade
// attempt indefinitely; requestsPerSecond throttles outbound calls.
func NewClient(baseURL string, timeout time.Duration, requestsPerSecond float64) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 10
	}

	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(requestsPerSecond)),
	}
}

// do issues one HTTP call with the API key attached as a header and
// decodes the JSON response into out. Non-2xx bodies are treated as
// opaque error text.
func (c *Client) do(ctx context.Context, apiKey, method, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-Key", apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("brokerage request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := "Unknown error"
		if raw, readErr := io.ReadAll(resp.Body); readErr == nil && len(raw) > 0 {
			msg = string(raw)
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Wallbit API error %d: %s", resp.StatusCode, msg),
		}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// ValidateKey probes the checking balance endpoint with the given key.
// A 401/403 translates to false rather than an error; every other
// failure propagates. This is the only operation that swallows an auth
// rejection, because it is used as a pure authorization probe.
func (c *Client) ValidateKey(ctx context.Context, apiKey string) (bool, error) {
	var balances []Balance
	err := c.do(ctx, apiKey, http.MethodGet, "/api/public/v1/balance/checking", nil, &balances)
	if err != nil {
		if IsAuthError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetCheckingBalance fetches cash balances
func (c *Client) GetCheckingBalance(ctx context.Context, apiKey string) ([]Balance, error) {
	var balances []Balance
	if err := c.do(ctx, apiKey, http.MethodGet, "/api/public/v1/balance/checking", nil, &balances); err != nil {
		return nil, err
	}
	return balances, nil
}

// GetStockPositions fetches the user's invested stock positions
func (c *Client) GetStockPositions(ctx context.Context, apiKey string) ([]StockPosition, error) {
	var positions []StockPosition
	if err := c.do(ctx, apiKey, http.MethodGet, "/api/public/v1/balance/stocks", nil, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

// GetAsset fetches details for a single ticker
func (c *Client) GetAsset(ctx context.Context, apiKey, symbol string) (*Asset, error) {
	var asset Asset
	path := "/api/public/v1/assets/" + url.PathEscape(symbol)
	if err := c.do(ctx, apiKey, http.MethodGet, path, nil, &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

// ExecuteTrade submits a trade order
func (c *Client) ExecuteTrade(ctx context.Context, apiKey string, trade *TradeRequest) (*TradeResponse, error) {
	var result TradeResponse
	if err := c.do(ctx, apiKey, http.MethodPost, "/api/public/v1/trades", trade, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
