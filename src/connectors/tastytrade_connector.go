// REST client for the Tastytrade API. Uses the OAuth2 client-credentials
// flow; the access token is cached and refreshed shortly before expiry.
package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const tastytradeDefaultBaseURL = "https://api.tastytrade.com"

type TastytradeClient struct {
	clientID     string
	clientSecret string
	accountID    string
	http         *resty.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewTastytradeClient(clientID, clientSecret, accountID, baseURL string) *TastytradeClient {
	if baseURL == "" {
		baseURL = tastytradeDefaultBaseURL
	}

	return &TastytradeClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		accountID:    accountID,
		http:         newHTTPClient(baseURL),
	}
}

// TastytradePosition mirrors the fields of the positions endpoint this
// service consumes. Tastytrade does not expose a live quote here, so the
// average open price doubles as the current price downstream.
type TastytradePosition struct {
	Symbol           string  `json:"symbol"`
	InstrumentType   string  `json:"instrument_type"`
	UnderlyingSymbol string  `json:"underlying_symbol"`
	Quantity         float64 `json:"quantity"`
	AveragePrice     float64 `json:"average_price"`
	MarketValue      float64 `json:"market_value"`
	UnrealizedPnl    float64 `json:"unrealized_pnl"`
}

type tastytradePositionsResponse struct {
	Data struct {
		Items []TastytradePosition `json:"items"`
	} `json:"data"`
}

type tastytradeTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type tastytradeBalanceResponse struct {
	Data struct {
		NetLiquidatingValue float64 `json:"net_liquidating_value"`
	} `json:"data"`
}

func (c *TastytradeClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     c.clientID,
			"client_secret": c.clientSecret,
		}).
		Post("/oauth/token")
	if err != nil {
		return "", fmt.Errorf("tastytrade token request failed: %w", err)
	}

	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		return "", fmt.Errorf("tastytrade: %w", ErrUnauthorized)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("tastytrade token HTTP %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var token tastytradeTokenResponse
	if err := json.Unmarshal(resp.Body(), &token); err != nil {
		return "", fmt.Errorf("tastytrade token decode failed: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("tastytrade: %w", ErrUnauthorized)
	}

	c.accessToken = token.AccessToken
	// Refresh one minute early so in-flight requests never race expiry.
	c.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn)*time.Second - time.Minute)

	return c.accessToken, nil
}

func (c *TastytradeClient) get(ctx context.Context, path string, out interface{}) error {
	accessToken, err := c.token(ctx)
	if err != nil {
		return err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+accessToken).
		SetHeader("Content-Type", "application/json").
		Get(path)
	if err != nil {
		return fmt.Errorf("tastytrade request failed: %w", err)
	}

	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		return fmt.Errorf("tastytrade: %w", ErrUnauthorized)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("tastytrade HTTP %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("tastytrade response decode failed: %w", err)
	}
	return nil
}

// GetPositions returns all positions with a non-zero quantity.
func (c *TastytradeClient) GetPositions(ctx context.Context) ([]TastytradePosition, error) {
	var out tastytradePositionsResponse
	path := fmt.Sprintf("/accounts/%s/positions", c.accountID)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}

	active := make([]TastytradePosition, 0, len(out.Data.Items))
	for _, item := range out.Data.Items {
		if item.Quantity != 0 {
			active = append(active, item)
		}
	}
	return active, nil
}

// GetBalance returns the account net liquidating value.
func (c *TastytradeClient) GetBalance(ctx context.Context) (float64, error) {
	var out tastytradeBalanceResponse
	path := fmt.Sprintf("/accounts/%s/balances", c.accountID)
	if err := c.get(ctx, path, &out); err != nil {
		return 0, err
	}
	return out.Data.NetLiquidatingValue, nil
}
