// REST client for the Tradier brokerage API (balance only). Plain bearer
// token authentication.
package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

const tradierDefaultBaseURL = "https://api.tradier.com"

type TradierClient struct {
	token     string
	accountID string
	http      *resty.Client
}

func NewTradierClient(token, accountID, baseURL string) *TradierClient {
	if baseURL == "" {
		baseURL = tradierDefaultBaseURL
	}

	return &TradierClient{
		token:     token,
		accountID: accountID,
		http:      newHTTPClient(baseURL),
	}
}

type tradierBalancesResponse struct {
	Balances struct {
		TotalEquity float64 `json:"total_equity"`
	} `json:"balances"`
}

// GetBalance returns the account total equity.
func (c *TradierClient) GetBalance(ctx context.Context) (float64, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.token).
		SetHeader("Accept", "application/json").
		Get(fmt.Sprintf("/v1/accounts/%s/balances", c.accountID))
	if err != nil {
		return 0, fmt.Errorf("tradier request failed: %w", err)
	}

	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		return 0, fmt.Errorf("tradier: %w", ErrUnauthorized)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("tradier HTTP %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var out tradierBalancesResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return 0, fmt.Errorf("tradier response decode failed: %w", err)
	}

	return out.Balances.TotalEquity, nil
}
