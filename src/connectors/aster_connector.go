// REST client for the Aster DEX perpetual futures API.
// Signing follows the binance-style scheme: HMAC-SHA256 over the
// timestamped query string, key passed in the X-MBX-APIKEY header.
package connectors

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const asterDefaultBaseURL = "https://fapi.asterdex.com"

type AsterClient struct {
	apiKey    string
	apiSecret string
	http      *resty.Client
}

func NewAsterClient(apiKey, apiSecret, baseURL string) *AsterClient {
	if baseURL == "" {
		baseURL = asterDefaultBaseURL
	}

	return &AsterClient{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http:      newHTTPClient(baseURL),
	}
}

// AsterAccount is the subset of /fapi/v4/account this service consumes.
// All numeric fields arrive as strings.
type AsterAccount struct {
	TotalWalletBalance    string          `json:"totalWalletBalance"`
	TotalUnrealizedProfit string          `json:"totalUnrealizedProfit"`
	AvailableBalance      string          `json:"availableBalance"`
	Positions             []AsterPosition `json:"positions"`
}

type AsterPosition struct {
	Symbol           string `json:"symbol"`
	PositionSide     string `json:"positionSide"`
	PositionAmt      string `json:"positionAmt"`
	EntryPrice       string `json:"entryPrice"`
	MarkPrice        string `json:"markPrice"`
	Notional         string `json:"notional"`
	UnrealizedProfit string `json:"unrealizedProfit"`
}

func signAsterQuery(query, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// GetAccount fetches account balances and all positions in one call.
func (c *AsterClient) GetAccount(ctx context.Context) (*AsterAccount, error) {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	query := "timestamp=" + timestamp
	signature := signAsterQuery(query, c.apiSecret)

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-MBX-APIKEY", c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetQueryString(query + "&signature=" + signature).
		Get("/fapi/v4/account")
	if err != nil {
		return nil, fmt.Errorf("aster account request failed: %w", err)
	}

	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		return nil, fmt.Errorf("aster: %w", ErrUnauthorized)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("aster HTTP %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var account AsterAccount
	if err := json.Unmarshal(resp.Body(), &account); err != nil {
		return nil, fmt.Errorf("aster account decode failed: %w", err)
	}

	return &account, nil
}

// GetBalance returns the total wallet balance in USD.
func (c *AsterClient) GetBalance(ctx context.Context) (float64, error) {
	account, err := c.GetAccount(ctx)
	if err != nil {
		return 0, err
	}

	balance, err := strconv.ParseFloat(account.TotalWalletBalance, 64)
	if err != nil {
		return 0, fmt.Errorf("aster invalid balance %q: %w", account.TotalWalletBalance, err)
	}
	return balance, nil
}
