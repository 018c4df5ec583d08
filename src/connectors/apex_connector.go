// REST client for the ApeX Omni exchange (balance only). Signs
// timestamp+method+path with HMAC-SHA256 and sends key, signature,
// timestamp and passphrase as APEX-* headers.
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

const apexDefaultBaseURL = "https://omni.apex.exchange"

type ApexClient struct {
	apiKey     string
	apiSecret  string
	passphrase string
	http       *resty.Client
}

func NewApexClient(apiKey, apiSecret, passphrase, baseURL string) *ApexClient {
	if baseURL == "" {
		baseURL = apexDefaultBaseURL
	}

	return &ApexClient{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		passphrase: passphrase,
		http:       newHTTPClient(baseURL),
	}
}

type apexBalanceResponse struct {
	TotalEquityValue string `json:"totalEquityValue"`
	AvailableBalance string `json:"availableBalance"`
}

// GetBalance returns the account total equity value in USD.
func (c *ApexClient) GetBalance(ctx context.Context) (float64, error) {
	const path = "/api/v3/account-balance"

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	prehash := timestamp + http.MethodGet + path
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(prehash))
	signature := hex.EncodeToString(mac.Sum(nil))

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("APEX-API-KEY", c.apiKey).
		SetHeader("APEX-SIGNATURE", signature).
		SetHeader("APEX-TIMESTAMP", timestamp).
		SetHeader("APEX-PASSPHRASE", c.passphrase).
		SetHeader("Accept", "application/json").
		Get(path)
	if err != nil {
		return 0, fmt.Errorf("apex request failed: %w", err)
	}

	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		return 0, fmt.Errorf("apex: %w", ErrUnauthorized)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("apex HTTP %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var out apexBalanceResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return 0, fmt.Errorf("apex response decode failed: %w", err)
	}

	balance, err := strconv.ParseFloat(out.TotalEquityValue, 64)
	if err != nil {
		return 0, fmt.Errorf("apex invalid balance %q: %w", out.TotalEquityValue, err)
	}
	return balance, nil
}
