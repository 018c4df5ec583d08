// REST client for the OANDA v20 API. Authentication is a bearer token;
// open positions come from /openPositions and live quotes from /pricing.
package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
)

const oandaDefaultBaseURL = "https://api-fxpractice.oanda.com"

type OandaClient struct {
	apiKey    string
	accountID string
	http      *resty.Client
}

func NewOandaClient(apiKey, accountID, baseURL string) *OandaClient {
	if baseURL == "" {
		baseURL = oandaDefaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &OandaClient{
		apiKey:    apiKey,
		accountID: accountID,
		http:      newHTTPClient(baseURL),
	}
}

// OandaPositionSide carries the long or short half of an OANDA position.
// Units are signed: negative on the short side.
type OandaPositionSide struct {
	Units        string `json:"units"`
	AveragePrice string `json:"averagePrice"`
	UnrealizedPL string `json:"unrealizedPL"`
}

type OandaPosition struct {
	Instrument string            `json:"instrument"`
	Long       OandaPositionSide `json:"long"`
	Short      OandaPositionSide `json:"short"`
}

type OandaOpenPositions struct {
	Positions []OandaPosition `json:"positions"`
}

type oandaAccountSummary struct {
	Account struct {
		Balance string `json:"balance"`
		NAV     string `json:"NAV"`
	} `json:"account"`
}

type oandaPricing struct {
	Prices []struct {
		Instrument string `json:"instrument"`
		Bids       []struct {
			Price string `json:"price"`
		} `json:"bids"`
		Asks []struct {
			Price string `json:"price"`
		} `json:"asks"`
	} `json:"prices"`
}

func (c *OandaClient) get(ctx context.Context, path string, queryParams map[string]string, out interface{}) error {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetHeader("Content-Type", "application/json")
	if queryParams != nil {
		req = req.SetQueryParams(queryParams)
	}

	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("oanda request failed: %w", err)
	}

	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		return fmt.Errorf("oanda: %w", ErrUnauthorized)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("oanda HTTP %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("oanda response decode failed: %w", err)
	}
	return nil
}

// GetOpenPositions returns every instrument with a non-flat long or short side.
func (c *OandaClient) GetOpenPositions(ctx context.Context) (*OandaOpenPositions, error) {
	var out OandaOpenPositions
	path := fmt.Sprintf("/v3/accounts/%s/openPositions", c.accountID)
	if err := c.get(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPricing returns mid prices per instrument. Instruments with no usable
// bid/ask are omitted; callers fall back to the P&L-derived estimate.
func (c *OandaClient) GetPricing(ctx context.Context, instruments []string) (map[string]float64, error) {
	if len(instruments) == 0 {
		return map[string]float64{}, nil
	}

	var out oandaPricing
	path := fmt.Sprintf("/v3/accounts/%s/pricing", c.accountID)
	params := map[string]string{"instruments": strings.Join(instruments, ",")}
	if err := c.get(ctx, path, params, &out); err != nil {
		return nil, err
	}

	prices := make(map[string]float64, len(out.Prices))
	for _, p := range out.Prices {
		var bid, ask float64
		if len(p.Bids) > 0 {
			bid, _ = strconv.ParseFloat(p.Bids[0].Price, 64)
		}
		if len(p.Asks) > 0 {
			ask, _ = strconv.ParseFloat(p.Asks[0].Price, 64)
		}

		switch {
		case bid > 0 && ask > 0:
			prices[p.Instrument] = (bid + ask) / 2
		case bid > 0:
			prices[p.Instrument] = bid
		case ask > 0:
			prices[p.Instrument] = ask
		}
	}
	return prices, nil
}

// GetBalance returns the account balance in the account currency (USD).
func (c *OandaClient) GetBalance(ctx context.Context) (float64, error) {
	var out oandaAccountSummary
	path := fmt.Sprintf("/v3/accounts/%s/summary", c.accountID)
	if err := c.get(ctx, path, nil, &out); err != nil {
		return 0, err
	}

	balance, err := strconv.ParseFloat(out.Account.Balance, 64)
	if err != nil {
		return 0, fmt.Errorf("oanda invalid balance %q: %w", out.Account.Balance, err)
	}
	return balance, nil
}
