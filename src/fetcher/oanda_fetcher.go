package fetcher

import (
	"context"

	logger "github.com/sirupsen/logrus"

	"tradedash/src/connectors"
	"tradedash/src/mapper"
)

type OandaFetcher struct {
	client *connectors.OandaClient
}

func NewOandaFetcher(client *connectors.OandaClient) *OandaFetcher {
	return &OandaFetcher{client: client}
}

func (f *OandaFetcher) Exchange() string {
	return "oanda"
}

func (f *OandaFetcher) Fetch(ctx context.Context) Snapshot {
	resp, err := f.client.GetOpenPositions(ctx)
	if err != nil {
		return classify(f.Exchange(), nil, err)
	}

	instruments := make([]string, 0, len(resp.Positions))
	for _, p := range resp.Positions {
		instruments = append(instruments, p.Instrument)
	}

	// Pricing is best-effort; without it the mapper estimates the mark
	// price from the unrealized P&L.
	pricing, err := f.client.GetPricing(ctx, instruments)
	if err != nil {
		logger.WithError(err).Warn("OANDA pricing unavailable, estimating current prices from P&L")
		pricing = nil
	}

	return classify(f.Exchange(), mapper.MapOandaPositions(resp, pricing), nil)
}
