package marketdata

import (
	"fmt"
	"net/http"
	"time"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
)

const (
	Period1m = "1m"
	Period5m = "5m"
	Period1h = "1h"
	Period1d = "1d"
)

// Candle is one OHLCV bar returned to the dashboard chart.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Service serves public crypto market data. Quotes come from the exchange's
// public endpoints, so no user credential is involved.
type Service struct {
	exchange goex.API
}

func NewService() *Service {
	apiConfig := &goex.APIConfig{
		HttpClient: http.DefaultClient,
		Endpoint:   binance.GLOBAL_API_BASE_URL,
	}
	return &Service{exchange: binance.NewWithConfig(apiConfig)}
}

// Klines fetches up to limit bars for the symbol/quote pair.
func (s *Service) Klines(symbol, quote, period string, limit int) ([]Candle, error) {
	goexPeriod, err := parsePeriod(period)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	pair := goex.NewCurrencyPair(goex.Currency{Symbol: symbol}, goex.Currency{Symbol: quote})
	klines, err := s.exchange.GetKlineRecords(pair, goexPeriod, limit, goex.OptionalParameter{})
	if err != nil {
		return nil, fmt.Errorf("fetch klines for %s_%s: %w", symbol, quote, err)
	}

	candles := make([]Candle, 0, len(klines))
	for _, k := range klines {
		candles = append(candles, Candle{
			Time:   time.Unix(k.Timestamp, 0).UTC(),
			Open:   k.Open,
			High:   k.High,
			Low:    k.Low,
			Close:  k.Close,
			Volume: k.Vol,
		})
	}

	return candles, nil
}

func parsePeriod(period string) (goex.KlinePeriod, error) {
	switch period {
	case Period1m:
		return goex.KLINE_PERIOD_1MIN, nil
	case Period5m:
		return goex.KLINE_PERIOD_5MIN, nil
	case Period1h:
		return goex.KLINE_PERIOD_1H, nil
	case Period1d:
		return goex.KLINE_PERIOD_1DAY, nil
	default:
		return 0, fmt.Errorf("unsupported kline period %q", period)
	}
}
