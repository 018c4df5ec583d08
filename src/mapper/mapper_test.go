package mapper

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"tradedash/src/connectors"
	"tradedash/src/model"
)

func TestEstimateCurrentPriceLong(t *testing.T) {
	// Long BTC: entry 95000, qty 0.01, unrealized +10 -> 96000.
	price := EstimateCurrentPrice(model.SideBuy, 95000, 10, 0.01)
	assert.InDelta(t, 96000, price, 1e-9)
}

func TestEstimateCurrentPriceShort(t *testing.T) {
	// Short profits as price falls, so positive P&L moves the estimate down.
	price := EstimateCurrentPrice(model.SideSell, 95000, 10, 0.01)
	assert.InDelta(t, 94000, price, 1e-9)
}

func TestEstimateCurrentPriceZeroQuantityFallsBack(t *testing.T) {
	price := EstimateCurrentPrice(model.SideBuy, 95000, 10, 0)
	assert.Equal(t, 95000.0, price)
}

func TestEstimateCurrentPriceRejectsUnusableResults(t *testing.T) {
	// Loss larger than the entry price would produce a negative price.
	price := EstimateCurrentPrice(model.SideBuy, 100, -1e6, 1)
	assert.Equal(t, 100.0, price)

	price = EstimateCurrentPrice(model.SideBuy, 100, math.NaN(), 1)
	assert.Equal(t, 100.0, price)
}

func TestParseFloatSafe(t *testing.T) {
	assert.Equal(t, 1.5, parseFloatSafe("x", "1.5"))
	assert.Equal(t, 0.0, parseFloatSafe("x", ""))
	assert.Equal(t, 0.0, parseFloatSafe("x", "not-a-number"))
}

func TestMapAsterPositions(t *testing.T) {
	account := &connectors.AsterAccount{
		Positions: []connectors.AsterPosition{
			{
				Symbol:           "BTCUSDT",
				PositionAmt:      "0.010",
				EntryPrice:       "95000",
				MarkPrice:        "96000",
				Notional:         "960",
				UnrealizedProfit: "10",
			},
			{
				Symbol:      "ETHUSDT",
				PositionAmt: "0", // flat, dropped
			},
			{
				Symbol:           "SOLUSDT",
				PositionAmt:      "-2",
				EntryPrice:       "150",
				MarkPrice:        "145",
				Notional:         "-290",
				UnrealizedProfit: "10",
			},
			{
				Symbol:      "EUR_USD", // forex leak, dropped
				PositionAmt: "1000",
			},
		},
	}

	positions := MapAsterPositions(account)

	assert.Len(t, positions, 2)

	btc := positions[0]
	assert.Equal(t, "BTCUSDT", btc.Symbol)
	assert.Equal(t, "aster", btc.Exchange)
	assert.Equal(t, model.AssetClassCrypto, btc.AssetClass)
	assert.Equal(t, model.SideBuy, btc.Side)
	assert.Equal(t, 0.01, btc.Quantity)
	assert.Equal(t, 10.0, btc.UnrealizedPnlUSD)
	assert.Equal(t, model.PositionStatusOpen, btc.Status)

	sol := positions[1]
	assert.Equal(t, model.SideSell, sol.Side)
	assert.Equal(t, 2.0, sol.Quantity)
	assert.Equal(t, 290.0, sol.PositionSizeUSD)
}

func TestMapAsterPositionsNilAccount(t *testing.T) {
	assert.Nil(t, MapAsterPositions(nil))
}

func TestMapOandaPositionsPrefersLivePricing(t *testing.T) {
	resp := &connectors.OandaOpenPositions{
		Positions: []connectors.OandaPosition{
			{
				Instrument: "EUR_USD",
				Long: connectors.OandaPositionSide{
					Units:        "1000",
					AveragePrice: "1.1000",
					UnrealizedPL: "10",
				},
			},
		},
	}
	pricing := map[string]float64{"EUR_USD": 1.1100}

	positions := MapOandaPositions(resp, pricing)

	assert.Len(t, positions, 1)
	pos := positions[0]
	assert.Equal(t, "oanda", pos.Exchange)
	assert.Equal(t, model.SideBuy, pos.Side)
	assert.Equal(t, 1.1100, pos.CurrentPrice)
	assert.InDelta(t, 1100, pos.PositionSizeUSD, 1e-9)
}

func TestMapOandaPositionsEstimatesWithoutPricing(t *testing.T) {
	resp := &connectors.OandaOpenPositions{
		Positions: []connectors.OandaPosition{
			{
				Instrument: "EUR_USD",
				Short: connectors.OandaPositionSide{
					Units:        "-1000",
					AveragePrice: "1.1000",
					UnrealizedPL: "10",
				},
			},
		},
	}

	positions := MapOandaPositions(resp, map[string]float64{})

	assert.Len(t, positions, 1)
	pos := positions[0]
	assert.Equal(t, model.SideSell, pos.Side)
	assert.Equal(t, 1000.0, pos.Quantity)
	// short: current = entry - pnl/units = 1.10 - 0.01
	assert.InDelta(t, 1.09, pos.CurrentPrice, 1e-9)
}

func TestMapOandaPositionsSkipsFlatInstruments(t *testing.T) {
	resp := &connectors.OandaOpenPositions{
		Positions: []connectors.OandaPosition{
			{Instrument: "GBP_USD"},
		},
	}

	assert.Empty(t, MapOandaPositions(resp, nil))
}

func TestMapTastytradePositions(t *testing.T) {
	items := []connectors.TastytradePosition{
		{
			Symbol:         "AAPL",
			InstrumentType: "Equity",
			Quantity:       10,
			AveragePrice:   150,
			MarketValue:    1500,
			UnrealizedPnl:  25,
		},
		{
			Symbol:         "SPY 260918C00500000",
			InstrumentType: "Equity Option",
			Quantity:       -2,
			AveragePrice:   3.5,
			MarketValue:    -700,
			UnrealizedPnl:  -15,
		},
		{Symbol: "FLAT", Quantity: 0},
	}

	positions := MapTastytradePositions(items)

	assert.Len(t, positions, 2)
	assert.Equal(t, model.AssetClassStocks, positions[0].AssetClass)
	assert.Equal(t, model.SideBuy, positions[0].Side)
	// No live quote on this feed: average price stands in.
	assert.Equal(t, positions[0].EntryPrice, positions[0].CurrentPrice)

	assert.Equal(t, model.AssetClassOptions, positions[1].AssetClass)
	assert.Equal(t, model.SideSell, positions[1].Side)
	assert.Equal(t, 2.0, positions[1].Quantity)
	assert.Equal(t, 700.0, positions[1].PositionSizeUSD)
}
