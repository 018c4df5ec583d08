package mapper

import (
	"math"
	"time"

	"tradedash/src/connectors"
	"tradedash/src/model"
)

// MapOandaPositions normalizes OANDA open positions. OANDA reports a long and
// a short bucket per instrument; whichever is non-flat wins. A live mid price
// from the pricing endpoint is preferred; otherwise the current price is
// estimated from the unrealized P&L.
func MapOandaPositions(resp *connectors.OandaOpenPositions, pricing map[string]float64) []model.Position {
	if resp == nil {
		return nil
	}

	now := time.Now().UTC()
	positions := make([]model.Position, 0, len(resp.Positions))

	for _, raw := range resp.Positions {
		longUnits := parseFloatSafe("long.units", raw.Long.Units)
		shortUnits := parseFloatSafe("short.units", raw.Short.Units)

		isLong := longUnits > 0
		units := longUnits
		bucket := raw.Long
		side := model.SideBuy
		if !isLong {
			units = math.Abs(shortUnits)
			bucket = raw.Short
			side = model.SideSell
		}
		if units == 0 {
			continue
		}

		entryPrice := parseFloatSafe("averagePrice", bucket.AveragePrice)
		unrealized := parseFloatSafe("unrealizedPL", bucket.UnrealizedPL)

		currentPrice, ok := pricing[raw.Instrument]
		if !ok || currentPrice <= 0 {
			currentPrice = EstimateCurrentPrice(side, entryPrice, unrealized, units)
		}

		notional := math.Abs(units * entryPrice)

		positions = append(positions, model.Position{
			Symbol:               raw.Instrument,
			Exchange:             "oanda",
			AssetClass:           model.AssetClassForex,
			Side:                 side,
			Quantity:             units,
			PositionSizeUSD:      notional,
			EntryPrice:           entryPrice,
			CurrentPrice:         currentPrice,
			UnrealizedPnlUSD:     unrealized,
			UnrealizedPnlPercent: pnlPercent(unrealized, notional),
			EntryTime:            now,
			Status:               model.PositionStatusOpen,
		})
	}

	return positions
}
