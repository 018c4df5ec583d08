package mapper

import (
	"math"
	"strings"
	"time"

	"tradedash/src/connectors"
	"tradedash/src/model"
)

// MapTastytradePositions normalizes Tastytrade positions. The positions
// endpoint exposes no live quote, so the average open price stands in for
// the current price until the next sync refreshes it.
func MapTastytradePositions(items []connectors.TastytradePosition) []model.Position {
	now := time.Now().UTC()
	positions := make([]model.Position, 0, len(items))

	for _, raw := range items {
		if raw.Quantity == 0 || raw.Symbol == "" {
			continue
		}

		side := model.SideBuy
		if raw.Quantity < 0 {
			side = model.SideSell
		}

		notional := math.Abs(raw.MarketValue)

		positions = append(positions, model.Position{
			Symbol:               raw.Symbol,
			Exchange:             "tastytrade",
			AssetClass:           tastytradeAssetClass(raw.InstrumentType),
			Side:                 side,
			Quantity:             math.Abs(raw.Quantity),
			PositionSizeUSD:      notional,
			EntryPrice:           raw.AveragePrice,
			CurrentPrice:         raw.AveragePrice,
			UnrealizedPnlUSD:     raw.UnrealizedPnl,
			UnrealizedPnlPercent: pnlPercent(raw.UnrealizedPnl, notional),
			EntryTime:            now,
			Status:               model.PositionStatusOpen,
		})
	}

	return positions
}

func tastytradeAssetClass(instrumentType string) string {
	t := strings.ToLower(instrumentType)
	switch {
	case strings.Contains(t, "option"):
		return model.AssetClassOptions
	case strings.Contains(t, "future"):
		return model.AssetClassFutures
	default:
		return model.AssetClassStocks
	}
}
