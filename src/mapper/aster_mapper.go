package mapper

import (
	"math"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradedash/src/connectors"
	"tradedash/src/model"
)

// MapAsterPositions normalizes the Aster account payload into the common
// position shape. Flat positions and forex-looking symbols are dropped.
func MapAsterPositions(account *connectors.AsterAccount) []model.Position {
	if account == nil {
		return nil
	}

	now := time.Now().UTC()
	positions := make([]model.Position, 0, len(account.Positions))

	for _, raw := range account.Positions {
		amount := parseFloatSafe("positionAmt", raw.PositionAmt)
		if amount == 0 {
			continue
		}

		symbol := strings.ToUpper(strings.TrimSpace(raw.Symbol))
		if symbol == "" || forexPairPattern.MatchString(symbol) {
			logger.WithField("symbol", raw.Symbol).Debug("Skipping non-crypto symbol from aster feed")
			continue
		}

		side := model.SideBuy
		if amount < 0 {
			side = model.SideSell
		}

		notional := math.Abs(parseFloatSafe("notional", raw.Notional))
		unrealized := parseFloatSafe("unrealizedProfit", raw.UnrealizedProfit)

		positions = append(positions, model.Position{
			Symbol:               symbol,
			Exchange:             "aster",
			AssetClass:           model.AssetClassCrypto,
			Side:                 side,
			Quantity:             math.Abs(amount),
			PositionSizeUSD:      notional,
			EntryPrice:           parseFloatSafe("entryPrice", raw.EntryPrice),
			CurrentPrice:         parseFloatSafe("markPrice", raw.MarkPrice),
			UnrealizedPnlUSD:     unrealized,
			UnrealizedPnlPercent: pnlPercent(unrealized, notional),
			// The account endpoint does not report when the position was
			// opened; first observation time stands in for entry time.
			EntryTime: now,
			Status:    model.PositionStatusOpen,
		})
	}

	return positions
}
