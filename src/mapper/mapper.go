package mapper

import (
	"math"
	"regexp"
	"strconv"

	logger "github.com/sirupsen/logrus"

	"tradedash/src/model"
)

// Symbols like EUR_USD or EUR/USD that occasionally leak into the crypto
// account feed are filtered out before normalization.
var forexPairPattern = regexp.MustCompile(`^[A-Z]{3}[_/][A-Z]{3}$`)

func parseFloatSafe(field, v string) float64 {
	if v == "" {
		logger.WithField("field", field).Debug("Empty numeric field received, defaulting to 0")
		return 0
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"field": field,
			"value": v,
		}).WithError(err).Error("Failed to parse float from broker response field; defaulting to 0")
		return 0
	}
	return f
}

// EstimateCurrentPrice derives a mark price from the entry price and the
// broker-reported unrealized P&L when no live quote is available:
//
//	long:  current = entry + pnl/quantity
//	short: current = entry - pnl/quantity
//
// This is a linear approximation; it is only exact where P&L is a linear
// function of the price delta. Falls back to the entry price when quantity
// is zero or the result is not a usable price.
func EstimateCurrentPrice(side string, entryPrice, unrealizedPnl, quantity float64) float64 {
	if quantity <= 0 {
		return entryPrice
	}

	perUnit := unrealizedPnl / quantity
	price := entryPrice + perUnit
	if side == model.SideSell {
		price = entryPrice - perUnit
	}

	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return entryPrice
	}
	return price
}

func pnlPercent(pnlUSD, notionalUSD float64) float64 {
	if notionalUSD <= 0 {
		return 0
	}
	return pnlUSD / notionalUSD * 100
}
