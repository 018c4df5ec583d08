package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"tradedash/src/auth"
	"tradedash/src/marketdata"
	"tradedash/src/model"
	"tradedash/src/repository"

	logger "github.com/sirupsen/logrus"
)

type klineSource interface {
	Klines(symbol, quote, period string, limit int) ([]marketdata.Candle, error)
}

// GetCryptoDataHandler returns a handler serving the dashboard chart payload:
// OHLCV bars plus the user's open positions for the requested symbol, so the
// chart can overlay entries. Query params: symbol (required), quote (default
// USDT), period (default 1h), limit.
func GetCryptoDataHandler(source klineSource, positions positionLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
		if symbol == "" {
			http.Error(w, "symbol is required", http.StatusBadRequest)
			return
		}

		quote := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("quote")))
		if quote == "" {
			quote = "USDT"
		}

		period := r.URL.Query().Get("period")
		if period == "" {
			period = marketdata.Period1h
		}

		limit := 0
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		candles, err := source.Klines(symbol, quote, period, limit)
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"symbol": symbol,
				"period": period,
			}).WithError(err).Error("failed to fetch klines")
			http.Error(w, "Bad Gateway", http.StatusBadGateway)
			return
		}

		open, err := positions.FindOpenByUser(r.Context(), user.ID)
		if err != nil {
			logger.WithError(err).Error("failed to load open positions for chart")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		matching := make([]model.Position, 0)
		pair := symbol + quote
		for _, pos := range open {
			if strings.EqualFold(pos.Symbol, pair) || strings.EqualFold(pos.Symbol, symbol) {
				matching = append(matching, pos)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]interface{}{
			"symbol":    symbol,
			"quote":     quote,
			"period":    period,
			"candles":   candles,
			"positions": matching,
		}); err != nil {
			logger.WithError(err).Error("failed to encode chart response")
		}
	}
}

// DefaultGetCryptoDataHandler wires the handler to the production market data
// service and repository.
func DefaultGetCryptoDataHandler() http.HandlerFunc {
	return GetCryptoDataHandler(marketdata.NewService(), repository.NewPositionRepository())
}
