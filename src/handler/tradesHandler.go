package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"tradedash/src/auth"
	"tradedash/src/fetcher"
	"tradedash/src/model"
	"tradedash/src/reconcile"
	"tradedash/src/repository"

	logger "github.com/sirupsen/logrus"
)

const maxTradeSaveBody = 1 << 20

type tradeSearcher interface {
	Search(ctx context.Context, options repository.TradeSearchOptions) ([]model.Trade, error)
}

type tradeSaver interface {
	CreateIfAbsent(ctx context.Context, trade *model.Trade) (bool, error)
}

type tradeFixer interface {
	FindExitedSince(ctx context.Context, userID uint, since time.Time) ([]model.Trade, error)
	UpdatePnl(ctx context.Context, id uint, pnlUSD, pnlPercent float64, isWinner bool) error
}

type credentialLister interface {
	FindByUser(ctx context.Context, userID uint) ([]model.BotCredential, error)
}

type syncRunner interface {
	Run(ctx context.Context, userID uint) (reconcile.Result, error)
}

// SearchTradesHandler returns a handler that lists the authenticated user's
// trade history, newest exit first. Supports pagination and filters
// (exchange, symbol, exitedFrom, exitedTo).
func SearchTradesHandler(repo tradeSearcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var exchange, symbol *string
		if exchangeParam := r.URL.Query().Get("exchange"); exchangeParam != "" {
			exchange = &exchangeParam
		}
		if symbolParam := r.URL.Query().Get("symbol"); symbolParam != "" {
			symbol = &symbolParam
		}

		var exitedFrom, exitedTo *time.Time
		if fromParam := r.URL.Query().Get("exitedFrom"); fromParam != "" {
			parsed, err := time.Parse(time.RFC3339, fromParam)
			if err != nil {
				http.Error(w, "invalid exitedFrom", http.StatusBadRequest)
				return
			}
			exitedFrom = &parsed
		}
		if toParam := r.URL.Query().Get("exitedTo"); toParam != "" {
			parsed, err := time.Parse(time.RFC3339, toParam)
			if err != nil {
				http.Error(w, "invalid exitedTo", http.StatusBadRequest)
				return
			}
			exitedTo = &parsed
		}

		page := 1
		if pageParam := r.URL.Query().Get("page"); pageParam != "" {
			parsedPage, err := strconv.Atoi(pageParam)
			if err != nil || parsedPage <= 0 {
				http.Error(w, "invalid page", http.StatusBadRequest)
				return
			}
			page = parsedPage
		}

		pageSize := 50
		if sizeParam := r.URL.Query().Get("pageSize"); sizeParam != "" {
			parsedSize, err := strconv.Atoi(sizeParam)
			if err != nil || parsedSize <= 0 {
				http.Error(w, "invalid pageSize", http.StatusBadRequest)
				return
			}
			pageSize = parsedSize
		}

		offset := (page - 1) * pageSize

		trades, err := repo.Search(r.Context(), repository.TradeSearchOptions{
			UserID:       user.ID,
			Exchange:     exchange,
			Symbol:       symbol,
			ExitedAfter:  exitedFrom,
			ExitedBefore: exitedTo,
			Limit:        pageSize,
			Offset:       offset,
		})
		if err != nil {
			logger.WithError(err).Error("failed to search trades")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if trades == nil {
			trades = []model.Trade{}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(trades); err != nil {
			logger.WithError(err).Error("failed to encode trade search response")
		}
	}
}

// SaveTradeHandler returns a handler that stores manually supplied trades.
// The body is either one trade object or an array of them. The dedupe key
// still applies: duplicates are dropped, not overwritten.
func SaveTradeHandler(repo tradeSaver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		raw, err := io.ReadAll(io.LimitReader(r.Body, maxTradeSaveBody))
		if err != nil {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		var trades []model.Trade
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			err = json.Unmarshal(trimmed, &trades)
		} else {
			var trade model.Trade
			err = json.Unmarshal(trimmed, &trade)
			trades = []model.Trade{trade}
		}
		if err != nil {
			logger.WithError(err).Warn("invalid trade payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}
		if len(trades) == 0 {
			http.Error(w, "no trades supplied", http.StatusBadRequest)
			return
		}

		for i := range trades {
			if trades[i].Symbol == "" || trades[i].Exchange == "" {
				http.Error(w, "symbol and exchange are required", http.StatusBadRequest)
				return
			}
			if trades[i].EntryTime.IsZero() {
				http.Error(w, "entry_time is required", http.StatusBadRequest)
				return
			}
			if !trades[i].ExitTime.After(trades[i].EntryTime) {
				http.Error(w, "exit_time must be after entry_time", http.StatusBadRequest)
				return
			}
			trades[i].UserID = user.ID
			trades[i].IsWinner = trades[i].PnlUSD > 0
		}

		inserted := 0
		for i := range trades {
			ok, err := repo.CreateIfAbsent(r.Context(), &trades[i])
			if err != nil {
				logger.WithError(err).Error("failed to save trade")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			if ok {
				inserted++
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if inserted > 0 {
			w.WriteHeader(http.StatusCreated)
		}
		if err := json.NewEncoder(w).Encode(map[string]interface{}{
			"inserted": inserted,
			"skipped":  len(trades) - inserted,
			"trades":   trades,
		}); err != nil {
			logger.WithError(err).Error("failed to encode trade response")
		}
	}
}

// SyncTradesHandler returns a handler that runs one reconciliation pass for
// the authenticated user, on demand from the dashboard.
func SyncTradesHandler(build func(ctx context.Context, userID uint) (syncRunner, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		syncer, err := build(r.Context(), user.ID)
		if err != nil {
			logger.WithError(err).Error("failed to build syncer")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		res, err := syncer.Run(r.Context(), user.ID)
		if err != nil {
			logger.WithError(err).Error("sync run failed")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		type snapshotStatus struct {
			Exchange string `json:"exchange"`
			Status   string `json:"status"`
		}
		statuses := make([]snapshotStatus, 0, len(res.Snapshots))
		for _, snap := range res.Snapshots {
			statuses = append(statuses, snapshotStatus{Exchange: snap.Exchange, Status: string(snap.Status)})
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]interface{}{
			"upserted":      res.Upserted,
			"closed":        res.Closed,
			"trades_logged": res.TradesLogged,
			"brokers":       statuses,
		}); err != nil {
			logger.WithError(err).Error("failed to encode sync response")
		}
	}
}

// FixPnlHandler returns a handler that recomputes derived P&L fields for
// recent trades. Used after a bad quote produced nonsense numbers.
func FixPnlHandler(repo tradeFixer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		days := 7
		if daysParam := r.URL.Query().Get("days"); daysParam != "" {
			parsed, err := strconv.Atoi(daysParam)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid days", http.StatusBadRequest)
				return
			}
			days = parsed
		}

		since := time.Now().UTC().AddDate(0, 0, -days)
		trades, err := repo.FindExitedSince(r.Context(), user.ID, since)
		if err != nil {
			logger.WithError(err).Error("failed to load trades for pnl fix")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		fixed := 0
		for _, trade := range trades {
			capability := fetcher.CapabilityFor(trade.Exchange)
			if capability.ReportsAccurateUnrealizedPnL {
				// Broker-reported P&L is the source of truth, leave it alone.
				continue
			}

			diff := trade.ExitPrice - trade.EntryPrice
			if trade.Side == model.SideSell {
				diff = -diff
			}
			pnlUSD := diff * trade.Quantity

			notional := trade.PositionSizeUSD
			if notional <= 0 {
				notional = math.Abs(trade.EntryPrice * trade.Quantity)
			}
			pnlPercent := 0.0
			if notional > 0 {
				pnlPercent = pnlUSD / notional * 100
			}

			if pnlUSD == trade.PnlUSD && pnlPercent == trade.PnlPercent {
				continue
			}

			if err := repo.UpdatePnl(r.Context(), trade.ID, pnlUSD, pnlPercent, pnlUSD > 0); err != nil {
				logger.WithError(err).WithField("trade_id", trade.ID).Error("failed to fix trade pnl")
				continue
			}
			fixed++
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]interface{}{
			"checked": len(trades),
			"fixed":   fixed,
		}); err != nil {
			logger.WithError(err).Error("failed to encode fix-pnl response")
		}
	}
}

// BuildUserSyncer constructs a reconciler over the user's stored credentials.
// Shared by the sync handler and the scheduler.
func BuildUserSyncer(ctx context.Context, userID uint) (syncRunner, error) {
	creds, err := repository.NewBotCredentialRepository().FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	fetchers := fetcher.BuildPositionFetchers(creds)
	return reconcile.NewSyncer(
		repository.NewPositionRepository(),
		repository.NewTradeRepository(),
		fetchers,
	), nil
}

// DefaultSearchTradesHandler wires the handler to the production repository implementation.
func DefaultSearchTradesHandler() http.HandlerFunc {
	return SearchTradesHandler(repository.NewTradeRepository())
}

// DefaultSaveTradeHandler wires the handler to the production repository implementation.
func DefaultSaveTradeHandler() http.HandlerFunc {
	return SaveTradeHandler(repository.NewTradeRepository())
}

// DefaultSyncTradesHandler wires the handler to the production syncer.
func DefaultSyncTradesHandler() http.HandlerFunc {
	return SyncTradesHandler(BuildUserSyncer)
}

// DefaultFixPnlHandler wires the handler to the production repository implementation.
func DefaultFixPnlHandler() http.HandlerFunc {
	return FixPnlHandler(repository.NewTradeRepository())
}
