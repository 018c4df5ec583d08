package reconcile

import (
	"context"
	"math"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradedash/src/fetcher"
	"tradedash/src/model"
)

type positionStore interface {
	FindOpenByUser(ctx context.Context, userID uint) ([]model.Position, error)
	UpsertOpen(ctx context.Context, pos *model.Position) error
	MarkClosed(ctx context.Context, id uint, closedAt time.Time) error
}

type tradeStore interface {
	CreateIfAbsent(ctx context.Context, trade *model.Trade) (bool, error)
}

// Result summarizes one reconciliation pass.
type Result struct {
	Upserted     int
	Closed       int
	TradesLogged int
	Snapshots    []fetcher.Snapshot
}

// Syncer reconciles the stored open-position set against live broker
// snapshots. One Syncer serves one user; it holds no mutable state and is
// safe to call from the scheduler and the HTTP handler concurrently.
type Syncer struct {
	positions positionStore
	trades    tradeStore
	fetchers  []fetcher.PositionFetcher
}

func NewSyncer(
	positions positionStore,
	trades tradeStore,
	fetchers []fetcher.PositionFetcher,
) *Syncer {
	return &Syncer{positions: positions, trades: trades, fetchers: fetchers}
}

// Run executes one full pass: fetch all brokers, refresh the stored open
// set from authoritative snapshots, then close and materialize positions
// that disappeared. Per-row failures are logged and skipped so one bad row
// never aborts the pass.
func (s *Syncer) Run(ctx context.Context, userID uint) (Result, error) {
	log := logger.WithFields(map[string]interface{}{
		"component": "reconcile",
		"user_id":   userID,
	})

	snapshots := fetcher.FetchAll(ctx, s.fetchers)
	res := Result{Snapshots: snapshots}

	for _, snap := range snapshots {
		if !snap.Authoritative() {
			continue
		}
		for i := range snap.Positions {
			pos := snap.Positions[i]
			pos.UserID = userID
			if !validLivePosition(pos) {
				log.WithFields(map[string]interface{}{
					"exchange": pos.Exchange,
					"symbol":   pos.Symbol,
				}).Warn("Skipping malformed broker position")
				continue
			}
			if err := s.positions.UpsertOpen(ctx, &pos); err != nil {
				log.WithFields(map[string]interface{}{
					"exchange": pos.Exchange,
					"symbol":   pos.Symbol,
				}).WithError(err).Error("Failed to upsert position")
				continue
			}
			res.Upserted++
		}
	}

	stored, err := s.positions.FindOpenByUser(ctx, userID)
	if err != nil {
		log.WithError(err).Error("Failed to load stored open positions")
		return res, err
	}

	closed := detectClosures(stored, snapshots)
	for _, pos := range closed {
		trade := materializeTrade(pos)

		inserted, err := s.trades.CreateIfAbsent(ctx, &trade)
		if err != nil {
			log.WithFields(map[string]interface{}{
				"exchange": pos.Exchange,
				"symbol":   pos.Symbol,
			}).WithError(err).Error("Failed to materialize trade")
			continue
		}
		if inserted {
			res.TradesLogged++
		}

		if err := s.positions.MarkClosed(ctx, pos.ID, trade.ExitTime); err != nil {
			log.WithFields(map[string]interface{}{
				"position_id": pos.ID,
				"symbol":      pos.Symbol,
			}).WithError(err).Error("Failed to mark position closed")
			continue
		}
		res.Closed++
	}

	log.WithFields(map[string]interface{}{
		"upserted": res.Upserted,
		"closed":   res.Closed,
		"trades":   res.TradesLogged,
	}).Info("Reconciliation pass complete")

	return res, nil
}

// detectClosures returns stored open positions that are absent from their
// broker's authoritative snapshot. Positions on brokers whose fetch failed
// are left untouched: an unknown open set is never evidence of a closure.
func detectClosures(stored []model.Position, snapshots []fetcher.Snapshot) []model.Position {
	live := make(map[string]map[string]bool, len(snapshots))
	for _, snap := range snapshots {
		if !snap.Authoritative() {
			continue
		}
		keys := make(map[string]bool, len(snap.Positions))
		for i := range snap.Positions {
			keys[snap.Positions[i].Key()] = true
		}
		live[snap.Exchange] = keys
	}

	var closed []model.Position
	for _, pos := range stored {
		keys, authoritative := live[pos.Exchange]
		if !authoritative {
			continue
		}
		if !keys[pos.Key()] {
			closed = append(closed, pos)
		}
	}

	return closed
}

// validLivePosition filters rows a broker returned in a shape we cannot
// store sensibly. Non-finite numbers slip through strconv.ParseFloat
// ("NaN" and "Inf" are valid inputs), so they are checked explicitly.
func validLivePosition(pos model.Position) bool {
	if pos.Symbol == "" {
		return false
	}
	if !finitePositive(pos.Quantity) {
		return false
	}
	if !finitePositive(pos.EntryPrice) {
		return false
	}
	return true
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
