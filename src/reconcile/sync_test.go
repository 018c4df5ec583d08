package reconcile

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"tradedash/src/fetcher"
	"tradedash/src/model"
)

type fakePositionStore struct {
	positions []model.Position
	nextID    uint
	upsertErr error
}

func (s *fakePositionStore) FindOpenByUser(_ context.Context, userID uint) ([]model.Position, error) {
	var open []model.Position
	for _, p := range s.positions {
		if p.UserID == userID && p.Status == model.PositionStatusOpen {
			open = append(open, p)
		}
	}
	return open, nil
}

func (s *fakePositionStore) UpsertOpen(_ context.Context, pos *model.Position) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	for i := range s.positions {
		existing := &s.positions[i]
		if existing.Status == model.PositionStatusOpen &&
			existing.UserID == pos.UserID &&
			existing.Exchange == pos.Exchange &&
			existing.Symbol == pos.Symbol &&
			existing.Side == pos.Side {
			existing.CurrentPrice = pos.CurrentPrice
			existing.UnrealizedPnlUSD = pos.UnrealizedPnlUSD
			existing.UnrealizedPnlPercent = pos.UnrealizedPnlPercent
			existing.Quantity = pos.Quantity
			existing.PositionSizeUSD = pos.PositionSizeUSD
			pos.ID = existing.ID
			pos.EntryTime = existing.EntryTime
			return nil
		}
	}
	s.nextID++
	pos.ID = s.nextID
	pos.Status = model.PositionStatusOpen
	if pos.EntryTime.IsZero() {
		pos.EntryTime = time.Now().UTC()
	}
	s.positions = append(s.positions, *pos)
	return nil
}

func (s *fakePositionStore) MarkClosed(_ context.Context, id uint, closedAt time.Time) error {
	for i := range s.positions {
		if s.positions[i].ID == id && s.positions[i].Status == model.PositionStatusOpen {
			s.positions[i].Status = model.PositionStatusClosed
			s.positions[i].ClosedAt = &closedAt
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type fakeTradeStore struct {
	trades []model.Trade
}

func (s *fakeTradeStore) CreateIfAbsent(_ context.Context, trade *model.Trade) (bool, error) {
	for _, t := range s.trades {
		if t.UserID == trade.UserID &&
			t.Exchange == trade.Exchange &&
			t.Symbol == trade.Symbol &&
			t.EntryTime.Equal(trade.EntryTime) {
			return false, nil
		}
	}
	s.trades = append(s.trades, *trade)
	return true, nil
}

type staticFetcher struct {
	exchange string
	snapshot fetcher.Snapshot
}

func (f staticFetcher) Exchange() string { return f.exchange }

func (f staticFetcher) Fetch(_ context.Context) fetcher.Snapshot { return f.snapshot }

func okSnapshot(exchange string, positions ...model.Position) staticFetcher {
	return staticFetcher{
		exchange: exchange,
		snapshot: fetcher.Snapshot{Exchange: exchange, Status: fetcher.StatusOK, Positions: positions},
	}
}

func failedSnapshot(exchange string) staticFetcher {
	return staticFetcher{
		exchange: exchange,
		snapshot: fetcher.Snapshot{Exchange: exchange, Status: fetcher.StatusUnavailable},
	}
}

func btcPosition() model.Position {
	return model.Position{
		Symbol:           "BTCUSD",
		Exchange:         "aster",
		AssetClass:       model.AssetClassCrypto,
		Side:             model.SideBuy,
		Quantity:         0.01,
		EntryPrice:       95000,
		CurrentPrice:     96000,
		UnrealizedPnlUSD: 10,
		PositionSizeUSD:  950,
		EntryTime:        time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestRunUpsertsLivePositions(t *testing.T) {
	positions := &fakePositionStore{}
	trades := &fakeTradeStore{}
	syncer := NewSyncer(positions, trades, []fetcher.PositionFetcher{
		okSnapshot("aster", btcPosition()),
	})

	res, err := syncer.Run(context.Background(), 7)

	assert.NoError(t, err)
	assert.Equal(t, 1, res.Upserted)
	assert.Equal(t, 0, res.Closed)
	assert.Len(t, positions.positions, 1)
	assert.Equal(t, uint(7), positions.positions[0].UserID)
	assert.Equal(t, model.PositionStatusOpen, positions.positions[0].Status)
}

func TestRunIsIdempotent(t *testing.T) {
	positions := &fakePositionStore{}
	trades := &fakeTradeStore{}
	syncer := NewSyncer(positions, trades, []fetcher.PositionFetcher{
		okSnapshot("aster", btcPosition()),
	})

	_, err := syncer.Run(context.Background(), 7)
	assert.NoError(t, err)
	_, err = syncer.Run(context.Background(), 7)
	assert.NoError(t, err)

	assert.Len(t, positions.positions, 1)
	assert.Empty(t, trades.trades)
}

func TestRunMaterializesClosedPosition(t *testing.T) {
	positions := &fakePositionStore{}
	trades := &fakeTradeStore{}

	open := NewSyncer(positions, trades, []fetcher.PositionFetcher{
		okSnapshot("aster", btcPosition()),
	})
	_, err := open.Run(context.Background(), 7)
	assert.NoError(t, err)

	// Next pass the broker reports a flat account.
	flat := NewSyncer(positions, trades, []fetcher.PositionFetcher{
		okSnapshot("aster"),
	})
	res, err := flat.Run(context.Background(), 7)

	assert.NoError(t, err)
	assert.Equal(t, 1, res.Closed)
	assert.Equal(t, 1, res.TradesLogged)
	assert.Len(t, trades.trades, 1)

	trade := trades.trades[0]
	assert.Equal(t, "BTCUSD", trade.Symbol)
	// Aster reports accurate unrealized P&L, carried over verbatim.
	assert.Equal(t, 10.0, trade.PnlUSD)
	assert.True(t, trade.IsWinner)
	assert.Equal(t, model.PositionStatusClosed, positions.positions[0].Status)
}

func TestRunFailedFetchNeverClosesPositions(t *testing.T) {
	positions := &fakePositionStore{}
	trades := &fakeTradeStore{}

	open := NewSyncer(positions, trades, []fetcher.PositionFetcher{
		okSnapshot("aster", btcPosition()),
	})
	_, err := open.Run(context.Background(), 7)
	assert.NoError(t, err)

	down := NewSyncer(positions, trades, []fetcher.PositionFetcher{
		failedSnapshot("aster"),
	})
	res, err := down.Run(context.Background(), 7)

	assert.NoError(t, err)
	assert.Equal(t, 0, res.Closed)
	assert.Empty(t, trades.trades)
	assert.Equal(t, model.PositionStatusOpen, positions.positions[0].Status)
}

func TestRunClosureIsScopedPerExchange(t *testing.T) {
	positions := &fakePositionStore{}
	trades := &fakeTradeStore{}

	oandaPos := model.Position{
		Symbol:           "EUR_USD",
		Exchange:         "oanda",
		AssetClass:       model.AssetClassForex,
		Side:             model.SideBuy,
		Quantity:         1000,
		EntryPrice:       1.10,
		CurrentPrice:     1.11,
		UnrealizedPnlUSD: 10,
		EntryTime:        time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
	}

	open := NewSyncer(positions, trades, []fetcher.PositionFetcher{
		okSnapshot("aster", btcPosition()),
		okSnapshot("oanda", oandaPos),
	})
	_, err := open.Run(context.Background(), 7)
	assert.NoError(t, err)

	// Aster flat, oanda unavailable: only the aster position may close.
	next := NewSyncer(positions, trades, []fetcher.PositionFetcher{
		okSnapshot("aster"),
		failedSnapshot("oanda"),
	})
	res, err := next.Run(context.Background(), 7)

	assert.NoError(t, err)
	assert.Equal(t, 1, res.Closed)
	assert.Len(t, trades.trades, 1)
	assert.Equal(t, "BTCUSD", trades.trades[0].Symbol)

	for _, p := range positions.positions {
		if p.Exchange == "oanda" {
			assert.Equal(t, model.PositionStatusOpen, p.Status)
		}
	}
}

func TestRunSkipsMalformedRows(t *testing.T) {
	positions := &fakePositionStore{}
	trades := &fakeTradeStore{}

	zeroQty := btcPosition()
	zeroQty.Quantity = 0

	// strconv.ParseFloat accepts "NaN" and "Inf", so mappers can emit
	// non-finite numbers when a broker sends them.
	nanQty := btcPosition()
	nanQty.Symbol = "ETHUSD"
	nanQty.Quantity = math.NaN()

	infEntry := btcPosition()
	infEntry.Symbol = "SOLUSD"
	infEntry.EntryPrice = math.Inf(1)

	syncer := NewSyncer(positions, trades, []fetcher.PositionFetcher{
		okSnapshot("aster", zeroQty, nanQty, infEntry),
	})
	res, err := syncer.Run(context.Background(), 7)

	assert.NoError(t, err)
	assert.Equal(t, 0, res.Upserted)
	assert.Empty(t, positions.positions)
}

func TestRunDedupesRepeatedClosure(t *testing.T) {
	positions := &fakePositionStore{}
	trades := &fakeTradeStore{}

	open := NewSyncer(positions, trades, []fetcher.PositionFetcher{
		okSnapshot("aster", btcPosition()),
	})
	_, err := open.Run(context.Background(), 7)
	assert.NoError(t, err)

	flat := NewSyncer(positions, trades, []fetcher.PositionFetcher{
		okSnapshot("aster"),
	})
	_, err = flat.Run(context.Background(), 7)
	assert.NoError(t, err)

	// Reopen and close again with the same entry time: the dedupe key
	// (user, exchange, symbol, entry_time) must block a second trade.
	reopened := btcPosition()
	reopen := NewSyncer(positions, trades, []fetcher.PositionFetcher{
		okSnapshot("aster", reopened),
	})
	_, err = reopen.Run(context.Background(), 7)
	assert.NoError(t, err)

	flatAgain := NewSyncer(positions, trades, []fetcher.PositionFetcher{
		okSnapshot("aster"),
	})
	res, err := flatAgain.Run(context.Background(), 7)

	assert.NoError(t, err)
	assert.Equal(t, 0, res.TradesLogged)
	assert.Equal(t, 1, res.Closed)
	assert.Len(t, trades.trades, 1)
}

func TestDetectClosuresUnknownSideIsKept(t *testing.T) {
	stored := []model.Position{
		{ID: 1, Exchange: "aster", Symbol: "BTCUSD", Side: model.SideBuy, Status: model.PositionStatusOpen},
		{ID: 2, Exchange: "aster", Symbol: "BTCUSD", Side: model.SideSell, Status: model.PositionStatusOpen},
	}
	snapshots := []fetcher.Snapshot{{
		Exchange: "aster",
		Status:   fetcher.StatusOK,
		Positions: []model.Position{
			{Exchange: "aster", Symbol: "BTCUSD", Side: model.SideBuy},
		},
	}}

	closed := detectClosures(stored, snapshots)

	assert.Len(t, closed, 1)
	assert.Equal(t, model.SideSell, closed[0].Side)
}
