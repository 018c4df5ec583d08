package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tradedash/src/auth"
	"tradedash/src/model"
	"tradedash/src/reconcile"
	"tradedash/src/repository"

	"github.com/stretchr/testify/assert"
)

type mockTradeSearcher struct {
	trades       []model.Trade
	err          error
	userID       uint
	exchange     *string
	symbol       *string
	exitedAfter  *time.Time
	exitedBefore *time.Time
	limit        int
	offset       int
	calledCount  int
}

func (m *mockTradeSearcher) Search(ctx context.Context, options repository.TradeSearchOptions) ([]model.Trade, error) {
	m.calledCount++
	m.userID = options.UserID
	m.exchange = options.Exchange
	m.symbol = options.Symbol
	m.exitedAfter = options.ExitedAfter
	m.exitedBefore = options.ExitedBefore
	m.limit = options.Limit
	m.offset = options.Offset
	return m.trades, m.err
}

type mockTradeSaver struct {
	inserted bool
	err      error
	saved    []model.Trade
}

func (m *mockTradeSaver) CreateIfAbsent(ctx context.Context, trade *model.Trade) (bool, error) {
	m.saved = append(m.saved, *trade)
	return m.inserted, m.err
}

type mockSyncRunner struct {
	result reconcile.Result
	err    error
	userID uint
}

func (m *mockSyncRunner) Run(ctx context.Context, userID uint) (reconcile.Result, error) {
	m.userID = userID
	return m.result, m.err
}

func asUser(req *http.Request, id uint) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), auth.UserKey, &model.User{ID: id}))
}

func TestSearchTradesHandler_Unauthorized(t *testing.T) {
	handler := SearchTradesHandler(&mockTradeSearcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/trades", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestSearchTradesHandler_Success(t *testing.T) {
	mockRepo := &mockTradeSearcher{trades: []model.Trade{{ID: 1, Symbol: "BTCUSDT"}}}
	handler := SearchTradesHandler(mockRepo)

	req := httptest.NewRequest(http.MethodGet, "/api/trades?exchange=aster&symbol=BTCUSDT&exitedFrom=2026-08-01T00:00:00Z&page=2&pageSize=10", nil)
	req = asUser(req, 7)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if mockRepo.userID != 7 {
		t.Fatalf("expected user ID 7, got %d", mockRepo.userID)
	}
	if mockRepo.exchange == nil || *mockRepo.exchange != "aster" {
		t.Fatalf("expected exchange filter aster, got %v", mockRepo.exchange)
	}
	if mockRepo.exitedAfter == nil {
		t.Fatal("expected exitedFrom filter to be set")
	}
	if mockRepo.limit != 10 || mockRepo.offset != 10 {
		t.Fatalf("expected limit 10 offset 10, got limit=%d offset=%d", mockRepo.limit, mockRepo.offset)
	}
}

func TestSearchTradesHandler_InvalidDate(t *testing.T) {
	handler := SearchTradesHandler(&mockTradeSearcher{})

	req := httptest.NewRequest(http.MethodGet, "/api/trades?exitedFrom=invalid", nil)
	req = asUser(req, 1)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestSearchTradesHandler_RepoError(t *testing.T) {
	handler := SearchTradesHandler(&mockTradeSearcher{err: assert.AnError})

	req := httptest.NewRequest(http.MethodGet, "/api/trades", nil)
	req = asUser(req, 1)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestSaveTradeHandler_SetsUserAndWinner(t *testing.T) {
	mockRepo := &mockTradeSaver{inserted: true}
	handler := SaveTradeHandler(mockRepo)

	body := `{"symbol":"BTCUSDT","exchange":"aster","side":"BUY","entry_time":"2026-08-01T10:00:00Z","exit_time":"2026-08-01T12:00:00Z","pnl_usd":10}`
	req := httptest.NewRequest(http.MethodPost, "/api/trades/save", strings.NewReader(body))
	req = asUser(req, 7)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	if len(mockRepo.saved) != 1 {
		t.Fatalf("expected 1 trade to reach the repository, got %d", len(mockRepo.saved))
	}
	if mockRepo.saved[0].UserID != 7 {
		t.Fatalf("expected user id from context, got %d", mockRepo.saved[0].UserID)
	}
	if !mockRepo.saved[0].IsWinner {
		t.Fatal("expected positive pnl to mark the trade a winner")
	}
}

func TestSaveTradeHandler_AcceptsBatch(t *testing.T) {
	mockRepo := &mockTradeSaver{inserted: true}
	handler := SaveTradeHandler(mockRepo)

	body := `[
		{"symbol":"BTCUSDT","exchange":"aster","side":"BUY","entry_time":"2026-08-01T10:00:00Z","exit_time":"2026-08-01T12:00:00Z","pnl_usd":10},
		{"symbol":"ETHUSDT","exchange":"aster","side":"SELL","entry_time":"2026-08-01T11:00:00Z","exit_time":"2026-08-01T13:00:00Z","pnl_usd":-5}
	]`
	req := httptest.NewRequest(http.MethodPost, "/api/trades/save", strings.NewReader(body))
	req = asUser(req, 7)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	if len(mockRepo.saved) != 2 {
		t.Fatalf("expected 2 trades to reach the repository, got %d", len(mockRepo.saved))
	}
	if mockRepo.saved[1].IsWinner {
		t.Fatal("expected negative pnl to not be a winner")
	}
}

func TestSaveTradeHandler_DuplicateReturns200(t *testing.T) {
	handler := SaveTradeHandler(&mockTradeSaver{inserted: false})

	body := `{"symbol":"BTCUSDT","exchange":"aster","side":"BUY","entry_time":"2026-08-01T10:00:00Z","exit_time":"2026-08-01T12:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/trades/save", strings.NewReader(body))
	req = asUser(req, 7)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 for duplicate, got %d", rr.Code)
	}
}

func TestSaveTradeHandler_RejectsExitBeforeEntry(t *testing.T) {
	store := &mockTradeSaver{}
	handler := SaveTradeHandler(store)

	body := `{"symbol":"BTCUSDT","exchange":"aster","side":"BUY","entry_time":"2026-08-01T10:00:00Z","exit_time":"2026-08-01T09:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/trades/save", strings.NewReader(body))
	req = asUser(req, 7)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if len(store.saved) != 0 {
		t.Fatal("expected nothing to reach the repository")
	}
}

func TestSaveTradeHandler_RejectsMissingExitTime(t *testing.T) {
	handler := SaveTradeHandler(&mockTradeSaver{})

	body := `{"symbol":"BTCUSDT","exchange":"aster","side":"BUY","entry_time":"2026-08-01T10:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/trades/save", strings.NewReader(body))
	req = asUser(req, 7)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestSaveTradeHandler_MissingEntryTime(t *testing.T) {
	handler := SaveTradeHandler(&mockTradeSaver{})

	body := `{"symbol":"BTCUSDT","exchange":"aster","side":"BUY"}`
	req := httptest.NewRequest(http.MethodPost, "/api/trades/save", strings.NewReader(body))
	req = asUser(req, 7)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestSyncTradesHandler_RunsForAuthenticatedUser(t *testing.T) {
	runner := &mockSyncRunner{result: reconcile.Result{Upserted: 2, Closed: 1, TradesLogged: 1}}
	handler := SyncTradesHandler(func(ctx context.Context, userID uint) (syncRunner, error) {
		return runner, nil
	})

	req := httptest.NewRequest(http.MethodPost, "/api/trades/sync", nil)
	req = asUser(req, 7)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if runner.userID != 7 {
		t.Fatalf("expected run for user 7, got %d", runner.userID)
	}
	assert.Contains(t, rr.Body.String(), `"closed":1`)
}

func TestSyncTradesHandler_RunError(t *testing.T) {
	handler := SyncTradesHandler(func(ctx context.Context, userID uint) (syncRunner, error) {
		return &mockSyncRunner{err: assert.AnError}, nil
	})

	req := httptest.NewRequest(http.MethodPost, "/api/trades/sync", nil)
	req = asUser(req, 7)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}
