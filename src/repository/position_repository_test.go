package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"tradedash/src/model"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestPositionRepositoryFindOpenByUser(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := &PositionRepository{db: mockDB}

	entryTime := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "user_id", "symbol", "exchange", "side", "status", "entry_time"}).
		AddRow(2, 1, "ETHUSDT", "aster", model.SideBuy, model.PositionStatusOpen, entryTime.Add(time.Hour)).
		AddRow(1, 1, "BTCUSDT", "aster", model.SideBuy, model.PositionStatusOpen, entryTime)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "positions" WHERE user_id = $1 AND status = $2 ORDER BY entry_time DESC, id DESC`)).
		WithArgs(uint(1), model.PositionStatusOpen).
		WillReturnRows(rows)

	positions, err := repo.FindOpenByUser(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error listing open positions: %v", err)
	}

	if len(positions) != 2 {
		t.Fatalf("expected 2 open positions, got %d", len(positions))
	}

	if positions[0].Symbol != "ETHUSDT" || positions[1].Symbol != "BTCUSDT" {
		t.Fatalf("positions not returned in expected order: %+v", positions)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestPositionRepositoryUpsertOpenInsertsWhenNoMatch(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := &PositionRepository{db: mockDB}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "positions" WHERE user_id = $1 AND exchange = $2 AND symbol = $3 AND side = $4 AND status = $5`)).
		WithArgs(uint(1), "aster", "BTCUSDT", model.SideBuy, model.PositionStatusOpen).
		WillReturnError(gorm.ErrRecordNotFound)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "positions"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	position := &model.Position{
		UserID:     1,
		Symbol:     "BTCUSDT",
		Exchange:   "aster",
		Side:       model.SideBuy,
		Quantity:   0.01,
		EntryPrice: 95000,
	}

	if err := repo.UpsertOpen(context.Background(), position); err != nil {
		t.Fatalf("expected insert to succeed, got %v", err)
	}

	if position.Status != model.PositionStatusOpen {
		t.Fatalf("expected inserted position to be open, got %q", position.Status)
	}
	if position.EntryTime.IsZero() {
		t.Fatal("expected entry time to be defaulted on insert")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestPositionRepositoryUpsertOpenUpdatesExistingRow(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := &PositionRepository{db: mockDB}

	entryTime := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	existing := sqlmock.NewRows([]string{"id", "user_id", "symbol", "exchange", "side", "status", "entry_time"}).
		AddRow(42, 1, "BTCUSDT", "aster", model.SideBuy, model.PositionStatusOpen, entryTime)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "positions" WHERE user_id = $1 AND exchange = $2 AND symbol = $3 AND side = $4 AND status = $5`)).
		WithArgs(uint(1), "aster", "BTCUSDT", model.SideBuy, model.PositionStatusOpen).
		WillReturnRows(existing)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "positions" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	position := &model.Position{
		UserID:           1,
		Symbol:           "BTCUSDT",
		Exchange:         "aster",
		Side:             model.SideBuy,
		Quantity:         0.02,
		EntryPrice:       95000,
		CurrentPrice:     96000,
		UnrealizedPnlUSD: 20,
	}

	if err := repo.UpsertOpen(context.Background(), position); err != nil {
		t.Fatalf("expected update to succeed, got %v", err)
	}

	if position.ID != 42 {
		t.Fatalf("expected existing row id to be carried over, got %d", position.ID)
	}
	if !position.EntryTime.Equal(entryTime) {
		t.Fatalf("expected original entry time to be preserved, got %v", position.EntryTime)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestPositionRepositoryMarkClosed(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := &PositionRepository{db: mockDB}

	closedAt := time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "positions" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.MarkClosed(context.Background(), 42, closedAt); err != nil {
		t.Fatalf("expected mark closed to succeed, got %v", err)
	}

	// Already-closed rows affect nothing and surface as not found.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "positions" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.MarkClosed(context.Background(), 42, closedAt); err != gorm.ErrRecordNotFound {
		t.Fatalf("expected ErrRecordNotFound for already-closed row, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	})

	gdb, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		sqlDB.Close()
		t.Fatalf("failed to open gorm DB with sqlmock: %v", err)
	}

	return gdb, mock
}
