package repository

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"cryptobroker/internal/models"
)

// ============================================================
// OrderRepository Tests
// ============================================================

func orderRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "ref", "remote_id", "exchange", "symbol", "side", "type",
		"quantity", "price", "filled", "price_avg", "status",
		"error_message", "created_at", "updated_at", "completed_at",
	})
}

func TestOrderRepositoryUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewOrderRepository(db)
	now := time.Now()

	order := &models.OrderRecord{
		Ref:       1,
		RemoteID:  "X1",
		Exchange:  "binance",
		Symbol:    "BTC/USDT",
		Side:      "buy",
		Type:      "limit",
		Quantity:  1.5,
		Price:     50000.0,
		Filled:    0.5,
		PriceAvg:  50010.0,
		Status:    "Partial",
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectQuery(`INSERT INTO orders`).
		WithArgs(int64(1), "X1", "binance", "BTC/USDT", "buy", "limit",
			1.5, 50000.0, 0.5, 50010.0, "Partial", "", now, now, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	if err := repo.Upsert(order); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if order.ID != 7 {
		t.Errorf("id = %d, want 7", order.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestOrderRepositoryGetByRef(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewOrderRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
		WithArgs(int64(1)).
		WillReturnRows(orderRows().AddRow(
			7, int64(1), "X1", "binance", "BTC/USDT", "buy", "limit",
			1.5, 50000.0, 1.5, 50010.0, "Completed", "", now, now, &now,
		))

	order, err := repo.GetByRef(1)
	if err != nil {
		t.Fatalf("GetByRef failed: %v", err)
	}
	if order.RemoteID != "X1" || order.Status != "Completed" {
		t.Errorf("unexpected order: %+v", order)
	}
	if order.CompletedAt == nil {
		t.Error("completed_at should be set")
	}
}

func TestOrderRepositoryGetByRefNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewOrderRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
		WithArgs(int64(42)).
		WillReturnRows(orderRows())

	_, err = repo.GetByRef(42)
	if !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepositoryGetRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewOrderRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
		WithArgs(2).
		WillReturnRows(orderRows().
			AddRow(2, int64(2), "X2", "binance", "ETH/USDT", "sell", "market",
				1.0, 0.0, 1.0, 3000.0, "Completed", "", now, now, &now).
			AddRow(1, int64(1), "X1", "binance", "BTC/USDT", "buy", "limit",
				1.5, 50000.0, 0.0, 0.0, "Accepted", "", now, now, nil))

	orders, err := repo.GetRecent(2)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("got %d orders, want 2", len(orders))
	}
	if orders[0].Symbol != "ETH/USDT" {
		t.Errorf("first order symbol = %q", orders[0].Symbol)
	}
}

func TestOrderRepositoryCountByStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewOrderRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM orders WHERE status = $1`)).
		WithArgs("Rejected").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountByStatus("Rejected")
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestOrderRepositoryDeleteOlderThan(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewOrderRepository(db)
	cutoff := time.Now().Add(-24 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM orders WHERE created_at < $1`)).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 5))

	deleted, err := repo.DeleteOlderThan(cutoff)
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if deleted != 5 {
		t.Errorf("deleted = %d, want 5", deleted)
	}
}
