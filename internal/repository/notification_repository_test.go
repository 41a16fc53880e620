package repository

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"cryptobroker/internal/models"
)

// ============================================================
// NotificationRepository Tests
// ============================================================

func notificationRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "timestamp", "type", "severity", "order_ref", "message", "meta",
	})
}

func TestNotificationRepositoryCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewNotificationRepository(db)
	ref := int64(1)

	n := &models.Notification{
		Timestamp: time.Now(),
		Type:      models.NotificationTypeFill,
		Severity:  models.SeverityInfo,
		OrderRef:  &ref,
		Message:   "order 1 filled 1.5/1.5 at 50010",
		Meta:      map[string]interface{}{"symbol": "BTC/USDT"},
	}

	mock.ExpectQuery(`INSERT INTO notifications`).
		WithArgs(n.Timestamp, n.Type, n.Severity, &ref, n.Message, []byte(`{"symbol":"BTC/USDT"}`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	if err := repo.Create(n); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if n.ID != 1 {
		t.Errorf("id = %d, want 1", n.ID)
	}
}

func TestNotificationRepositoryCreateNoMeta(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewNotificationRepository(db)

	n := &models.Notification{
		Timestamp: time.Now(),
		Type:      models.NotificationTypeConnect,
		Severity:  models.SeverityInfo,
		Message:   "connected to binance",
	}

	mock.ExpectQuery(`INSERT INTO notifications`).
		WithArgs(n.Timestamp, n.Type, n.Severity, nil, n.Message, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))

	if err := repo.Create(n); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
}

func TestNotificationRepositoryGetRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewNotificationRepository(db)
	now := time.Now()
	ref := int64(3)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
		WithArgs(10).
		WillReturnRows(notificationRows().
			AddRow(2, now, models.NotificationTypeError, models.SeverityError, nil,
				"binance FetchBalance: timeout", []byte(`{"op":"FetchBalance"}`)).
			AddRow(1, now, models.NotificationTypeOrder, models.SeverityInfo, &ref,
				"order 3 submitted", nil))

	notifs, err := repo.GetRecent(10)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(notifs) != 2 {
		t.Fatalf("got %d notifications, want 2", len(notifs))
	}
	if notifs[0].Meta["op"] != "FetchBalance" {
		t.Errorf("meta not decoded: %+v", notifs[0].Meta)
	}
	if notifs[1].OrderRef == nil || *notifs[1].OrderRef != 3 {
		t.Error("order_ref not scanned")
	}
}

func TestNotificationRepositoryGetByTypes(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewNotificationRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE type IN ($1, $2)`)).
		WithArgs(models.NotificationTypeError, models.NotificationTypeReject, 5).
		WillReturnRows(notificationRows().
			AddRow(1, now, models.NotificationTypeError, models.SeverityError, nil, "boom", nil))

	notifs, err := repo.GetByTypes([]string{models.NotificationTypeError, models.NotificationTypeReject}, 5)
	if err != nil {
		t.Fatalf("GetByTypes failed: %v", err)
	}
	if len(notifs) != 1 {
		t.Errorf("got %d notifications, want 1", len(notifs))
	}
}

func TestNotificationRepositoryDeleteAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewNotificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM notifications`)).
		WillReturnResult(sqlmock.NewResult(0, 12))

	if err := repo.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
