package service

import (
	"time"

	"cryptobroker/internal/models"
)

// OrderRepositoryInterface определяет интерфейс репозитория ордеров
type OrderRepositoryInterface interface {
	Upsert(order *models.OrderRecord) error
	GetByRef(ref int64) (*models.OrderRecord, error)
	GetByRemoteID(remoteID string) (*models.OrderRecord, error)
	GetRecent(limit int) ([]*models.OrderRecord, error)
	GetBySymbol(symbol string, limit int) ([]*models.OrderRecord, error)
	GetByStatus(status string) ([]*models.OrderRecord, error)
	DeleteOlderThan(timestamp time.Time) (int64, error)
	Count() (int, error)
	CountByStatus(status string) (int, error)
}

// NotificationRepositoryInterface определяет интерфейс репозитория уведомлений
type NotificationRepositoryInterface interface {
	Create(n *models.Notification) error
	GetRecent(limit int) ([]*models.Notification, error)
	GetByTypes(types []string, limit int) ([]*models.Notification, error)
	GetBySeverity(severity string, limit int) ([]*models.Notification, error)
	DeleteAll() error
	DeleteOlderThan(timestamp time.Time) (int64, error)
	Count() (int, error)
}

// JournalServiceInterface определяет интерфейс журнала для API handlers
type JournalServiceInterface interface {
	GetRecentOrders(limit int) ([]*models.OrderRecord, error)
	GetOrdersBySymbol(symbol string, limit int) ([]*models.OrderRecord, error)
	GetNotifications(types []string, limit int) ([]*models.Notification, error)
	ClearNotifications() error
}

// WebSocketBroadcaster - интерфейс для отправки WebSocket сообщений.
// Позволяет избежать циклических зависимостей и подставить mock в тестах.
type WebSocketBroadcaster interface {
	BroadcastOrderUpdate(record *models.OrderRecord)
	BroadcastNotification(notif *models.Notification)
}
