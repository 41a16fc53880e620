package service

import (
	"log"
	"time"

	"cryptobroker/internal/models"
)

// JournalService ведет журнал событий брокера: снимки ордеров
// и уведомления пишутся в БД и рассылаются в UI через WebSocket.
//
// Реализует broker.Journal. Журнал вспомогательный: ошибки БД
// логируются и не прерывают торговлю.
type JournalService struct {
	orderRepo OrderRepositoryInterface
	notifRepo NotificationRepositoryInterface
	wsHub     WebSocketBroadcaster
}

// NewJournalService создает новый экземпляр JournalService
func NewJournalService(orderRepo OrderRepositoryInterface, notifRepo NotificationRepositoryInterface) *JournalService {
	return &JournalService{
		orderRepo: orderRepo,
		notifRepo: notifRepo,
	}
}

// SetWebSocketHub устанавливает WebSocket hub для broadcast.
// Вызывается после инициализации Hub в main.go.
func (s *JournalService) SetWebSocketHub(hub WebSocketBroadcaster) {
	s.wsHub = hub
}

// SaveOrder сохраняет снимок ордера и рассылает его в UI
func (s *JournalService) SaveOrder(record models.OrderRecord) {
	if err := s.orderRepo.Upsert(&record); err != nil {
		log.Printf("[journal] save order %d: %v", record.Ref, err)
	}

	if s.wsHub != nil {
		s.wsHub.BroadcastOrderUpdate(&record)
	}
}

// SaveNotification сохраняет уведомление и рассылает его в UI
func (s *JournalService) SaveNotification(n models.Notification) {
	if err := s.notifRepo.Create(&n); err != nil {
		log.Printf("[journal] save notification %s: %v", n.Type, err)
	}

	if s.wsHub != nil {
		s.wsHub.BroadcastNotification(&n)
	}
}

// GetRecentOrders возвращает последние ордера для UI
func (s *JournalService) GetRecentOrders(limit int) ([]*models.OrderRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.orderRepo.GetRecent(limit)
}

// GetOrdersBySymbol возвращает ордера по инструменту
func (s *JournalService) GetOrdersBySymbol(symbol string, limit int) ([]*models.OrderRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.orderRepo.GetBySymbol(symbol, limit)
}

// GetNotifications возвращает уведомления с фильтрацией по типам
func (s *JournalService) GetNotifications(types []string, limit int) ([]*models.Notification, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if len(types) == 0 {
		return s.notifRepo.GetRecent(limit)
	}
	return s.notifRepo.GetByTypes(types, limit)
}

// ClearNotifications очищает журнал уведомлений
func (s *JournalService) ClearNotifications() error {
	return s.notifRepo.DeleteAll()
}

// Cleanup удаляет записи старше retention
func (s *JournalService) Cleanup(retention time.Duration) {
	cutoff := time.Now().Add(-retention)

	if deleted, err := s.orderRepo.DeleteOlderThan(cutoff); err != nil {
		log.Printf("[journal] cleanup orders: %v", err)
	} else if deleted > 0 {
		log.Printf("[journal] removed %d old order records", deleted)
	}

	if deleted, err := s.notifRepo.DeleteOlderThan(cutoff); err != nil {
		log.Printf("[journal] cleanup notifications: %v", err)
	} else if deleted > 0 {
		log.Printf("[journal] removed %d old notifications", deleted)
	}
}
