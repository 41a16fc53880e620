package models

import "time"

// Notification представляет событие брокера, доставляемое стратегии
// через PollNotification и в UI через WebSocket
type Notification struct {
	ID        int                    `json:"id" db:"id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	Type      string                 `json:"type" db:"type"`
	Severity  string                 `json:"severity" db:"severity"` // info, warn, error
	OrderRef  *int64                 `json:"order_ref,omitempty" db:"order_ref"`
	Message   string                 `json:"message" db:"message"`
	Meta      map[string]interface{} `json:"meta,omitempty" db:"meta"` // JSON в БД
}

// Типы уведомлений
const (
	NotificationTypeOrder      = "ORDER"      // изменение статуса ордера
	NotificationTypeFill       = "FILL"       // частичное или полное исполнение
	NotificationTypeReject     = "REJECT"     // отклонение запроса биржей
	NotificationTypeError      = "ERROR"      // ошибка удаленного вызова
	NotificationTypeConnect    = "CONNECT"    // подключение к бирже
	NotificationTypeDisconnect = "DISCONNECT" // отключение от биржи
	NotificationTypeDegraded   = "DEGRADED"   // запрос провалился, отдано последнее известное значение
)

// Уровни важности
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)
