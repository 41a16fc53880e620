package websocket

import (
	"time"

	"cryptobroker/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeOrderUpdate - изменение ордера (статус, исполнение)
	MessageTypeOrderUpdate MessageType = "orderUpdate"

	// MessageTypeNotification - новое уведомление брокера
	MessageTypeNotification MessageType = "notification"

	// MessageTypeBalanceUpdate - обновление баланса биржи
	MessageTypeBalanceUpdate MessageType = "balanceUpdate"

	// MessageTypeConnectionState - смена состояния сессии с биржей
	MessageTypeConnectionState MessageType = "connectionState"
)

// BaseMessage - общие поля всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// OrderUpdateMessage - снимок ордера для frontend
type OrderUpdateMessage struct {
	BaseMessage
	Data *models.OrderRecord `json:"data"`
}

// NotificationMessage - сообщение о новом уведомлении
type NotificationMessage struct {
	BaseMessage
	Data *models.Notification `json:"data"`
}

// BalanceUpdateMessage - текущие cash/value счета
type BalanceUpdateMessage struct {
	BaseMessage
	Exchange string  `json:"exchange"`
	Cash     float64 `json:"cash"`
	Value    float64 `json:"value"`
}

// ConnectionStateMessage - состояние сессии с биржей
type ConnectionStateMessage struct {
	BaseMessage
	Exchange  string `json:"exchange"`
	Connected bool   `json:"connected"`
	Sandbox   bool   `json:"sandbox"`
}

// NewOrderUpdateMessage создает сообщение об изменении ордера
func NewOrderUpdateMessage(record *models.OrderRecord) *OrderUpdateMessage {
	return &OrderUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeOrderUpdate,
			Timestamp: time.Now(),
		},
		Data: record,
	}
}

// NewNotificationMessage создает сообщение уведомления
func NewNotificationMessage(notif *models.Notification) *NotificationMessage {
	return &NotificationMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeNotification,
			Timestamp: time.Now(),
		},
		Data: notif,
	}
}

// NewBalanceUpdateMessage создает сообщение обновления баланса
func NewBalanceUpdateMessage(exchange string, cash, value float64) *BalanceUpdateMessage {
	return &BalanceUpdateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeBalanceUpdate,
			Timestamp: time.Now(),
		},
		Exchange: exchange,
		Cash:     cash,
		Value:    value,
	}
}

// NewConnectionStateMessage создает сообщение о состоянии сессии
func NewConnectionStateMessage(exchange string, connected, sandbox bool) *ConnectionStateMessage {
	return &ConnectionStateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeConnectionState,
			Timestamp: time.Now(),
		},
		Exchange:  exchange,
		Connected: connected,
		Sandbox:   sandbox,
	}
}
