package models

import "time"

// OrderRecord - журнальная запись об ордере для БД и UI.
// Локальная история, не авторитетный источник: им остается биржа.
type OrderRecord struct {
	ID           int        `json:"id" db:"id"`
	Ref          int64      `json:"ref" db:"ref"`             // локальный номер ордера
	RemoteID     string     `json:"remote_id" db:"remote_id"` // ID на бирже
	Exchange     string     `json:"exchange" db:"exchange"`
	Symbol       string     `json:"symbol" db:"symbol"`
	Side         string     `json:"side" db:"side"` // buy, sell
	Type         string     `json:"type" db:"type"` // market, limit, stop_market, stop_limit
	Quantity     float64    `json:"quantity" db:"quantity"`
	Price        float64    `json:"price" db:"price"`
	Filled       float64    `json:"filled" db:"filled"`
	PriceAvg     float64    `json:"price_avg" db:"price_avg"` // средняя цена исполнения
	Status       string     `json:"status" db:"status"`
	ErrorMessage string     `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}
