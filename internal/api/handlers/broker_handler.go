package handlers

import (
	"context"
	"net/http"

	"cryptobroker/internal/broker"
	"cryptobroker/internal/config"
	"cryptobroker/internal/exchange"
)

// BrokerHandler отвечает за состояние брокера: баланс, позиции,
// статус подключения к бирже
//
// Endpoints:
// - GET /api/v1/balance - денежный остаток и стоимость счета
// - GET /api/v1/positions?symbol=BTC/USDT - позиция по инструменту
// - GET /api/v1/connection - состояние подключения
type BrokerHandler struct {
	broker BrokerStateProvider
	store  ConnectionInfoProvider
}

// BrokerStateProvider определяет интерфейс брокера для API handlers
type BrokerStateProvider interface {
	GetCash() float64
	GetValue() float64
	GetPosition(ctx context.Context, symbol string, clone bool) *broker.Position
	OpenOrdersCount() int
}

// ConnectionInfoProvider определяет интерфейс Store для API handlers
type ConnectionInfoProvider interface {
	Exchange() string
	Capabilities() exchange.Capabilities
	Config() config.BrokerConfig
}

// NewBrokerHandler создает новый BrokerHandler с внедрением зависимостей
func NewBrokerHandler(b BrokerStateProvider, s ConnectionInfoProvider) *BrokerHandler {
	return &BrokerHandler{
		broker: b,
		store:  s,
	}
}

// BalanceResponse представляет ответ с балансом счета
type BalanceResponse struct {
	Exchange   string  `json:"exchange"`
	Currency   string  `json:"currency"`
	Cash       float64 `json:"cash"`
	Value      float64 `json:"value"`
	OpenOrders int     `json:"open_orders"`
}

// GetBalance возвращает денежный остаток и стоимость счета
//
// GET /api/v1/balance
func (h *BrokerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	cfg := h.store.Config()

	response := BalanceResponse{
		Exchange:   h.store.Exchange(),
		Currency:   cfg.BaseCurrency,
		Cash:       h.broker.GetCash(),
		Value:      h.broker.GetValue(),
		OpenOrders: h.broker.OpenOrdersCount(),
	}

	respondWithJSON(w, http.StatusOK, response)
}

// PositionResponse представляет позицию по инструменту
type PositionResponse struct {
	Symbol string  `json:"symbol"`
	Size   float64 `json:"size"`
	Price  float64 `json:"price"`
}

// GetPosition возвращает позицию по инструменту
//
// GET /api/v1/positions?symbol=BTC/USDT
func (h *BrokerHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		respondWithError(w, http.StatusBadRequest, "symbol query parameter is required")
		return
	}

	pos := h.broker.GetPosition(r.Context(), symbol, true)
	if pos == nil {
		pos = &broker.Position{}
	}

	response := PositionResponse{
		Symbol: symbol,
		Size:   pos.Size,
		Price:  pos.Price,
	}

	respondWithJSON(w, http.StatusOK, response)
}

// ConnectionResponse представляет состояние подключения к бирже
type ConnectionResponse struct {
	Exchange  string `json:"exchange"`
	Sandbox   bool   `json:"sandbox"`
	Positions bool   `json:"positions"`
	Close     bool   `json:"close"`
}

// GetConnection возвращает состояние подключения и возможности биржи
//
// GET /api/v1/connection
func (h *BrokerHandler) GetConnection(w http.ResponseWriter, r *http.Request) {
	cfg := h.store.Config()
	caps := h.store.Capabilities()

	response := ConnectionResponse{
		Exchange:  h.store.Exchange(),
		Sandbox:   cfg.Sandbox && caps.Sandbox,
		Positions: caps.Positions,
		Close:     caps.Close,
	}

	respondWithJSON(w, http.StatusOK, response)
}

