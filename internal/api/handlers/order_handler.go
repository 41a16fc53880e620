package handlers

import (
	"net/http"
	"strconv"

	"cryptobroker/internal/models"
	"cryptobroker/internal/service"
)

// OrderHandler отвечает за историю ордеров
//
// Endpoints:
// - GET /api/v1/orders - последние ордера (по умолчанию 100)
// - GET /api/v1/orders?symbol=BTC/USDT - фильтр по инструменту
// - GET /api/v1/orders?limit=50 - с ограничением количества
type OrderHandler struct {
	journal service.JournalServiceInterface
}

// NewOrderHandler создает новый OrderHandler с внедрением зависимости
func NewOrderHandler(journal service.JournalServiceInterface) *OrderHandler {
	return &OrderHandler{
		journal: journal,
	}
}

// GetOrdersResponse представляет ответ списка ордеров
type GetOrdersResponse struct {
	Orders []OrderDTO `json:"orders"`
	Total  int        `json:"total"`
}

// OrderDTO представляет ордер в API
type OrderDTO struct {
	Ref       int64   `json:"ref"`
	RemoteID  string  `json:"remote_id,omitempty"`
	Exchange  string  `json:"exchange"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Type      string  `json:"type"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price,omitempty"`
	Filled    float64 `json:"filled"`
	PriceAvg  float64 `json:"price_avg,omitempty"`
	Status    string  `json:"status"`
	Error     string  `json:"error,omitempty"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// GetOrders возвращает историю ордеров
//
// GET /api/v1/orders
//
// Query параметры:
// - symbol (string): фильтр по инструменту (BTC/USDT)
// - limit (int): количество записей (по умолчанию 100, максимум 500)
func (h *OrderHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	limitParam := r.URL.Query().Get("limit")

	limit := 100 // по умолчанию
	if limitParam != "" {
		if parsed, err := strconv.Atoi(limitParam); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	var (
		orders []*models.OrderRecord
		err    error
	)
	if symbol != "" {
		orders, err = h.journal.GetOrdersBySymbol(symbol, limit)
	} else {
		orders, err = h.journal.GetRecentOrders(limit)
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get orders: "+err.Error())
		return
	}

	dtos := make([]OrderDTO, 0, len(orders))
	for _, o := range orders {
		dto := OrderDTO{
			Ref:       o.Ref,
			RemoteID:  o.RemoteID,
			Exchange:  o.Exchange,
			Symbol:    o.Symbol,
			Side:      o.Side,
			Type:      o.Type,
			Quantity:  o.Quantity,
			Price:     o.Price,
			Filled:    o.Filled,
			PriceAvg:  o.PriceAvg,
			Status:    o.Status,
			Error:     o.ErrorMessage,
			CreatedAt: o.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			UpdatedAt: o.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		dtos = append(dtos, dto)
	}

	response := GetOrdersResponse{
		Orders: dtos,
		Total:  len(dtos),
	}

	respondWithJSON(w, http.StatusOK, response)
}

