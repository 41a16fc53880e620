package api

import (
	"net/http"

	"cryptobroker/internal/api/handlers"
	"cryptobroker/internal/api/middleware"
	"cryptobroker/internal/broker"
	"cryptobroker/internal/service"
	"cryptobroker/internal/store"
	"cryptobroker/internal/websocket"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	Journal *service.JournalService
	Broker  *broker.Broker
	Store   *store.Store
	Hub     *websocket.Hub
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /orders
//	│   └── GET / - история ордеров (?symbol=&limit=)
//	├── /notifications
//	│   ├── GET / - журнал событий (?types=&limit=)
//	│   └── DELETE / - очистить журнал
//	├── /balance
//	│   └── GET / - денежный остаток и стоимость счета
//	├── /positions
//	│   └── GET / - позиция по инструменту (?symbol=)
//	└── /connection
//	    └── GET / - состояние подключения к бирже
//
// /ws/
//
//	└── /stream - WebSocket для real-time обновлений
//
// /metrics - Prometheus метрики (за DebugAuth)
// /health - проверка живости
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	// Создание handlers с внедрением зависимостей
	var notificationHandler *handlers.NotificationHandler
	var orderHandler *handlers.OrderHandler
	if deps != nil && deps.Journal != nil {
		notificationHandler = handlers.NewNotificationHandler(deps.Journal)
		orderHandler = handlers.NewOrderHandler(deps.Journal)
	}

	var brokerHandler *handlers.BrokerHandler
	if deps != nil && deps.Broker != nil && deps.Store != nil {
		brokerHandler = handlers.NewBrokerHandler(deps.Broker, deps.Store)
	}

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	// Order routes
	if orderHandler != nil {
		api.HandleFunc("/orders", orderHandler.GetOrders).Methods("GET")
	}

	// Notification routes
	if notificationHandler != nil {
		api.HandleFunc("/notifications", notificationHandler.GetNotifications).Methods("GET")
		api.HandleFunc("/notifications", notificationHandler.ClearNotifications).Methods("DELETE")
	}

	// Broker state routes
	if brokerHandler != nil {
		api.HandleFunc("/balance", brokerHandler.GetBalance).Methods("GET")
		api.HandleFunc("/positions", brokerHandler.GetPosition).Methods("GET")
		api.HandleFunc("/connection", brokerHandler.GetConnection).Methods("GET")
	}

	// WebSocket route
	if deps != nil && deps.Hub != nil {
		hub := deps.Hub
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(hub, w, r)
		})
	}

	// Prometheus метрики за базовой аутентификацией
	router.Handle("/metrics", middleware.DebugAuth(promhttp.Handler())).Methods("GET")

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
