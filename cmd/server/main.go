package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cryptobroker/internal/api"
	"cryptobroker/internal/broker"
	"cryptobroker/internal/config"
	"cryptobroker/internal/repository"
	"cryptobroker/internal/service"
	"cryptobroker/internal/store"
	"cryptobroker/internal/websocket"

	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Println("Connected to database successfully")

	// Инициализация репозиториев
	orderRepo := repository.NewOrderRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Журнал событий: БД + WebSocket broadcast
	journal := service.NewJournalService(orderRepo, notificationRepo)

	// WebSocket hub для real-time обновлений UI
	hub := websocket.NewHub()
	go hub.Run()
	journal.SetWebSocketHub(hub)

	// Подключение к бирже
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Connect(ctx, cfg.Broker)
	if err != nil {
		log.Fatalf("Failed to connect to exchange: %v", err)
	}
	defer st.Disconnect()

	log.Printf("Connected to %s (sandbox=%v)", st.Exchange(), cfg.Broker.Sandbox)

	// Брокер создается через фабрику, чтобы store оставался
	// единственной точкой доступа к бирже
	st.SetBrokerFactory(func(s *store.Store) interface{} {
		return broker.New(ctx, s)
	})

	raw, err := st.GetBroker()
	if err != nil {
		log.Fatalf("Failed to create broker: %v", err)
	}
	brk := raw.(*broker.Broker)
	brk.SetJournal(journal)

	// Фоновая сверка ордеров и обновление баланса
	go runBackgroundLoops(ctx, brk, hub, st, cfg.Broker)

	// Настройка зависимостей для API
	deps := &api.Dependencies{
		Journal: journal,
		Broker:  brk,
		Store:   st,
		Hub:     hub,
	}

	// Настройка HTTP роутера
	router := api.SetupRoutes(deps)

	// HTTP сервер
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	go func() {
		log.Printf("Starting server on %s", server.Addr)
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server failed: %v", err)
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server failed: %v", err)
			}
		}
	}()

	// Graceful shutdown
	<-ctx.Done()

	log.Println("Shutting down server...")

	// Закрываем соединение с биржей
	if err := st.Disconnect(); err != nil {
		log.Printf("Error closing exchange connection: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// runBackgroundLoops периодически сверяет открытые ордера с биржей
// и обновляет баланс счета
func runBackgroundLoops(ctx context.Context, brk *broker.Broker, hub *websocket.Hub, st *store.Store, cfg config.BrokerConfig) {
	reconcile := time.NewTicker(10 * time.Second)
	defer reconcile.Stop()

	balance := time.NewTicker(cfg.BalanceUpdateFreq)
	defer balance.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-reconcile.C:
			brk.Reconcile(ctx)
		case <-balance.C:
			brk.UpdateBalance(ctx)
			hub.BroadcastBalanceUpdate(st.Exchange(), brk.GetCash(), brk.GetValue())
		}
	}
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
