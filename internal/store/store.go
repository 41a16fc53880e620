package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"cryptobroker/internal/config"
	"cryptobroker/internal/exchange"
	"cryptobroker/internal/models"
	"cryptobroker/pkg/retry"
)

// ============================================================
// Store - единая точка доступа к бирже
// ============================================================
//
// Store живет один на процесс: брокер и фиды данных делят одну
// сессию, один пул соединений и один rate limiter. Все удаленные
// вызовы проходят через fail-soft обертки: при ошибке вызов
// логируется, уходит уведомление, а вызывающему возвращается
// безопасное нулевое значение вместо паники.

var (
	ErrNotConnected       = errors.New("store is not connected")
	ErrUnsupportedVenue   = errors.New("unsupported exchange")
	ErrAlreadyConnected   = errors.New("store is already connected")
	ErrBrokerFactoryUnset = errors.New("broker factory is not set")
	ErrDataFactoryUnset   = errors.New("data factory is not set")
)

// ConnectError - ошибка установки сессии с биржей
type ConnectError struct {
	Venue string
	Err   error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s failed: %v", e.Venue, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Notifier принимает уведомления о событиях store.
// Реализуется брокером; при nil уведомления только логируются.
type Notifier interface {
	Push(n models.Notification)
}

// BrokerFactory создает брокера поверх подключенного store
type BrokerFactory func(s *Store) interface{}

// DataFactory создает фид данных поверх подключенного store
type DataFactory func(s *Store, symbol, timeframe string) interface{}

// Store управляет сессией с биржей
type Store struct {
	mu sync.RWMutex

	client    exchange.Client
	cfg       config.BrokerConfig
	connected bool
	debug     bool

	markets map[string]*exchange.Market

	// Последний успешный снимок баланса: при деградации
	// отдаем его вместо ошибки
	lastBalance *exchange.Balance
	balanceAt   time.Time

	notifier Notifier

	brokerFactory BrokerFactory
	dataFactory   DataFactory
	broker        interface{}
}

// Процессный singleton
var (
	instanceMu sync.Mutex
	instance   *Store
)

// GetInstance возвращает текущий store или nil если Connect не вызывался
func GetInstance() *Store {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	return instance
}

// Connect устанавливает сессию с биржей. Повторный вызов возвращает
// существующую сессию с предупреждением, даже если параметры отличаются.
func Connect(ctx context.Context, cfg config.BrokerConfig) (*Store, error) {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance != nil && instance.isConnected() {
		log.Printf("[store] Connect called twice, reusing existing %s session", instance.cfg.Exchange)
		return instance, nil
	}

	if !exchange.IsSupported(cfg.Exchange) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVenue, cfg.Exchange)
	}

	client, err := exchange.NewClient(cfg.Exchange, buildRequestConfig(cfg))
	if err != nil {
		return nil, err
	}

	s, err := ConnectWithClient(ctx, cfg, client)
	if err != nil {
		return nil, err
	}

	instance = s
	return instance, nil
}

// buildRequestConfig собирает параметры сессии для привязки.
// Непустой cfg.Config замещает дискретные поля целиком,
// cfg.Options всегда передаются привязке как есть.
func buildRequestConfig(cfg config.BrokerConfig) exchange.RequestConfig {
	rc := exchange.RequestConfig{
		APIKey:          cfg.APIKey,
		Secret:          cfg.APISecret,
		Password:        cfg.APIPassword,
		EnableRateLimit: cfg.EnableRateLimit,
		Timeout:         cfg.Timeout,
		Options:         cfg.Options,
	}

	if len(cfg.Config) == 0 {
		return rc
	}

	rc = exchange.RequestConfig{Options: cfg.Options}
	if v, ok := cfg.Config["apiKey"].(string); ok {
		rc.APIKey = v
	}
	if v, ok := cfg.Config["secret"].(string); ok {
		rc.Secret = v
	}
	if v, ok := cfg.Config["password"].(string); ok {
		rc.Password = v
	}
	if v, ok := cfg.Config["enableRateLimit"].(bool); ok {
		rc.EnableRateLimit = v
	}
	// Таймаут в миллисекундах, как в исходном JSON
	if v, ok := cfg.Config["timeout"].(float64); ok {
		rc.Timeout = time.Duration(v) * time.Millisecond
	}
	return rc
}

// ConnectWithClient выполняет handshake поверх готового клиента,
// минуя фабрику и процессный singleton
func ConnectWithClient(ctx context.Context, cfg config.BrokerConfig, client exchange.Client) (*Store, error) {
	s := &Store{
		client: client,
		cfg:    cfg,
		debug:  cfg.Debug,
	}

	if cfg.Sandbox {
		if client.Capabilities().Sandbox {
			if err := client.SetSandboxMode(true); err != nil {
				return nil, &ConnectError{Venue: cfg.Exchange, Err: err}
			}
			log.Printf("[store] %s sandbox mode enabled", cfg.Exchange)
		} else {
			// Тихая деградация: работаем с боевым API
			log.Printf("[store] WARNING: %s does not support sandbox, continuing with live endpoints", cfg.Exchange)
		}
	}

	// Handshake: загрузка каталога рынков с повторами.
	// RECONNECT задает число повторов после первой неудачной
	// попытки: 0 - ровно одна попытка, -1 - без ограничения.
	maxRetries := cfg.Reconnect + 1
	if cfg.Reconnect < 0 {
		maxRetries = 0
	}
	retryCfg := retry.ConnectConfig(maxRetries)
	retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Printf("[store] connect attempt %d to %s failed: %v, retrying in %v", attempt, cfg.Exchange, err, delay)
	}

	markets, err := retry.DoWithResult(ctx, func() (map[string]*exchange.Market, error) {
		return client.LoadMarkets(ctx)
	}, retryCfg)
	if err != nil {
		return nil, &ConnectError{Venue: cfg.Exchange, Err: err}
	}

	s.markets = markets
	s.connected = true

	// Стартовый снимок баланса, только при наличии ключей
	if cfg.APIKey != "" {
		if balance, err := client.FetchBalance(ctx); err == nil {
			s.lastBalance = balance
			s.balanceAt = time.Now()
		} else {
			log.Printf("[store] initial balance fetch failed: %v", err)
		}
	}

	log.Printf("[store] connected to %s, %d markets loaded (sandbox=%v)",
		cfg.Exchange, len(markets), cfg.Sandbox)

	return s, nil
}

// Disconnect закрывает сессию. Повторный вызов безопасен.
func (s *Store) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}

	s.connected = false
	err := s.client.Close()

	s.notify(models.Notification{
		Timestamp: time.Now(),
		Type:      models.NotificationTypeDisconnect,
		Severity:  models.SeverityInfo,
		Message:   fmt.Sprintf("disconnected from %s", s.cfg.Exchange),
	})

	log.Printf("[store] disconnected from %s", s.cfg.Exchange)
	return err
}

func (s *Store) isConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Exchange возвращает имя подключенной биржи
func (s *Store) Exchange() string {
	return s.cfg.Exchange
}

// Capabilities возвращает дескриптор возможностей биржи
func (s *Store) Capabilities() exchange.Capabilities {
	return s.client.Capabilities()
}

// Config возвращает конфигурацию сессии
func (s *Store) Config() config.BrokerConfig {
	return s.cfg
}

// SetNotifier подключает получателя уведомлений (обычно брокера)
func (s *Store) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// notify отправляет уведомление получателю либо в лог
func (s *Store) notify(n models.Notification) {
	if s.notifier != nil {
		s.notifier.Push(n)
		return
	}
	log.Printf("[store] notification %s/%s: %s", n.Type, n.Severity, n.Message)
}

// ============================================================
// Фабрики брокера и фидов данных
// ============================================================

// SetBrokerFactory регистрирует конструктор брокера.
// Вызывается при старте приложения, до GetBroker.
func (s *Store) SetBrokerFactory(f BrokerFactory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brokerFactory = f
}

// SetDataFactory регистрирует конструктор фида данных
func (s *Store) SetDataFactory(f DataFactory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataFactory = f
}

// GetBroker возвращает брокера, создавая его при первом вызове
func (s *Store) GetBroker() (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.broker != nil {
		return s.broker, nil
	}
	if s.brokerFactory == nil {
		return nil, ErrBrokerFactoryUnset
	}
	s.broker = s.brokerFactory(s)
	return s.broker, nil
}

// GetData создает фид данных для символа и таймфрейма
func (s *Store) GetData(symbol, timeframe string) (interface{}, error) {
	s.mu.RLock()
	factory := s.dataFactory
	s.mu.RUnlock()

	if factory == nil {
		return nil, ErrDataFactoryUnset
	}
	return factory(s, symbol, timeframe), nil
}

// ============================================================
// Каталог рынков
// ============================================================

// Markets возвращает загруженный при подключении каталог рынков
func (s *Store) Markets() map[string]*exchange.Market {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.markets
}

// Market возвращает описание рынка по унифицированному символу
func (s *Store) Market(symbol string) (*exchange.Market, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.markets[symbol]
	return m, ok
}

// Таймфреймы в миллисекундах
var granularities = map[string]int64{
	"1m":  60 * 1000,
	"3m":  3 * 60 * 1000,
	"5m":  5 * 60 * 1000,
	"15m": 15 * 60 * 1000,
	"30m": 30 * 60 * 1000,
	"1h":  60 * 60 * 1000,
	"2h":  2 * 60 * 60 * 1000,
	"4h":  4 * 60 * 60 * 1000,
	"6h":  6 * 60 * 60 * 1000,
	"12h": 12 * 60 * 60 * 1000,
	"1d":  24 * 60 * 60 * 1000,
	"1w":  7 * 24 * 60 * 60 * 1000,
}

// GetTimeframeMS возвращает длительность таймфрейма в миллисекундах,
// 0 для неизвестного таймфрейма
func GetTimeframeMS(timeframe string) int64 {
	return granularities[timeframe]
}
