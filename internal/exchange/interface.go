package exchange

import (
	"context"
	"errors"
	"time"
)

// Client определяет унифицированный контракт привязки к бирже.
// Все сетевые вызовы синхронные и блокирующие; таймауты контролируются
// через context и настройки HTTP клиента.
type Client interface {
	// Name возвращает идентификатор биржи
	Name() string

	// Capabilities возвращает дескриптор возможностей биржи.
	// Определяется один раз при создании привязки, не зондируется в рантайме.
	Capabilities() Capabilities

	// SetSandboxMode переключает привязку на testnet endpoints.
	// Возвращает ошибку если Capabilities().Sandbox == false.
	SetSandboxMode(enabled bool) error

	// LoadMarkets загружает каталог инструментов биржи
	LoadMarkets(ctx context.Context) (map[string]*Market, error)

	// FetchBalance запрашивает балансы аккаунта по всем валютам
	FetchBalance(ctx context.Context) (*Balance, error)

	// FetchPositions запрашивает открытые позиции (только деривативы).
	// Пустой symbols = все позиции.
	FetchPositions(ctx context.Context, symbols []string) ([]*RemotePosition, error)

	// CreateOrder размещает ордер на бирже
	CreateOrder(ctx context.Context, req OrderRequest) (*RemoteOrder, error)

	// CancelOrder отменяет ордер по биржевому ID
	CancelOrder(ctx context.Context, id, symbol string) error

	// FetchOrder запрашивает текущее состояние ордера
	FetchOrder(ctx context.Context, id, symbol string) (*RemoteOrder, error)

	// FetchOpenOrders возвращает открытые ордера
	FetchOpenOrders(ctx context.Context, symbol string) ([]*RemoteOrder, error)

	// FetchOrders возвращает историю ордеров
	FetchOrders(ctx context.Context, symbol string, since int64, limit int) ([]*RemoteOrder, error)

	// FetchOHLCV возвращает свечи
	FetchOHLCV(ctx context.Context, symbol, timeframe string, since int64, limit int) ([]Candle, error)

	// FetchTicker возвращает текущую цену инструмента
	FetchTicker(ctx context.Context, symbol string) (*Ticker, error)

	// StreamingEvents - заглушка для будущей поддержки WebSocket стриминга.
	// Все привязки возвращают ErrStreamingNotImplemented.
	StreamingEvents(ctx context.Context) (<-chan StreamEvent, error)

	// Close закрывает соединения с биржей
	Close() error
}

// Capabilities - дескриптор возможностей биржи, фиксируется при создании привязки
type Capabilities struct {
	Positions bool // поддержка запроса деривативных позиций
	Sandbox   bool // поддержка testnet режима
	Close     bool // требуется явное закрытие соединений
}

// RequestConfig - параметры сессии для создания привязки
type RequestConfig struct {
	APIKey          string
	Secret          string
	Password        string            // для бирж требующих passphrase
	EnableRateLimit bool              // включить token bucket лимитер запросов
	Timeout         time.Duration     // общий таймаут HTTP запросов
	Options         map[string]string // дополнительные опции привязки
}

// OrderRequest - параметры размещения ордера
type OrderRequest struct {
	Symbol    string    // в биржевом формате (BTC/USDT)
	Type      OrderType // market, limit, stop_market, stop_limit
	Side      string    // buy или sell
	Amount    float64   // абсолютный размер в базовой валюте
	Price     float64   // лимитная цена (0 для market)
	StopPrice float64   // триггерная цена для stop-вариантов
	Params    map[string]string
}

// OrderType - тип ордера в терминах wire контракта
type OrderType string

const (
	TypeMarket     OrderType = "market"
	TypeLimit      OrderType = "limit"
	TypeStopMarket OrderType = "stop_market"
	TypeStopLimit  OrderType = "stop_limit"
)

// RemoteOrder - представление ордера на стороне биржи
type RemoteOrder struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Type        string    `json:"type"`
	Side        string    `json:"side"`
	Status      string    `json:"status"` // open, closed, canceled, expired, rejected
	Amount      float64   `json:"amount"`
	Price       float64   `json:"price"`
	Average     float64   `json:"average"` // средняя цена исполнения
	Filled      float64   `json:"filled"`
	Remaining   float64   `json:"remaining"`
	Cost        float64   `json:"cost"` // исполненный объём в котируемой валюте
	FeeCost     float64   `json:"fee_cost"`
	FeeCurrency string    `json:"fee_currency"`
	Timestamp   time.Time `json:"timestamp"`
}

// Статусы ордера на стороне биржи
const (
	StatusOpen      = "open"
	StatusClosed    = "closed"
	StatusCanceled  = "canceled"
	StatusCancelled = "cancelled" // некоторые биржи пишут через двойное l
	StatusExpired   = "expired"
	StatusRejected  = "rejected"
)

// Balance - балансы аккаунта по валютам
type Balance struct {
	Free  map[string]float64 `json:"free"`
	Used  map[string]float64 `json:"used"`
	Total map[string]float64 `json:"total"`
}

// NewBalance создает пустой Balance с инициализированными картами
func NewBalance() *Balance {
	return &Balance{
		Free:  make(map[string]float64),
		Used:  make(map[string]float64),
		Total: make(map[string]float64),
	}
}

// RemotePosition - открытая деривативная позиция на бирже
type RemotePosition struct {
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"` // long или short
	Contracts     float64 `json:"contracts"`
	EntryPrice    float64 `json:"entry_price"`
	MarkPrice     float64 `json:"mark_price"`
	UnrealizedPnl float64 `json:"unrealized_pnl"`
	Leverage      int     `json:"leverage"`
}

// Market - метаданные инструмента из каталога биржи
type Market struct {
	Symbol          string  `json:"symbol"` // биржевой формат BTC/USDT
	Base            string  `json:"base"`
	Quote           string  `json:"quote"`
	PricePrecision  int     `json:"price_precision"`
	AmountPrecision int     `json:"amount_precision"`
	MinAmount       float64 `json:"min_amount"`
	MaxAmount       float64 `json:"max_amount"`
	MinCost         float64 `json:"min_cost"`
	Active          bool    `json:"active"`
}

// Ticker - текущая цена инструмента
type Ticker struct {
	Symbol    string    `json:"symbol"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Last      float64   `json:"last"`
	Timestamp time.Time `json:"timestamp"`
}

// Candle - одна OHLCV свеча
type Candle struct {
	Timestamp int64   `json:"timestamp"` // unix ms открытия свечи
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// StreamEvent - событие стриминга (зарезервировано, стриминг не реализован)
type StreamEvent struct {
	Type    string
	Payload interface{}
}

// ErrStreamingNotImplemented возвращается заглушкой StreamingEvents
var ErrStreamingNotImplemented = errors.New("streaming is not implemented")

// VenueError представляет ошибку от биржи
type VenueError struct {
	Venue    string
	Code     string
	Message  string
	Original error
}

func (e *VenueError) Error() string {
	return e.Venue + ": " + e.Message
}

// Unwrap возвращает оригинальную ошибку для поддержки errors.Is() и errors.As()
func (e *VenueError) Unwrap() error {
	return e.Original
}

// Side constants for orders
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Side constants for positions
const (
	SideLong  = "long"
	SideShort = "short"
)
