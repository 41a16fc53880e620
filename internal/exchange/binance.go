package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"cryptobroker/pkg/ratelimit"
	"cryptobroker/pkg/symbols"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	binanceBaseURL    = "https://api.binance.com"
	binanceTestnetURL = "https://testnet.binance.vision"
)

// Binance реализует Client для спотового рынка Binance.
// Спот не имеет деривативных позиций: Capabilities().Positions == false,
// позиция выводится вызывающим кодом из свободного баланса базового актива.
type Binance struct {
	apiKey    string
	secretKey string

	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
}

// NewBinance создает привязку к Binance с заданной конфигурацией сессии
func NewBinance(cfg RequestConfig) *Binance {
	b := &Binance{
		apiKey:     cfg.APIKey,
		secretKey:  cfg.Secret,
		baseURL:    binanceBaseURL,
		httpClient: SharedHTTPClient(),
	}

	if cfg.Timeout > 0 {
		hc := DefaultHTTPClientConfig()
		hc.TotalTimeout = cfg.Timeout
		b.httpClient = NewHTTPClient(hc)
	}

	if cfg.EnableRateLimit {
		b.limiter = ratelimit.NewLimiter(10, 20) // 10 req/sec, burst 20
	}

	return b
}

func (b *Binance) Name() string {
	return "binance"
}

func (b *Binance) Capabilities() Capabilities {
	return Capabilities{
		Positions: false, // спот: позиций нет
		Sandbox:   true,
		Close:     true,
	}
}

func (b *Binance) SetSandboxMode(enabled bool) error {
	if enabled {
		b.baseURL = binanceTestnetURL
	} else {
		b.baseURL = binanceBaseURL
	}
	return nil
}

// sign создает подпись запроса: HMAC SHA256 от query string
func (b *Binance) sign(query string) string {
	h := hmac.New(sha256.New, []byte(b.secretKey))
	h.Write([]byte(query))
	return hex.EncodeToString(h.Sum(nil))
}

// doRequest выполняет HTTP запрос к Binance API
func (b *Binance) doRequest(ctx context.Context, method, endpoint string, params map[string]string, signed bool) ([]byte, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}

	if signed {
		query.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		query.Set("recvWindow", "5000")
		query.Set("signature", b.sign(query.Encode()))
	}

	reqURL := b.baseURL + endpoint
	if encoded := query.Encode(); encoded != "" {
		reqURL += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, strings.NewReader(""))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if signed {
		req.Header.Set("X-MBX-APIKEY", b.apiKey)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &VenueError{Venue: "binance", Message: err.Error(), Original: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// Binance возвращает {"code":..., "msg":...} при ошибке
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Msg != "" {
			return nil, &VenueError{
				Venue:   "binance",
				Code:    strconv.Itoa(apiErr.Code),
				Message: apiErr.Msg,
			}
		}
		return nil, &VenueError{
			Venue:   "binance",
			Code:    strconv.Itoa(resp.StatusCode),
			Message: http.StatusText(resp.StatusCode),
		}
	}

	return body, nil
}

func (b *Binance) LoadMarkets(ctx context.Context) (map[string]*Market, error) {
	body, err := b.doRequest(ctx, http.MethodGet, "/api/v3/exchangeInfo", nil, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Symbols []struct {
			Symbol     string `json:"symbol"`
			Status     string `json:"status"`
			BaseAsset  string `json:"baseAsset"`
			QuoteAsset string `json:"quoteAsset"`
			Filters    []struct {
				FilterType  string `json:"filterType"`
				TickSize    string `json:"tickSize"`
				StepSize    string `json:"stepSize"`
				MinQty      string `json:"minQty"`
				MaxQty      string `json:"maxQty"`
				MinNotional string `json:"minNotional"`
			} `json:"filters"`
		} `json:"symbols"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	markets := make(map[string]*Market, len(resp.Symbols))
	for _, s := range resp.Symbols {
		m := &Market{
			Symbol: s.BaseAsset + symbols.Delimiter + s.QuoteAsset,
			Base:   s.BaseAsset,
			Quote:  s.QuoteAsset,
			Active: s.Status == "TRADING",
		}

		for _, f := range s.Filters {
			switch f.FilterType {
			case "PRICE_FILTER":
				m.PricePrecision = decimalsOf(f.TickSize)
			case "LOT_SIZE":
				m.AmountPrecision = decimalsOf(f.StepSize)
				m.MinAmount, _ = strconv.ParseFloat(f.MinQty, 64)
				m.MaxAmount, _ = strconv.ParseFloat(f.MaxQty, 64)
			case "NOTIONAL", "MIN_NOTIONAL":
				m.MinCost, _ = strconv.ParseFloat(f.MinNotional, 64)
			}
		}

		markets[m.Symbol] = m
	}

	return markets, nil
}

// decimalsOf определяет точность по шагу вида "0.00010000"
func decimalsOf(step string) int {
	v, err := strconv.ParseFloat(step, 64)
	if err != nil || v <= 0 {
		return 0
	}
	decimals := 0
	for v < 1 {
		v *= 10
		decimals++
	}
	return decimals
}

func (b *Binance) FetchBalance(ctx context.Context) (*Balance, error) {
	body, err := b.doRequest(ctx, http.MethodGet, "/api/v3/account", nil, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Balances []struct {
			Asset  string `json:"asset"`
			Free   string `json:"free"`
			Locked string `json:"locked"`
		} `json:"balances"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	balance := NewBalance()
	for _, a := range resp.Balances {
		free, _ := strconv.ParseFloat(a.Free, 64)
		locked, _ := strconv.ParseFloat(a.Locked, 64)
		if free == 0 && locked == 0 {
			continue
		}
		balance.Free[a.Asset] = free
		balance.Used[a.Asset] = locked
		balance.Total[a.Asset] = free + locked
	}

	return balance, nil
}

func (b *Binance) FetchPositions(ctx context.Context, _ []string) ([]*RemotePosition, error) {
	// Спот не имеет позиций
	return nil, nil
}

func (b *Binance) CreateOrder(ctx context.Context, req OrderRequest) (*RemoteOrder, error) {
	params := map[string]string{
		"symbol":   symbols.Join(req.Symbol),
		"side":     strings.ToUpper(req.Side),
		"quantity": strconv.FormatFloat(req.Amount, 'f', -1, 64),
	}

	switch req.Type {
	case TypeMarket:
		params["type"] = "MARKET"
	case TypeLimit:
		params["type"] = "LIMIT"
		params["timeInForce"] = "GTC"
		params["price"] = strconv.FormatFloat(req.Price, 'f', -1, 64)
	case TypeStopMarket:
		params["type"] = "STOP_LOSS"
		params["stopPrice"] = strconv.FormatFloat(req.StopPrice, 'f', -1, 64)
	case TypeStopLimit:
		params["type"] = "STOP_LOSS_LIMIT"
		params["timeInForce"] = "GTC"
		params["price"] = strconv.FormatFloat(req.Price, 'f', -1, 64)
		params["stopPrice"] = strconv.FormatFloat(req.StopPrice, 'f', -1, 64)
	default:
		return nil, fmt.Errorf("binance: unsupported order type %q", req.Type)
	}

	for k, v := range req.Params {
		params[k] = v
	}

	body, err := b.doRequest(ctx, http.MethodPost, "/api/v3/order", params, true)
	if err != nil {
		return nil, err
	}

	var resp binanceOrder
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	return resp.toRemoteOrder(req.Symbol), nil
}

func (b *Binance) CancelOrder(ctx context.Context, id, symbol string) error {
	params := map[string]string{
		"symbol":  symbols.Join(symbol),
		"orderId": id,
	}

	_, err := b.doRequest(ctx, http.MethodDelete, "/api/v3/order", params, true)
	return err
}

func (b *Binance) FetchOrder(ctx context.Context, id, symbol string) (*RemoteOrder, error) {
	params := map[string]string{
		"symbol":  symbols.Join(symbol),
		"orderId": id,
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/api/v3/order", params, true)
	if err != nil {
		return nil, err
	}

	var resp binanceOrder
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	return resp.toRemoteOrder(symbol), nil
}

func (b *Binance) FetchOpenOrders(ctx context.Context, symbol string) ([]*RemoteOrder, error) {
	params := map[string]string{}
	if symbol != "" {
		params["symbol"] = symbols.Join(symbol)
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/api/v3/openOrders", params, true)
	if err != nil {
		return nil, err
	}

	return b.parseOrderList(body, symbol)
}

func (b *Binance) FetchOrders(ctx context.Context, symbol string, since int64, limit int) ([]*RemoteOrder, error) {
	// Binance требует symbol для истории ордеров
	params := map[string]string{
		"symbol": symbols.Join(symbol),
	}
	if since > 0 {
		params["startTime"] = strconv.FormatInt(since, 10)
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/api/v3/allOrders", params, true)
	if err != nil {
		return nil, err
	}

	return b.parseOrderList(body, symbol)
}

func (b *Binance) parseOrderList(body []byte, symbol string) ([]*RemoteOrder, error) {
	var resp []binanceOrder
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	orders := make([]*RemoteOrder, 0, len(resp))
	for i := range resp {
		orders = append(orders, resp[i].toRemoteOrder(symbol))
	}
	return orders, nil
}

func (b *Binance) FetchOHLCV(ctx context.Context, symbol, timeframe string, since int64, limit int) ([]Candle, error) {
	params := map[string]string{
		"symbol":   symbols.Join(symbol),
		"interval": timeframe,
	}
	if since > 0 {
		params["startTime"] = strconv.FormatInt(since, 10)
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/api/v3/klines", params, false)
	if err != nil {
		return nil, err
	}

	// Формат: [[openTime, open, high, low, close, volume, ...], ...]
	var rows [][]interface{}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, err
	}

	candles := make([]Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		ts, _ := row[0].(float64)
		candles = append(candles, Candle{
			Timestamp: int64(ts),
			Open:      asFloat(row[1]),
			High:      asFloat(row[2]),
			Low:       asFloat(row[3]),
			Close:     asFloat(row[4]),
			Volume:    asFloat(row[5]),
		})
	}

	return candles, nil
}

// asFloat извлекает float64 из значения, которое биржа присылает строкой или числом
func asFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	default:
		return 0
	}
}

func (b *Binance) FetchTicker(ctx context.Context, symbol string) (*Ticker, error) {
	params := map[string]string{
		"symbol": symbols.Join(symbol),
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/api/v3/ticker/24hr", params, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Symbol    string `json:"symbol"`
		BidPrice  string `json:"bidPrice"`
		AskPrice  string `json:"askPrice"`
		LastPrice string `json:"lastPrice"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	bid, _ := strconv.ParseFloat(resp.BidPrice, 64)
	ask, _ := strconv.ParseFloat(resp.AskPrice, 64)
	last, _ := strconv.ParseFloat(resp.LastPrice, 64)

	return &Ticker{
		Symbol:    symbol,
		Bid:       bid,
		Ask:       ask,
		Last:      last,
		Timestamp: time.Now(),
	}, nil
}

func (b *Binance) StreamingEvents(_ context.Context) (<-chan StreamEvent, error) {
	return nil, ErrStreamingNotImplemented
}

func (b *Binance) Close() error {
	if transport, ok := b.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}

// binanceOrder - сырое представление ордера в ответах Binance
type binanceOrder struct {
	OrderID             int64  `json:"orderId"`
	Symbol              string `json:"symbol"`
	Status              string `json:"status"`
	Type                string `json:"type"`
	Side                string `json:"side"`
	Price               string `json:"price"`
	OrigQty             string `json:"origQty"`
	ExecutedQty         string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	Time                int64  `json:"time"`
	TransactTime        int64  `json:"transactTime"`
	Fills               []struct {
		Price           string `json:"price"`
		Qty             string `json:"qty"`
		Commission      string `json:"commission"`
		CommissionAsset string `json:"commissionAsset"`
	} `json:"fills"`
}

// toRemoteOrder нормализует ордер Binance в wire представление
func (o *binanceOrder) toRemoteOrder(symbol string) *RemoteOrder {
	amount, _ := strconv.ParseFloat(o.OrigQty, 64)
	price, _ := strconv.ParseFloat(o.Price, 64)
	filled, _ := strconv.ParseFloat(o.ExecutedQty, 64)
	cost, _ := strconv.ParseFloat(o.CummulativeQuoteQty, 64)

	order := &RemoteOrder{
		ID:        strconv.FormatInt(o.OrderID, 10),
		Symbol:    symbol,
		Type:      strings.ToLower(o.Type),
		Side:      strings.ToLower(o.Side),
		Status:    binanceStatus(o.Status),
		Amount:    amount,
		Price:     price,
		Filled:    filled,
		Remaining: amount - filled,
		Cost:      cost,
	}

	if filled > 0 && cost > 0 {
		order.Average = cost / filled
	}

	for _, f := range o.Fills {
		fee, _ := strconv.ParseFloat(f.Commission, 64)
		order.FeeCost += fee
		order.FeeCurrency = f.CommissionAsset
	}

	ts := o.TransactTime
	if ts == 0 {
		ts = o.Time
	}
	if ts > 0 {
		order.Timestamp = time.UnixMilli(ts)
	}

	return order
}

// binanceStatus приводит статус Binance к wire статусу
func binanceStatus(status string) string {
	switch status {
	case "NEW", "PARTIALLY_FILLED", "PENDING_CANCEL":
		return StatusOpen
	case "FILLED":
		return StatusClosed
	case "CANCELED":
		return StatusCanceled
	case "EXPIRED", "EXPIRED_IN_MATCH":
		return StatusExpired
	case "REJECTED":
		return StatusRejected
	default:
		return StatusOpen
	}
}
