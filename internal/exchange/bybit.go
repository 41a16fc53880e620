package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cryptobroker/pkg/ratelimit"
	"cryptobroker/pkg/symbols"
)

const (
	bybitBaseURL    = "https://api.bybit.com"
	bybitTestnetURL = "https://api-testnet.bybit.com"
	bybitRecvWindow = "5000"
	bybitCategory   = "linear" // USDT perpetual
)

// Bybit реализует Client для USDT-linear деривативов Bybit.
// В отличие от спота здесь есть авторитетные позиции:
// Capabilities().Positions == true.
type Bybit struct {
	apiKey    string
	secretKey string

	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
}

// NewBybit создает привязку к Bybit с заданной конфигурацией сессии
func NewBybit(cfg RequestConfig) *Bybit {
	b := &Bybit{
		apiKey:     cfg.APIKey,
		secretKey:  cfg.Secret,
		baseURL:    bybitBaseURL,
		httpClient: SharedHTTPClient(),
	}

	if cfg.Timeout > 0 {
		hc := DefaultHTTPClientConfig()
		hc.TotalTimeout = cfg.Timeout
		b.httpClient = NewHTTPClient(hc)
	}

	if cfg.EnableRateLimit {
		b.limiter = ratelimit.NewLimiter(10, 20)
	}

	return b
}

func (b *Bybit) Name() string {
	return "bybit"
}

func (b *Bybit) Capabilities() Capabilities {
	return Capabilities{
		Positions: true,
		Sandbox:   true,
		Close:     true,
	}
}

func (b *Bybit) SetSandboxMode(enabled bool) error {
	if enabled {
		b.baseURL = bybitTestnetURL
	} else {
		b.baseURL = bybitBaseURL
	}
	return nil
}

// sign создает подпись для запроса к Bybit API v5
func (b *Bybit) sign(timestamp, payload string) string {
	message := timestamp + b.apiKey + bybitRecvWindow + payload
	h := hmac.New(sha256.New, []byte(b.secretKey))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// doRequest выполняет HTTP запрос к Bybit API
func (b *Bybit) doRequest(ctx context.Context, method, endpoint string, params map[string]string, signed bool) ([]byte, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var reqBody string
	var reqURL string

	if method == http.MethodGet {
		query := url.Values{}
		for k, v := range params {
			query.Set(k, v)
		}
		reqBody = query.Encode()
		reqURL = b.baseURL + endpoint
		if reqBody != "" {
			reqURL += "?" + reqBody
		}
	} else {
		reqURL = b.baseURL + endpoint
		if len(params) > 0 {
			jsonBytes, _ := json.Marshal(params)
			reqBody = string(jsonBytes)
		}
	}

	var bodyReader io.Reader
	if method != http.MethodGet {
		bodyReader = strings.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	if signed {
		timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
		signature := b.sign(timestamp, reqBody)

		req.Header.Set("X-BAPI-API-KEY", b.apiKey)
		req.Header.Set("X-BAPI-SIGN", signature)
		req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
		req.Header.Set("X-BAPI-RECV-WINDOW", bybitRecvWindow)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &VenueError{Venue: "bybit", Message: err.Error(), Original: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// Проверяем базовый ответ
	var baseResp struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
	}
	if err := json.Unmarshal(body, &baseResp); err != nil {
		return nil, err
	}

	if baseResp.RetCode != 0 {
		return nil, &VenueError{
			Venue:   "bybit",
			Code:    strconv.Itoa(baseResp.RetCode),
			Message: baseResp.RetMsg,
		}
	}

	return body, nil
}

func (b *Bybit) LoadMarkets(ctx context.Context) (map[string]*Market, error) {
	params := map[string]string{
		"category": bybitCategory,
		"limit":    "1000",
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/v5/market/instruments-info", params, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			List []struct {
				Symbol        string `json:"symbol"`
				BaseCoin      string `json:"baseCoin"`
				QuoteCoin     string `json:"quoteCoin"`
				Status        string `json:"status"`
				LotSizeFilter struct {
					MinOrderQty string `json:"minOrderQty"`
					MaxOrderQty string `json:"maxOrderQty"`
					QtyStep     string `json:"qtyStep"`
				} `json:"lotSizeFilter"`
				PriceFilter struct {
					TickSize string `json:"tickSize"`
				} `json:"priceFilter"`
			} `json:"list"`
		} `json:"result"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	markets := make(map[string]*Market, len(resp.Result.List))
	for _, s := range resp.Result.List {
		minQty, _ := strconv.ParseFloat(s.LotSizeFilter.MinOrderQty, 64)
		maxQty, _ := strconv.ParseFloat(s.LotSizeFilter.MaxOrderQty, 64)

		m := &Market{
			Symbol:          s.BaseCoin + symbols.Delimiter + s.QuoteCoin,
			Base:            s.BaseCoin,
			Quote:           s.QuoteCoin,
			PricePrecision:  decimalsOf(s.PriceFilter.TickSize),
			AmountPrecision: decimalsOf(s.LotSizeFilter.QtyStep),
			MinAmount:       minQty,
			MaxAmount:       maxQty,
			MinCost:         5.0, // минимальная сумма сделки Bybit в USDT
			Active:          s.Status == "Trading",
		}
		markets[m.Symbol] = m
	}

	return markets, nil
}

func (b *Bybit) FetchBalance(ctx context.Context) (*Balance, error) {
	params := map[string]string{
		"accountType": "UNIFIED",
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/v5/account/wallet-balance", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			List []struct {
				Coin []struct {
					Coin          string `json:"coin"`
					WalletBalance string `json:"walletBalance"`
					Locked        string `json:"locked"`
				} `json:"coin"`
			} `json:"list"`
		} `json:"result"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	balance := NewBalance()
	if len(resp.Result.List) > 0 {
		for _, c := range resp.Result.List[0].Coin {
			total, _ := strconv.ParseFloat(c.WalletBalance, 64)
			locked, _ := strconv.ParseFloat(c.Locked, 64)
			free := total - locked
			if total == 0 {
				continue
			}
			balance.Free[c.Coin] = free
			balance.Used[c.Coin] = locked
			balance.Total[c.Coin] = total
		}
	}

	return balance, nil
}

func (b *Bybit) FetchPositions(ctx context.Context, syms []string) ([]*RemotePosition, error) {
	params := map[string]string{
		"category":   bybitCategory,
		"settleCoin": "USDT",
	}
	if len(syms) == 1 {
		params["symbol"] = symbols.Join(syms[0])
		delete(params, "settleCoin")
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/v5/position/list", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			List []struct {
				Symbol        string `json:"symbol"`
				Side          string `json:"side"`
				Size          string `json:"size"`
				AvgPrice      string `json:"avgPrice"`
				MarkPrice     string `json:"markPrice"`
				Leverage      string `json:"leverage"`
				UnrealisedPnl string `json:"unrealisedPnl"`
			} `json:"list"`
		} `json:"result"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	positions := make([]*RemotePosition, 0)
	for _, p := range resp.Result.List {
		size, _ := strconv.ParseFloat(p.Size, 64)
		if size == 0 {
			continue
		}

		entryPrice, _ := strconv.ParseFloat(p.AvgPrice, 64)
		markPrice, _ := strconv.ParseFloat(p.MarkPrice, 64)
		leverage, _ := strconv.Atoi(p.Leverage)
		unrealizedPnl, _ := strconv.ParseFloat(p.UnrealisedPnl, 64)

		side := SideLong
		if p.Side == "Sell" {
			side = SideShort
		}

		positions = append(positions, &RemotePosition{
			Symbol:        symbols.Format(p.Symbol),
			Side:          side,
			Contracts:     size,
			EntryPrice:    entryPrice,
			MarkPrice:     markPrice,
			UnrealizedPnl: unrealizedPnl,
			Leverage:      leverage,
		})
	}

	return positions, nil
}

func (b *Bybit) CreateOrder(ctx context.Context, req OrderRequest) (*RemoteOrder, error) {
	// Конвертируем side в формат Bybit
	side := "Buy"
	if req.Side == SideSell {
		side = "Sell"
	}

	params := map[string]string{
		"category": bybitCategory,
		"symbol":   symbols.Join(req.Symbol),
		"side":     side,
		"qty":      strconv.FormatFloat(req.Amount, 'f', -1, 64),
	}

	switch req.Type {
	case TypeMarket:
		params["orderType"] = "Market"
	case TypeLimit:
		params["orderType"] = "Limit"
		params["price"] = strconv.FormatFloat(req.Price, 'f', -1, 64)
		params["timeInForce"] = "GTC"
	case TypeStopMarket:
		params["orderType"] = "Market"
		params["triggerPrice"] = strconv.FormatFloat(req.StopPrice, 'f', -1, 64)
		params["triggerDirection"] = triggerDirection(req.Side)
	case TypeStopLimit:
		params["orderType"] = "Limit"
		params["price"] = strconv.FormatFloat(req.Price, 'f', -1, 64)
		params["timeInForce"] = "GTC"
		params["triggerPrice"] = strconv.FormatFloat(req.StopPrice, 'f', -1, 64)
		params["triggerDirection"] = triggerDirection(req.Side)
	}

	for k, v := range req.Params {
		params[k] = v
	}

	body, err := b.doRequest(ctx, http.MethodPost, "/v5/order/create", params, true)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			OrderID string `json:"orderId"`
		} `json:"result"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	// Bybit в ответе на create возвращает только ID,
	// актуальное состояние запрашиваем отдельно
	order, err := b.FetchOrder(ctx, resp.Result.OrderID, req.Symbol)
	if err != nil {
		return &RemoteOrder{
			ID:        resp.Result.OrderID,
			Symbol:    req.Symbol,
			Type:      string(req.Type),
			Side:      req.Side,
			Status:    StatusOpen,
			Amount:    req.Amount,
			Price:     req.Price,
			Remaining: req.Amount,
			Timestamp: time.Now(),
		}, nil
	}

	return order, nil
}

// triggerDirection - направление пересечения триггерной цены:
// стоп на покупку срабатывает при росте, на продажу при падении
func triggerDirection(side string) string {
	if side == SideBuy {
		return "1" // rise
	}
	return "2" // fall
}

func (b *Bybit) CancelOrder(ctx context.Context, id, symbol string) error {
	params := map[string]string{
		"category": bybitCategory,
		"symbol":   symbols.Join(symbol),
		"orderId":  id,
	}

	_, err := b.doRequest(ctx, http.MethodPost, "/v5/order/cancel", params, true)
	return err
}

func (b *Bybit) FetchOrder(ctx context.Context, id, symbol string) (*RemoteOrder, error) {
	params := map[string]string{
		"category": bybitCategory,
		"symbol":   symbols.Join(symbol),
		"orderId":  id,
	}

	// Сначала realtime (открытые), затем история
	for _, endpoint := range []string{"/v5/order/realtime", "/v5/order/history"} {
		body, err := b.doRequest(ctx, http.MethodGet, endpoint, params, true)
		if err != nil {
			return nil, err
		}

		orders, err := b.parseOrderList(body, symbol)
		if err != nil {
			return nil, err
		}
		if len(orders) > 0 {
			return orders[0], nil
		}
	}

	return nil, &VenueError{Venue: "bybit", Message: "order not found: " + id}
}

func (b *Bybit) FetchOpenOrders(ctx context.Context, symbol string) ([]*RemoteOrder, error) {
	params := map[string]string{
		"category": bybitCategory,
	}
	if symbol != "" {
		params["symbol"] = symbols.Join(symbol)
	} else {
		params["settleCoin"] = "USDT"
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/v5/order/realtime", params, true)
	if err != nil {
		return nil, err
	}

	return b.parseOrderList(body, symbol)
}

func (b *Bybit) FetchOrders(ctx context.Context, symbol string, since int64, limit int) ([]*RemoteOrder, error) {
	params := map[string]string{
		"category": bybitCategory,
	}
	if symbol != "" {
		params["symbol"] = symbols.Join(symbol)
	}
	if since > 0 {
		params["startTime"] = strconv.FormatInt(since, 10)
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/v5/order/history", params, true)
	if err != nil {
		return nil, err
	}

	return b.parseOrderList(body, symbol)
}

func (b *Bybit) parseOrderList(body []byte, symbol string) ([]*RemoteOrder, error) {
	var resp struct {
		Result struct {
			List []struct {
				OrderID      string `json:"orderId"`
				Symbol       string `json:"symbol"`
				Side         string `json:"side"`
				OrderType    string `json:"orderType"`
				OrderStatus  string `json:"orderStatus"`
				Qty          string `json:"qty"`
				Price        string `json:"price"`
				AvgPrice     string `json:"avgPrice"`
				CumExecQty   string `json:"cumExecQty"`
				CumExecValue string `json:"cumExecValue"`
				CumExecFee   string `json:"cumExecFee"`
				CreatedTime  string `json:"createdTime"`
			} `json:"list"`
		} `json:"result"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	orders := make([]*RemoteOrder, 0, len(resp.Result.List))
	for _, o := range resp.Result.List {
		amount, _ := strconv.ParseFloat(o.Qty, 64)
		price, _ := strconv.ParseFloat(o.Price, 64)
		average, _ := strconv.ParseFloat(o.AvgPrice, 64)
		filled, _ := strconv.ParseFloat(o.CumExecQty, 64)
		cost, _ := strconv.ParseFloat(o.CumExecValue, 64)
		fee, _ := strconv.ParseFloat(o.CumExecFee, 64)
		created, _ := strconv.ParseInt(o.CreatedTime, 10, 64)

		sym := symbol
		if sym == "" {
			sym = symbols.Format(o.Symbol)
		}

		orders = append(orders, &RemoteOrder{
			ID:          o.OrderID,
			Symbol:      sym,
			Type:        strings.ToLower(o.OrderType),
			Side:        strings.ToLower(o.Side),
			Status:      bybitStatus(o.OrderStatus),
			Amount:      amount,
			Price:       price,
			Average:     average,
			Filled:      filled,
			Remaining:   amount - filled,
			Cost:        cost,
			FeeCost:     fee,
			FeeCurrency: "USDT",
			Timestamp:   time.UnixMilli(created),
		})
	}

	return orders, nil
}

// bybitStatus приводит статус Bybit v5 к wire статусу
func bybitStatus(status string) string {
	switch status {
	case "New", "PartiallyFilled", "Untriggered", "Triggered":
		return StatusOpen
	case "Filled":
		return StatusClosed
	case "Cancelled", "PartiallyFilledCanceled":
		return StatusCanceled
	case "Deactivated", "Expired":
		return StatusExpired
	case "Rejected":
		return StatusRejected
	default:
		return StatusOpen
	}
}

func (b *Bybit) FetchOHLCV(ctx context.Context, symbol, timeframe string, since int64, limit int) ([]Candle, error) {
	params := map[string]string{
		"category": bybitCategory,
		"symbol":   symbols.Join(symbol),
		"interval": bybitInterval(timeframe),
	}
	if since > 0 {
		params["start"] = strconv.FormatInt(since, 10)
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/v5/market/kline", params, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			List [][]string `json:"list"`
		} `json:"result"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	// Bybit возвращает свечи от новых к старым, разворачиваем
	candles := make([]Candle, 0, len(resp.Result.List))
	for i := len(resp.Result.List) - 1; i >= 0; i-- {
		row := resp.Result.List[i]
		if len(row) < 6 {
			continue
		}
		ts, _ := strconv.ParseInt(row[0], 10, 64)
		open, _ := strconv.ParseFloat(row[1], 64)
		high, _ := strconv.ParseFloat(row[2], 64)
		low, _ := strconv.ParseFloat(row[3], 64)
		cls, _ := strconv.ParseFloat(row[4], 64)
		volume, _ := strconv.ParseFloat(row[5], 64)

		candles = append(candles, Candle{
			Timestamp: ts,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     cls,
			Volume:    volume,
		})
	}

	return candles, nil
}

// bybitInterval конвертирует timeframe вида "1m"/"1h"/"1d" в интервал Bybit
func bybitInterval(timeframe string) string {
	switch timeframe {
	case "1m":
		return "1"
	case "5m":
		return "5"
	case "15m":
		return "15"
	case "30m":
		return "30"
	case "1h":
		return "60"
	case "4h":
		return "240"
	case "1d":
		return "D"
	case "1w":
		return "W"
	default:
		return "1"
	}
}

func (b *Bybit) FetchTicker(ctx context.Context, symbol string) (*Ticker, error) {
	params := map[string]string{
		"category": bybitCategory,
		"symbol":   symbols.Join(symbol),
	}

	body, err := b.doRequest(ctx, http.MethodGet, "/v5/market/tickers", params, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			List []struct {
				Symbol    string `json:"symbol"`
				Bid1Price string `json:"bid1Price"`
				Ask1Price string `json:"ask1Price"`
				LastPrice string `json:"lastPrice"`
			} `json:"list"`
		} `json:"result"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	if len(resp.Result.List) == 0 {
		return nil, &VenueError{Venue: "bybit", Message: "ticker not found for " + symbol}
	}

	t := resp.Result.List[0]
	bid, _ := strconv.ParseFloat(t.Bid1Price, 64)
	ask, _ := strconv.ParseFloat(t.Ask1Price, 64)
	last, _ := strconv.ParseFloat(t.LastPrice, 64)

	return &Ticker{
		Symbol:    symbol,
		Bid:       bid,
		Ask:       ask,
		Last:      last,
		Timestamp: time.Now(),
	}, nil
}

func (b *Bybit) StreamingEvents(_ context.Context) (<-chan StreamEvent, error) {
	return nil, ErrStreamingNotImplemented
}

func (b *Bybit) Close() error {
	if transport, ok := b.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}
