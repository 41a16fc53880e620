package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"cryptobroker/internal/config"
	"cryptobroker/internal/exchange"
	"cryptobroker/internal/models"
)

// fakeClient - скриптуемый клиент биржи
type fakeClient struct {
	capabilities exchange.Capabilities

	loadMarketsErr error
	loadMarketsN   int
	balance        *exchange.Balance
	balanceErr     error
	createErr      error
	cancelErr      error
	sandboxEnabled bool
	sandboxCalls   int
	closed         bool
}

func (f *fakeClient) Name() string                        { return "fake" }
func (f *fakeClient) Capabilities() exchange.Capabilities { return f.capabilities }

func (f *fakeClient) SetSandboxMode(enabled bool) error {
	f.sandboxCalls++
	f.sandboxEnabled = enabled
	return nil
}

func (f *fakeClient) LoadMarkets(context.Context) (map[string]*exchange.Market, error) {
	f.loadMarketsN++
	if f.loadMarketsErr != nil {
		return nil, f.loadMarketsErr
	}
	return map[string]*exchange.Market{
		"BTC/USDT": {Symbol: "BTC/USDT", Base: "BTC", Quote: "USDT", Active: true},
		"ETH/USDT": {Symbol: "ETH/USDT", Base: "ETH", Quote: "USDT", Active: true},
	}, nil
}

func (f *fakeClient) FetchBalance(context.Context) (*exchange.Balance, error) {
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	if f.balance == nil {
		return exchange.NewBalance(), nil
	}
	return f.balance, nil
}

func (f *fakeClient) FetchPositions(context.Context, []string) ([]*exchange.RemotePosition, error) {
	return nil, nil
}

func (f *fakeClient) CreateOrder(context.Context, exchange.OrderRequest) (*exchange.RemoteOrder, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &exchange.RemoteOrder{ID: "X1", Status: exchange.StatusOpen}, nil
}

func (f *fakeClient) CancelOrder(context.Context, string, string) error { return f.cancelErr }

func (f *fakeClient) FetchOrder(context.Context, string, string) (*exchange.RemoteOrder, error) {
	return nil, nil
}

func (f *fakeClient) FetchOpenOrders(context.Context, string) ([]*exchange.RemoteOrder, error) {
	return nil, nil
}

func (f *fakeClient) FetchOrders(context.Context, string, int64, int) ([]*exchange.RemoteOrder, error) {
	return nil, nil
}

func (f *fakeClient) FetchOHLCV(context.Context, string, string, int64, int) ([]exchange.Candle, error) {
	return nil, nil
}

func (f *fakeClient) FetchTicker(context.Context, string) (*exchange.Ticker, error) {
	return nil, nil
}

func (f *fakeClient) StreamingEvents(context.Context) (<-chan exchange.StreamEvent, error) {
	return nil, exchange.ErrStreamingNotImplemented
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

// captureNotifier копит уведомления store
type captureNotifier struct {
	notifs []models.Notification
}

func (c *captureNotifier) Push(n models.Notification) {
	c.notifs = append(c.notifs, n)
}

func testCfg() config.BrokerConfig {
	return config.BrokerConfig{
		Exchange:     "fake",
		BaseCurrency: "USDT",
		Reconnect:    1,
	}
}

func resetSingleton() {
	instanceMu.Lock()
	instance = nil
	instanceMu.Unlock()
}

func TestConnectLoadsMarkets(t *testing.T) {
	client := &fakeClient{}
	s, err := ConnectWithClient(context.Background(), testCfg(), client)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	if len(s.Markets()) != 2 {
		t.Errorf("markets loaded = %d, want 2", len(s.Markets()))
	}
	if m, ok := s.Market("BTC/USDT"); !ok || m.Base != "BTC" {
		t.Error("Market lookup failed for BTC/USDT")
	}
	if _, ok := s.Market("XRP/USDT"); ok {
		t.Error("unknown market should not be found")
	}
}

func TestConnectRetriesHandshake(t *testing.T) {
	client := &fakeClient{loadMarketsErr: errors.New("flaky")}

	cfg := testCfg()
	cfg.Reconnect = 2 // первая попытка плюс два повтора

	_, err := ConnectWithClient(context.Background(), cfg, client)

	var connErr *ConnectError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectError, got %v", err)
	}
	if client.loadMarketsN != 3 {
		t.Errorf("handshake attempts = %d, want 3", client.loadMarketsN)
	}
}

func TestBuildRequestConfig(t *testing.T) {
	t.Run("discrete fields", func(t *testing.T) {
		cfg := testCfg()
		cfg.APIKey = "key"
		cfg.APISecret = "secret"
		cfg.EnableRateLimit = true
		cfg.Timeout = 5 * time.Second
		cfg.Options = map[string]string{"defaultType": "spot"}

		rc := buildRequestConfig(cfg)

		if rc.APIKey != "key" || rc.Secret != "secret" {
			t.Errorf("credentials not threaded: %+v", rc)
		}
		if !rc.EnableRateLimit {
			t.Error("rate limit flag not threaded")
		}
		if rc.Timeout != 5*time.Second {
			t.Errorf("timeout = %v, want 5s", rc.Timeout)
		}
		if rc.Options["defaultType"] != "spot" {
			t.Error("options not threaded")
		}
	})

	t.Run("full override wins wholesale", func(t *testing.T) {
		cfg := testCfg()
		cfg.APIKey = "discrete-key"
		cfg.APISecret = "discrete-secret"
		cfg.EnableRateLimit = true
		cfg.Timeout = 5 * time.Second
		cfg.Config = map[string]interface{}{
			"apiKey":  "override-key",
			"secret":  "override-secret",
			"timeout": float64(2500),
		}
		cfg.Options = map[string]string{"recvWindow": "10000"}

		rc := buildRequestConfig(cfg)

		if rc.APIKey != "override-key" || rc.Secret != "override-secret" {
			t.Errorf("override credentials not applied: %+v", rc)
		}
		// Дискретные поля не просачиваются сквозь override
		if rc.EnableRateLimit {
			t.Error("discrete rate limit flag leaked through override")
		}
		if rc.Timeout != 2500*time.Millisecond {
			t.Errorf("timeout = %v, want 2.5s from override", rc.Timeout)
		}
		if rc.Options["recvWindow"] != "10000" {
			t.Error("options must survive the override")
		}
	})
}

func TestConnectZeroReconnectSingleAttempt(t *testing.T) {
	client := &fakeClient{loadMarketsErr: errors.New("down")}

	cfg := testCfg()
	cfg.Reconnect = 0

	_, err := ConnectWithClient(context.Background(), cfg, client)

	var connErr *ConnectError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectError, got %v", err)
	}
	if client.loadMarketsN != 1 {
		t.Errorf("handshake attempts = %d, want exactly 1", client.loadMarketsN)
	}
}

func TestConnectSingletonReuse(t *testing.T) {
	resetSingleton()
	defer resetSingleton()

	client := &fakeClient{}
	s, err := ConnectWithClient(context.Background(), testCfg(), client)
	if err != nil {
		t.Fatal(err)
	}

	instanceMu.Lock()
	instance = s
	instanceMu.Unlock()

	// Повторный Connect с другими параметрами возвращает
	// существующую сессию, а не открывает новую
	other := config.BrokerConfig{Exchange: "binance", Reconnect: 1}
	again, err := Connect(context.Background(), other)
	if err != nil {
		t.Fatalf("second Connect failed: %v", err)
	}
	if again != s {
		t.Error("second Connect should return the existing session")
	}
	if GetInstance() != s {
		t.Error("GetInstance should return the connected store")
	}
}

func TestConnectUnsupportedVenue(t *testing.T) {
	resetSingleton()
	defer resetSingleton()

	cfg := testCfg()
	cfg.Exchange = "mtgox"

	_, err := Connect(context.Background(), cfg)
	if !errors.Is(err, ErrUnsupportedVenue) {
		t.Errorf("expected ErrUnsupportedVenue, got %v", err)
	}
}

func TestSandboxSilentDegrade(t *testing.T) {
	client := &fakeClient{capabilities: exchange.Capabilities{Sandbox: false}}

	cfg := testCfg()
	cfg.Sandbox = true

	// Биржа без testnet: подключение продолжается на боевых хостах
	_, err := ConnectWithClient(context.Background(), cfg, client)
	if err != nil {
		t.Fatalf("connect should degrade silently: %v", err)
	}
	if client.sandboxCalls != 0 {
		t.Error("SetSandboxMode must not be called without the capability")
	}
}

func TestSandboxEnabled(t *testing.T) {
	client := &fakeClient{capabilities: exchange.Capabilities{Sandbox: true}}

	cfg := testCfg()
	cfg.Sandbox = true

	_, err := ConnectWithClient(context.Background(), cfg, client)
	if err != nil {
		t.Fatal(err)
	}
	if !client.sandboxEnabled {
		t.Error("sandbox mode should be enabled on the client")
	}
}

func TestGetBalanceDegradesToSnapshot(t *testing.T) {
	balance := exchange.NewBalance()
	balance.Free["USDT"] = 500

	client := &fakeClient{balance: balance}
	cfg := testCfg()
	cfg.APIKey = "key" // включает стартовый снимок

	s, err := ConnectWithClient(context.Background(), cfg, client)
	if err != nil {
		t.Fatal(err)
	}

	capture := &captureNotifier{}
	s.SetNotifier(capture)

	// Биржа упала: отдаем последний снимок плюс DEGRADED
	client.balanceErr = errors.New("venue is down")

	got := s.GetBalance(context.Background())
	if got.Free["USDT"] != 500 {
		t.Errorf("degraded balance Free[USDT] = %g, want 500 from snapshot", got.Free["USDT"])
	}

	var sawError, sawDegraded bool
	for _, n := range capture.notifs {
		switch n.Type {
		case models.NotificationTypeError:
			sawError = true
		case models.NotificationTypeDegraded:
			sawDegraded = true
		}
	}
	if !sawError || !sawDegraded {
		t.Errorf("expected ERROR and DEGRADED notifications, got %+v", capture.notifs)
	}
}

func TestGetBalanceNoSnapshot(t *testing.T) {
	client := &fakeClient{}
	s, err := ConnectWithClient(context.Background(), testCfg(), client)
	if err != nil {
		t.Fatal(err)
	}

	client.balanceErr = errors.New("down")

	// Снимка нет (без API ключа стартовый fetch пропущен):
	// отдаем пустой баланс, не nil
	got := s.GetBalance(context.Background())
	if got == nil {
		t.Fatal("GetBalance must never return nil")
	}
	if len(got.Free) != 0 {
		t.Errorf("expected empty balance, got %+v", got)
	}
}

func TestCreateOrderFailSoft(t *testing.T) {
	client := &fakeClient{createErr: errors.New("rejected by venue")}
	s, err := ConnectWithClient(context.Background(), testCfg(), client)
	if err != nil {
		t.Fatal(err)
	}

	capture := &captureNotifier{}
	s.SetNotifier(capture)

	order := s.CreateOrder(context.Background(), exchange.OrderRequest{
		Symbol: "BTC/USDT",
		Type:   exchange.TypeMarket,
		Side:   exchange.SideBuy,
		Amount: 1,
	})

	if order != nil {
		t.Error("failed CreateOrder must return nil, not panic or zero order")
	}
	if len(capture.notifs) != 1 || capture.notifs[0].Type != models.NotificationTypeError {
		t.Errorf("expected one ERROR notification, got %+v", capture.notifs)
	}
}

func TestCancelOrderFailSoft(t *testing.T) {
	client := &fakeClient{cancelErr: errors.New("unknown order")}
	s, err := ConnectWithClient(context.Background(), testCfg(), client)
	if err != nil {
		t.Fatal(err)
	}
	s.SetNotifier(&captureNotifier{})

	if s.CancelOrder(context.Background(), "X1", "BTC/USDT") {
		t.Error("failed cancel must return false")
	}

	client.cancelErr = nil
	if !s.CancelOrder(context.Background(), "X1", "BTC/USDT") {
		t.Error("successful cancel must return true")
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	client := &fakeClient{}
	s, err := ConnectWithClient(context.Background(), testCfg(), client)
	if err != nil {
		t.Fatal(err)
	}
	s.SetNotifier(&captureNotifier{})

	if err := s.Disconnect(); err != nil {
		t.Fatalf("disconnect failed: %v", err)
	}
	if !client.closed {
		t.Error("client should be closed")
	}

	// Повторный Disconnect безопасен
	if err := s.Disconnect(); err != nil {
		t.Errorf("second disconnect should be a no-op: %v", err)
	}
}

func TestBrokerAndDataFactories(t *testing.T) {
	client := &fakeClient{}
	s, err := ConnectWithClient(context.Background(), testCfg(), client)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.GetBroker(); !errors.Is(err, ErrBrokerFactoryUnset) {
		t.Errorf("expected ErrBrokerFactoryUnset, got %v", err)
	}

	type fakeBroker struct{ s *Store }
	created := 0
	s.SetBrokerFactory(func(s *Store) interface{} {
		created++
		return &fakeBroker{s: s}
	})

	b1, err := s.GetBroker()
	if err != nil {
		t.Fatal(err)
	}
	b2, _ := s.GetBroker()
	if b1 != b2 {
		t.Error("GetBroker should cache the created broker")
	}
	if created != 1 {
		t.Errorf("broker factory called %d times, want 1", created)
	}

	if _, err := s.GetData("BTC/USDT", "1m"); !errors.Is(err, ErrDataFactoryUnset) {
		t.Errorf("expected ErrDataFactoryUnset, got %v", err)
	}

	s.SetDataFactory(func(s *Store, symbol, timeframe string) interface{} {
		return symbol + "@" + timeframe
	})
	feed, err := s.GetData("BTC/USDT", "1m")
	if err != nil {
		t.Fatal(err)
	}
	if feed != "BTC/USDT@1m" {
		t.Errorf("data factory result = %v", feed)
	}
}

func TestGetTimeframeMS(t *testing.T) {
	tests := []struct {
		tf   string
		want int64
	}{
		{"1m", 60_000},
		{"5m", 300_000},
		{"1h", 3_600_000},
		{"1d", 86_400_000},
		{"1w", 604_800_000},
		{"13m", 0}, // неизвестный таймфрейм
	}

	for _, tt := range tests {
		if got := GetTimeframeMS(tt.tf); got != tt.want {
			t.Errorf("GetTimeframeMS(%q) = %d, want %d", tt.tf, got, tt.want)
		}
	}
}
