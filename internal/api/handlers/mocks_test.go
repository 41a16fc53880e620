package handlers

import (
	"context"
	"sync"
	"time"

	"cryptobroker/internal/broker"
	"cryptobroker/internal/config"
	"cryptobroker/internal/exchange"
	"cryptobroker/internal/models"
)

// ============ Mock Journal Service ============

// MockJournalService мок для service.JournalServiceInterface
type MockJournalService struct {
	orders        []*models.OrderRecord
	notifications []*models.Notification
	ordersErr     error
	notifErr      error
	clearErr      error
	cleared       bool
	nextID        int
	mu            sync.RWMutex
}

// NewMockJournalService создает новый мок журнала
func NewMockJournalService() *MockJournalService {
	return &MockJournalService{nextID: 1}
}

// AddOrder добавляет запись ордера в мок
func (m *MockJournalService) AddOrder(symbol, side, status string, qty float64) *models.OrderRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	record := &models.OrderRecord{
		ID:        m.nextID,
		Ref:       int64(m.nextID),
		Exchange:  "binance",
		Symbol:    symbol,
		Side:      side,
		Type:      "limit",
		Quantity:  qty,
		Status:    status,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.nextID++
	m.orders = append(m.orders, record)
	return record
}

// AddNotification добавляет уведомление в мок
func (m *MockJournalService) AddNotification(typ, severity, message string) *models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := &models.Notification{
		ID:        m.nextID,
		Timestamp: time.Now(),
		Type:      typ,
		Severity:  severity,
		Message:   message,
	}
	m.nextID++
	m.notifications = append(m.notifications, n)
	return n
}

func (m *MockJournalService) GetRecentOrders(limit int) ([]*models.OrderRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ordersErr != nil {
		return nil, m.ordersErr
	}
	if len(m.orders) > limit {
		return m.orders[:limit], nil
	}
	return m.orders, nil
}

func (m *MockJournalService) GetOrdersBySymbol(symbol string, limit int) ([]*models.OrderRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ordersErr != nil {
		return nil, m.ordersErr
	}
	var out []*models.OrderRecord
	for _, o := range m.orders {
		if o.Symbol == symbol {
			out = append(out, o)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockJournalService) GetNotifications(types []string, limit int) ([]*models.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.notifErr != nil {
		return nil, m.notifErr
	}
	if len(types) == 0 {
		if len(m.notifications) > limit {
			return m.notifications[:limit], nil
		}
		return m.notifications, nil
	}

	wanted := make(map[string]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}
	var out []*models.Notification
	for _, n := range m.notifications {
		if wanted[n.Type] {
			out = append(out, n)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockJournalService) ClearNotifications() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.clearErr != nil {
		return m.clearErr
	}
	m.notifications = nil
	m.cleared = true
	return nil
}

// ============ Mock Broker State ============

// MockBrokerState мок для BrokerStateProvider
type MockBrokerState struct {
	cash       float64
	value      float64
	openOrders int
	positions  map[string]*broker.Position
}

func NewMockBrokerState() *MockBrokerState {
	return &MockBrokerState{
		positions: make(map[string]*broker.Position),
	}
}

func (m *MockBrokerState) GetCash() float64 { return m.cash }

func (m *MockBrokerState) GetValue() float64 { return m.value }

func (m *MockBrokerState) OpenOrdersCount() int { return m.openOrders }

func (m *MockBrokerState) GetPosition(ctx context.Context, symbol string, clone bool) *broker.Position {
	if pos, ok := m.positions[symbol]; ok {
		return pos.Clone()
	}
	return &broker.Position{}
}

// ============ Mock Connection Info ============

// MockConnectionInfo мок для ConnectionInfoProvider
type MockConnectionInfo struct {
	exchange string
	caps     exchange.Capabilities
	cfg      config.BrokerConfig
}

func (m *MockConnectionInfo) Exchange() string { return m.exchange }

func (m *MockConnectionInfo) Capabilities() exchange.Capabilities { return m.caps }

func (m *MockConnectionInfo) Config() config.BrokerConfig { return m.cfg }
