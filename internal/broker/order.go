package broker

import (
	"sync"
	"time"

	"cryptobroker/internal/exchange"
)

// Status - локальный статус ордера
type Status int

const (
	StatusCreated Status = iota
	StatusSubmitted
	StatusAccepted
	StatusPartial
	StatusCompleted
	StatusCancelled
	StatusExpired
	StatusRejected
)

var statusNames = map[Status]string{
	StatusCreated:   "Created",
	StatusSubmitted: "Submitted",
	StatusAccepted:  "Accepted",
	StatusPartial:   "Partial",
	StatusCompleted: "Completed",
	StatusCancelled: "Cancelled",
	StatusExpired:   "Expired",
	StatusRejected:  "Rejected",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Unknown"
}

// IsTerminal возвращает true если статус финальный
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusExpired, StatusRejected:
		return true
	}
	return false
}

// ValidTransitions определяет допустимые переходы между статусами.
// Статус ордера движется только вперед: откат Completed -> Partial
// невозможен, даже если биржа отдала устаревший ответ.
var ValidTransitions = map[Status][]Status{
	StatusCreated:   {StatusSubmitted, StatusRejected},
	StatusSubmitted: {StatusAccepted, StatusPartial, StatusCompleted, StatusCancelled, StatusExpired, StatusRejected},
	StatusAccepted:  {StatusPartial, StatusCompleted, StatusCancelled, StatusExpired, StatusRejected},
	StatusPartial:   {StatusPartial, StatusCompleted, StatusCancelled, StatusExpired},
	// Из терминальных статусов переходов нет
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to Status) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Order - локальное представление ордера.
// Авторитетный источник состояния - биржа; локальный статус
// только догоняет удаленный при сверке.
type Order struct {
	mu sync.RWMutex

	Ref      int64  // локальный монотонный номер
	RemoteID string // ID на бирже, пустой до подтверждения

	Symbol    string
	Side      string // buy, sell
	ExecType  exchange.OrderType
	Amount    float64
	Price     float64
	StopPrice float64

	status     Status
	filled     float64
	avgPrice   float64
	fee        float64
	reason     string // причина Rejected
	lastRemote *exchange.RemoteOrder
	createdAt  time.Time
	updatedAt  time.Time
}

func newOrder(ref int64, symbol, side string, execType exchange.OrderType, amount, price, stopPrice float64) *Order {
	now := time.Now()
	return &Order{
		Ref:       ref,
		Symbol:    symbol,
		Side:      side,
		ExecType:  execType,
		Amount:    amount,
		Price:     price,
		StopPrice: stopPrice,
		status:    StatusCreated,
		createdAt: now,
		updatedAt: now,
	}
}

func (o *Order) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}

func (o *Order) Filled() float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.filled
}

func (o *Order) Remaining() float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.Amount - o.filled
}

func (o *Order) AvgPrice() float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.avgPrice
}

func (o *Order) Fee() float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.fee
}

func (o *Order) Reason() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.reason
}

func (o *Order) CreatedAt() time.Time {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.createdAt
}

func (o *Order) UpdatedAt() time.Time {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.updatedAt
}

// LastRemote возвращает последнее сырое представление ордера
// с биржи, nil до первой сверки
func (o *Order) LastRemote() *exchange.RemoteOrder {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastRemote
}

// Alive возвращает true пока ордер не в терминальном статусе
func (o *Order) Alive() bool {
	return !o.Status().IsTerminal()
}

// transition переводит ордер в новый статус.
// Недопустимый переход игнорируется, повторный тот же статус - no-op.
// Возвращает true если статус изменился.
func (o *Order) transition(to Status) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transitionLocked(to)
}

func (o *Order) transitionLocked(to Status) bool {
	if o.status == to {
		return false
	}
	if !CanTransition(o.status, to) {
		return false
	}
	o.status = to
	o.updatedAt = time.Now()
	return true
}

// reject переводит ордер в Rejected с указанием причины
func (o *Order) reject(reason string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.transitionLocked(StatusRejected) {
		return false
	}
	o.reason = reason
	return true
}

// applyRemote сверяет локальный ордер с удаленным состоянием.
// Исполнение применяется идемпотентно: учитывается только прирост
// filled относительно уже известного, повторная сверка того же
// ответа биржи ничего не меняет. Возвращает true если что-то
// изменилось (статус или исполнение).
func (o *Order) applyRemote(remote *exchange.RemoteOrder) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.lastRemote = remote

	changed := false

	if remote.Filled > o.filled {
		o.filled = remote.Filled
		// Цена исполнения: средняя с биржи, при ее отсутствии
		// цена ордера
		if remote.Average > 0 {
			o.avgPrice = remote.Average
		} else if remote.Price > 0 {
			o.avgPrice = remote.Price
		}
		if remote.FeeCost > 0 {
			o.fee = remote.FeeCost
		}
		o.updatedAt = time.Now()
		changed = true
	}

	target := mapRemoteStatus(remote.Status, o.filled > 0)
	if o.transitionLocked(target) {
		changed = true
	}

	return changed
}

// mapRemoteStatus приводит статус биржи к локальному.
// Неизвестный статус трактуется как открытый ордер.
func mapRemoteStatus(remote string, hasFills bool) Status {
	switch remote {
	case exchange.StatusOpen:
		if hasFills {
			return StatusPartial
		}
		return StatusAccepted
	case exchange.StatusClosed:
		return StatusCompleted
	case exchange.StatusCanceled, exchange.StatusCancelled:
		return StatusCancelled
	case exchange.StatusExpired:
		return StatusExpired
	case exchange.StatusRejected:
		return StatusRejected
	default:
		return StatusSubmitted
	}
}
