package broker

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"cryptobroker/internal/exchange"
	"cryptobroker/internal/models"
	"cryptobroker/internal/store"
	"cryptobroker/pkg/symbols"
)

// ============================================================
// Broker - торговый фасад поверх store
// ============================================================
//
// Брокер отвечает за жизненный цикл ордеров: выдает локальные
// номера, ведет реестр соответствия с ID биржи, сверяет статусы
// и раздает уведомления. Денежные показатели (cash, value,
// позиции) кешируются и обновляются периодической сверкой.

// Position - позиция по инструменту
type Position struct {
	Symbol string
	Size   float64 // отрицательный размер = short
	Price  float64 // цена входа; для спота всегда 0
}

// Clone возвращает копию позиции
func (p *Position) Clone() *Position {
	cp := *p
	return &cp
}

// Journal - необязательный журнал брокера в БД.
// Ошибки журнала не влияют на торговлю.
type Journal interface {
	SaveOrder(record models.OrderRecord)
	SaveNotification(n models.Notification)
}

// Broker - фасад поверх подключенного store
type Broker struct {
	store *store.Store
	queue *NotificationQueue

	registry *Registry
	nextRef  atomic.Int64

	commission CommissionInfo

	mu            sync.RWMutex
	cash          float64
	value         float64
	startingCash  float64
	startingValue float64
	positions     map[string]*Position
	journal       Journal
}

// New создает брокера поверх подключенного store.
// Подхватывает стартовый баланс и, при UsePositions на биржах
// с авторитетными позициями, открытые позиции.
func New(ctx context.Context, s *store.Store) *Broker {
	cfg := s.Config()

	b := &Broker{
		store:    s,
		queue:    NewNotificationQueue(),
		registry: NewRegistry(),
		commission: CommissionInfo{
			MakerRate: cfg.MakerFee,
			TakerRate: cfg.TakerFee,
		},
		positions: make(map[string]*Position),
	}

	// Уведомления store теперь идут через очередь брокера
	s.SetNotifier(b)

	b.UpdateBalance(ctx)

	// Стартовый баланс фиксируется один раз для отчетности
	b.mu.Lock()
	b.startingCash = b.cash
	b.startingValue = b.value
	b.mu.Unlock()

	if cfg.UsePositions && s.Capabilities().Positions {
		b.syncPositions(ctx)
	}

	return b
}

// SetJournal подключает журналирование ордеров и уведомлений в БД
func (b *Broker) SetJournal(j Journal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.journal = j
}

// ============================================================
// Уведомления
// ============================================================

// Push реализует store.Notifier: уведомления store попадают
// в общую очередь брокера
func (b *Broker) Push(n models.Notification) {
	b.queue.Push(n)
	NotificationQueueDepth.Set(float64(b.queue.Len()))

	b.mu.RLock()
	journal := b.journal
	b.mu.RUnlock()
	if journal != nil {
		journal.SaveNotification(n)
	}
}

// PollNotification снимает следующее уведомление без блокировки
func (b *Broker) PollNotification() (models.Notification, bool) {
	n, ok := b.queue.Pop()
	if ok {
		NotificationQueueDepth.Set(float64(b.queue.Len()))
	}
	return n, ok
}

// notifyOrder ставит уведомление об изменении ордера
func (b *Broker) notifyOrder(o *Order, typ, severity, message string) {
	ref := o.Ref
	b.Push(models.Notification{
		Timestamp: time.Now(),
		Type:      typ,
		Severity:  severity,
		OrderRef:  &ref,
		Message:   message,
		Meta: map[string]interface{}{
			"symbol": o.Symbol,
			"side":   o.Side,
			"status": o.Status().String(),
		},
	})
}

// ============================================================
// Отправка ордеров
// ============================================================

// Buy отправляет ордер на покупку. Всегда возвращает ордер:
// при сбое биржи он будет в статусе Rejected.
func (b *Broker) Buy(ctx context.Context, symbol string, execType exchange.OrderType, amount, price, stopPrice float64) *Order {
	return b.submit(ctx, exchange.SideBuy, symbol, execType, amount, price, stopPrice)
}

// Sell отправляет ордер на продажу
func (b *Broker) Sell(ctx context.Context, symbol string, execType exchange.OrderType, amount, price, stopPrice float64) *Order {
	return b.submit(ctx, exchange.SideSell, symbol, execType, amount, price, stopPrice)
}

func (b *Broker) submit(ctx context.Context, side, symbol string, execType exchange.OrderType, amount, price, stopPrice float64) *Order {
	// Сторона задается явно, размер всегда абсолютный
	amount = math.Abs(amount)

	o := newOrder(b.nextRef.Add(1), symbols.Format(symbol), side, execType, amount, price, stopPrice)

	// Неподдерживаемый тип исполнения отклоняется локально,
	// без похода на биржу
	if !supportedExecType(execType) {
		o.reject(fmt.Sprintf("unsupported execution type: %s", execType))
		OrdersRejected.WithLabelValues(b.store.Exchange(), "exec_type").Inc()
		b.notifyOrder(o, models.NotificationTypeReject, models.SeverityWarn,
			fmt.Sprintf("order %d rejected: unsupported execution type %s", o.Ref, execType))
		b.journalOrder(o, string(execType))
		return o
	}

	started := time.Now()
	remote := b.store.CreateOrder(ctx, exchange.OrderRequest{
		Symbol:    o.Symbol,
		Type:      execType,
		Side:      side,
		Amount:    amount,
		Price:     price,
		StopPrice: stopPrice,
	})

	if remote == nil {
		// Store уже залогировал и уведомил о сбое
		o.reject("exchange call failed")
		RemoteErrors.WithLabelValues(b.store.Exchange(), "create_order").Inc()
		OrdersRejected.WithLabelValues(b.store.Exchange(), "remote_error").Inc()
		b.journalOrder(o, string(execType))
		return o
	}

	o.RemoteID = remote.ID
	o.transition(StatusSubmitted)

	if err := b.registry.Register(o); err != nil {
		log.Printf("[broker] register order %d (%s): %v", o.Ref, o.RemoteID, err)
	}

	o.applyRemote(remote)

	OrdersSubmitted.WithLabelValues(b.store.Exchange(), side, string(execType)).Inc()
	OrderExecutionLatency.WithLabelValues(b.store.Exchange(), side).
		Observe(float64(time.Since(started).Milliseconds()))
	OpenOrders.Set(float64(len(b.registry.Open())))

	b.notifyOrder(o, models.NotificationTypeOrder, models.SeverityInfo,
		fmt.Sprintf("order %d submitted: %s %s %g %s", o.Ref, side, execType, amount, o.Symbol))
	b.journalOrder(o, string(execType))

	return o
}

func supportedExecType(t exchange.OrderType) bool {
	switch t {
	case exchange.TypeMarket, exchange.TypeLimit, exchange.TypeStopMarket, exchange.TypeStopLimit:
		return true
	}
	return false
}

// Cancel отменяет ордер. Для незарегистрированного или уже
// завершенного ордера - no-op, возвращает false.
func (b *Broker) Cancel(ctx context.Context, o *Order) bool {
	if o == nil {
		return false
	}
	if _, ok := b.registry.ByRef(o.Ref); !ok {
		return false
	}
	if !o.Alive() {
		return false
	}

	// Сначала смотрим актуальное состояние: ордер мог
	// исполниться пока стратегия решала отменять
	if remote := b.store.FetchOrder(ctx, o.RemoteID, o.Symbol); remote != nil {
		if b.applyAndNotify(o, remote) && !o.Alive() {
			return false
		}
	}

	if !b.store.CancelOrder(ctx, o.RemoteID, o.Symbol) {
		RemoteErrors.WithLabelValues(b.store.Exchange(), "cancel_order").Inc()
		return false
	}

	if o.transition(StatusCancelled) {
		b.notifyOrder(o, models.NotificationTypeOrder, models.SeverityInfo,
			fmt.Sprintf("order %d cancelled", o.Ref))
		b.journalOrder(o, string(o.ExecType))
	}
	OpenOrders.Set(float64(len(b.registry.Open())))
	return true
}

// ============================================================
// Сверка
// ============================================================

// Reconcile сверяет все живые ордера с биржей.
// Вызывается периодически торговым циклом.
func (b *Broker) Reconcile(ctx context.Context) {
	Reconciliations.Inc()

	for _, o := range b.registry.Open() {
		if o.RemoteID == "" {
			continue
		}
		remote := b.store.FetchOrder(ctx, o.RemoteID, o.Symbol)
		if remote == nil {
			RemoteErrors.WithLabelValues(b.store.Exchange(), "fetch_order").Inc()
			continue
		}
		b.applyAndNotify(o, remote)
	}

	OpenOrders.Set(float64(len(b.registry.Open())))
}

// OrderStatus возвращает актуальный статус ордера, сверив его с биржей
func (b *Broker) OrderStatus(ctx context.Context, o *Order) Status {
	if o == nil {
		return StatusRejected
	}
	if o.RemoteID == "" || !o.Alive() {
		return o.Status()
	}

	if remote := b.store.FetchOrder(ctx, o.RemoteID, o.Symbol); remote != nil {
		b.applyAndNotify(o, remote)
	} else {
		RemoteErrors.WithLabelValues(b.store.Exchange(), "fetch_order").Inc()
	}
	return o.Status()
}

// applyAndNotify применяет удаленное состояние и рассылает
// уведомления при изменениях
func (b *Broker) applyAndNotify(o *Order, remote *exchange.RemoteOrder) bool {
	before := o.Filled()
	if !o.applyRemote(remote) {
		return false
	}

	if o.Filled() > before {
		b.notifyOrder(o, models.NotificationTypeFill, models.SeverityInfo,
			fmt.Sprintf("order %d filled %g/%g at %g", o.Ref, o.Filled(), o.Amount, o.AvgPrice()))
	} else {
		b.notifyOrder(o, models.NotificationTypeOrder, models.SeverityInfo,
			fmt.Sprintf("order %d is now %s", o.Ref, o.Status()))
	}

	b.journalOrder(o, string(o.ExecType))
	return true
}

// journalOrder пишет снимок ордера в журнал, если он подключен
func (b *Broker) journalOrder(o *Order, execType string) {
	b.mu.RLock()
	journal := b.journal
	b.mu.RUnlock()
	if journal == nil {
		return
	}

	record := models.OrderRecord{
		Ref:       o.Ref,
		RemoteID:  o.RemoteID,
		Exchange:  b.store.Exchange(),
		Symbol:    o.Symbol,
		Side:      o.Side,
		Type:      execType,
		Quantity:  o.Amount,
		Price:     o.Price,
		Filled:    o.Filled(),
		PriceAvg:  o.AvgPrice(),
		Status:    o.Status().String(),
		CreatedAt: o.CreatedAt(),
		UpdatedAt: o.UpdatedAt(),
	}
	if o.Status() == StatusRejected {
		record.ErrorMessage = o.Reason()
	}
	if o.Status().IsTerminal() {
		t := o.UpdatedAt()
		record.CompletedAt = &t
	}

	journal.SaveOrder(record)
}

// ============================================================
// Баланс и позиции
// ============================================================

// UpdateBalance обновляет кеш cash/value по снимку баланса.
// Cash - свободные средства в базовой валюте, value - общий
// остаток базовой валюты. Средства в других валютах в value
// не пересчитываются.
func (b *Broker) UpdateBalance(ctx context.Context) {
	balance := b.store.GetBalance(ctx)
	base := b.store.Config().BaseCurrency

	b.mu.Lock()
	b.cash = balance.Free[base]
	b.value = balance.Total[base]
	b.mu.Unlock()
}

// GetCash возвращает кешированные свободные средства
func (b *Broker) GetCash() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cash
}

// GetValue возвращает кешированную оценку счета
func (b *Broker) GetValue() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.value
}

// StartingCash возвращает свободные средства на момент создания брокера
func (b *Broker) StartingCash() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.startingCash
}

// StartingValue возвращает оценку счета на момент создания брокера
func (b *Broker) StartingValue() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.startingValue
}

// syncPositions подтягивает открытые позиции с биржи
func (b *Broker) syncPositions(ctx context.Context) {
	remote := b.store.FetchPositions(ctx, nil)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.positions = make(map[string]*Position, len(remote))
	for _, p := range remote {
		size := p.Contracts
		if p.Side == exchange.SideShort {
			size = -size
		}
		b.positions[p.Symbol] = &Position{
			Symbol: p.Symbol,
			Size:   size,
			Price:  p.EntryPrice,
		}
	}
}

// GetPosition возвращает позицию по символу.
//
// На деривативных биржах позиция авторитетная, с биржи.
// На споте позиция выводится из свободного остатка базового
// актива, цена входа неизвестна и равна нулю.
//
// При clone=true возвращается копия, изменения которой не
// затрагивают кеш брокера.
func (b *Broker) GetPosition(ctx context.Context, symbol string, clone bool) *Position {
	symbol = symbols.Format(symbol)

	if b.store.Capabilities().Positions {
		b.syncPositions(ctx)

		b.mu.RLock()
		p, ok := b.positions[symbol]
		b.mu.RUnlock()

		if !ok {
			return &Position{Symbol: symbol}
		}
		if clone {
			return p.Clone()
		}
		return p
	}

	// Спот: позиция = свободный остаток базового актива
	balance := b.store.GetBalance(ctx)
	base := symbols.Base(symbol)

	b.mu.Lock()
	p, ok := b.positions[symbol]
	if !ok {
		p = &Position{Symbol: symbol}
		b.positions[symbol] = p
	}
	p.Size = balance.Free[base]
	p.Price = 0.0
	b.mu.Unlock()

	if clone {
		return p.Clone()
	}
	return p
}

// GetCommissionInfo возвращает комиссионную схему
func (b *Broker) GetCommissionInfo() CommissionInfo {
	return b.commission
}

// Orders возвращает все ордера, известные брокеру
func (b *Broker) Orders() []*Order {
	return b.registry.All()
}

// OpenOrdersCount возвращает количество живых ордеров
func (b *Broker) OpenOrdersCount() int {
	return len(b.registry.Open())
}
