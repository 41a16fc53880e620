package broker

import (
	"errors"
	"sync"
)

var (
	ErrDuplicateOrder = errors.New("order is already registered")
	ErrOrderNotFound  = errors.New("order not found in registry")
)

// Registry связывает локальные номера ордеров с их удаленными ID.
// Оба индекса защищены одним мьютексом: смотрящий снаружи либо
// видит ордер в обоих индексах, либо ни в одном.
type Registry struct {
	mu       sync.RWMutex
	byRef    map[int64]*Order
	byRemote map[string]*Order
}

func NewRegistry() *Registry {
	return &Registry{
		byRef:    make(map[int64]*Order),
		byRemote: make(map[string]*Order),
	}
}

// Register добавляет ордер в оба индекса.
// Повторная регистрация того же Ref или RemoteID - ошибка.
func (r *Registry) Register(o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byRef[o.Ref]; exists {
		return ErrDuplicateOrder
	}
	if o.RemoteID != "" {
		if _, exists := r.byRemote[o.RemoteID]; exists {
			return ErrDuplicateOrder
		}
	}

	r.byRef[o.Ref] = o
	if o.RemoteID != "" {
		r.byRemote[o.RemoteID] = o
	}
	return nil
}

// ByRef возвращает ордер по локальному номеру
func (r *Registry) ByRef(ref int64) (*Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.byRef[ref]
	return o, ok
}

// ByRemoteID возвращает ордер по ID биржи
func (r *Registry) ByRemoteID(id string) (*Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.byRemote[id]
	return o, ok
}

// Forget удаляет ордер из обоих индексов. После Forget
// тот же Ref можно зарегистрировать заново.
func (r *Registry) Forget(ref int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.byRef[ref]
	if !ok {
		return
	}

	delete(r.byRef, ref)
	if o.RemoteID != "" {
		delete(r.byRemote, o.RemoteID)
	}
}

// Open возвращает все незавершенные ордера
func (r *Registry) Open() []*Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var open []*Order
	for _, o := range r.byRef {
		if o.Alive() {
			open = append(open, o)
		}
	}
	return open
}

// All возвращает все зарегистрированные ордера
func (r *Registry) All() []*Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orders := make([]*Order, 0, len(r.byRef))
	for _, o := range r.byRef {
		orders = append(orders, o)
	}
	return orders
}

// Len возвращает количество зарегистрированных ордеров
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byRef)
}
