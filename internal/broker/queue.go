package broker

import (
	"sync"

	"cryptobroker/internal/models"
)

// NotificationQueue - конкурентная FIFO очередь уведомлений.
// Писатели - store и брокер, читатель - стратегия через
// PollNotification. Pop не блокируется: пустая очередь
// возвращает ok=false.
type NotificationQueue struct {
	mu    sync.Mutex
	items []models.Notification
}

func NewNotificationQueue() *NotificationQueue {
	return &NotificationQueue{}
}

// Push добавляет уведомление в хвост очереди
func (q *NotificationQueue) Push(n models.Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, n)
}

// Pop снимает уведомление с головы очереди без блокировки
func (q *NotificationQueue) Pop() (models.Notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return models.Notification{}, false
	}

	n := q.items[0]
	q.items = q.items[1:]
	return n, true
}

// Len возвращает текущий размер очереди
func (q *NotificationQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
