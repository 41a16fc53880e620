package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter - token bucket лимитер для ограничения частоты запросов к бирже.
// Токены пополняются непрерывно со скоростью rate токенов в секунду,
// до максимума burst.
type Limiter struct {
	mu sync.Mutex

	rate   float64 // токенов в секунду
	burst  float64 // максимум токенов в ведре
	tokens float64
	last   time.Time
}

// NewLimiter создает лимитер с заданной скоростью пополнения и размером ведра.
// Ведро изначально полное.
func NewLimiter(rate, burst float64) *Limiter {
	return &Limiter{
		rate:   rate,
		burst:  burst,
		tokens: burst,
		last:   time.Now(),
	}
}

// refill пополняет токены по прошедшему времени. Вызывается под мьютексом.
func (l *Limiter) refill(now time.Time) {
	elapsed := now.Sub(l.last).Seconds()
	l.tokens += elapsed * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.last = now
}

// Allow пытается забрать один токен без ожидания
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill(time.Now())
	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

// Wait блокируется пока не появится свободный токен
// или не отменится контекст
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()
		l.refill(now)

		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}

		// Время до появления следующего токена
		wait := time.Duration((1 - l.tokens) / l.rate * float64(time.Second))
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
