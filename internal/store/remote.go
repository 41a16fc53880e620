package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"cryptobroker/internal/exchange"
	"cryptobroker/internal/models"
)

// ============================================================
// Fail-soft обертки удаленных вызовов
// ============================================================
//
// Ошибка биржи не должна ронять торговый цикл. Каждая обертка
// при ошибке логирует вызов, ставит уведомление в очередь и
// возвращает безопасное значение: nil для ордеров, пустой срез
// для списков, false для отмены. Вызывающий различает "нет
// данных" и "сбой" по уведомлениям.

// echo логирует вызов биржи в debug режиме
func (s *Store) echo(op string, args ...interface{}) {
	if s.debug {
		log.Printf("[store] %s -> %s %v", s.cfg.Exchange, op, args)
	}
}

// reportError фиксирует сбой удаленного вызова
func (s *Store) reportError(op string, err error) {
	log.Printf("[store] %s %s failed: %v", s.cfg.Exchange, op, err)
	s.notify(models.Notification{
		Timestamp: time.Now(),
		Type:      models.NotificationTypeError,
		Severity:  models.SeverityError,
		Message:   fmt.Sprintf("%s %s: %v", s.cfg.Exchange, op, err),
		Meta:      map[string]interface{}{"op": op},
	})
}

// GetBalance возвращает снимок баланса. При сбое отдает последний
// успешный снимок и помечает его уведомлением DEGRADED.
func (s *Store) GetBalance(ctx context.Context) *exchange.Balance {
	s.echo("FetchBalance")

	balance, err := s.client.FetchBalance(ctx)
	if err != nil {
		s.reportError("FetchBalance", err)

		s.mu.RLock()
		last := s.lastBalance
		at := s.balanceAt
		s.mu.RUnlock()

		if last != nil {
			s.notify(models.Notification{
				Timestamp: time.Now(),
				Type:      models.NotificationTypeDegraded,
				Severity:  models.SeverityWarn,
				Message:   fmt.Sprintf("serving balance snapshot from %s", at.Format(time.RFC3339)),
			})
			return last
		}
		return exchange.NewBalance()
	}

	s.mu.Lock()
	s.lastBalance = balance
	s.balanceAt = time.Now()
	s.mu.Unlock()

	return balance
}

// BalanceSnapshot возвращает последний успешный снимок баланса и его
// время без обращения к бирже. До первого успешного FetchBalance - nil.
func (s *Store) BalanceSnapshot() (*exchange.Balance, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastBalance, s.balanceAt
}

// CreateOrder отправляет ордер на биржу. При сбое возвращает nil.
func (s *Store) CreateOrder(ctx context.Context, req exchange.OrderRequest) *exchange.RemoteOrder {
	s.echo("CreateOrder", req.Symbol, req.Type, req.Side, req.Amount, req.Price)

	order, err := s.client.CreateOrder(ctx, req)
	if err != nil {
		s.reportError("CreateOrder", err)
		return nil
	}
	return order
}

// CancelOrder отменяет ордер. Возвращает false при сбое.
func (s *Store) CancelOrder(ctx context.Context, id, symbol string) bool {
	s.echo("CancelOrder", id, symbol)

	if err := s.client.CancelOrder(ctx, id, symbol); err != nil {
		s.reportError("CancelOrder", err)
		return false
	}
	return true
}

// FetchOrder возвращает текущее состояние ордера либо nil при сбое
func (s *Store) FetchOrder(ctx context.Context, id, symbol string) *exchange.RemoteOrder {
	s.echo("FetchOrder", id, symbol)

	order, err := s.client.FetchOrder(ctx, id, symbol)
	if err != nil {
		s.reportError("FetchOrder", err)
		return nil
	}
	return order
}

// FetchOpenOrders возвращает открытые ордера, пустой срез при сбое
func (s *Store) FetchOpenOrders(ctx context.Context, symbol string) []*exchange.RemoteOrder {
	s.echo("FetchOpenOrders", symbol)

	orders, err := s.client.FetchOpenOrders(ctx, symbol)
	if err != nil {
		s.reportError("FetchOpenOrders", err)
		return nil
	}
	return orders
}

// FetchOrders возвращает историю ордеров, пустой срез при сбое
func (s *Store) FetchOrders(ctx context.Context, symbol string, since int64, limit int) []*exchange.RemoteOrder {
	s.echo("FetchOrders", symbol, since, limit)

	orders, err := s.client.FetchOrders(ctx, symbol, since, limit)
	if err != nil {
		s.reportError("FetchOrders", err)
		return nil
	}
	return orders
}

// FetchPositions возвращает позиции с биржи. На биржах без
// авторитетных позиций (спот) всегда пустой срез.
func (s *Store) FetchPositions(ctx context.Context, symbols []string) []*exchange.RemotePosition {
	if !s.client.Capabilities().Positions {
		return nil
	}

	s.echo("FetchPositions", symbols)

	positions, err := s.client.FetchPositions(ctx, symbols)
	if err != nil {
		s.reportError("FetchPositions", err)
		return nil
	}
	return positions
}

// FetchTicker возвращает текущие котировки либо nil при сбое
func (s *Store) FetchTicker(ctx context.Context, symbol string) *exchange.Ticker {
	s.echo("FetchTicker", symbol)

	ticker, err := s.client.FetchTicker(ctx, symbol)
	if err != nil {
		s.reportError("FetchTicker", err)
		return nil
	}
	return ticker
}

// FetchOHLCV возвращает свечи, пустой срез при сбое
func (s *Store) FetchOHLCV(ctx context.Context, symbol, timeframe string, since int64, limit int) []exchange.Candle {
	s.echo("FetchOHLCV", symbol, timeframe, since, limit)

	candles, err := s.client.FetchOHLCV(ctx, symbol, timeframe, since, limit)
	if err != nil {
		s.reportError("FetchOHLCV", err)
		return nil
	}
	return candles
}
