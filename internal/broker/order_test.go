package broker

import (
	"testing"

	"cryptobroker/internal/exchange"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusCreated, StatusSubmitted, true},
		{StatusCreated, StatusRejected, true},
		{StatusSubmitted, StatusAccepted, true},
		{StatusSubmitted, StatusCompleted, true},
		{StatusAccepted, StatusPartial, true},
		{StatusPartial, StatusCompleted, true},
		{StatusPartial, StatusPartial, true},

		// Назад статус не откатывается
		{StatusCompleted, StatusPartial, false},
		{StatusCompleted, StatusSubmitted, false},
		{StatusCancelled, StatusAccepted, false},
		{StatusRejected, StatusSubmitted, false},
		{StatusAccepted, StatusCreated, false},
		{StatusExpired, StatusCompleted, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestOrderTransitionIdempotent(t *testing.T) {
	o := newOrder(1, "BTC/USDT", exchange.SideBuy, exchange.TypeLimit, 1.0, 50000, 0)

	if !o.transition(StatusSubmitted) {
		t.Fatal("Created -> Submitted should succeed")
	}
	if o.transition(StatusSubmitted) {
		t.Error("repeated transition to the same status should be a no-op")
	}
	if o.Status() != StatusSubmitted {
		t.Errorf("status = %s, want Submitted", o.Status())
	}
}

func TestOrderInvalidTransitionIgnored(t *testing.T) {
	o := newOrder(1, "BTC/USDT", exchange.SideBuy, exchange.TypeLimit, 1.0, 50000, 0)
	o.transition(StatusSubmitted)
	o.transition(StatusCompleted)

	// Устаревший ответ биржи не должен откатить терминальный статус
	if o.transition(StatusPartial) {
		t.Error("terminal status must not roll back")
	}
	if o.Status() != StatusCompleted {
		t.Errorf("status = %s, want Completed", o.Status())
	}
}

func TestOrderReject(t *testing.T) {
	o := newOrder(1, "BTC/USDT", exchange.SideBuy, exchange.TypeLimit, 1.0, 50000, 0)

	if !o.reject("insufficient funds") {
		t.Fatal("reject from Created should succeed")
	}
	if o.Status() != StatusRejected {
		t.Errorf("status = %s, want Rejected", o.Status())
	}
	if o.Reason() != "insufficient funds" {
		t.Errorf("reason = %q", o.Reason())
	}
	if o.Alive() {
		t.Error("rejected order should not be alive")
	}
}

func TestApplyRemoteFillProgress(t *testing.T) {
	o := newOrder(1, "BTC/USDT", exchange.SideBuy, exchange.TypeLimit, 2.0, 50000, 0)
	o.transition(StatusSubmitted)

	remote := &exchange.RemoteOrder{
		ID:      "X1",
		Status:  exchange.StatusOpen,
		Filled:  0.5,
		Average: 50010,
		FeeCost: 0.25,
	}

	if !o.applyRemote(remote) {
		t.Fatal("first apply should report a change")
	}
	if o.Status() != StatusPartial {
		t.Errorf("status = %s, want Partial", o.Status())
	}
	if o.Filled() != 0.5 {
		t.Errorf("filled = %g, want 0.5", o.Filled())
	}
	if o.AvgPrice() != 50010 {
		t.Errorf("avg price = %g, want 50010", o.AvgPrice())
	}
	if o.Remaining() != 1.5 {
		t.Errorf("remaining = %g, want 1.5", o.Remaining())
	}
}

func TestApplyRemotePriceFallback(t *testing.T) {
	o := newOrder(1, "BTC/USDT", exchange.SideBuy, exchange.TypeMarket, 1.0, 0, 0)
	o.transition(StatusSubmitted)

	// Биржа не вернула среднюю цену, но вернула цену ордера
	remote := &exchange.RemoteOrder{
		ID:     "X1",
		Status: exchange.StatusClosed,
		Filled: 1.0,
		Price:  100,
	}

	if !o.applyRemote(remote) {
		t.Fatal("apply should report a change")
	}
	if o.AvgPrice() != 100 {
		t.Errorf("avg price = %g, want fallback to remote price 100", o.AvgPrice())
	}
}

func TestApplyRemoteKeepsLastRemote(t *testing.T) {
	o := newOrder(1, "BTC/USDT", exchange.SideBuy, exchange.TypeLimit, 2.0, 50000, 0)
	o.transition(StatusSubmitted)

	if o.LastRemote() != nil {
		t.Fatal("last remote must be nil before the first reconciliation")
	}

	first := &exchange.RemoteOrder{ID: "X1", Status: exchange.StatusOpen}
	o.applyRemote(first)

	second := &exchange.RemoteOrder{ID: "X1", Status: exchange.StatusOpen, Filled: 1.0, Average: 50005}
	o.applyRemote(second)

	if o.LastRemote() != second {
		t.Error("last remote must track the most recent exchange response")
	}
}

func TestApplyRemoteIdempotent(t *testing.T) {
	o := newOrder(1, "BTC/USDT", exchange.SideBuy, exchange.TypeLimit, 2.0, 50000, 0)
	o.transition(StatusSubmitted)

	remote := &exchange.RemoteOrder{
		ID:     "X1",
		Status: exchange.StatusOpen,
		Filled: 0.5,
	}

	o.applyRemote(remote)

	// Повторная сверка того же ответа биржи ничего не меняет
	if o.applyRemote(remote) {
		t.Error("re-applying the same remote state should be a no-op")
	}
	if o.Filled() != 0.5 {
		t.Errorf("filled = %g, want 0.5 (not doubled)", o.Filled())
	}
}

func TestApplyRemoteStaleFilledIgnored(t *testing.T) {
	o := newOrder(1, "BTC/USDT", exchange.SideBuy, exchange.TypeLimit, 2.0, 50000, 0)
	o.transition(StatusSubmitted)

	o.applyRemote(&exchange.RemoteOrder{Status: exchange.StatusOpen, Filled: 1.5})
	o.applyRemote(&exchange.RemoteOrder{Status: exchange.StatusOpen, Filled: 1.0}) // устаревший ответ

	if o.Filled() != 1.5 {
		t.Errorf("filled = %g, want 1.5 (stale response ignored)", o.Filled())
	}
}

func TestApplyRemoteCompleted(t *testing.T) {
	o := newOrder(1, "BTC/USDT", exchange.SideBuy, exchange.TypeMarket, 1.0, 0, 0)
	o.transition(StatusSubmitted)

	o.applyRemote(&exchange.RemoteOrder{
		Status:  exchange.StatusClosed,
		Filled:  1.0,
		Average: 49990,
	})

	if o.Status() != StatusCompleted {
		t.Errorf("status = %s, want Completed", o.Status())
	}
	if o.Remaining() != 0 {
		t.Errorf("remaining = %g, want 0", o.Remaining())
	}
}

func TestMapRemoteStatus(t *testing.T) {
	tests := []struct {
		remote   string
		hasFills bool
		want     Status
	}{
		{exchange.StatusOpen, false, StatusAccepted},
		{exchange.StatusOpen, true, StatusPartial},
		{exchange.StatusClosed, true, StatusCompleted},
		{exchange.StatusCanceled, false, StatusCancelled},
		{exchange.StatusCancelled, false, StatusCancelled}, // двойное l у некоторых бирж
		{exchange.StatusExpired, false, StatusExpired},
		{exchange.StatusRejected, false, StatusRejected},
		{"weird-venue-status", false, StatusSubmitted},
	}

	for _, tt := range tests {
		if got := mapRemoteStatus(tt.remote, tt.hasFills); got != tt.want {
			t.Errorf("mapRemoteStatus(%q, %v) = %s, want %s", tt.remote, tt.hasFills, got, tt.want)
		}
	}
}
