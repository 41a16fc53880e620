package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"cryptobroker/internal/models"
)

func newTestClient() *Client {
	return &Client{send: make(chan []byte, clientSendBufferSize)}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newTestClient()
	hub.register <- client

	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.unregister <- client
	waitFor(t, func() bool { return hub.ClientCount() == 0 })

	// Канал закрыт Hub'ом
	if _, ok := <-client.send; ok {
		t.Error("send channel should be closed after unregister")
	}
}

func TestHubBroadcastNotification(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newTestClient()
	hub.register <- client
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.BroadcastNotification(&models.Notification{
		Type:     models.NotificationTypeFill,
		Severity: models.SeverityInfo,
		Message:  "order 1 filled",
	})

	select {
	case raw := <-client.send:
		var msg NotificationMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("broadcast is not valid JSON: %v", err)
		}
		if msg.Type != MessageTypeNotification {
			t.Errorf("type = %q, want notification", msg.Type)
		}
		if msg.Data.Message != "order 1 filled" {
			t.Errorf("message = %q", msg.Data.Message)
		}
	case <-time.After(time.Second):
		t.Fatal("broadcast did not reach the client")
	}
}

func TestHubBroadcastBalanceUpdate(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newTestClient()
	hub.register <- client
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.BroadcastBalanceUpdate("binance", 1000, 1500)

	select {
	case raw := <-client.send:
		var msg BalanceUpdateMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatal(err)
		}
		if msg.Cash != 1000 || msg.Value != 1500 {
			t.Errorf("cash/value = %g/%g, want 1000/1500", msg.Cash, msg.Value)
		}
	case <-time.After(time.Second):
		t.Fatal("broadcast did not reach the client")
	}
}

func TestHubRemovesSlowClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	slow := &Client{send: make(chan []byte)} // без буфера, никто не читает
	hub.register <- slow
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.BroadcastConnectionState("binance", true, false)

	waitFor(t, func() bool { return hub.ClientCount() == 0 })
}

func TestOriginChecker(t *testing.T) {
	checker := &OriginChecker{
		allowedOrigins: map[string]struct{}{
			"https://example.com": {},
		},
	}

	if !checker.Check("") {
		t.Error("empty origin (non-browser) should pass")
	}
	if !checker.Check("https://example.com") {
		t.Error("allowed origin should pass")
	}
	if checker.Check("https://evil.example") {
		t.Error("unknown origin should be rejected")
	}

	allowAll := &OriginChecker{allowAll: true}
	if !allowAll.Check("https://anything.example") {
		t.Error("allowAll should accept any origin")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 1s")
}
