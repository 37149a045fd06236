package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	"github.com/hitoshi/ecofinds/internal/metrics"
)

// mockClient は実接続を持たないClientを生成する。
func mockClient(hub *Hub, userID string) *Client {
	return &Client{
		hub:    hub,
		userID: userID,
		send:   make(chan []byte, sendBufferSize),
	}
}

type gaugeRecorder struct {
	metrics.NopCollector
	mu   sync.Mutex
	last int
}

func (g *gaugeRecorder) SetCartSubscribers(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = n
}

func (g *gaugeRecorder) value() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

func TestRegisterUnregister(t *testing.T) {
	rec := &gaugeRecorder{}
	hub := NewHub(rec)

	c1 := mockClient(hub, "u1")
	c2 := mockClient(hub, "u1")
	c3 := mockClient(hub, "u2")
	hub.Register(c1)
	hub.Register(c2)
	hub.Register(c3)

	if got := hub.ClientCount(); got != 3 {
		t.Fatalf("ClientCount = %d, want 3", got)
	}
	if got := hub.UserClientCount("u1"); got != 2 {
		t.Fatalf("UserClientCount(u1) = %d, want 2", got)
	}
	if rec.value() != 3 {
		t.Errorf("subscribers gauge = %d, want 3", rec.value())
	}

	hub.Unregister(c1)
	hub.Unregister(c3)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("ClientCount = %d, want 1", got)
	}
	if got := hub.UserClientCount("u2"); got != 0 {
		t.Errorf("UserClientCount(u2) = %d, want 0", got)
	}
	if rec.value() != 1 {
		t.Errorf("subscribers gauge = %d, want 1", rec.value())
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(nil)
	c := mockClient(hub, "u1")
	hub.Register(c)
	hub.Unregister(c)
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("ClientCount = %d, want 0", got)
	}
}

func TestNotifyCartUpdated_OnlyTargetUser(t *testing.T) {
	hub := NewHub(nil)
	alice := mockClient(hub, "alice")
	bob := mockClient(hub, "bob")
	hub.Register(alice)
	hub.Register(bob)
	defer hub.Unregister(alice)
	defer hub.Unregister(bob)

	hub.NotifyCartUpdated("alice")

	select {
	case data := <-alice.send:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Type != EventCartUpdated {
			t.Errorf("Type = %q, want %q", got.Type, EventCartUpdated)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for alice's message")
	}

	select {
	case <-bob.send:
		t.Error("bob must not receive alice's cart events")
	default:
	}
}

func TestNotifyCartUpdated_NoSubscribers(t *testing.T) {
	hub := NewHub(nil)
	hub.NotifyCartUpdated("nobody")
}

func TestNotifyCartUpdated_FullBufferDrops(t *testing.T) {
	hub := NewHub(nil)
	c := mockClient(hub, "u1")
	hub.Register(c)
	defer hub.Unregister(c)

	for i := 0; i < sendBufferSize+5; i++ {
		hub.NotifyCartUpdated("u1")
	}

	if got := len(c.send); got != sendBufferSize {
		t.Errorf("buffered = %d, want %d", got, sendBufferSize)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(nil)
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub, "shared")
			hub.Register(c)
			hub.NotifyCartUpdated("shared")
			hub.Unregister(c)
		}()
	}
	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("ClientCount = %d, want 0", got)
	}
}

func TestHandleCartEvents_Unauthenticated(t *testing.T) {
	hub := NewHub(nil)
	h := HandleCartEvents(hub, func(*http.Request) string { return "" }, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cart/events", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestHandleCartEvents_DeliversNotification(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(HandleCartEvents(hub, func(*http.Request) string { return "u1" }, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.CloseNow()

	deadline := time.Now().Add(2 * time.Second)
	for hub.UserClientCount("u1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client was never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.NotifyCartUpdated("u1")

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != EventCartUpdated {
		t.Errorf("Type = %q, want %q", got.Type, EventCartUpdated)
	}
}
