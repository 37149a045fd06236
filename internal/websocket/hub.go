// Package websocket はカート変更をユーザー単位でWebSocketクライアントへ通知する。
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/hitoshi/ecofinds/internal/metrics"
)

// EventCartUpdated はカートが変更されたことを示すイベント種別。
const EventCartUpdated = "cart_updated"

// Message はクライアントへ送信する通知。
// 内容は変更があったことのみを示し、クライアントはカートを再取得する。
type Message struct {
	Type string `json:"type"`
}

// Hub は接続中のクライアントをユーザーIDごとに保持する。
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	count   int
	metrics metrics.MetricsCollector
}

// NewHub は新しいHubを生成する。collectorはnilでもよい。
func NewHub(collector metrics.MetricsCollector) *Hub {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		metrics: collector,
	}
}

// Register はクライアントを登録する。
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.userID] = set
	}
	if _, dup := set[c]; !dup {
		set[c] = struct{}{}
		h.count++
	}
	count := h.count
	h.mu.Unlock()

	h.metrics.SetCartSubscribers(count)
}

// Unregister はクライアントを登録解除し、送信チャネルを閉じる。
// 二重に呼ばれても安全。
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.userID]
	if ok {
		if _, found := set[c]; found {
			delete(set, c)
			close(c.send)
			h.count--
		}
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
	}
	count := h.count
	h.mu.Unlock()

	h.metrics.SetCartSubscribers(count)
}

// NotifyCartUpdated はuserIDの全クライアントにcart_updatedを送信する。
// 送信バッファが満杯のクライアントへの通知は破棄する。
func (h *Hub) NotifyCartUpdated(userID string) {
	h.send(userID, Message{Type: EventCartUpdated})
}

func (h *Hub) send(userID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal websocket message", slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[userID] {
		select {
		case c.send <- data:
		default:
			slog.Debug("websocket send buffer full, dropping message",
				slog.String("user_id", userID),
			)
		}
	}
}

// ClientCount は接続中のクライアント総数を返す。
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// UserClientCount は指定ユーザーの接続数を返す。
func (h *Hub) UserClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
