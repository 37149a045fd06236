package websocket

import (
	"log/slog"
	"net/http"
	"time"

	ws "github.com/coder/websocket"
)

// UserIDFunc はリクエストから認証済みユーザーIDを取り出す。
// 未認証の場合は空文字を返す。
type UserIDFunc func(r *http.Request) string

// HandleCartEvents はWebSocket接続を受け付け、ユーザーのカート通知を配信するハンドラを返す。
// originPatternsはクロスオリジン接続を許可するホストのパターン。
func HandleCartEvents(hub *Hub, userID UserIDFunc, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := userID(r)
		if uid == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// サーバーのRead/WriteTimeoutは長時間接続には適用しない
		rc := http.NewResponseController(w)
		_ = rc.SetReadDeadline(time.Time{})
		_ = rc.SetWriteDeadline(time.Time{})

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			slog.Warn("websocket accept failed", slog.String("error", err.Error()))
			return
		}
		defer conn.CloseNow()

		NewClient(hub, conn, uid).Run(r.Context())
	}
}
