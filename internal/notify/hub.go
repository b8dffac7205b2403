package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/nao1215/feedhub/pkg/event"
	"github.com/nao1215/feedhub/pkg/middleware"
)

const (
	// sendBufferSize はクライアントごとの送信待ちメッセージ数の上限。
	sendBufferSize = 16
	// writeWait は1メッセージの書き込みタイムアウト。
	writeWait = 10 * time.Second
	// pongWait はクライアントからの応答を待つ時間。
	pongWait = 60 * time.Second
	// pingPeriod はPingの送信間隔。pongWaitより短くする。
	pingPeriod = pongWait * 9 / 10
)

// client はWebSocketで接続中の1クライアント。
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub は接続中のWebSocketクライアントへイベントをブロードキャストする。
// 送信が追いつかないクライアント宛てのメッセージは破棄する。
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *slog.Logger
	closed   bool
}

var _ Notifier = (*Hub)(nil)

// HubOption はHubの設定を変更する。
type HubOption func(*Hub)

// WithAllowedOrigins は接続を許可するブラウザのオリジンを指定する。
// "*"を含めた場合はすべてのオリジンを許可する。Originヘッダーの無い接続は常に許可する。
func WithAllowedOrigins(origins []string) HubOption {
	allow := middleware.AllowOrigin(origins)
	return func(h *Hub) {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allow(origin)
		}
	}
}

// NewHub は新しいHubを生成する。
// WithAllowedOriginsを指定しない場合は同一オリジンからの接続だけを許可する。
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ClientCount は接続中のクライアント数を返す。
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Emit はイベントを接続中のすべてのクライアントへ送る。
func (h *Hub) Emit(_ context.Context, ev *event.Event) error {
	msg, err := event.Marshal(ev)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn("送信が追いつかないクライアントへのイベントを破棄",
			slog.String("event_id", ev.ID),
			slog.Int("dropped", dropped),
		)
	}
	return nil
}

// ServeWS はWebSocket接続を受け付けるGinハンドラを返す。
func (h *Hub) ServeWS() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgradeが失敗した場合はエラーレスポンスが書き込み済み
			h.logger.Warn("WebSocketのアップグレードに失敗", slog.Any("error", err))
			return
		}

		cl := &client{conn: conn, send: make(chan []byte, sendBufferSize)}
		if err := h.register(cl); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeWait))
			_ = conn.Close()
			return
		}

		go h.writePump(cl)
		h.readPump(cl)
	}
}

// register はクライアントを登録する。
func (h *Hub) register(cl *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return fmt.Errorf("Hubは停止済みです")
	}
	h.clients[cl] = struct{}{}
	return nil
}

// unregister はクライアントの登録を解除し、送信チャネルを閉じる。
func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
}

// readPump はクライアントからのメッセージを読み捨て、切断を検知する。
func (h *Hub) readPump(cl *client) {
	defer func() {
		h.unregister(cl)
		_ = cl.conn.Close()
	}()

	cl.conn.SetReadLimit(512)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump は送信チャネルのメッセージをクライアントへ書き込む。
func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("WebSocketへの書き込みに失敗", slog.Any("error", err))
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close はすべてのクライアントを切断し、以降の接続を拒否する。
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for cl := range h.clients {
		delete(h.clients, cl)
		close(cl.send)
	}
}
