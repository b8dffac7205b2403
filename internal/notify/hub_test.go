package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/nao1215/feedhub/pkg/event"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// startHubServer はHubを/wsで公開するテストサーバーを起動する。
func startHubServer(t *testing.T, hub *Hub) string {
	t.Helper()
	router := gin.New()
	router.GET("/ws", hub.ServeWS())
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

// dial はHubへ接続し、登録されるまで待つ。
func dial(t *testing.T, hub *Hub, url string, want int) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.DialContext(context.Background(), url, nil)
	if err != nil {
		t.Fatalf("WebSocket接続に失敗: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() < want {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", hub.ClientCount(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
	return conn
}

func TestHub(t *testing.T) {
	t.Parallel()

	t.Run("接続中のすべてのクライアントにイベントが届くこと", func(t *testing.T) {
		t.Parallel()

		hub := NewHub(discardLogger())
		t.Cleanup(hub.Close)
		url := startHubServer(t, hub)
		c1 := dial(t, hub, url, 1)
		c2 := dial(t, hub, url, 2)

		sent := newTestEvent(t)
		if err := hub.Emit(context.Background(), sent); err != nil {
			t.Fatalf("Emit()でエラーが発生: %v", err)
		}

		for _, conn := range []*websocket.Conn{c1, c2} {
			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				t.Fatalf("メッセージの受信に失敗: %v", err)
			}
			var got event.Event
			if err := json.Unmarshal(msg, &got); err != nil {
				t.Fatalf("受信メッセージのパースに失敗: %v", err)
			}
			if got.ID != sent.ID || got.Name != event.TypePostEvent {
				t.Errorf("受信イベント = %+v, want id=%s name=%s", got, sent.ID, event.TypePostEvent)
			}
			data, err := event.DecodeData[event.PostEventData](&got)
			if err != nil {
				t.Fatalf("DecodeData()でエラーが発生: %v", err)
			}
			if data.Action != event.ActionCreate {
				t.Errorf("Action = %q, want %q", data.Action, event.ActionCreate)
			}
		}
	})

	t.Run("切断したクライアントは登録解除されること", func(t *testing.T) {
		t.Parallel()

		hub := NewHub(discardLogger())
		t.Cleanup(hub.Close)
		conn := dial(t, hub, startHubServer(t, hub), 1)
		_ = conn.Close()

		deadline := time.Now().Add(2 * time.Second)
		for hub.ClientCount() != 0 {
			if time.Now().After(deadline) {
				t.Fatalf("ClientCount() = %d, want 0", hub.ClientCount())
			}
			time.Sleep(10 * time.Millisecond)
		}
	})

	t.Run("送信バッファが一杯のクライアント宛てはブロックせずに破棄されること", func(t *testing.T) {
		t.Parallel()

		hub := NewHub(discardLogger())
		slow := &client{send: make(chan []byte, sendBufferSize)}
		hub.clients[slow] = struct{}{}

		ev := newTestEvent(t)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for range sendBufferSize + 5 {
				_ = hub.Emit(context.Background(), ev)
			}
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Emit()がブロックした")
		}
		if len(slow.send) != sendBufferSize {
			t.Errorf("バッファ内のメッセージ数 = %d, want %d", len(slow.send), sendBufferSize)
		}
	})

	t.Run("Close後は接続中のクライアントが切断されること", func(t *testing.T) {
		t.Parallel()

		hub := NewHub(discardLogger())
		conn := dial(t, hub, startHubServer(t, hub), 1)
		hub.Close()

		if hub.ClientCount() != 0 {
			t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
		}
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := conn.ReadMessage(); err == nil {
			t.Error("Close後もメッセージを受信できた")
		}
	})
}

func TestHubOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		allowed []string
		origin  string
		wantOK  bool
	}{
		{"許可リストのオリジンは接続できること", []string{"http://app.example.com"}, "http://app.example.com", true},
		{"許可リストに無いオリジンは拒否されること", []string{"http://app.example.com"}, "http://evil.example.com", false},
		{"ワイルドカードはすべてのオリジンを許可すること", []string{"*"}, "http://evil.example.com", true},
		{"Originヘッダーが無い接続は許可されること", []string{"http://app.example.com"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			hub := NewHub(discardLogger(), WithAllowedOrigins(tt.allowed))
			t.Cleanup(hub.Close)
			url := startHubServer(t, hub)

			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.DialContext(context.Background(), url, header)
			if tt.wantOK {
				if err != nil {
					t.Fatalf("WebSocket接続に失敗: %v", err)
				}
				_ = conn.Close()
				return
			}
			if err == nil {
				_ = conn.Close()
				t.Fatal("許可されていないオリジンから接続できた")
			}
			if resp == nil || resp.StatusCode != http.StatusForbidden {
				t.Errorf("レスポンス = %v, want %d", resp, http.StatusForbidden)
			}
		})
	}
}
