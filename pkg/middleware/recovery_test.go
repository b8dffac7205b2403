package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

// discardLogger は出力を破棄するロガーを返す。
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestRecovery はRecoveryミドルウェアを検証する。
func TestRecovery(t *testing.T) {
	t.Parallel()

	panicValues := []struct {
		name  string
		value any
	}{
		{"文字列", "boom"},
		{"整数", 42},
		{"error", errors.New("store exploded")},
	}

	for _, pv := range panicValues {
		t.Run(pv.name+"のパニックで500と共通メッセージが返りログに記録されること", func(t *testing.T) {
			t.Parallel()

			var logs bytes.Buffer
			router := gin.New()
			router.Use(Recovery(slog.New(slog.NewJSONHandler(&logs, nil))))
			router.POST("/feed/post", func(_ *gin.Context) {
				panic(pv.value)
			})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/feed/post", nil))

			if w.Code != http.StatusInternalServerError {
				t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusInternalServerError)
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("レスポンスボディのパースに失敗: %v", err)
			}
			if body["message"] != "An error occurred!" {
				t.Errorf("message = %q, want %q", body["message"], "An error occurred!")
			}
			if !strings.Contains(logs.String(), `"path":"/feed/post"`) {
				t.Errorf("ログにパスが含まれていない: %s", logs.String())
			}
		})
	}

	t.Run("パニックの後も次のリクエストを処理できること", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Recovery(discardLogger()))
		router.GET("/panic", func(_ *gin.Context) { panic("boom") })
		router.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		for path, want := range map[string]int{"/panic": http.StatusInternalServerError, "/health": http.StatusOK} {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			if w.Code != want {
				t.Errorf("%s ステータスコード = %d, want %d", path, w.Code, want)
			}
		}
	})
}
