package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/feedhub/pkg/event"
	"github.com/nao1215/feedhub/pkg/httpclient"
	"github.com/nao1215/feedhub/pkg/identity"
)

// DefaultWebhookTimeout は1回の配信のタイムアウトの既定値。
const DefaultWebhookTimeout = 5 * time.Second

// Webhook は設定されたURLへイベントをJSONでPOSTする。
// 配信は宛先ごとにゴルーチンで行い、Emitは完了を待たない。
type Webhook struct {
	clients []*httpclient.Client
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

var _ Notifier = (*Webhook)(nil)

// NewWebhook は指定URLへ配信するWebhookを生成する。
// timeoutが0以下の場合はDefaultWebhookTimeoutを使う。
func NewWebhook(urls []string, timeout time.Duration, logger *slog.Logger) *Webhook {
	if timeout <= 0 {
		timeout = DefaultWebhookTimeout
	}
	clients := make([]*httpclient.Client, 0, len(urls))
	for _, u := range urls {
		clients = append(clients, httpclient.New(u,
			httpclient.WithTimeout(timeout),
			httpclient.WithHeader("X-Feedhub-Event", string(event.TypePostEvent)),
		))
	}
	return &Webhook{clients: clients, timeout: timeout, logger: logger}
}

// Emit はすべての宛先への配信を開始する。
// 呼び出し元のコンテキストがキャンセルされても配信は継続する。
func (w *Webhook) Emit(ctx context.Context, ev *event.Event) error {
	actor := identity.FromContext(ctx).UserID
	base := httpclient.WithUserID(context.WithoutCancel(ctx), actor)

	for _, c := range w.clients {
		w.wg.Add(1)
		go func(c *httpclient.Client) {
			defer w.wg.Done()

			sendCtx, cancel := context.WithTimeout(base, w.timeout)
			defer cancel()

			if err := c.PostJSON(sendCtx, "", ev, nil); err != nil {
				w.logger.Warn("Webhookへの配信に失敗",
					slog.String("url", c.BaseURL()),
					slog.String("event_id", ev.ID),
					slog.Any("error", err),
				)
				return
			}
			w.logger.Debug("Webhookへ配信",
				slog.String("url", c.BaseURL()),
				slog.String("event_id", ev.ID),
			)
		}(c)
	}
	return nil
}

// Wait は実行中の配信がすべて終わるまで待つ。
func (w *Webhook) Wait() {
	w.wg.Wait()
}
