// Package notify は投稿の変更イベントを購読者へ配信する。
//
// 配信はベストエフォートで、失敗してもリクエストの結果には影響しない。
// 配信先はWebSocketで接続中のクライアントと、設定されたWebhook。
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/nao1215/feedhub/pkg/event"
)

// Notifier は変更イベントを配信する。
type Notifier interface {
	// Emit はイベントを配信する。配信の完了は待たない実装もある。
	Emit(ctx context.Context, ev *event.Event) error
}

// Multi は複数のNotifierへ同じイベントを配信する。
type Multi []Notifier

var _ Notifier = Multi(nil)

// Emit はすべての配信先にイベントを渡す。
// ある配信先の失敗やパニックは他の配信先に影響しない。
func (m Multi) Emit(ctx context.Context, ev *event.Event) error {
	var errs []error
	for _, n := range m {
		if err := safeEmit(ctx, n, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// safeEmit はパニックをエラーに変換してEmitを呼び出す。
func safeEmit(ctx context.Context, n Notifier, ev *event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("通知中にパニックが発生: %v", r)
		}
	}()
	return n.Emit(ctx, ev)
}

// Nop は何も配信しないNotifier。
type Nop struct{}

var _ Notifier = Nop{}

// Emit は何もしない。
func (Nop) Emit(context.Context, *event.Event) error {
	return nil
}
