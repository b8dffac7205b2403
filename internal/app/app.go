// Package app は設定からfeedhubの依存関係を組み立てる。
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/feedhub/internal/account"
	"github.com/nao1215/feedhub/internal/config"
	"github.com/nao1215/feedhub/internal/feed"
	"github.com/nao1215/feedhub/internal/graphql"
	"github.com/nao1215/feedhub/internal/notify"
	"github.com/nao1215/feedhub/internal/server"
	"github.com/nao1215/feedhub/internal/storage"
	"github.com/nao1215/feedhub/internal/store"
	"github.com/nao1215/feedhub/pkg/middleware"
)

// App は組み立て済みのfeedhub。
// 呼び出し元は使い終わったらCloseを呼ぶ。
type App struct {
	logger  *slog.Logger
	store   store.Store
	hub     *notify.Hub
	webhook *notify.Webhook
	server  *server.Server
}

// New は設定からすべての依存関係を生成してAppを返す。
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	tokens, err := middleware.NewTokenService(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("トークンサービスの生成に失敗: %w", err)
	}

	images, err := storage.NewImageStoreFromConfig(ctx, cfg.Images)
	if err != nil {
		return nil, fmt.Errorf("画像ストレージの生成に失敗: %w", err)
	}

	db, err := store.NewStoreFromConfig(ctx, cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("ストアの生成に失敗: %w", err)
	}

	a := &App{
		logger: logger,
		store:  db,
		hub:    notify.NewHub(logger, notify.WithAllowedOrigins(cfg.Server.AllowedOrigins)),
	}

	notifiers := notify.Multi{a.hub}
	if len(cfg.Notify.WebhookURLs) > 0 {
		timeout := time.Duration(cfg.Notify.WebhookTimeoutSeconds) * time.Second
		a.webhook = notify.NewWebhook(cfg.Notify.WebhookURLs, timeout, logger)
		notifiers = append(notifiers, a.webhook)
	}

	accounts := account.NewService(db, tokens, logger)
	feeds := feed.NewService(db, db, images, notifiers, logger)
	gql, err := graphql.NewHandler(accounts, feeds, db, logger)
	if err != nil {
		_ = db.Close(ctx)
		return nil, err
	}

	a.server = server.NewServer(cfg.Server, server.Deps{
		Tokens:   tokens,
		Accounts: accounts,
		Feeds:    feeds,
		Images:   images,
		GraphQL:  gql,
		Hub:      a.hub,
		Logger:   logger,
	})

	logger.Info("feedhubを初期化",
		slog.String("store", cfg.Store.Type),
		slog.String("images", cfg.Images.Type),
		slog.Int("webhooks", len(cfg.Notify.WebhookURLs)),
	)
	return a, nil
}

// Handler はHTTPハンドラを返す。
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Run はctxがキャンセルされるまでHTTPサーバーを動かす。
func (a *App) Run(ctx context.Context) error {
	return a.server.Run(ctx)
}

// Close はWebSocket接続を閉じ、配信中のWebhookを待ってからストアを閉じる。
func (a *App) Close(ctx context.Context) error {
	a.hub.Close()
	if a.webhook != nil {
		a.webhook.Wait()
	}
	if err := a.store.Close(ctx); err != nil {
		return fmt.Errorf("ストアのクローズに失敗: %w", err)
	}
	return nil
}
