// Package server はfeedhubのREST APIとGraphQL、WebSocketをひとつのHTTPサーバーで公開する。
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/feedhub/internal/account"
	"github.com/nao1215/feedhub/internal/config"
	"github.com/nao1215/feedhub/internal/feed"
	"github.com/nao1215/feedhub/internal/graphql"
	"github.com/nao1215/feedhub/internal/notify"
	"github.com/nao1215/feedhub/internal/storage"
	"github.com/nao1215/feedhub/pkg/apperr"
	"github.com/nao1215/feedhub/pkg/middleware"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 10 * time.Second

// Deps はServerが使うサービス群。
type Deps struct {
	// Tokens はAuthGateが使うトークンサービス。
	Tokens *middleware.TokenService
	// Accounts はアカウント操作。
	Accounts *account.Service
	// Feeds は投稿操作。
	Feeds *feed.Service
	// Images は画像ストレージ。
	Images storage.ImageStore
	// GraphQL はGraphQLハンドラ。
	GraphQL *graphql.Handler
	// Hub はWebSocketの配信先。
	Hub *notify.Hub
	// Logger はアクセスログとエラーの出力先。
	Logger *slog.Logger
}

// Server はfeedhubのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// maxUploadBytes はアップロード可能な画像の最大サイズ。
	maxUploadBytes int64

	accounts *account.Service
	feeds    *feed.Service
	images   storage.ImageStore
	gql      *graphql.Handler
	hub      *notify.Hub
	logger   *slog.Logger
}

// NewServer は新しいServerを生成する。
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	router := gin.New()
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.AuthGate(deps.Tokens))

	// マルチパートフォームの最大メモリを設定する。
	router.MaxMultipartMemory = cfg.MaxUploadBytes

	s := &Server{
		router:         router,
		port:           cfg.Port,
		maxUploadBytes: cfg.MaxUploadBytes,
		accounts:       deps.Accounts,
		feeds:          deps.Feeds,
		images:         deps.Images,
		gql:            deps.GraphQL,
		hub:            deps.Hub,
		logger:         deps.Logger,
	}
	s.setupRoutes()
	return s
}

// Handler はルーティング済みのHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルに停止する。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort("", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// ハイジャック済みのWebSocket接続はShutdownの対象外のため個別に閉じる。
	srv.RegisterOnShutdown(s.hub.Close)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTPサーバーを起動", slog.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("HTTPサーバーを停止")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTPサーバーの停止に失敗: %w", err)
	}
	return nil
}

// setupRoutes はルーティングを設定する。
func (s *Server) setupRoutes() {
	auth := s.router.Group("/auth")
	{
		auth.PUT("/signup", s.handleSignup())
		auth.POST("/login", s.handleLogin())
		auth.GET("/status", s.handleGetStatus())
		auth.PATCH("/status", s.handleUpdateStatus())
	}

	feeds := s.router.Group("/feed")
	{
		feeds.GET("/posts", s.handleListPosts())
		feeds.GET("/post/:postId", s.handleGetPost())
		feeds.POST("/post", s.limitBody(), s.handleCreatePost())
		feeds.PUT("/post/:postId", s.limitBody(), s.handleEditPost())
		feeds.DELETE("/post/:postId", s.handleDeletePost())
	}

	// GraphQLクライアントが投稿前に画像だけを送るためのエンドポイント
	s.router.PUT("/add-image", s.limitBody(), s.handleAddImage())

	s.router.POST("/graphql", s.gql.Handle())
	s.router.GET("/graphql", s.gql.Handle())

	s.router.GET("/ws", s.hub.ServeWS())

	// ディスクに保存した画像はそのまま配信する
	if static, ok := s.images.(storage.StaticServer); ok {
		s.router.Static("/images", static.StaticDir())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "feedhub"})
	})
}

// writeError はエラーを種別に応じたステータスコードとボディで返す。
func (s *Server) writeError(c *gin.Context, err error) {
	status, resp := apperr.ToResponse(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(c.Request.Context(), "リクエストの処理に失敗",
			slog.String("path", c.FullPath()),
			slog.Any("error", err),
		)
	}
	c.JSON(status, resp)
}
