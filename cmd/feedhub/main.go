// feedhubのエントリポイント。
// serveでREST/GraphQL/WebSocketサーバーを起動し、migrateでSQLiteのスキーマを適用する。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/feedhub/internal/app"
	"github.com/nao1215/feedhub/internal/config"
	"github.com/nao1215/feedhub/internal/store"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd はルートコマンドを生成する。
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "feedhub",
		Short:        "Blog feed backend with REST, GraphQL and realtime notifications",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to TOML config file")

	root.AddCommand(newServeCmd(&configPath), newMigrateCmd(&configPath))
	return root
}

// newServeCmd はserveコマンドを生成する。
func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("設定の読み込みに失敗: %w", err)
			}
			logger, err := app.NewLogger(cfg.Log, os.Stderr)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("初期化に失敗: %w", err)
			}
			defer func() {
				if err := a.Close(context.WithoutCancel(ctx)); err != nil {
					logger.Error("終了処理に失敗", "error", err)
				}
			}()

			return a.Run(ctx)
		},
	}
}

// newMigrateCmd はmigrateコマンドを生成する。
func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQLite migrations and list applied versions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("設定の読み込みに失敗: %w", err)
			}
			if cfg.Store.Type != "sqlite" {
				return fmt.Errorf("migrateは store.type=sqlite でのみ使用できます（現在: %s）", cfg.Store.Type)
			}
			logger, err := app.NewLogger(cfg.Log, os.Stderr)
			if err != nil {
				return err
			}

			db, err := store.OpenSQLiteDB(cfg.Store.SQLitePath)
			if err != nil {
				return err
			}
			defer db.Close()

			versions, err := store.Migrate(cmd.Context(), db, logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, v := range versions {
				fmt.Fprintf(out, "%06d\t%s\n", v.Version, v.AppliedAt.Format("2006-01-02T15:04:05Z07:00"))
			}
			return nil
		},
	}
}
