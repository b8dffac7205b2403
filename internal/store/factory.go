package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/feedhub/internal/config"
)

// NewStoreFromConfig は設定のTypeに応じたStore実装を生成する。
func NewStoreFromConfig(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("sqliteストアには sqlite_path が必要です")
		}
		return OpenSQLite(ctx, cfg.SQLitePath, logger)
	case "mongo":
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("mongoストアには mongo_uri が必要です")
		}
		return OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("不明なストア種別: %s", cfg.Type)
	}
}
