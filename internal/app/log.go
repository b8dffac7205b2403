package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/nao1215/feedhub/internal/config"
)

// NewLogger は設定に従ってwへ出力する構造化ロガーを生成する。
func NewLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("不明なログレベル: %s", cfg.Level)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch cfg.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("不明なログ形式: %s", cfg.Format)
	}
}
