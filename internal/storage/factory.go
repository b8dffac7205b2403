package storage

import (
	"context"
	"fmt"

	"github.com/nao1215/feedhub/internal/config"
)

// StaticServer はHTTPで直接配信できるディレクトリを持つImageStore。
type StaticServer interface {
	// StaticDir は画像を配信するディレクトリを返す。
	StaticDir() string
}

// NewImageStoreFromConfig は設定のTypeに応じたImageStore実装を生成する。
func NewImageStoreFromConfig(ctx context.Context, cfg config.ImageConfig) (ImageStore, error) {
	switch cfg.Type {
	case "disk":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("diskストレージには dir が必要です")
		}
		return NewDiskStore(cfg.Dir)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3ストレージには s3_bucket が必要です")
		}
		return NewS3Store(ctx, S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	default:
		return nil, fmt.Errorf("不明な画像ストレージ種別: %s", cfg.Type)
	}
}
