// Package config はfeedhubの設定を読み込む。
//
// 既定値、TOMLファイル、環境変数の順に上書きする。
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config はアプリケーション全体の設定。
type Config struct {
	// Server はHTTPサーバーの設定。
	Server ServerConfig `toml:"server"`
	// Auth はトークンの設定。
	Auth AuthConfig `toml:"auth"`
	// Store はユーザーと投稿のストアの設定。
	Store StoreConfig `toml:"store"`
	// Images は画像ストレージの設定。
	Images ImageConfig `toml:"images"`
	// Notify は変更通知の設定。
	Notify NotifyConfig `toml:"notify"`
	// Log はログ出力の設定。
	Log LogConfig `toml:"log"`
}

// ServerConfig はHTTPサーバーの設定。
type ServerConfig struct {
	// Port はリッスンポート。
	Port string `toml:"port"`
	// AllowedOrigins はCORSで許可するオリジン。"*"ですべて許可する。
	AllowedOrigins []string `toml:"allowed_origins"`
	// MaxUploadBytes はアップロード可能な画像の最大サイズ。
	MaxUploadBytes int64 `toml:"max_upload_bytes"`
}

// AuthConfig はトークンの設定。
type AuthConfig struct {
	// JWTSecret はHS256の署名鍵。空の場合は起動できない。
	JWTSecret string `toml:"jwt_secret"`
}

// StoreConfig はストアの設定。Typeによって参照するフィールドが変わる。
type StoreConfig struct {
	// Type は"memory"、"sqlite"、"mongo"のいずれか。
	Type string `toml:"type"`
	// SQLitePath はType=sqliteの場合のデータベースファイル。
	SQLitePath string `toml:"sqlite_path,omitempty"`
	// MongoURI はType=mongoの場合の接続URI。
	MongoURI string `toml:"mongo_uri,omitempty"`
	// MongoDatabase はType=mongoの場合のデータベース名。
	MongoDatabase string `toml:"mongo_database,omitempty"`
}

// ImageConfig は画像ストレージの設定。Typeによって参照するフィールドが変わる。
type ImageConfig struct {
	// Type は"disk"または"s3"。
	Type string `toml:"type"`
	// Dir はType=diskの場合の保存先ルート。images/ はこの下に作られる。
	Dir string `toml:"dir,omitempty"`
	// S3Bucket はType=s3の場合のバケット名。
	S3Bucket string `toml:"s3_bucket,omitempty"`
	// S3Region はType=s3の場合のリージョン。
	S3Region string `toml:"s3_region,omitempty"`
	// S3Endpoint はS3互換ストレージのエンドポイント。空の場合はAWSを使う。
	S3Endpoint string `toml:"s3_endpoint,omitempty"`
	// S3AccessKey は静的認証情報のアクセスキー。
	S3AccessKey string `toml:"s3_access_key,omitempty"`
	// S3SecretKey は静的認証情報のシークレットキー。
	S3SecretKey string `toml:"s3_secret_key,omitempty"`
}

// NotifyConfig は変更通知の設定。
type NotifyConfig struct {
	// WebhookURLs は変更イベントをPOSTする宛先。
	WebhookURLs []string `toml:"webhook_urls"`
	// WebhookTimeoutSeconds はWebhook1件あたりのタイムアウト秒数。
	WebhookTimeoutSeconds int `toml:"webhook_timeout_seconds"`
}

// LogConfig はログ出力の設定。
type LogConfig struct {
	// Level は"debug"、"info"、"warn"、"error"のいずれか。
	Level string `toml:"level"`
	// Format は"text"または"json"。
	Format string `toml:"format"`
}

// Default は既定値で埋めた設定を返す。
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			AllowedOrigins: []string{"*"},
			MaxUploadBytes: 10 << 20,
		},
		Store: StoreConfig{
			Type:          "memory",
			SQLitePath:    "feedhub.db",
			MongoDatabase: "feedhub",
		},
		Images: ImageConfig{
			Type:     "disk",
			Dir:      ".",
			S3Region: "us-east-1",
		},
		Notify: NotifyConfig{
			WebhookTimeoutSeconds: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Read はTOMLをcfgに重ねて読み込む。ファイルに無い項目は既存の値を保つ。
func Read(r io.Reader, cfg *Config) error {
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return fmt.Errorf("設定のデコードに失敗: %w", err)
	}
	return nil
}

// Load は既定値にTOMLファイル（pathが空でなければ）と環境変数を重ねた設定を返す。
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("設定ファイルのオープンに失敗: %w", err)
		}
		defer f.Close()

		if err := Read(f, cfg); err != nil {
			return nil, fmt.Errorf("%s の読み込みに失敗: %w", path, err)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv は環境変数で設定を上書きする。
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"PORT":             &cfg.Server.Port,
		"JWT_SECRET":       &cfg.Auth.JWTSecret,
		"STORE_TYPE":       &cfg.Store.Type,
		"SQLITE_PATH":      &cfg.Store.SQLitePath,
		"MONGO_URI":        &cfg.Store.MongoURI,
		"MONGO_DATABASE":   &cfg.Store.MongoDatabase,
		"IMAGE_STORE_TYPE": &cfg.Images.Type,
		"IMAGE_DIR":        &cfg.Images.Dir,
		"S3_BUCKET":        &cfg.Images.S3Bucket,
		"S3_REGION":        &cfg.Images.S3Region,
		"S3_ENDPOINT":      &cfg.Images.S3Endpoint,
		"S3_ACCESS_KEY":    &cfg.Images.S3AccessKey,
		"S3_SECRET_KEY":    &cfg.Images.S3SecretKey,
		"LOG_LEVEL":        &cfg.Log.Level,
		"LOG_FORMAT":       &cfg.Log.Format,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("ALLOWED_ORIGINS"); ok && v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v, ok := lookup("WEBHOOK_URLS"); ok && v != "" {
		cfg.Notify.WebhookURLs = splitList(v)
	}
	if v, ok := lookup("MAX_UPLOAD_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_UPLOAD_BYTES が数値ではありません: %w", err)
		}
		cfg.Server.MaxUploadBytes = n
	}
	return nil
}

// splitList はカンマ区切りの文字列を分割する。空要素は除く。
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ErrMissingJWTSecret はJWT署名鍵が設定されていない場合のエラー。
var ErrMissingJWTSecret = errors.New("JWT_SECRET が設定されていません")

// Validate は設定の整合性を検査する。
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return ErrMissingJWTSecret
	}

	switch c.Store.Type {
	case "memory":
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.type=sqlite には sqlite_path が必要です")
		}
	case "mongo":
		if c.Store.MongoURI == "" || c.Store.MongoDatabase == "" {
			return fmt.Errorf("store.type=mongo には mongo_uri と mongo_database が必要です")
		}
	default:
		return fmt.Errorf("不明なストア種別: %s", c.Store.Type)
	}

	switch c.Images.Type {
	case "disk":
		if c.Images.Dir == "" {
			return fmt.Errorf("images.type=disk には dir が必要です")
		}
	case "s3":
		if c.Images.S3Bucket == "" {
			return fmt.Errorf("images.type=s3 には s3_bucket が必要です")
		}
	default:
		return fmt.Errorf("不明な画像ストレージ種別: %s", c.Images.Type)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("不明なログ形式: %s", c.Log.Format)
	}

	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes は正の値である必要があります")
	}
	return nil
}
