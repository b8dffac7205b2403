package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// mapLookup はマップを環境変数の代わりに使う。
func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

// TestDefault は既定値を検証する。
func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %q, want %q", cfg.Server.Port, "8080")
	}
	if cfg.Store.Type != "memory" || cfg.Images.Type != "disk" {
		t.Errorf("Store.Type = %q, Images.Type = %q", cfg.Store.Type, cfg.Images.Type)
	}
	if cfg.Server.MaxUploadBytes != 10<<20 {
		t.Errorf("MaxUploadBytes = %d, want %d", cfg.Server.MaxUploadBytes, 10<<20)
	}
	if !errors.Is(cfg.Validate(), ErrMissingJWTSecret) {
		t.Error("署名鍵が無い既定値が検証を通過した")
	}
}

// TestRead はTOMLの重ね合わせを検証する。
func TestRead(t *testing.T) {
	t.Parallel()

	t.Run("ファイルに書かれた項目だけが上書きされること", func(t *testing.T) {
		t.Parallel()

		cfg := Default()
		src := `
[auth]
jwt_secret = "from-file"

[store]
type = "sqlite"
sqlite_path = "/var/lib/feedhub/feed.db"

[notify]
webhook_urls = ["https://hooks.example.com/a"]
`
		if err := Read(strings.NewReader(src), cfg); err != nil {
			t.Fatalf("Read()でエラーが発生: %v", err)
		}
		if cfg.Auth.JWTSecret != "from-file" {
			t.Errorf("JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "from-file")
		}
		if cfg.Store.Type != "sqlite" || cfg.Store.SQLitePath != "/var/lib/feedhub/feed.db" {
			t.Errorf("Store = %+v", cfg.Store)
		}
		if cfg.Server.Port != "8080" {
			t.Errorf("Port = %q, want 既定値 8080", cfg.Server.Port)
		}
		if !slices.Equal(cfg.Notify.WebhookURLs, []string{"https://hooks.example.com/a"}) {
			t.Errorf("WebhookURLs = %v", cfg.Notify.WebhookURLs)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate()でエラーが発生: %v", err)
		}
	})

	t.Run("不正なTOMLの場合エラーが返ること", func(t *testing.T) {
		t.Parallel()

		if err := Read(strings.NewReader("[auth\njwt_secret="), Default()); err == nil {
			t.Error("エラーが返らなかった")
		}
	})
}

// TestApplyEnv は環境変数による上書きを検証する。
func TestApplyEnv(t *testing.T) {
	t.Parallel()

	t.Run("環境変数の値が設定に反映されること", func(t *testing.T) {
		t.Parallel()

		cfg := Default()
		err := applyEnv(cfg, mapLookup(map[string]string{
			"PORT":             "9000",
			"JWT_SECRET":       "env-secret",
			"STORE_TYPE":       "mongo",
			"MONGO_URI":        "mongodb://localhost:27017",
			"IMAGE_STORE_TYPE": "s3",
			"S3_BUCKET":        "feed-images",
			"ALLOWED_ORIGINS":  "http://a.example.com, http://b.example.com",
			"WEBHOOK_URLS":     "http://hook.example.com",
			"MAX_UPLOAD_BYTES": "1024",
		}))
		if err != nil {
			t.Fatalf("applyEnv()でエラーが発生: %v", err)
		}
		if cfg.Server.Port != "9000" || cfg.Auth.JWTSecret != "env-secret" {
			t.Errorf("Port = %q, JWTSecret = %q", cfg.Server.Port, cfg.Auth.JWTSecret)
		}
		if !slices.Equal(cfg.Server.AllowedOrigins, []string{"http://a.example.com", "http://b.example.com"}) {
			t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
		}
		if cfg.Server.MaxUploadBytes != 1024 {
			t.Errorf("MaxUploadBytes = %d, want 1024", cfg.Server.MaxUploadBytes)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate()でエラーが発生: %v", err)
		}
	})

	t.Run("空の環境変数は無視されること", func(t *testing.T) {
		t.Parallel()

		cfg := Default()
		if err := applyEnv(cfg, mapLookup(map[string]string{"PORT": ""})); err != nil {
			t.Fatalf("applyEnv()でエラーが発生: %v", err)
		}
		if cfg.Server.Port != "8080" {
			t.Errorf("Port = %q, want %q", cfg.Server.Port, "8080")
		}
	})

	t.Run("数値でないMAX_UPLOAD_BYTESはエラーになること", func(t *testing.T) {
		t.Parallel()

		if err := applyEnv(Default(), mapLookup(map[string]string{"MAX_UPLOAD_BYTES": "ten"})); err == nil {
			t.Error("エラーが返らなかった")
		}
	})
}

// TestValidate は設定の検証を検証する。
func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "正常な設定", mutate: func(*Config) {}, wantErr: false},
		{name: "不明なストア種別", mutate: func(c *Config) { c.Store.Type = "redis" }, wantErr: true},
		{name: "mongoでURIが無い", mutate: func(c *Config) { c.Store.Type = "mongo" }, wantErr: true},
		{name: "s3でバケットが無い", mutate: func(c *Config) { c.Images.Type = "s3" }, wantErr: true},
		{name: "不明な画像ストレージ種別", mutate: func(c *Config) { c.Images.Type = "ftp" }, wantErr: true},
		{name: "不明なログ形式", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: true},
		{name: "アップロード上限が0", mutate: func(c *Config) { c.Server.MaxUploadBytes = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			cfg.Auth.JWTSecret = "secret"
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestLoad はファイルと環境変数を合わせた読み込みを検証する。
func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feedhub.toml")
	if err := os.WriteFile(path, []byte("[auth]\njwt_secret = \"file-secret\"\n[server]\nport = \"7000\"\n"), 0o600); err != nil {
		t.Fatalf("設定ファイルの作成に失敗: %v", err)
	}
	t.Setenv("PORT", "7100")
	for _, key := range []string{"JWT_SECRET", "STORE_TYPE", "IMAGE_STORE_TYPE", "LOG_FORMAT", "MAX_UPLOAD_BYTES"} {
		t.Setenv(key, "")
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load()でエラーが発生: %v", err)
	}
	if cfg.Auth.JWTSecret != "file-secret" {
		t.Errorf("JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "file-secret")
	}
	if cfg.Server.Port != "7100" {
		t.Errorf("Port = %q, want 環境変数の値 7100", cfg.Server.Port)
	}

	if _, err := Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("存在しないファイルでエラーが返らなかった")
	}
}
