package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// TestIsAllowedContentType は許可するMIMEタイプを検証する。
func TestIsAllowedContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		contentType string
		want        bool
	}{
		{"image/png", true},
		{"image/jpg", true},
		{"image/jpeg", true},
		{"IMAGE/PNG", true},
		{"image/gif", false},
		{"video/mp4", false},
		{"application/pdf", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			t.Parallel()
			if got := IsAllowedContentType(tt.contentType); got != tt.want {
				t.Errorf("IsAllowedContentType(%q) = %v, want %v", tt.contentType, got, tt.want)
			}
		})
	}
}

// TestIsPlaceholder は画像未指定の判定を検証する。
func TestIsPlaceholder(t *testing.T) {
	t.Parallel()

	if !IsPlaceholder("") || !IsPlaceholder("undefined") {
		t.Error("空文字列とundefinedは未指定として扱うこと")
	}
	if IsPlaceholder("images/a.png") {
		t.Error("通常のパスが未指定として扱われた")
	}
}

// TestNewImagePath は保存パスの形式を検証する。
func TestNewImagePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		filename    string
		contentType string
		wantExt     string
	}{
		{name: "ファイル名の拡張子を使うこと", filename: "photo.PNG", contentType: "image/png", wantExt: ".png"},
		{name: "jpegの拡張子を保つこと", filename: "photo.jpeg", contentType: "image/jpeg", wantExt: ".jpeg"},
		{name: "拡張子が無い場合はContent-Typeから決めること", filename: "photo", contentType: "image/jpeg", wantExt: ".jpg"},
		{name: "想定外の拡張子はContent-Typeから決めること", filename: "photo.exe", contentType: "image/png", wantExt: ".png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := newImagePath(tt.filename, tt.contentType)
			if !strings.HasPrefix(got, "images/") || !strings.HasSuffix(got, tt.wantExt) {
				t.Errorf("newImagePath() = %q, want images/<uuid>%s", got, tt.wantExt)
			}
		})
	}
}

// TestCleanImagePath はストレージ外を指すパスの拒否を検証する。
func TestCleanImagePath(t *testing.T) {
	t.Parallel()

	valid := []string{"images/a.png", "/images/a.png", "images/./a.png"}
	for _, p := range valid {
		if _, err := cleanImagePath(p); err != nil {
			t.Errorf("cleanImagePath(%q) err = %v", p, err)
		}
	}

	invalid := []string{"../etc/passwd", "images/../../etc/passwd", "images", "other/a.png", ""}
	for _, p := range invalid {
		if _, err := cleanImagePath(p); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("cleanImagePath(%q) err = %v, want %v", p, err, ErrInvalidPath)
		}
	}
}

// recordingStore は削除要求を記録するImageStore。
type recordingStore struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (r *recordingStore) Save(context.Context, string, string, io.Reader) (string, error) {
	return "", nil
}

func (r *recordingStore) Delete(_ context.Context, imagePath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, imagePath)
	return r.err
}

// TestDeleteBestEffort はベストエフォート削除を検証する。
func TestDeleteBestEffort(t *testing.T) {
	t.Parallel()

	t.Run("失敗はログに記録されるだけであること", func(t *testing.T) {
		t.Parallel()

		var logs bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&logs, nil))
		store := &recordingStore{err: errors.New("disk full")}

		DeleteBestEffort(context.Background(), store, "images/a.png", logger)

		if len(store.deleted) != 1 {
			t.Fatalf("Delete()の呼び出し回数 = %d, want 1", len(store.deleted))
		}
		if !strings.Contains(logs.String(), "disk full") {
			t.Errorf("ログにエラーが含まれていない: %s", logs.String())
		}
	})

	t.Run("未指定のパスでは削除しないこと", func(t *testing.T) {
		t.Parallel()

		store := &recordingStore{}
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		DeleteBestEffort(context.Background(), store, "", logger)
		DeleteBestEffort(context.Background(), store, "undefined", logger)

		if len(store.deleted) != 0 {
			t.Errorf("Delete()が呼ばれた: %v", store.deleted)
		}
	})
}
