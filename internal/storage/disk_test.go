package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDiskStore(t *testing.T) {
	t.Parallel()

	t.Run("保存した画像をStaticDir配下で読めること", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		store, err := NewDiskStore(root)
		if err != nil {
			t.Fatalf("NewDiskStore()でエラーが発生: %v", err)
		}

		imagePath, err := store.Save(context.Background(), "cat.png", "image/png", strings.NewReader("png-bytes"))
		if err != nil {
			t.Fatalf("Save()でエラーが発生: %v", err)
		}
		if !strings.HasPrefix(imagePath, "images/") {
			t.Errorf("imagePath = %q, want images/ 接頭辞", imagePath)
		}

		data, err := os.ReadFile(filepath.Join(store.StaticDir(), filepath.Base(imagePath)))
		if err != nil {
			t.Fatalf("保存された画像の読み込みに失敗: %v", err)
		}
		if string(data) != "png-bytes" {
			t.Errorf("内容 = %q, want %q", data, "png-bytes")
		}
	})

	t.Run("削除後はファイルが無く、再削除もエラーにならないこと", func(t *testing.T) {
		t.Parallel()

		store, err := NewDiskStore(t.TempDir())
		if err != nil {
			t.Fatalf("NewDiskStore()でエラーが発生: %v", err)
		}
		imagePath, err := store.Save(context.Background(), "dog.jpg", "image/jpeg", strings.NewReader("jpg"))
		if err != nil {
			t.Fatalf("Save()でエラーが発生: %v", err)
		}

		if err := store.Delete(context.Background(), imagePath); err != nil {
			t.Fatalf("Delete()でエラーが発生: %v", err)
		}
		if _, err := os.Stat(filepath.Join(store.StaticDir(), filepath.Base(imagePath))); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("ファイルが残っている: %v", err)
		}
		if err := store.Delete(context.Background(), imagePath); err != nil {
			t.Errorf("存在しない画像の削除でエラーが発生: %v", err)
		}
	})

	t.Run("ストレージ外のパスは削除できないこと", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		store, err := NewDiskStore(root)
		if err != nil {
			t.Fatalf("NewDiskStore()でエラーが発生: %v", err)
		}
		outside := filepath.Join(root, "keep.txt")
		if err := os.WriteFile(outside, []byte("keep"), 0o600); err != nil {
			t.Fatalf("ファイルの作成に失敗: %v", err)
		}

		if err := store.Delete(context.Background(), "images/../keep.txt"); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Delete() err = %v, want %v", err, ErrInvalidPath)
		}
		if _, err := os.Stat(outside); err != nil {
			t.Errorf("ストレージ外のファイルが削除された: %v", err)
		}
	})
}
