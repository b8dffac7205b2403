package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// DiskStore はローカルディスクに画像を保存する。
type DiskStore struct {
	// root は保存先のルートディレクトリ。画像は root/images/ に置く。
	root string
}

var _ ImageStore = (*DiskStore)(nil)

// NewDiskStore はDiskStoreを生成し、保存先ディレクトリを作成する。
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(filepath.Join(root, imagePrefix), 0o755); err != nil {
		return nil, fmt.Errorf("画像保存ディレクトリの作成に失敗: %w", err)
	}
	return &DiskStore{root: root}, nil
}

// StaticDir は保存した画像を配信するディレクトリを返す。
func (d *DiskStore) StaticDir() string {
	return filepath.Join(d.root, imagePrefix)
}

// Save は画像をディスクに書き込む。
func (d *DiskStore) Save(_ context.Context, filename, contentType string, r io.Reader) (string, error) {
	imagePath := newImagePath(filename, contentType)
	dst, err := os.Create(filepath.Join(d.root, filepath.FromSlash(imagePath)))
	if err != nil {
		return "", fmt.Errorf("画像ファイルの作成に失敗: %w", err)
	}

	if _, err := io.Copy(dst, r); err != nil {
		_ = dst.Close()
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("画像ファイルの書き込みに失敗: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("画像ファイルのクローズに失敗: %w", err)
	}
	return imagePath, nil
}

// Delete は画像ファイルを削除する。
func (d *DiskStore) Delete(_ context.Context, imagePath string) error {
	cleaned, err := cleanImagePath(imagePath)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(d.root, filepath.FromSlash(cleaned))); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("画像ファイルの削除に失敗: %w", err)
	}
	return nil
}
