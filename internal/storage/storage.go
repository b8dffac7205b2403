// Package storage は投稿画像の保存先を抽象化する。
//
// 保存した画像は "images/<uuid><拡張子>" 形式の不透明なパスで識別する。
// 実装はローカルディスクとS3互換オブジェクトストレージの2種類。
package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// imagePrefix は保存パスの先頭ディレクトリ。
const imagePrefix = "images"

// ErrInvalidPath はストレージ外を指すパスが渡された場合のエラー。
var ErrInvalidPath = errors.New("不正な画像パスです")

// ImageStore は画像の保存と削除を行う。
type ImageStore interface {
	// Save は画像を保存し、保存先のパスを返す。
	Save(ctx context.Context, filename, contentType string, r io.Reader) (string, error)
	// Delete は画像を削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, imagePath string) error
}

// allowedContentTypes はアップロードを受け付ける画像のMIMEタイプと既定の拡張子。
var allowedContentTypes = map[string]string{
	"image/png":  ".png",
	"image/jpg":  ".jpg",
	"image/jpeg": ".jpg",
}

// IsAllowedContentType は許可されたContent-Typeかどうかを判定する。
// png、jpg、jpegのみ許可する。
func IsAllowedContentType(contentType string) bool {
	_, ok := allowedContentTypes[strings.ToLower(strings.TrimSpace(contentType))]
	return ok
}

// IsPlaceholder は画像が指定されていないことを表す値かどうかを判定する。
// クライアントは画像未選択時に"undefined"を送ることがある。
func IsPlaceholder(imagePath string) bool {
	return imagePath == "" || imagePath == "undefined"
}

// newImagePath は新しい保存パスを生成する。
// 拡張子は元のファイル名から取り、無ければContent-Typeから決める。
func newImagePath(filename, contentType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".png", ".jpg", ".jpeg":
	default:
		ext = allowedContentTypes[strings.ToLower(contentType)]
	}
	return path.Join(imagePrefix, uuid.New().String()+ext)
}

// cleanImagePath は保存パスを正規化し、images/配下であることを検査する。
func cleanImagePath(imagePath string) (string, error) {
	cleaned := path.Clean(strings.TrimPrefix(filepath.ToSlash(imagePath), "/"))
	if !strings.HasPrefix(cleaned, imagePrefix+"/") {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}

// DeleteBestEffort は画像を削除し、失敗してもログに記録するだけで呼び出し元には返さない。
func DeleteBestEffort(ctx context.Context, store ImageStore, imagePath string, logger *slog.Logger) {
	if IsPlaceholder(imagePath) {
		return
	}
	if err := store.Delete(ctx, imagePath); err != nil {
		logger.Warn("画像の削除に失敗",
			slog.String("path", imagePath),
			slog.Any("error", err),
		)
	}
}
