package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/feedhub/internal/storage"
	"github.com/nao1215/feedhub/pkg/apperr"
	"github.com/nao1215/feedhub/pkg/middleware"
)

// multipartOverhead は画像以外のフォーム項目とマルチパートの区切りに許容するサイズ。
const multipartOverhead = 1 << 20

// errFileTooLarge は画像が上限サイズを超えた場合のエラー。
var errFileTooLarge = apperr.New(apperr.InvalidInput, "File is too large!")

// limitBody はリクエストボディの大きさを制限するミドルウェアを返す。
func (s *Server) limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes+multipartOverhead)
		c.Next()
	}
}

// saveUploadedImage はフォームのimageフィールドの画像を保存し、保存先のパスを返す。
// ファイルが無い場合と、許可されていない形式の場合は空文字列を返す。
func (s *Server) saveUploadedImage(c *gin.Context) (string, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", errFileTooLarge
		}
		return "", nil
	}

	contentType := fh.Header.Get("Content-Type")
	if !storage.IsAllowedContentType(contentType) {
		return "", nil
	}
	if fh.Size > s.maxUploadBytes {
		return "", errFileTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("アップロードファイルのオープンに失敗: %w", err)
	}
	defer f.Close()

	imagePath, err := s.images.Save(c.Request.Context(), fh.Filename, contentType, f)
	if err != nil {
		return "", fmt.Errorf("画像の保存に失敗: %w", err)
	}
	return imagePath, nil
}

// handleAddImage は画像だけを保存して保存先のパスを返すハンドラを返す。
func (s *Server) handleAddImage() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := middleware.GetIdentity(c).Require(); err != nil {
			s.writeError(c, err)
			return
		}

		imagePath, err := s.saveUploadedImage(c)
		if err != nil {
			s.writeError(c, err)
			return
		}
		if imagePath == "" {
			c.JSON(http.StatusOK, gin.H{"message": "No file provided."})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "File stored.", "filePath": imagePath})
	}
}
