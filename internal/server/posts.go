package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/feedhub/internal/feed"
	"github.com/nao1215/feedhub/pkg/middleware"
)

// handleListPosts は投稿一覧を返すハンドラを返す。
// pageが数値でない場合は1ページ目として扱う。
func (s *Server) handleListPosts() gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
		if err != nil {
			page = 1
		}

		result, err := s.feeds.List(c.Request.Context(), page)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":    "Posts fetched successfully!",
			"posts":      result.Posts,
			"totalItems": result.TotalItems,
		})
	}
}

// handleGetPost は投稿を1件返すハンドラを返す。
func (s *Server) handleGetPost() gin.HandlerFunc {
	return func(c *gin.Context) {
		post, err := s.feeds.Get(c.Request.Context(), c.Param("postId"))
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Post is fetched!", "post": post})
	}
}

// handleCreatePost はマルチパートフォームから投稿を作成するハンドラを返す。
// 画像は未認証のリクエストでは保存しない。
func (s *Server) handleCreatePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := middleware.GetIdentity(c)
		if err := id.Require(); err != nil {
			s.writeError(c, err)
			return
		}

		imagePath, err := s.saveUploadedImage(c)
		if err != nil {
			s.writeError(c, err)
			return
		}

		post, err := s.feeds.Create(c.Request.Context(), id, feed.PostInput{
			Title:    c.PostForm("title"),
			Content:  c.PostForm("content"),
			ImageURL: imagePath,
		})
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"message": "Post created succesfully!",
			"post":    post,
			"creator": post.Creator,
		})
	}
}

// handleEditPost は投稿を更新するハンドラを返す。
// 画像ファイルが添付されていない場合は現在の画像を維持する。
func (s *Server) handleEditPost() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := middleware.GetIdentity(c)
		if err := id.Require(); err != nil {
			s.writeError(c, err)
			return
		}

		imagePath, err := s.saveUploadedImage(c)
		if err != nil {
			s.writeError(c, err)
			return
		}

		post, err := s.feeds.Edit(c.Request.Context(), id, c.Param("postId"), feed.PostInput{
			Title:    c.PostForm("title"),
			Content:  c.PostForm("content"),
			ImageURL: imagePath,
		})
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Post updated successfully!", "post": post})
	}
}

// handleDeletePost は投稿を削除するハンドラを返す。
func (s *Server) handleDeletePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.feeds.Delete(c.Request.Context(), middleware.GetIdentity(c), c.Param("postId")); err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully!"})
	}
}
