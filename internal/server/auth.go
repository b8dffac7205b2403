package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/feedhub/internal/account"
	"github.com/nao1215/feedhub/pkg/apperr"
	"github.com/nao1215/feedhub/pkg/middleware"
)

// errInvalidBody はリクエストボディを読み取れない場合のレスポンス。
var errInvalidBody = apperr.Response{Message: "Invalid request body."}

// signupRequest はユーザー登録リクエスト。
type signupRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Name     string `json:"name" form:"name"`
}

// loginRequest はログインリクエスト。
type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// statusRequest はステータス更新リクエスト。
type statusRequest struct {
	Status string `json:"status" form:"status"`
}

// handleSignup はユーザー登録を処理するハンドラを返す。
func (s *Server) handleSignup() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req signupRequest
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, errInvalidBody)
			return
		}

		user, err := s.accounts.Signup(c.Request.Context(), account.SignupInput{
			Email:    req.Email,
			Password: req.Password,
			Name:     req.Name,
		})
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "User created successfully!", "userId": user.ID})
	}
}

// handleLogin はログインを処理するハンドラを返す。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, errInvalidBody)
			return
		}

		data, err := s.accounts.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, data)
	}
}

// handleGetStatus は認証済みユーザーのステータスを返すハンドラを返す。
func (s *Server) handleGetStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := s.accounts.Status(c.Request.Context(), middleware.GetIdentity(c))
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": status})
	}
}

// handleUpdateStatus は認証済みユーザーのステータスを更新するハンドラを返す。
func (s *Server) handleUpdateStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := middleware.GetIdentity(c)
		if err := id.Require(); err != nil {
			s.writeError(c, err)
			return
		}

		var req statusRequest
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, errInvalidBody)
			return
		}

		if _, err := s.accounts.UpdateStatus(c.Request.Context(), id, req.Status); err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "User status updated!"})
	}
}
