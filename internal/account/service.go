// Package account はユーザー登録、ログイン、ステータス管理を提供する。
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/feedhub/internal/model"
	"github.com/nao1215/feedhub/internal/store"
	"github.com/nao1215/feedhub/internal/validation"
	"github.com/nao1215/feedhub/pkg/apperr"
	"github.com/nao1215/feedhub/pkg/identity"
	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost はパスワードハッシュのbcryptコスト。
const DefaultHashCost = 12

// TokenIssuer はログイン成功時にトークンを発行する。
type TokenIssuer interface {
	// Issue はユーザーIDとメールアドレスから署名済みトークンを生成する。
	Issue(userID, email string) (string, error)
}

// Service はアカウント操作を行う。
type Service struct {
	users    store.UserStore
	tokens   TokenIssuer
	logger   *slog.Logger
	hashCost int
	now      func() time.Time
}

// Option はServiceの設定を変更する。
type Option func(*Service)

// WithHashCost はbcryptのコストを変更する。テストで計算時間を短くするために使う。
func WithHashCost(cost int) Option {
	return func(s *Service) {
		s.hashCost = cost
	}
}

// WithClock は時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService は新しいServiceを生成する。
func NewService(users store.UserStore, tokens TokenIssuer, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		users:    users,
		tokens:   tokens,
		logger:   logger,
		hashCost: DefaultHashCost,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignupInput はユーザー登録の入力。
type SignupInput struct {
	// Email はメールアドレス。
	Email string
	// Password は平文のパスワード。保存前にハッシュ化する。
	Password string
	// Name は表示名。
	Name string
}

// AuthData はログイン結果。
type AuthData struct {
	// Token は署名済みトークン。
	Token string `json:"token"`
	// UserID はログインしたユーザーのID。
	UserID string `json:"userId"`
}

// Signup は新しいユーザーを登録する。
// 入力の検証はストアへのアクセスより前に行う。
func (s *Service) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	if violations := validation.Signup(in.Email, in.Password, in.Name); len(violations) > 0 {
		return nil, apperr.Invalid("Validation failed!", violations)
	}
	email := validation.NormalizeEmail(in.Email)

	if _, err := s.users.FindUserByEmail(ctx, email); err == nil {
		return nil, apperr.New(apperr.Conflict, "User already exists!")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("ユーザーの検索に失敗: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, apperr.Invalid("Validation failed!", []apperr.Violation{{Message: "Password is too long!"}})
		}
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}

	user := model.NewUser(email, string(hash), strings.TrimSpace(in.Name), s.now())
	if err := s.users.SaveUser(ctx, user); err != nil {
		// 検索と保存の間に同じメールアドレスで登録された場合
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.New(apperr.Conflict, "User already exists!")
		}
		return nil, fmt.Errorf("ユーザーの保存に失敗: %w", err)
	}

	s.logger.InfoContext(ctx, "ユーザーを登録", slog.String("user_id", user.ID))
	return user, nil
}

// Login はメールアドレスとパスワードを照合してトークンを発行する。
func (s *Service) Login(ctx context.Context, email, password string) (*AuthData, error) {
	user, err := s.users.FindUserByEmail(ctx, validation.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, "User not found!")
		}
		return nil, fmt.Errorf("ユーザーの検索に失敗: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, apperr.New(apperr.Unauthenticated, "Passwords do not match!")
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("トークンの発行に失敗: %w", err)
	}
	return &AuthData{Token: token, UserID: user.ID}, nil
}

// CurrentUser は認証済みユーザーを返す。
// トークンは有効でもユーザーが存在しない場合はUnauthenticatedになる。
func (s *Service) CurrentUser(ctx context.Context, id identity.Identity) (*model.User, error) {
	if err := id.Require(); err != nil {
		return nil, err
	}
	user, err := s.users.FindUserByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.Unauthenticated, "User not found!")
		}
		return nil, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	return user, nil
}

// Status は認証済みユーザーのステータスを返す。
func (s *Service) Status(ctx context.Context, id identity.Identity) (string, error) {
	user, err := s.CurrentUser(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Status, nil
}

// UpdateStatus は認証済みユーザーのステータスを更新する。
func (s *Service) UpdateStatus(ctx context.Context, id identity.Identity, status string) (*model.User, error) {
	if err := id.Require(); err != nil {
		return nil, err
	}
	if violations := validation.Status(status); len(violations) > 0 {
		return nil, apperr.Invalid("Validation failed!", violations)
	}

	user, err := s.CurrentUser(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Status = strings.TrimSpace(status)
	user.UpdatedAt = s.now()
	if err := s.users.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("ステータスの保存に失敗: %w", err)
	}
	return user, nil
}
