// Package identity はリクエストに付与される認証済み識別情報を表す。
//
// 認証ゲートがIdentityを生成し、RESTハンドラとGraphQLリゾルバの双方が
// 同じ値をサービス層へ明示的に渡す。
package identity

import (
	"context"

	"github.com/nao1215/feedhub/pkg/apperr"
)

// Identity はリクエストの認証状態。
type Identity struct {
	// IsAuth は有効なトークンが提示されたかどうか。
	IsAuth bool
	// UserID は認証済みユーザーのID。匿名の場合は空文字列。
	UserID string
	// Email は認証済みユーザーのメールアドレス。
	Email string
}

// Anonymous は未認証のIdentityを返す。
func Anonymous() Identity {
	return Identity{}
}

// Authenticated は認証済みのIdentityを返す。
func Authenticated(userID, email string) Identity {
	return Identity{IsAuth: true, UserID: userID, Email: email}
}

// Require は認証が必要な操作の前提条件を検査する。
// 未認証の場合はUnauthenticatedエラーを返す。
func (i Identity) Require() error {
	if !i.IsAuth || i.UserID == "" {
		return apperr.New(apperr.Unauthenticated, "Not authenticated!")
	}
	return nil
}

// Owns は指定ユーザーIDのリソースを所有しているかどうかを判定する。
func (i Identity) Owns(ownerID string) bool {
	return i.IsAuth && i.UserID != "" && i.UserID == ownerID
}

// contextKey はコンテキストキーの型。
type contextKey struct{}

// WithContext はコンテキストにIdentityを設定する。
func WithContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext はコンテキストからIdentityを取得する。
// 設定されていない場合は匿名を返す。
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(contextKey{}).(Identity); ok {
		return id
	}
	return Anonymous()
}
