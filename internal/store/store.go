// Package store はユーザーと投稿の永続化を提供する。
//
// 実装はインメモリ、SQLite、MongoDBの3種類で、設定のstore.typeで選択する。
// 投稿の一覧は常に作成日時の降順（同時刻はID降順）で返す。
package store

import (
	"context"
	"errors"

	"github.com/nao1215/feedhub/internal/model"
)

var (
	// ErrNotFound は対象が存在しないことを表す。
	ErrNotFound = errors.New("見つかりません")
	// ErrDuplicate は一意キー（メールアドレス）が重複したことを表す。
	ErrDuplicate = errors.New("一意キーが重複しています")
)

// UserStore はユーザーの永続化を行う。
type UserStore interface {
	// FindUserByEmail はメールアドレスでユーザーを検索する。
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	// FindUserByID はIDでユーザーを検索する。
	FindUserByID(ctx context.Context, id string) (*model.User, error)
	// SaveUser はユーザーを作成または上書きする。
	// 別ユーザーと同じメールアドレスの場合はErrDuplicateを返す。
	SaveUser(ctx context.Context, u *model.User) error
}

// PostStore は投稿の永続化を行う。
type PostStore interface {
	// FindPostByID はIDで投稿を検索する。
	FindPostByID(ctx context.Context, id string) (*model.Post, error)
	// FindPostsSorted は作成日時の降順でskip件飛ばしてlimit件返す。
	FindPostsSorted(ctx context.Context, skip, limit int) ([]*model.Post, error)
	// CountPosts は投稿の総数を返す。
	CountPosts(ctx context.Context) (int64, error)
	// SavePost は投稿を作成または上書きする。
	SavePost(ctx context.Context, p *model.Post) error
	// DeletePostByID は投稿を削除する。存在しない場合はErrNotFoundを返す。
	DeletePostByID(ctx context.Context, id string) error
	// ImageReferenced は指定の画像パスを参照している投稿があるかを返す。
	ImageReferenced(ctx context.Context, imagePath string) (bool, error)
}

// Store はユーザーと投稿の両方を扱うストア。
type Store interface {
	UserStore
	PostStore
	// Close は接続などのリソースを解放する。
	Close(ctx context.Context) error
}
