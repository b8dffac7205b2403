// Package model はユーザーと投稿のドメインモデルを定義する。
//
// 識別子はUUID文字列で、すべてのストア実装で同じ形式を使う。
package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// DefaultStatus は新規ユーザーのステータス。
const DefaultStatus = "I am new!"

// User は登録済みユーザー。
type User struct {
	// ID はユーザーの一意識別子。
	ID string `bson:"_id" json:"_id"`
	// Email はログインに使うメールアドレス。一意。
	Email string `bson:"email" json:"email"`
	// Password はbcryptでハッシュ化したパスワード。JSONには出力しない。
	Password string `bson:"password" json:"-"`
	// Name は表示名。
	Name string `bson:"name" json:"name"`
	// Status はユーザーが設定するステータス文字列。
	Status string `bson:"status" json:"status"`
	// Posts はユーザーが作成した投稿IDの一覧。作成順。
	Posts []string `bson:"posts" json:"posts"`
	// CreatedAt は作成日時。
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	// UpdatedAt は更新日時。
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// NewUser は新しいユーザーを生成する。passwordにはハッシュ済みの値を渡す。
func NewUser(email, passwordHash, name string, now time.Time) *User {
	return &User{
		ID:        uuid.New().String(),
		Email:     email,
		Password:  passwordHash,
		Name:      name,
		Status:    DefaultStatus,
		Posts:     []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddPost は投稿IDを末尾に追加する。
func (u *User) AddPost(postID string) {
	u.Posts = append(u.Posts, postID)
}

// RemovePost は投稿IDを取り除く。含まれていない場合は何もしない。
func (u *User) RemovePost(postID string) {
	u.Posts = slices.DeleteFunc(u.Posts, func(id string) bool { return id == postID })
}

// Creator は投稿に埋め込む作成者の概要。
type Creator struct {
	// ID はユーザーID。
	ID string `json:"_id"`
	// Name は表示名。
	Name string `json:"name"`
}

// CreatorOf はユーザーから作成者の概要を作る。
func CreatorOf(u *User) Creator {
	return Creator{ID: u.ID, Name: u.Name}
}

// Post はユーザーが作成した投稿。
type Post struct {
	// ID は投稿の一意識別子。
	ID string `bson:"_id" json:"_id"`
	// Title はタイトル。
	Title string `bson:"title" json:"title"`
	// Content は本文。
	Content string `bson:"content" json:"content"`
	// ImageURL は画像ストレージ上のパス。
	ImageURL string `bson:"imageUrl" json:"imageUrl"`
	// Creator は作成者のユーザーID。作成後は変わらない。
	Creator string `bson:"creator" json:"creator"`
	// CreatedAt は作成日時。
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	// UpdatedAt は更新日時。
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// NewPost は新しい投稿を生成する。
func NewPost(title, content, imageURL, creatorID string, now time.Time) *Post {
	return &Post{
		ID:        uuid.New().String(),
		Title:     title,
		Content:   content,
		ImageURL:  imageURL,
		Creator:   creatorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// PostView は作成者の概要を展開した投稿の表現。
type PostView struct {
	// ID は投稿の一意識別子。
	ID string `json:"_id"`
	// Title はタイトル。
	Title string `json:"title"`
	// Content は本文。
	Content string `json:"content"`
	// ImageURL は画像ストレージ上のパス。
	ImageURL string `json:"imageUrl"`
	// Creator は作成者の概要。
	Creator Creator `json:"creator"`
	// CreatedAt は作成日時。
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt は更新日時。
	UpdatedAt time.Time `json:"updatedAt"`
}

// ViewOf は投稿と作成者から表示用の投稿を作る。
func ViewOf(p *Post, creator Creator) PostView {
	return PostView{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		ImageURL:  p.ImageURL,
		Creator:   creator,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
