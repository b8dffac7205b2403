package graphql

import (
	"context"
	"log/slog"

	"github.com/graphql-go/graphql"
	"github.com/nao1215/feedhub/internal/account"
	"github.com/nao1215/feedhub/internal/feed"
	"github.com/nao1215/feedhub/internal/model"
	"github.com/nao1215/feedhub/pkg/apperr"
	"github.com/nao1215/feedhub/pkg/identity"
)

// timeLayout は日時フィールドの出力形式。
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// resolve はリゾルバのエラーを利用者向けの分類済みエラーにそろえる。
// 分類されていないエラーはログに記録し、詳細を隠して返す。
func (h *Handler) resolve(fn graphql.FieldResolveFn) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		v, err := fn(p)
		if err == nil {
			return v, nil
		}
		if apperr.KindOf(err) == apperr.Internal {
			h.logger.ErrorContext(p.Context, "GraphQLリゾルバでエラーが発生",
				slog.String("field", p.Info.FieldName),
				slog.Any("error", err),
			)
			return nil, apperr.New(apperr.Internal, "An error occurred!")
		}
		return nil, err
	}
}

// requireAuth はコンテキストのIdentityが認証済みであることを検査する。
func requireAuth(ctx context.Context) (identity.Identity, error) {
	id := identity.FromContext(ctx)
	return id, id.Require()
}

func (h *Handler) login(p graphql.ResolveParams) (any, error) {
	email, _ := p.Args["email"].(string)
	password, _ := p.Args["password"].(string)
	data, err := h.accounts.Login(p.Context, email, password)
	if err != nil {
		return nil, err
	}
	return map[string]any{"token": data.Token, "userId": data.UserID}, nil
}

func (h *Handler) getPosts(p graphql.ResolveParams) (any, error) {
	if _, err := requireAuth(p.Context); err != nil {
		return nil, err
	}
	page, ok := p.Args["page"].(int)
	if !ok {
		page = 1
	}
	result, err := h.feeds.List(p.Context, page)
	if err != nil {
		return nil, err
	}
	posts := make([]map[string]any, 0, len(result.Posts))
	for i := range result.Posts {
		posts = append(posts, postMap(&result.Posts[i]))
	}
	return map[string]any{"posts": posts, "totalPosts": int(result.TotalItems)}, nil
}

func (h *Handler) getPost(p graphql.ResolveParams) (any, error) {
	if _, err := requireAuth(p.Context); err != nil {
		return nil, err
	}
	postID, _ := p.Args["postId"].(string)
	view, err := h.feeds.Get(p.Context, postID)
	if err != nil {
		return nil, err
	}
	return postMap(view), nil
}

func (h *Handler) getUser(p graphql.ResolveParams) (any, error) {
	user, err := h.accounts.CurrentUser(p.Context, identity.FromContext(p.Context))
	if err != nil {
		return nil, err
	}
	return userMap(user), nil
}

func (h *Handler) createUser(p graphql.ResolveParams) (any, error) {
	in, _ := p.Args["userInput"].(map[string]any)
	user, err := h.accounts.Signup(p.Context, account.SignupInput{
		Email:    stringField(in, "email"),
		Password: stringField(in, "password"),
		Name:     stringField(in, "name"),
	})
	if err != nil {
		return nil, err
	}
	return userMap(user), nil
}

func (h *Handler) createPost(p graphql.ResolveParams) (any, error) {
	in, _ := p.Args["postInput"].(map[string]any)
	view, err := h.feeds.Create(p.Context, identity.FromContext(p.Context), postInput(in))
	if err != nil {
		return nil, err
	}
	return postMap(view), nil
}

func (h *Handler) editPost(p graphql.ResolveParams) (any, error) {
	postID, _ := p.Args["postId"].(string)
	in, _ := p.Args["postInput"].(map[string]any)
	view, err := h.feeds.Edit(p.Context, identity.FromContext(p.Context), postID, postInput(in))
	if err != nil {
		return nil, err
	}
	return postMap(view), nil
}

func (h *Handler) deletePost(p graphql.ResolveParams) (any, error) {
	postID, _ := p.Args["postId"].(string)
	if err := h.feeds.Delete(p.Context, identity.FromContext(p.Context), postID); err != nil {
		return nil, err
	}
	return true, nil
}

func (h *Handler) editUserStatus(p graphql.ResolveParams) (any, error) {
	status, _ := p.Args["newStatus"].(string)
	user, err := h.accounts.UpdateStatus(p.Context, identity.FromContext(p.Context), status)
	if err != nil {
		return nil, err
	}
	return userMap(user), nil
}

// resolveCreator は投稿の作成者をユーザーとして展開する。
// ユーザーが削除済みの場合は投稿に埋め込まれた概要だけを返す。
func (h *Handler) resolveCreator(p graphql.ResolveParams) (any, error) {
	src, _ := p.Source.(map[string]any)
	creator, _ := src["creator"].(model.Creator)

	user, err := h.users.FindUserByID(p.Context, creator.ID)
	if err != nil {
		return map[string]any{
			"_id":    creator.ID,
			"name":   creator.Name,
			"email":  "",
			"status": "",
			"posts":  []string{},
		}, nil
	}
	return userMap(user), nil
}

// postInput は入力オブジェクトを投稿の入力に変換する。
func postInput(in map[string]any) feed.PostInput {
	return feed.PostInput{
		Title:    stringField(in, "title"),
		Content:  stringField(in, "content"),
		ImageURL: stringField(in, "imageUrl"),
	}
}

// stringField は入力オブジェクトから文字列を取り出す。未指定の場合は空文字列。
func stringField(in map[string]any, key string) string {
	s, _ := in[key].(string)
	return s
}

// postMap は投稿をGraphQLの出力形式に変換する。
func postMap(v *model.PostView) map[string]any {
	return map[string]any{
		"_id":       v.ID,
		"title":     v.Title,
		"content":   v.Content,
		"imageUrl":  v.ImageURL,
		"creator":   v.Creator,
		"createdAt": v.CreatedAt.Format(timeLayout),
		"updatedAt": v.UpdatedAt.Format(timeLayout),
	}
}

// userMap はユーザーをGraphQLの出力形式に変換する。パスワードは含めない。
func userMap(u *model.User) map[string]any {
	posts := u.Posts
	if posts == nil {
		posts = []string{}
	}
	return map[string]any{
		"_id":    u.ID,
		"name":   u.Name,
		"email":  u.Email,
		"status": u.Status,
		"posts":  posts,
	}
}
