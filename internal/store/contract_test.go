package store

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/nao1215/feedhub/internal/model"
)

// baseTime はテストで使う基準時刻。
var baseTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// runStoreContract はすべてのStore実装が満たすべき振る舞いを検証する。
// newStore は呼び出しごとに空のストアを返すこと。
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()

	t.Run("保存したユーザーをIDとメールアドレスで取得できること", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		u := model.NewUser("alice@example.com", "hash", "Alice", baseTime)
		if err := s.SaveUser(ctx, u); err != nil {
			t.Fatalf("SaveUser()でエラーが発生: %v", err)
		}

		byID, err := s.FindUserByID(ctx, u.ID)
		if err != nil {
			t.Fatalf("FindUserByID()でエラーが発生: %v", err)
		}
		if byID.Email != u.Email || byID.Name != "Alice" || byID.Status != model.DefaultStatus {
			t.Errorf("FindUserByID() = %+v", byID)
		}
		if !byID.CreatedAt.Equal(baseTime) {
			t.Errorf("CreatedAt = %v, want %v", byID.CreatedAt, baseTime)
		}
		if byID.Posts == nil {
			t.Error("Postsがnil")
		}

		byEmail, err := s.FindUserByEmail(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("FindUserByEmail()でエラーが発生: %v", err)
		}
		if byEmail.ID != u.ID {
			t.Errorf("FindUserByEmail().ID = %q, want %q", byEmail.ID, u.ID)
		}
	})

	t.Run("存在しないユーザーはErrNotFoundになること", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		if _, err := s.FindUserByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("FindUserByID() err = %v, want %v", err, ErrNotFound)
		}
		if _, err := s.FindUserByEmail(ctx, "missing@example.com"); !errors.Is(err, ErrNotFound) {
			t.Errorf("FindUserByEmail() err = %v, want %v", err, ErrNotFound)
		}
	})

	t.Run("同じメールアドレスの別ユーザーはErrDuplicateになること", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		if err := s.SaveUser(ctx, model.NewUser("dup@example.com", "h", "A", baseTime)); err != nil {
			t.Fatalf("SaveUser()でエラーが発生: %v", err)
		}
		err := s.SaveUser(ctx, model.NewUser("dup@example.com", "h", "B", baseTime))
		if !errors.Is(err, ErrDuplicate) {
			t.Errorf("SaveUser() err = %v, want %v", err, ErrDuplicate)
		}
	})

	t.Run("ユーザーの上書きで投稿IDとステータスが更新されること", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		u := model.NewUser("bob@example.com", "h", "Bob", baseTime)
		if err := s.SaveUser(ctx, u); err != nil {
			t.Fatalf("SaveUser()でエラーが発生: %v", err)
		}
		u.AddPost("p1")
		u.AddPost("p2")
		u.Status = "busy"
		if err := s.SaveUser(ctx, u); err != nil {
			t.Fatalf("SaveUser()でエラーが発生: %v", err)
		}

		got, err := s.FindUserByID(ctx, u.ID)
		if err != nil {
			t.Fatalf("FindUserByID()でエラーが発生: %v", err)
		}
		if !slices.Equal(got.Posts, []string{"p1", "p2"}) || got.Status != "busy" {
			t.Errorf("Posts = %v, Status = %q", got.Posts, got.Status)
		}
	})

	t.Run("投稿一覧が作成日時の降順でページングされること", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		var ids []string
		for i := range 5 {
			p := model.NewPost("Title number", "Content body", "images/a.png", "owner", baseTime.Add(time.Duration(i)*time.Minute))
			if err := s.SavePost(ctx, p); err != nil {
				t.Fatalf("SavePost()でエラーが発生: %v", err)
			}
			ids = append(ids, p.ID)
		}

		first, err := s.FindPostsSorted(ctx, 0, 3)
		if err != nil {
			t.Fatalf("FindPostsSorted()でエラーが発生: %v", err)
		}
		if len(first) != 3 || first[0].ID != ids[4] || first[1].ID != ids[3] || first[2].ID != ids[2] {
			t.Errorf("1ページ目の順序が不正: %v", postIDs(first))
		}

		second, err := s.FindPostsSorted(ctx, 3, 3)
		if err != nil {
			t.Fatalf("FindPostsSorted()でエラーが発生: %v", err)
		}
		if len(second) != 2 || second[0].ID != ids[1] || second[1].ID != ids[0] {
			t.Errorf("2ページ目の順序が不正: %v", postIDs(second))
		}

		beyond, err := s.FindPostsSorted(ctx, 9, 3)
		if err != nil {
			t.Fatalf("FindPostsSorted()でエラーが発生: %v", err)
		}
		if beyond == nil || len(beyond) != 0 {
			t.Errorf("範囲外のページ = %v, want empty", beyond)
		}

		n, err := s.CountPosts(ctx)
		if err != nil {
			t.Fatalf("CountPosts()でエラーが発生: %v", err)
		}
		if n != 5 {
			t.Errorf("CountPosts() = %d, want 5", n)
		}
	})

	t.Run("投稿を上書きしても作成者は変わらないこと", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		p := model.NewPost("Original title", "Original content", "images/a.png", "owner", baseTime)
		if err := s.SavePost(ctx, p); err != nil {
			t.Fatalf("SavePost()でエラーが発生: %v", err)
		}
		p.Title = "Updated title"
		p.ImageURL = "images/b.png"
		p.UpdatedAt = baseTime.Add(time.Hour)
		if err := s.SavePost(ctx, p); err != nil {
			t.Fatalf("SavePost()でエラーが発生: %v", err)
		}

		got, err := s.FindPostByID(ctx, p.ID)
		if err != nil {
			t.Fatalf("FindPostByID()でエラーが発生: %v", err)
		}
		if got.Title != "Updated title" || got.ImageURL != "images/b.png" || got.Creator != "owner" {
			t.Errorf("FindPostByID() = %+v", got)
		}
		if !got.UpdatedAt.Equal(baseTime.Add(time.Hour)) || !got.CreatedAt.Equal(baseTime) {
			t.Errorf("timestamps = %v/%v", got.CreatedAt, got.UpdatedAt)
		}
	})

	t.Run("投稿の削除と画像参照の確認ができること", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		p := model.NewPost("Some title", "Some content", "images/ref.png", "owner", baseTime)
		if err := s.SavePost(ctx, p); err != nil {
			t.Fatalf("SavePost()でエラーが発生: %v", err)
		}

		referenced, err := s.ImageReferenced(ctx, "images/ref.png")
		if err != nil || !referenced {
			t.Errorf("ImageReferenced() = %v, %v, want true", referenced, err)
		}
		referenced, err = s.ImageReferenced(ctx, "images/other.png")
		if err != nil || referenced {
			t.Errorf("ImageReferenced() = %v, %v, want false", referenced, err)
		}

		if err := s.DeletePostByID(ctx, p.ID); err != nil {
			t.Fatalf("DeletePostByID()でエラーが発生: %v", err)
		}
		if _, err := s.FindPostByID(ctx, p.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("削除後のFindPostByID() err = %v, want %v", err, ErrNotFound)
		}
		if err := s.DeletePostByID(ctx, p.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("2回目のDeletePostByID() err = %v, want %v", err, ErrNotFound)
		}
		referenced, err = s.ImageReferenced(ctx, "images/ref.png")
		if err != nil || referenced {
			t.Errorf("削除後のImageReferenced() = %v, %v, want false", referenced, err)
		}
	})
}

// postIDs は投稿のID一覧を返す。
func postIDs(posts []*model.Post) []string {
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	return ids
}
