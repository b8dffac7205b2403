package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/nao1215/feedhub/internal/model"
)

// MemoryStore はインメモリのStore実装。テストと開発用。
// 並行アクセスに対して安全。
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]model.User
	posts map[string]model.Post
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]model.User),
		posts: make(map[string]model.Post),
	}
}

// cloneUser は内部状態と共有しないユーザーのコピーを返す。
func cloneUser(u model.User) *model.User {
	u.Posts = slices.Clone(u.Posts)
	if u.Posts == nil {
		u.Posts = []string{}
	}
	return &u
}

// FindUserByEmail はメールアドレスでユーザーを検索する。
func (m *MemoryStore) FindUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

// FindUserByID はIDでユーザーを検索する。
func (m *MemoryStore) FindUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

// SaveUser はユーザーを作成または上書きする。
func (m *MemoryStore) SaveUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, existing := range m.users {
		if id != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicate
		}
	}
	m.users[u.ID] = *cloneUser(*u)
	return nil
}

// FindPostByID はIDで投稿を検索する。
func (m *MemoryStore) FindPostByID(_ context.Context, id string) (*model.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// FindPostsSorted は作成日時の降順でskip件飛ばしてlimit件返す。
func (m *MemoryStore) FindPostsSorted(_ context.Context, skip, limit int) ([]*model.Post, error) {
	m.mu.RLock()
	all := make([]model.Post, 0, len(m.posts))
	for _, p := range m.posts {
		all = append(all, p)
	}
	m.mu.RUnlock()

	slices.SortFunc(all, func(a, b model.Post) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})

	out := []*model.Post{}
	if skip < 0 {
		skip = 0
	}
	for i := skip; i < len(all) && len(out) < limit; i++ {
		p := all[i]
		out = append(out, &p)
	}
	return out, nil
}

// CountPosts は投稿の総数を返す。
func (m *MemoryStore) CountPosts(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.posts)), nil
}

// SavePost は投稿を作成または上書きする。
func (m *MemoryStore) SavePost(_ context.Context, p *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[p.ID] = *p
	return nil
}

// DeletePostByID は投稿を削除する。
func (m *MemoryStore) DeletePostByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.posts[id]; !ok {
		return ErrNotFound
	}
	delete(m.posts, id)
	return nil
}

// ImageReferenced は指定の画像パスを参照している投稿があるかを返す。
func (m *MemoryStore) ImageReferenced(_ context.Context, imagePath string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.posts {
		if p.ImageURL == imagePath {
			return true, nil
		}
	}
	return false, nil
}

// Close は何もしない。
func (m *MemoryStore) Close(context.Context) error {
	return nil
}
