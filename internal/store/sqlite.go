package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/feedhub/internal/model"
	"github.com/nao1215/feedhub/pkg/migration"

	// SQLiteドライバを登録する。
	_ "modernc.org/sqlite"
)

// migrationsFS はSQLiteストアのマイグレーションファイル。
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationsDir はmigrationsFS内のディレクトリ名。
const migrationsDir = "migrations"

// SQLiteStore はSQLiteを使ったStore実装。
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite はSQLiteデータベースを開き、マイグレーションを適用する。
// pathに":memory:"を指定するとインメモリデータベースになる。
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := OpenSQLiteDB(path)
	if err != nil {
		return nil, err
	}

	if err := migration.Run(ctx, db, migrationsFS, migrationsDir, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("マイグレーションに失敗: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// OpenSQLiteDB はマイグレーションを適用せずにSQLiteデータベースを開く。
func OpenSQLiteDB(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if path == ":memory:" {
		// インメモリDBは接続ごとに別のDBになるため1本に制限する。
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// Migrate はSQLiteストアのマイグレーションを適用し、適用済みバージョンを返す。
func Migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) ([]migration.Version, error) {
	if err := migration.Run(ctx, db, migrationsFS, migrationsDir, logger); err != nil {
		return nil, fmt.Errorf("マイグレーションに失敗: %w", err)
	}
	return migration.Applied(ctx, db)
}

// toUnix は時刻をナノ秒単位の整数に変換する。
func toUnix(t time.Time) int64 {
	return t.UnixNano()
}

// fromUnix はナノ秒単位の整数を時刻に変換する。
func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// rowScanner はsql.Rowとsql.Rowsに共通のScanメソッド。
type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = "id, email, password, name, status, posts, created_at, updated_at"

// scanUser は1行をユーザーに変換する。
func scanUser(row rowScanner) (*model.User, error) {
	var (
		u                    model.User
		posts                string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Name, &u.Status, &posts, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ユーザーの読み取りに失敗: %w", err)
	}
	if err := json.Unmarshal([]byte(posts), &u.Posts); err != nil {
		return nil, fmt.Errorf("投稿IDのデコードに失敗: %w", err)
	}
	if u.Posts == nil {
		u.Posts = []string{}
	}
	u.CreatedAt = fromUnix(createdAt)
	u.UpdatedAt = fromUnix(updatedAt)
	return &u, nil
}

// FindUserByEmail はメールアドレスでユーザーを検索する。
func (s *SQLiteStore) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
	return scanUser(row)
}

// FindUserByID はIDでユーザーを検索する。
func (s *SQLiteStore) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	return scanUser(row)
}

// SaveUser はユーザーを作成または上書きする。
func (s *SQLiteStore) SaveUser(ctx context.Context, u *model.User) error {
	posts := u.Posts
	if posts == nil {
		posts = []string{}
	}
	encoded, err := json.Marshal(posts)
	if err != nil {
		return fmt.Errorf("投稿IDのエンコードに失敗: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			password = excluded.password,
			name = excluded.name,
			status = excluded.status,
			posts = excluded.posts,
			updated_at = excluded.updated_at`,
		u.ID, u.Email, u.Password, u.Name, u.Status, string(encoded), toUnix(u.CreatedAt), toUnix(u.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("ユーザーの保存に失敗: %w", err)
	}
	return nil
}

// isUniqueViolation は一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const postColumns = "id, title, content, image_url, creator, created_at, updated_at"

// scanPost は1行を投稿に変換する。
func scanPost(row rowScanner) (*model.Post, error) {
	var (
		p                    model.Post
		createdAt, updatedAt int64
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Content, &p.ImageURL, &p.Creator, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("投稿の読み取りに失敗: %w", err)
	}
	p.CreatedAt = fromUnix(createdAt)
	p.UpdatedAt = fromUnix(updatedAt)
	return &p, nil
}

// FindPostByID はIDで投稿を検索する。
func (s *SQLiteStore) FindPostByID(ctx context.Context, id string) (*model.Post, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+postColumns+" FROM posts WHERE id = ?", id)
	return scanPost(row)
}

// FindPostsSorted は作成日時の降順でskip件飛ばしてlimit件返す。
func (s *SQLiteStore) FindPostsSorted(ctx context.Context, skip, limit int) ([]*model.Post, error) {
	if skip < 0 {
		skip = 0
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+postColumns+" FROM posts ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, skip,
	)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	posts := []*model.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗: %w", err)
	}
	return posts, nil
}

// CountPosts は投稿の総数を返す。
func (s *SQLiteStore) CountPosts(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&n); err != nil {
		return 0, fmt.Errorf("投稿数の取得に失敗: %w", err)
	}
	return n, nil
}

// SavePost は投稿を作成または上書きする。
func (s *SQLiteStore) SavePost(ctx context.Context, p *model.Post) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (`+postColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			image_url = excluded.image_url,
			updated_at = excluded.updated_at`,
		p.ID, p.Title, p.Content, p.ImageURL, p.Creator, toUnix(p.CreatedAt), toUnix(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("投稿の保存に失敗: %w", err)
	}
	return nil
}

// DeletePostByID は投稿を削除する。
func (s *SQLiteStore) DeletePostByID(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("投稿の削除に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ImageReferenced は指定の画像パスを参照している投稿があるかを返す。
func (s *SQLiteStore) ImageReferenced(ctx context.Context, imagePath string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM posts WHERE image_url = ?)", imagePath).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("画像参照の確認に失敗: %w", err)
	}
	return exists, nil
}

// Close はデータベース接続を閉じる。
func (s *SQLiteStore) Close(context.Context) error {
	return s.db.Close()
}
