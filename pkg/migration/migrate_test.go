package migration

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

// openTestDB はテスト用のインメモリSQLiteを開く。
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("DBのオープンに失敗: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// testLogger は出力を破棄するロガーを返す。
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestRun はマイグレーションの適用を検証する。
func TestRun(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/000002_add_posts.up.sql":   {Data: []byte("CREATE TABLE posts (id TEXT PRIMARY KEY);")},
		"migrations/000001_add_users.up.sql":   {Data: []byte("CREATE TABLE users (id TEXT PRIMARY KEY);")},
		"migrations/000001_add_users.down.sql": {Data: []byte("DROP TABLE users;")},
		"migrations/README.md":                 {Data: []byte("ignored")},
	}

	t.Run("未適用のマイグレーションがバージョン順に適用されること", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		db := openTestDB(t)
		if err := Run(ctx, db, fsys, "migrations", testLogger()); err != nil {
			t.Fatalf("Run()でエラーが発生: %v", err)
		}

		versions, err := Applied(ctx, db)
		if err != nil {
			t.Fatalf("Applied()でエラーが発生: %v", err)
		}
		if len(versions) != 2 || versions[0].Version != 1 || versions[1].Version != 2 {
			t.Errorf("versions = %+v, want [1 2]", versions)
		}
		for _, table := range []string{"users", "posts"} {
			var name string
			if err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name); err != nil {
				t.Errorf("テーブル %s が作成されていない: %v", table, err)
			}
		}
	})

	t.Run("2回実行しても適用済みのマイグレーションはスキップされること", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		db := openTestDB(t)
		for range 2 {
			if err := Run(ctx, db, fsys, "migrations", testLogger()); err != nil {
				t.Fatalf("Run()でエラーが発生: %v", err)
			}
		}
		versions, err := Applied(ctx, db)
		if err != nil {
			t.Fatalf("Applied()でエラーが発生: %v", err)
		}
		if len(versions) != 2 {
			t.Errorf("len(versions) = %d, want 2", len(versions))
		}
	})

	t.Run("不正なSQLの場合エラーが返り記録されないこと", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		db := openTestDB(t)
		broken := fstest.MapFS{
			"m/000001_broken.up.sql": {Data: []byte("CREATE TABLE (;")},
		}
		if err := Run(ctx, db, broken, "m", testLogger()); err == nil {
			t.Fatal("Run()がエラーを返すべきだが、nilが返った")
		}
		versions, err := Applied(ctx, db)
		if err != nil {
			t.Fatalf("Applied()でエラーが発生: %v", err)
		}
		if len(versions) != 0 {
			t.Errorf("versions = %+v, want empty", versions)
		}
	})

	t.Run("ディレクトリが存在しない場合エラーが返ること", func(t *testing.T) {
		t.Parallel()

		if err := Run(context.Background(), openTestDB(t), fstest.MapFS{}, "missing", testLogger()); err == nil {
			t.Fatal("Run()がエラーを返すべきだが、nilが返った")
		}
	})
}
