package mcp

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"testing"

	_ "modernc.org/sqlite"
)

// newTestStore はテスト用のインメモリSQLiteを使ったStoreを生成する。
// usersテーブルに2行、numbersテーブルに150行を投入する。
func newTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDB接続に失敗: %v", err)
	}
	// :memory: は接続ごとに別DBになるため1接続に固定する
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(context.Background(), db)
	if err != nil {
		t.Fatalf("Storeの生成に失敗: %v", err)
	}

	seed := []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, updated_at TEXT NOT NULL DEFAULT '')`,
		`INSERT INTO users (id, name, updated_at) VALUES (1, 'alice', '2026-01-01'), (2, 'bob', '2026-01-02')`,
		`CREATE TABLE numbers (n INTEGER NOT NULL)`,
	}
	for _, q := range seed {
		if _, err := db.Exec(q); err != nil {
			t.Fatalf("テストデータの投入に失敗: %v", err)
		}
	}
	for i := range 150 {
		if _, err := db.Exec("INSERT INTO numbers (n) VALUES (?)", i); err != nil {
			t.Fatalf("テストデータの投入に失敗: %v", err)
		}
	}
	return store, db
}

// countRows はテーブルの行数を返す。
func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()

	var n int
	if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(table))).Scan(&n); err != nil {
		t.Fatalf("%sの件数取得に失敗: %v", table, err)
	}
	return n
}

// TestStoreTables はTablesを検証する。
func TestStoreTables(t *testing.T) {
	t.Parallel()

	t.Run("管理用テーブルを除いて名前順に返すこと", func(t *testing.T) {
		t.Parallel()

		store, _ := newTestStore(t)
		tables, err := store.Tables(context.Background())
		if err != nil {
			t.Fatalf("Tables()でエラーが発生: %v", err)
		}
		want := []string{"numbers", "users"}
		if !slices.Equal(tables, want) {
			t.Errorf("Tables() = %v, want %v", tables, want)
		}
	})

	t.Run("閉じたデータベースではエラーが返ること", func(t *testing.T) {
		t.Parallel()

		store, db := newTestStore(t)
		db.Close()
		if _, err := store.Tables(context.Background()); err == nil {
			t.Fatal("Tables()がエラーを返すべき")
		}
	})
}

// TestStoreReadTable はReadTableを検証する。
func TestStoreReadTable(t *testing.T) {
	t.Parallel()

	t.Run("列名付きで行を返すこと", func(t *testing.T) {
		t.Parallel()

		store, _ := newTestStore(t)
		rows, err := store.ReadTable(context.Background(), "users", readLimit)
		if err != nil {
			t.Fatalf("ReadTable()でエラーが発生: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("len(rows) = %d, want 2", len(rows))
		}
		if rows[0]["name"] != "alice" {
			t.Errorf("rows[0][name] = %v, want alice", rows[0]["name"])
		}
	})

	t.Run("limitを超える行は返さないこと", func(t *testing.T) {
		t.Parallel()

		store, _ := newTestStore(t)
		rows, err := store.ReadTable(context.Background(), "numbers", 10)
		if err != nil {
			t.Fatalf("ReadTable()でエラーが発生: %v", err)
		}
		if len(rows) != 10 {
			t.Errorf("len(rows) = %d, want 10", len(rows))
		}
	})
}

// TestStoreQueryReadOnly はQueryReadOnlyを検証する。
func TestStoreQueryReadOnly(t *testing.T) {
	t.Parallel()

	t.Run("結果が無い場合は空スライスを返すこと", func(t *testing.T) {
		t.Parallel()

		store, _ := newTestStore(t)
		rows, err := store.QueryReadOnly(context.Background(), "SELECT * FROM users WHERE id = 99")
		if err != nil {
			t.Fatalf("QueryReadOnly()でエラーが発生: %v", err)
		}
		if rows == nil || len(rows) != 0 {
			t.Errorf("rows = %v, want empty slice", rows)
		}
	})

	t.Run("書き込みはロールバックされること", func(t *testing.T) {
		t.Parallel()

		store, db := newTestStore(t)
		_, _ = store.QueryReadOnly(context.Background(), "REPLACE INTO users (id, name) VALUES (9, 'mallory')")
		if got := countRows(t, db, "users"); got != 2 {
			t.Errorf("users件数 = %d, want 2", got)
		}
	})

	t.Run("COMMITで抜けても書き込みはできないこと", func(t *testing.T) {
		t.Parallel()

		store, db := newTestStore(t)
		if _, err := store.QueryReadOnly(context.Background(), "COMMIT; CREATE TABLE pwn (a TEXT)"); err == nil {
			t.Error("QueryReadOnly()がエラーを返すべき")
		}
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name = 'pwn'").Scan(&n); err != nil {
			t.Fatalf("sqlite_masterの取得に失敗: %v", err)
		}
		if n != 0 {
			t.Error("pwnテーブルが作成されている")
		}
	})

	t.Run("実行後は接続の読み取り専用モードが解除されること", func(t *testing.T) {
		t.Parallel()

		store, db := newTestStore(t)
		if _, err := store.QueryReadOnly(context.Background(), "SELECT 1"); err != nil {
			t.Fatalf("QueryReadOnly()でエラーが発生: %v", err)
		}
		if err := store.LogRequest(context.Background(), "req-1", "execute", "ok"); err != nil {
			t.Fatalf("LogRequest()でエラーが発生: %v", err)
		}
		if got := countRows(t, db, "request_log"); got != 1 {
			t.Errorf("request_log件数 = %d, want 1", got)
		}
	})

	t.Run("不正なSQLでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		store, _ := newTestStore(t)
		if _, err := store.QueryReadOnly(context.Background(), "SELEC nope"); err == nil {
			t.Fatal("QueryReadOnly()がエラーを返すべき")
		}
	})
}

// TestStoreLogRequest はLogRequestを検証する。
func TestStoreLogRequest(t *testing.T) {
	t.Parallel()

	store, db := newTestStore(t)
	if err := store.LogRequest(context.Background(), "req-1", "read", "ok"); err != nil {
		t.Fatalf("LogRequest()でエラーが発生: %v", err)
	}

	var requestID, verb, outcome string
	if err := db.QueryRow("SELECT request_id, verb, outcome FROM request_log").Scan(&requestID, &verb, &outcome); err != nil {
		t.Fatalf("request_logの取得に失敗: %v", err)
	}
	if requestID != "req-1" || verb != "read" || outcome != "ok" {
		t.Errorf("request_log = (%q, %q, %q), want (req-1, read, ok)", requestID, verb, outcome)
	}
}

// TestQuoteIdent はquoteIdentを検証する。
func TestQuoteIdent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "users", want: `"users"`},
		{in: `we"ird`, want: `"we""ird"`},
	}
	for _, tt := range tests {
		if got := quoteIdent(tt.in); got != tt.want {
			t.Errorf("quoteIdent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
