package mcp

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"embed"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nao1215/mcpgateway/pkg/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// internalTables はlist_resourcesやreadから見せない管理用テーブル。
var internalTables = []string{"schema_migrations", "request_log"}

// Row はクエリ結果の1行を列名で引けるようにしたもの。
type Row map[string]any

// Store はMCPプロセッサが参照するSQLiteデータベース。
type Store struct {
	db *sql.DB
}

// OpenStore はSQLiteファイルを開き、マイグレーションを適用する。
func OpenStore(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	s, err := NewStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore は既に開かれたデータベースにマイグレーションを適用してStoreを生成する。
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := migration.Run(ctx, db, migrationsFS, "migrations"); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &Store{db: db}, nil
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping はデータベースに接続できるか確認する。
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tables は利用者向けのテーブル名を名前順に返す。
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("テーブル一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("テーブル名の読み取りに失敗: %w", err)
		}
		if slices.Contains(internalTables, name) {
			continue
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// ReadTable はテーブルの先頭limit行を返す。
// テーブル名はTablesの結果と照合済みであることを呼び出し側が保証する。
func (s *Store) ReadTable(ctx context.Context, table string, limit int) ([]Row, error) {
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(table), limit)
	return s.query(ctx, s.db, query)
}

// QueryReadOnly は文を実行して結果行を返す。
// 専用の接続でquery_onlyを有効にしてから実行するため、文の中でCOMMITしても書き込みはできない。
// 実行はトランザクション内で行い、最後に必ずロールバックする。
func (s *Store) QueryReadOnly(ctx context.Context, statement string) ([]Row, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("データベース接続の取得に失敗: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return nil, fmt.Errorf("読み取り専用モードへの切り替えに失敗: %w", err)
	}
	defer func() {
		// 接続はプールに戻るので元に戻す。戻せなければ接続ごと捨てる
		if _, resetErr := conn.ExecContext(context.Background(), "PRAGMA query_only = OFF"); resetErr != nil {
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		}
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	return s.query(ctx, tx, statement)
}

// LogRequest は処理したリクエストを記録する。
func (s *Store) LogRequest(ctx context.Context, requestID, verb, outcome string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO request_log (id, request_id, verb, outcome) VALUES (?, ?, ?, ?)",
		uuid.NewString(), requestID, verb, outcome)
	if err != nil {
		return fmt.Errorf("リクエストログの記録に失敗: %w", err)
	}
	return nil
}

// queryer はsql.DBとsql.Txの共通部分。
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// query はクエリを実行し、全行を列名付きで読み取る。
func (s *Store) query(ctx context.Context, q queryer, query string) ([]Row, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := []Row{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = jsonValue(values[i])
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// jsonValue はSQLiteの値をJSONに載せやすい形に変換する。
// UTF-8として読めるBLOBは文字列にする。
func jsonValue(v any) any {
	if b, ok := v.([]byte); ok && utf8.Valid(b) {
		return string(b)
	}
	return v
}

// quoteIdent はSQLiteの識別子をダブルクォートで囲む。
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
