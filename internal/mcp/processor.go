package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"slices"
	"strings"

	"github.com/nao1215/mcpgateway/pkg/httpclient"
)

// Verb はMCPリクエストの操作種別。
type Verb string

const (
	// VerbListResources はテーブル一覧を返す。
	VerbListResources Verb = "list_resources"
	// VerbRead はテーブルの内容を返す。
	VerbRead Verb = "read"
	// VerbExecute は参照系のSQL文を実行する。
	VerbExecute Verb = "execute"
)

// readLimit はreadで返す最大行数。
const readLimit = 100

// ErrInvalidRequest はリクエストがJSONオブジェクトとして読めないことを表す。
var ErrInvalidRequest = errors.New("MCPリクエストのパースに失敗")

// writeStatement は更新系とみなして拒否するSQLキーワード。
// 最終的な書き込み防止はStore.QueryReadOnlyのquery_onlyが担う。
var writeStatement = regexp.MustCompile(`(?i)\b(delete|drop|update|insert|create|alter|commit|attach|detach|vacuum|reindex|pragma)\b`)

// request はMCPリクエストのエンベロープ。
type request struct {
	Verb       Verb       `json:"verb"`
	Parameters parameters `json:"parameters"`
}

// parameters はverbごとの引数。
type parameters struct {
	// Name はreadの対象テーブル名。
	Name string `json:"name"`
	// Statement はexecuteで実行するSQL文。
	Statement string `json:"statement"`
}

// Resource はlist_resourcesで返す1テーブル分の情報。
type Resource struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Processor はSQLiteを参照してMCPリクエストを処理するHandler実装。
// 業務エラーは {"error": "..."} としてレスポンスに含め、Goのエラーは
// リクエストが読めない場合とデータベースに接続できない場合にのみ返す。
type Processor struct {
	store *Store
}

// NewProcessor は新しいProcessorを生成する。
func NewProcessor(store *Store) *Processor {
	return &Processor{store: store}
}

var _ Handler = (*Processor)(nil)

// Handle はMCPリクエストを処理し、JSON文字列を返す。
func (p *Processor) Handle(ctx context.Context, raw string) (string, error) {
	var req request
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	resp, err := p.dispatch(ctx, req)
	if err != nil {
		p.record(ctx, req.Verb, "failed")
		return "", err
	}
	if _, isErr := resp["error"]; isErr {
		p.record(ctx, req.Verb, "error")
	} else {
		p.record(ctx, req.Verb, "ok")
	}

	out, err := json.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("MCPレスポンスのシリアライズに失敗: %w", err)
	}
	return string(out), nil
}

// dispatch はverbに応じた処理を呼び出す。
func (p *Processor) dispatch(ctx context.Context, req request) (map[string]any, error) {
	switch req.Verb {
	case VerbListResources:
		return p.listResources(ctx)
	case VerbRead:
		return p.read(ctx, req.Parameters.Name)
	case VerbExecute:
		return p.execute(ctx, req.Parameters.Statement)
	default:
		return errorResponse(fmt.Sprintf("サポートされていないverbです: %s", req.Verb)), nil
	}
}

// listResources はテーブル一覧をリソースとして返す。
func (p *Processor) listResources(ctx context.Context) (map[string]any, error) {
	tables, err := p.store.Tables(ctx)
	if err != nil {
		return nil, err
	}

	resources := make([]Resource, 0, len(tables))
	for _, t := range tables {
		resources = append(resources, Resource{Name: t, Description: "Table: " + t})
	}
	return map[string]any{"resources": resources}, nil
}

// read はテーブルの先頭readLimit行を返す。
func (p *Processor) read(ctx context.Context, table string) (map[string]any, error) {
	if table == "" {
		return errorResponse("readにはテーブル名（parameters.name）が必要です"), nil
	}

	tables, err := p.store.Tables(ctx)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(tables, table) {
		return errorResponse(fmt.Sprintf("テーブルが見つかりません: %s", table)), nil
	}

	rows, err := p.store.ReadTable(ctx, table, readLimit)
	if err != nil {
		return errorResponse(fmt.Sprintf("SQL Error: %v", err)), nil
	}
	return map[string]any{"data": rows}, nil
}

// execute は参照系のSQL文を実行する。
func (p *Processor) execute(ctx context.Context, statement string) (map[string]any, error) {
	if statement == "" {
		return errorResponse("executeにはSQL文（parameters.statement）が必要です"), nil
	}
	if multipleStatements(statement) {
		return errorResponse("SQL文は1つだけ指定してください"), nil
	}
	if writeStatement.MatchString(statement) {
		return errorResponse("セキュリティ上の理由からSELECT文のみ実行できます"), nil
	}

	rows, err := p.store.QueryReadOnly(ctx, statement)
	if err != nil {
		return errorResponse(fmt.Sprintf("SQL Error: %v", err)), nil
	}
	return map[string]any{"results": rows}, nil
}

// record はリクエストログを書き込む。失敗してもリクエストは失敗させない。
func (p *Processor) record(ctx context.Context, verb Verb, outcome string) {
	if err := p.store.LogRequest(ctx, httpclient.RequestIDFromContext(ctx), string(verb), outcome); err != nil {
		log.Printf("[MCP] %v", err)
	}
}

// multipleStatements は末尾以外に ; を含むかを返す。
// 文字列リテラル内の ; も区切りとみなす。
func multipleStatements(statement string) bool {
	trimmed := strings.TrimRight(strings.TrimSpace(statement), "; \t\r\n")
	return strings.Contains(trimmed, ";")
}

// errorResponse は業務エラーのレスポンスを生成する。
func errorResponse(msg string) map[string]any {
	return map[string]any{"error": msg}
}
