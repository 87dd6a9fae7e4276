package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nao1215/mcpgateway/internal/mcp"
)

// Envelope は呼び出し元が mcp_request に指定するJSONオブジェクト。
// 値の中身は解釈せず、受け取ったJSONのまま外部ハンドラーへ渡す。
type Envelope map[string]json.RawMessage

// QueryRequest は POST /query のリクエストボディ。
type QueryRequest struct {
	MCPRequest Envelope `json:"mcp_request" binding:"required"`
}

// errEmptyHandlerError はメッセージを持たないエラーを返されたときの代替。
var errEmptyHandlerError = errors.New("MCPハンドラーの呼び出しに失敗しました")

// Encode はエンベロープをハンドラーに渡す文字列にシリアライズする。
// HTMLエスケープはせず、受け取った値をできるだけそのまま保つ。
func (e Envelope) Encode() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return "", fmt.Errorf("リクエストのシリアライズに失敗: %w", err)
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// Forward はエンベロープをシリアライズしてハンドラーを1回だけ呼び出し、
// 応答をJSONとしてパースして返す。ハンドラーのエラーやパニック、
// 応答がJSONとして読めない場合はすべてエラーとして返す。
func Forward(ctx context.Context, h mcp.Handler, e Envelope) (json.RawMessage, error) {
	transport, err := e.Encode()
	if err != nil {
		return nil, err
	}

	out, err := invoke(ctx, h, transport)
	if err != nil {
		if err.Error() == "" {
			return nil, errEmptyHandlerError
		}
		return nil, err
	}

	var result json.RawMessage
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		return nil, fmt.Errorf("ハンドラー応答のJSONパースに失敗: %w", err)
	}
	return result, nil
}

// invoke はハンドラーを呼び出し、パニックもエラーとして回収する。
func invoke(ctx context.Context, h mcp.Handler, request string) (resp string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("MCPハンドラーで予期しないエラーが発生しました: %v", r)
		}
	}()
	return h.Handle(ctx, request)
}
