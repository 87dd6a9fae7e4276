package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nao1215/mcpgateway/pkg/httpclient"
	"github.com/nao1215/mcpgateway/pkg/middleware"
)

// ProcessPath はMCPバックエンドのリクエスト処理エンドポイント。
const ProcessPath = "/api/v1/process"

// RemoteHandler はMCPバックエンドサービスへリクエストを転送するHandler実装。
// 呼び出しごとに短命のサービストークンを発行して付与する。
type RemoteHandler struct {
	client *httpclient.Client
	secret string
}

// NewRemoteHandler は新しいRemoteHandlerを生成する。
func NewRemoteHandler(baseURL, serviceSecret string, opts ...httpclient.Option) *RemoteHandler {
	return &RemoteHandler{
		client: httpclient.New(baseURL, opts...),
		secret: serviceSecret,
	}
}

var _ Handler = (*RemoteHandler)(nil)

// Handle はリクエスト文字列をそのままMCPバックエンドへPOSTし、レスポンスボディを返す。
func (h *RemoteHandler) Handle(ctx context.Context, request string) (string, error) {
	token, err := middleware.GenerateServiceToken(h.secret, httpclient.RequestIDFromContext(ctx))
	if err != nil {
		return "", err
	}

	body, err := h.client.PostRaw(ctx, ProcessPath, "application/json", []byte(request), token)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			return "", fmt.Errorf("MCPバックエンドがエラーを返しました: status=%d, detail=%s",
				statusErr.StatusCode, detailOf(statusErr.Body))
		}
		return "", fmt.Errorf("MCPバックエンドとの通信に失敗: %w", err)
	}
	return string(body), nil
}

// Ping はMCPバックエンドのヘルスチェックを呼び出す。
func (h *RemoteHandler) Ping(ctx context.Context) error {
	var status struct {
		Status string `json:"status"`
	}
	if err := h.client.GetJSON(ctx, "/health", &status); err != nil {
		return err
	}
	if status.Status != "ok" {
		return fmt.Errorf("MCPバックエンドの状態が異常です: %q", status.Status)
	}
	return nil
}

// detailOf はエラーレスポンスからdetailを取り出す。読めなければボディをそのまま返す。
func detailOf(body []byte) string {
	var e struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Detail != "" {
		return e.Detail
	}
	return string(body)
}
