// MCP Gatewayサービスのエントリポイント。
// 静的APIキーでBearer認証を行い、mcp_requestをMCPハンドラーへ委譲する。
// MCP_BACKEND_URLが設定されていればMCPバックエンドへ転送し、
// 無ければプロセス内のSQLiteプロセッサで処理する。
package main

import (
	"context"
	"log"
	"time"

	"github.com/nao1215/mcpgateway/internal/config"
	"github.com/nao1215/mcpgateway/internal/gateway"
	"github.com/nao1215/mcpgateway/internal/mcp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}
	cfg, err := config.LoadGateway()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	handler, cleanup, err := newHandler(cfg)
	if err != nil {
		log.Fatalf("MCPハンドラーの初期化に失敗: %v", err)
	}
	defer cleanup()

	server := gateway.NewServer(cfg, handler)

	log.Printf("Gatewayサービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Printf("Gatewayサービスの起動に失敗: %v", err)
		return
	}
}

// newHandler は設定に応じたMCPハンドラーと後始末用の関数を返す。
func newHandler(cfg *config.Gateway) (mcp.Handler, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if cfg.Remote() {
		remote := mcp.NewRemoteHandler(cfg.BackendURL, cfg.ServiceSecret)
		// バックエンドが後から起動することもあるので警告に留める
		if err := remote.Ping(ctx); err != nil {
			log.Printf("[Gateway] MCPバックエンドに接続できません: url=%s, error=%v", cfg.BackendURL, err)
		}
		log.Printf("[Gateway] MCPバックエンドへ転送します: %s", cfg.BackendURL)
		return remote, func() {}, nil
	}

	store, err := mcp.OpenStore(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("[Gateway] プロセス内でMCPリクエストを処理します: db=%s", cfg.DatabasePath)
	return mcp.NewProcessor(store), func() { _ = store.Close() }, nil
}
