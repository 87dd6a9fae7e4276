// MCPバックエンドサービスのエントリポイント。
// gatewayからサービストークン付きで転送されたMCPリクエストを、
// SQLiteデータベースを参照して処理する。外部には公開しない。
package main

import (
	"context"
	"log"
	"time"

	"github.com/nao1215/mcpgateway/internal/config"
	"github.com/nao1215/mcpgateway/internal/mcp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}
	cfg, err := config.LoadBackend()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := mcp.OpenStore(ctx, cfg.DatabasePath)
	cancel()
	if err != nil {
		log.Fatalf("MCPサーバーの初期化に失敗: %v", err)
	}
	defer func() { _ = store.Close() }()

	server := mcp.NewServer(cfg.Port, cfg.ServiceSecret, store)

	log.Printf("MCPサービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Printf("MCPサービスの起動に失敗: %v", err)
		return
	}
}
