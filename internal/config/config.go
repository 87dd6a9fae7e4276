// Package config は環境変数からサービスの設定を読み込む。
//
// 値は起動時に一度だけ読み込み、以後は変更しない。
// カレントディレクトリに .env があれば、未設定の環境変数を補う。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// DefaultGatewayPort はgatewayの既定のリッスンポート。
	DefaultGatewayPort = "8000"
	// DefaultBackendPort はMCPバックエンドの既定のリッスンポート。
	DefaultBackendPort = "8090"
	// DefaultDatabasePath はMCPプロセッサが使うSQLiteファイルの既定パス。
	DefaultDatabasePath = "/data/mcp.db"
)

var (
	// ErrMissingAPIKey はAPI_KEYが設定されていないことを表す。
	ErrMissingAPIKey = errors.New("API_KEY環境変数が設定されていません")
	// ErrAPIKeyWhitespace はAPI_KEYの前後に空白があることを表す。
	// Authorizationヘッダーの値は前後の空白が落ちるため、そのままでは一致しない。
	ErrAPIKeyWhitespace = errors.New("API_KEYの前後に空白が含まれています")
	// ErrMissingServiceSecret はMCP_SERVICE_SECRETが必要なのに設定されていないことを表す。
	ErrMissingServiceSecret = errors.New("MCP_SERVICE_SECRET環境変数が設定されていません")
)

// LookupFunc は環境変数を1つ取得する関数。テストでos.Getenvを差し替えるために使う。
type LookupFunc func(key string) string

// Gateway はgatewayサービスの設定。
type Gateway struct {
	// APIKey はBearer認証で照合する静的シークレット。
	APIKey string
	// Port はリッスンポート。
	Port string
	// BackendURL はMCPバックエンドのベースURL。空ならプロセス内でリクエストを処理する。
	BackendURL string
	// ServiceSecret はMCPバックエンド向けサービストークンの署名鍵。
	ServiceSecret string
	// DatabasePath はプロセス内処理で使うSQLiteファイルのパス。
	DatabasePath string
	// AllowedOrigins はCORSで許可するオリジン。空ならCORSヘッダーを付けない。
	AllowedOrigins []string
}

// Remote はMCPバックエンドへ転送する構成かどうかを返す。
func (g *Gateway) Remote() bool {
	return g.BackendURL != ""
}

// Backend はMCPバックエンドサービスの設定。
type Backend struct {
	// Port はリッスンポート。
	Port string
	// ServiceSecret はサービストークンの検証鍵。
	ServiceSecret string
	// DatabasePath はSQLiteファイルのパス。
	DatabasePath string
}

// LoadDotEnv は .env ファイルを読み込む。ファイルが無い場合は何もしない。
// 既に設定されている環境変数は上書きしない。
func LoadDotEnv(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf(".envファイルの読み込みに失敗: %w", err)
	}
	return nil
}

// LoadGateway は環境変数からgatewayの設定を読み込む。
// API_KEYが無い場合はエラーを返し、認証無しで起動することはない。
func LoadGateway() (*Gateway, error) {
	return loadGateway(os.Getenv)
}

// loadGateway はLoadGatewayの実体。
func loadGateway(getenv LookupFunc) (*Gateway, error) {
	cfg := &Gateway{
		APIKey:         getenv("API_KEY"),
		Port:           getEnvOr(getenv, "PORT", DefaultGatewayPort),
		BackendURL:     strings.TrimRight(strings.TrimSpace(getenv("MCP_BACKEND_URL")), "/"),
		ServiceSecret:  getenv("MCP_SERVICE_SECRET"),
		DatabasePath:   getEnvOr(getenv, "MCP_DATABASE_PATH", DefaultDatabasePath),
		AllowedOrigins: splitList(getenv("ALLOWED_ORIGINS")),
	}

	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(cfg.APIKey) != cfg.APIKey {
		return nil, ErrAPIKeyWhitespace
	}
	if cfg.Remote() && cfg.ServiceSecret == "" {
		return nil, fmt.Errorf("MCP_BACKEND_URLを使う場合は必須: %w", ErrMissingServiceSecret)
	}
	return cfg, nil
}

// LoadBackend は環境変数からMCPバックエンドの設定を読み込む。
func LoadBackend() (*Backend, error) {
	return loadBackend(os.Getenv)
}

// loadBackend はLoadBackendの実体。
func loadBackend(getenv LookupFunc) (*Backend, error) {
	cfg := &Backend{
		Port:          getEnvOr(getenv, "PORT", DefaultBackendPort),
		ServiceSecret: getenv("MCP_SERVICE_SECRET"),
		DatabasePath:  getEnvOr(getenv, "MCP_DATABASE_PATH", DefaultDatabasePath),
	}
	if cfg.ServiceSecret == "" {
		return nil, ErrMissingServiceSecret
	}
	return cfg, nil
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(getenv LookupFunc, key, defaultValue string) string {
	if v := strings.TrimSpace(getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

// splitList はカンマ区切りの値を分割し、空要素を除く。
func splitList(value string) []string {
	var out []string
	for item := range strings.SplitSeq(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
