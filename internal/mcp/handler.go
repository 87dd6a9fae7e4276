package mcp

import "context"

// Handler はシリアライズ済みのMCPリクエストを受け取り、
// シリアライズ済みのレスポンスを返す外部ハンドラーの契約。
// エラーの種類は問わず、呼び出し側で一律に扱う。
type Handler interface {
	Handle(ctx context.Context, request string) (string, error)
}

// HandlerFunc は関数をHandlerとして扱うためのアダプタ。
type HandlerFunc func(ctx context.Context, request string) (string, error)

// Handle はf(ctx, request)を呼び出す。
func (f HandlerFunc) Handle(ctx context.Context, request string) (string, error) {
	return f(ctx, request)
}
