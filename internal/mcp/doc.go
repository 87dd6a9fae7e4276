// Package mcp はgatewayから委譲されるMCPリクエストの処理を提供する。
//
// gatewayが依存するのは Handler インターフェースのみで、
// 実装としてSQLiteを直接参照する Processor と、
// MCPバックエンドサービスへHTTPで転送する RemoteHandler を持つ。
// MCPバックエンドサービス自体の HTTPサーバー（Server）もこのパッケージに含む。
package mcp
