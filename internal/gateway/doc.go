// Package gateway はMCP Gatewayサービスの内部実装を提供する。
//
// 静的APIキーによるBearer認証を通過したリクエストのみ受け付け、
// mcp_request をシリアライズして外部ハンドラーに委譲し、
// ハンドラーの応答をJSONとしてそのまま返す。
// ハンドラーの失敗は種類を問わず {"detail": "..."} と500に変換し、
// 内部の例外がHTTPの境界を越えることはない。
package gateway
