// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// gatewayがMCPバックエンドへ変換済みリクエストを転送する際や、
// 起動時にバックエンドの死活を確認する際に使用する。
// リクエストIDはコンテキスト経由で X-Request-ID ヘッダーに伝播する。
package httpclient
