// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// 静的APIキーによるBearer認証（Auth Guard）、サービス間JWTの発行と検証、
// リクエストID付与、パニックリカバリ、CORS設定を含む。
// エラーレスポンスはすべて {"detail": "..."} 形式に揃える。
package middleware
