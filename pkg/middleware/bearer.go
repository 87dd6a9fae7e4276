package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// headerWWWAuthenticate は認証方式を通知するHTTPヘッダーキー。
const headerWWWAuthenticate = "WWW-Authenticate"

// bearerChallenge はWWW-Authenticateヘッダーで通知する認証方式。
const bearerChallenge = "Bearer"

// AuthResult はAuth Guardの判定結果を表す。
type AuthResult int

const (
	// AuthRejected は認証に失敗したことを表す。
	AuthRejected AuthResult = iota
	// AuthAdmitted は認証に成功したことを表す。
	AuthAdmitted
)

// String はログやメトリクスで使う判定結果の名前を返す。
func (r AuthResult) String() string {
	if r == AuthAdmitted {
		return "admitted"
	}
	return "rejected"
}

// AuthGuard はプロセス全体で共有する静的シークレットとBearerトークンを照合する。
// シークレットは生成時に注入され、以後変更されない。
type AuthGuard struct {
	secret []byte
}

// NewAuthGuard は新しいAuthGuardを生成する。
// 空のシークレットは空トークンとの比較で素通りを許してしまうため、panicする。
// 起動時の設定検証で空文字列は弾かれている前提。
func NewAuthGuard(secret string) *AuthGuard {
	if secret == "" {
		panic("middleware: 空のシークレットでAuthGuardは生成できません")
	}
	return &AuthGuard{secret: []byte(secret)}
}

// Check は提示されたトークンを判定する。空文字列は未提示と同じく拒否する。
func (g *AuthGuard) Check(token string) AuthResult {
	if token == "" {
		return AuthRejected
	}
	if subtle.ConstantTimeCompare([]byte(token), g.secret) != 1 {
		return AuthRejected
	}
	return AuthAdmitted
}

// BearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// ヘッダーが無い、もしくはBearer形式でない場合は空文字列を返す。
func BearerToken(authHeader string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(authHeader), " ")
	if !found || !strings.EqualFold(scheme, bearerChallenge) {
		return ""
	}
	return strings.TrimSpace(token)
}

// BearerAuth は静的シークレットでBearerトークンを検証するGinミドルウェアを返す。
// 拒否時は401とWWW-Authenticate: Bearerを返し、後続のハンドラは呼ばない。
func BearerAuth(guard *AuthGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		if guard.Check(BearerToken(c.GetHeader("Authorization"))) != AuthAdmitted {
			RejectUnauthorized(c, "APIキーが無効です")
			return
		}
		c.Next()
	}
}

// RejectUnauthorized は401レスポンスを返してリクエストを中断する。
func RejectUnauthorized(c *gin.Context, detail string) {
	c.Header(headerWWWAuthenticate, bearerChallenge)
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorBody(detail))
}

// ErrorBody は全サービス共通のエラーレスポンスボディを返す。
func ErrorBody(detail string) gin.H {
	return gin.H{"detail": detail}
}
