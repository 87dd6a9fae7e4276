package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ServiceClaims はgatewayからMCPバックエンドへの呼び出しに付与するJWTのクレーム。
type ServiceClaims struct {
	jwt.RegisteredClaims
	// RequestID は呼び出し元リクエストの識別子。ログの突き合わせに使う。
	RequestID string `json:"request_id,omitempty"`
}

const (
	// serviceIssuer はサービストークンの発行者。
	serviceIssuer = "mcp-gateway"
	// serviceAudience はサービストークンの受け手。
	serviceAudience = "mcp-backend"
	// serviceTokenTTL はサービストークンの有効期間。1回の転送にしか使わないので短い。
	serviceTokenTTL = time.Minute
)

// contextKeyServiceClaims は検証済みクレームをGinコンテキストに格納するキー。
const contextKeyServiceClaims = "service_claims"

// GenerateServiceToken はサービス間呼び出し用のJWTを生成する。
func GenerateServiceToken(secret, requestID string) (string, error) {
	now := time.Now()
	claims := ServiceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(serviceTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    serviceIssuer,
			Audience:  jwt.ClaimStrings{serviceAudience},
		},
		RequestID: requestID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("サービストークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// ParseServiceToken はサービストークンを検証してクレームを返す。
func ParseServiceToken(secret, tokenString string) (*ServiceClaims, error) {
	claims := &ServiceClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(serviceIssuer),
		jwt.WithAudience(serviceAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("サービストークンの検証に失敗: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("サービストークンが無効です")
	}
	return claims, nil
}

// ServiceAuth はサービストークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストにクレームを設定する。
func ServiceAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := BearerToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			RejectUnauthorized(c, "Bearerトークンが必要です")
			return
		}

		claims, err := ParseServiceToken(secret, tokenString)
		if err != nil {
			RejectUnauthorized(c, "トークンが無効です")
			return
		}

		c.Set(contextKeyServiceClaims, claims)
		c.Next()
	}
}

// GetServiceClaims はGinコンテキストから検証済みクレームを取得する。
// ServiceAuthミドルウェアが事前に適用されている必要がある。
func GetServiceClaims(c *gin.Context) *ServiceClaims {
	v, _ := c.Get(contextKeyServiceClaims)
	if claims, ok := v.(*ServiceClaims); ok {
		return claims
	}
	return nil
}
