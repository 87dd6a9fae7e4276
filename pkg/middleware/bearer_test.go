package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testAPIKey はテスト用の静的APIキー。
const testAPIKey = "s3cr3t"

// TestNewAuthGuard はNewAuthGuard関数を検証する。
func TestNewAuthGuard(t *testing.T) {
	t.Parallel()

	t.Run("空のシークレットではpanicすること", func(t *testing.T) {
		t.Parallel()

		defer func() {
			if recover() == nil {
				t.Error("空のシークレットでpanicするべき")
			}
		}()
		NewAuthGuard("")
	})
}

// TestAuthGuardCheck はAuthGuard.Checkを検証する。
func TestAuthGuardCheck(t *testing.T) {
	t.Parallel()

	guard := NewAuthGuard(testAPIKey)

	tests := []struct {
		name  string
		token string
		want  AuthResult
	}{
		{name: "一致するトークンは許可されること", token: "s3cr3t", want: AuthAdmitted},
		{name: "空文字列は拒否されること", token: "", want: AuthRejected},
		{name: "不一致のトークンは拒否されること", token: "wrong", want: AuthRejected},
		{name: "前方一致は拒否されること", token: "s3cr", want: AuthRejected},
		{name: "末尾に余分な文字があると拒否されること", token: "s3cr3t!", want: AuthRejected},
		{name: "大文字小文字が違うと拒否されること", token: "S3CR3T", want: AuthRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := guard.Check(tt.token); got != tt.want {
				t.Errorf("Check(%q) = %v, want %v", tt.token, got, tt.want)
			}
		})
	}
}

// TestBearerToken はBearerToken関数を検証する。
func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "Bearer形式からトークンを取り出せること", header: "Bearer abc", want: "abc"},
		{name: "スキーム名の大文字小文字を区別しないこと", header: "bearer abc", want: "abc"},
		{name: "ヘッダーが空なら空文字列", header: "", want: ""},
		{name: "スキームのみなら空文字列", header: "Bearer", want: ""},
		{name: "スキームと空白のみなら空文字列", header: "Bearer   ", want: ""},
		{name: "Basic形式なら空文字列", header: "Basic abc", want: ""},
		{name: "スキーム無しなら空文字列", header: "abc", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := BearerToken(tt.header); got != tt.want {
				t.Errorf("BearerToken(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

// TestBearerAuth はBearerAuthミドルウェアを検証する。
func TestBearerAuth(t *testing.T) {
	t.Parallel()

	newRouter := func(called *bool) *gin.Engine {
		router := gin.New()
		router.Use(BearerAuth(NewAuthGuard(testAPIKey)))
		router.POST("/test", func(c *gin.Context) {
			*called = true
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		return router
	}

	t.Run("正しいAPIキーでリクエストが成功すること", func(t *testing.T) {
		t.Parallel()

		called := false
		router := newRouter(&called)

		req := httptest.NewRequest(http.MethodPost, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if !called {
			t.Error("ハンドラーが呼ばれるべき")
		}
		if got := w.Header().Get("WWW-Authenticate"); got != "" {
			t.Errorf("WWW-Authenticate = %q, want empty string", got)
		}
	})

	rejected := []struct {
		name   string
		header string
	}{
		{name: "Authorizationヘッダーが無い場合", header: ""},
		{name: "空のBearerトークンの場合", header: "Bearer "},
		{name: "誤ったAPIキーの場合", header: "Bearer wrong"},
		{name: "Bearer接頭辞が無い場合", header: testAPIKey},
		{name: "Basic認証の場合", header: "Basic " + testAPIKey},
	}

	for _, tt := range rejected {
		t.Run(tt.name+"は401とWWW-Authenticateが返ること", func(t *testing.T) {
			t.Parallel()

			called := false
			router := newRouter(&called)

			req := httptest.NewRequest(http.MethodPost, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			if got := w.Header().Get("WWW-Authenticate"); got != "Bearer" {
				t.Errorf("WWW-Authenticate = %q, want %q", got, "Bearer")
			}
			if called {
				t.Error("拒否時にハンドラーが呼ばれるべきではない")
			}

			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("レスポンスボディのパースに失敗: %v", err)
			}
			if body["detail"] != "APIキーが無効です" {
				t.Errorf("detail = %q, want %q", body["detail"], "APIキーが無効です")
			}
		})
	}

	t.Run("空トークンと未提示が同じレスポンスになること", func(t *testing.T) {
		t.Parallel()

		var called bool
		router := newRouter(&called)

		missing := httptest.NewRecorder()
		router.ServeHTTP(missing, httptest.NewRequest(http.MethodPost, "/test", nil))

		req := httptest.NewRequest(http.MethodPost, "/test", nil)
		req.Header.Set("Authorization", "Bearer ")
		empty := httptest.NewRecorder()
		router.ServeHTTP(empty, req)

		if missing.Code != empty.Code {
			t.Errorf("ステータスコードが異なる: missing=%d, empty=%d", missing.Code, empty.Code)
		}
		if missing.Body.String() != empty.Body.String() {
			t.Errorf("ボディが異なる: missing=%s, empty=%s", missing.Body.String(), empty.Body.String())
		}
	})
}
