package mcp

import (
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/mcpgateway/pkg/httpclient"
	"github.com/nao1215/mcpgateway/pkg/middleware"
)

// maxRequestBodySize はMCPバックエンドが受け付けるリクエストボディの上限。
const maxRequestBodySize = 1 << 20

// Server はMCPバックエンドサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// handler はリクエストを処理するHandler。
	handler Handler
	// store はヘルスチェックで接続確認するデータベース。
	store *Store
	// serviceSecret はサービストークンの検証鍵。
	serviceSecret string
}

// NewServer は新しいMCPバックエンドサーバーを生成する。
func NewServer(port, serviceSecret string, store *Store) *Server {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.RequestID())

	s := &Server{
		router:        router,
		port:          port,
		handler:       NewProcessor(store),
		store:         store,
		serviceSecret: serviceSecret,
	}
	s.setupRoutes()

	return s
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")
	api.Use(middleware.ServiceAuth(s.serviceSecret))
	{
		api.POST("/process", s.handleProcess())
	}

	// ヘルスチェック（データベースには触れない）
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "mcp"})
	})
	// データベース接続の確認
	s.router.GET("/health/db", s.handleDBHealth())
}

// handleProcess はgatewayから転送されたリクエストを処理するハンドラを返す。
func (s *Server) handleProcess() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBodySize))
		if err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, middleware.ErrorBody("リクエストボディの読み取りに失敗しました"))
			return
		}

		requestID := middleware.GetRequestID(c)
		if claims := middleware.GetServiceClaims(c); claims != nil && claims.RequestID != "" {
			requestID = claims.RequestID
		}
		ctx := httpclient.WithRequestID(c.Request.Context(), requestID)

		resp, err := s.handler.Handle(ctx, string(body))
		if err != nil {
			log.Printf("[MCP] リクエスト処理エラー: request_id=%s, error=%v", requestID, err)
			c.JSON(http.StatusInternalServerError, middleware.ErrorBody(err.Error()))
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(resp))
	}
}

// handleDBHealth はデータベース接続を確認するハンドラを返す。
func (s *Server) handleDBHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":              "error",
				"database_connection": "failed",
				"detail":              err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "database_connection": "successful"})
	}
}
