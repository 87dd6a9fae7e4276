package gateway

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nao1215/mcpgateway/internal/config"
	"github.com/nao1215/mcpgateway/internal/mcp"
	"github.com/nao1215/mcpgateway/pkg/httpclient"
	"github.com/nao1215/mcpgateway/pkg/middleware"
)

// Server はMCP GatewayサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// guard は/queryの認証を行うAuth Guard。
	guard *middleware.AuthGuard
	// handler はリクエストの処理を委譲する外部ハンドラー。
	handler mcp.Handler
	// metrics はPrometheusメトリクス。
	metrics *Metrics
}

// NewServer は新しいGatewayサーバーを生成する。
// cfg.APIKeyは起動時に検証済みで空でないこと。
func NewServer(cfg *config.Gateway, handler mcp.Handler) *Server {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.RequestID())
	if len(cfg.AllowedOrigins) > 0 {
		router.Use(middleware.CORS(cfg.AllowedOrigins))
	}

	s := &Server{
		router:  router,
		port:    cfg.Port,
		guard:   middleware.NewAuthGuard(cfg.APIKey),
		handler: handler,
		metrics: NewMetrics(),
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
	// 認証必須。終端状態の計測は認証より外側に置く
	s.router.POST("/query", s.countOutcome(), middleware.BearerAuth(s.guard), s.handleQuery())

	// ヘルスチェック（認証不要、ハンドラーには触れない）
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, middleware.ErrorBody("Not Found"))
	})
	s.router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, middleware.ErrorBody("Method Not Allowed"))
	})
}

// handleQuery はmcp_requestを外部ハンドラーに委譲するハンドラを返す。
func (s *Server) handleQuery() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, middleware.ErrorBody(fmt.Sprintf("リクエストボディが不正です: %v", err)))
			return
		}

		requestID := middleware.GetRequestID(c)
		ctx := httpclient.WithRequestID(c.Request.Context(), requestID)

		start := time.Now()
		result, err := Forward(ctx, s.handler, req.MCPRequest)
		s.metrics.observeHandler(start)
		if err != nil {
			log.Printf("[Gateway] MCPハンドラーの呼び出しに失敗: request_id=%s, error=%v", requestID, err)
			c.JSON(http.StatusInternalServerError, middleware.ErrorBody(err.Error()))
			return
		}

		c.Data(http.StatusOK, "application/json; charset=utf-8", result)
	}
}

// countOutcome は/queryの終端状態をステータスコードから判定して数えるミドルウェアを返す。
func (s *Server) countOutcome() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		switch status := c.Writer.Status(); {
		case status == http.StatusUnauthorized:
			s.metrics.observeOutcome(OutcomeRejected)
		case status == http.StatusUnprocessableEntity:
			s.metrics.observeOutcome(OutcomeInvalid)
		case status >= http.StatusOK && status < http.StatusMultipleChoices:
			s.metrics.observeOutcome(OutcomeSucceeded)
		default:
			s.metrics.observeOutcome(OutcomeFailed)
		}
	}
}
