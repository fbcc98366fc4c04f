package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jinford/doc-rag/internal/core/ask"
	"github.com/jinford/doc-rag/internal/core/document"
	"github.com/jinford/doc-rag/internal/core/ingestion"
)

// multipartOverhead はアップロード上限に加えて許容するフォームのオーバーヘッド
const multipartOverhead = 1 << 20

// DocumentService はドキュメント管理のユースケース
type DocumentService interface {
	Upload(ctx context.Context, params ingestion.UploadParams) (*ingestion.UploadResult, error)
	List(ctx context.Context) ([]*document.Document, error)
	Get(ctx context.Context, id uuid.UUID) (*document.Document, error)
	ChunkCount(ctx context.Context, id uuid.UUID) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Asker は質問応答のユースケース
type Asker interface {
	Ask(ctx context.Context, params ask.AskParams) (*ask.AskResult, error)
}

// BlobReader はアップロード原本を読み出す
type BlobReader interface {
	Get(ctx context.Context, path string) ([]byte, error)
}

// Pinger はデータベースの疎通確認
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server はHTTP APIのハンドラ群
type Server struct {
	docs           DocumentService
	asker          Asker
	blobs          BlobReader
	pinger         Pinger
	metrics        http.Handler
	maxUploadBytes int64
	logger         *slog.Logger
}

// Option は Server のオプション
type Option func(*Server)

// WithBlobReader は原本ダウンロードを有効にする
func WithBlobReader(blobs BlobReader) Option {
	return func(s *Server) {
		s.blobs = blobs
	}
}

// WithPinger はヘルスチェックでデータベースを確認する
func WithPinger(p Pinger) Option {
	return func(s *Server) {
		s.pinger = p
	}
}

// WithMetricsHandler は /metrics のハンドラを設定する
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithMaxUploadBytes はアップロードの上限サイズを設定する
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		s.maxUploadBytes = n
	}
}

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer は新しいServerを作成する
func NewServer(docs DocumentService, asker Asker, opts ...Option) *Server {
	s := &Server{
		docs:           docs,
		asker:          asker,
		maxUploadBytes: ingestion.DefaultMaxUploadBytes,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Handler はルーティング済みの gin.Engine を返す
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.loggerMiddleware())

	r.GET("/healthz", s.health)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}

	api := r.Group("/api")
	api.POST("/upload", s.upload)
	api.GET("/documents", s.listDocuments)
	api.GET("/documents/:id", s.getDocument)
	api.GET("/documents/:id/file", s.downloadDocument)
	api.DELETE("/documents", s.deleteDocument)
	api.DELETE("/documents/:id", s.deleteDocument)
	api.POST("/search", s.search)

	return r
}

// ListenAndServe は ctx がキャンセルされるまでHTTPサーバーを起動する
func (s *Server) ListenAndServe(ctx context.Context, port int, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTPサーバーを起動しました", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown http server: %w", err)
	}
	s.logger.Info("HTTPサーバーを停止しました")
	return nil
}

func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		s.logger.Info("request completed",
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"status_code", c.Writer.Status(),
			"body_size", c.Writer.Size(),
			"path", path,
			"error", c.Errors.ByType(gin.ErrorTypePrivate).String(),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	if s.pinger != nil {
		if err := s.pinger.Ping(c.Request.Context()); err != nil {
			s.logger.Warn("ヘルスチェックに失敗しました", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
