package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/jinford/doc-rag/internal/core/document"
)

// DefaultConcurrency はバッチ埋め込み時の同時リクエスト数
const DefaultConcurrency = 5

// Provider はモデルプロバイダの埋め込み API
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Recorder は埋め込みリクエストの結果を記録する
type Recorder interface {
	EmbeddingRequest(outcome string)
}

// Client は改行の正規化・同時実行数の制御・レート制限を担う埋め込みクライアント
type Client struct {
	provider    Provider
	concurrency int
	dimension   int
	limiter     *rate.Limiter
	recorder    Recorder
	logger      *slog.Logger
}

// ClientOption は Client のオプション
type ClientOption func(*Client)

// WithConcurrency はバッチ内の同時リクエスト数を設定する
func WithConcurrency(n int) ClientOption {
	return func(c *Client) {
		c.concurrency = n
	}
}

// WithDimension は期待するベクトル次元を設定する。0 なら検証しない
func WithDimension(d int) ClientOption {
	return func(c *Client) {
		c.dimension = d
	}
}

// WithRateLimit は 1 秒あたりのリクエスト数を制限する。rps <= 0 なら無制限
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRecorder はメトリクス記録先を設定する
func WithRecorder(r Recorder) ClientOption {
	return func(c *Client) {
		c.recorder = r
	}
}

// WithClientLogger はロガーを設定する
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient は新しい Client を作成する
func NewClient(provider Provider, opts ...ClientOption) *Client {
	c := &Client{
		provider:    provider,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.concurrency <= 0 {
		c.concurrency = DefaultConcurrency
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Normalize は改行をスペースに置き換える
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	return strings.ReplaceAll(text, "\r", " ")
}

// Embed はクエリ等の単一テキストを埋め込む。失敗時は ChunkIndex=-1 の EmbeddingError を返す
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vector, err := c.embed(ctx, text)
	if err != nil {
		return nil, &document.EmbeddingError{ChunkIndex: -1, Err: err}
	}
	return vector, nil
}

// EmbedBatch は texts を最大 concurrency 件ずつ並行に埋め込み、入力順のベクトルを返す。
// いずれかが失敗した時点で残りをキャンセルし、失敗したインデックス付きの EmbeddingError を返す
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	if len(texts) == 0 {
		return vectors, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, text := range texts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vector, err := c.embed(gctx, text)
			if err != nil {
				return &document.EmbeddingError{ChunkIndex: i, Err: err}
			}
			vectors[i] = vector
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (c *Client) embed(ctx context.Context, text string) ([]float32, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	vector, err := c.provider.Embed(ctx, Normalize(text))
	if err != nil {
		c.record("error")
		return nil, err
	}
	if c.dimension > 0 && len(vector) != c.dimension {
		c.record("error")
		return nil, fmt.Errorf("unexpected embedding dimension: got %d, want %d", len(vector), c.dimension)
	}

	c.record("success")
	return vector, nil
}

func (c *Client) record(outcome string) {
	if c.recorder != nil {
		c.recorder.EmbeddingRequest(outcome)
	}
}
