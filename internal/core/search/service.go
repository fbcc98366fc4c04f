package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/mo"

	"github.com/jinford/doc-rag/internal/core/document"
)

const (
	// DefaultThreshold は類似度の下限
	DefaultThreshold = 0.5
	// DefaultTopK は返す最大件数
	DefaultTopK = 5
	// DefaultMaxTopK は TopK の上限
	DefaultMaxTopK = 50
)

// Embedder はテキストのEmbedding生成インターフェース
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成する
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Recorder は検索時間を記録する
type Recorder interface {
	SearchObserved(d time.Duration)
}

// Params は検索パラメータを表す
type Params struct {
	Query     string
	Threshold mo.Option[float64]           // 未指定ならデフォルト値
	TopK      int                          // 0 ならデフォルト値
	FileType  mo.Option[document.FileType] // 形式で絞り込む
}

// SearchService は検索のビジネスロジックを提供する
type SearchService struct {
	repo      Repository
	embedder  Embedder
	threshold float64
	topK      int
	maxTopK   int
	recorder  Recorder
	logger    *slog.Logger
}

// SearchServiceOption は SearchService のオプション
type SearchServiceOption func(*SearchService)

// WithDefaultThreshold は類似度下限のデフォルト値を設定する
func WithDefaultThreshold(threshold float64) SearchServiceOption {
	return func(s *SearchService) {
		s.threshold = threshold
	}
}

// WithDefaultTopK は件数のデフォルト値を設定する
func WithDefaultTopK(n int) SearchServiceOption {
	return func(s *SearchService) {
		s.topK = n
	}
}

// WithMaxTopK は件数の上限を設定する
func WithMaxTopK(n int) SearchServiceOption {
	return func(s *SearchService) {
		s.maxTopK = n
	}
}

// WithSearchRecorder はメトリクス記録先を設定する
func WithSearchRecorder(r Recorder) SearchServiceOption {
	return func(s *SearchService) {
		s.recorder = r
	}
}

// WithSearchLogger は SearchService にロガーを設定する
func WithSearchLogger(logger *slog.Logger) SearchServiceOption {
	return func(s *SearchService) {
		s.logger = logger
	}
}

// NewSearchService は新しいSearchServiceを作成する
func NewSearchService(repo Repository, embedder Embedder, opts ...SearchServiceOption) *SearchService {
	s := &SearchService{
		repo:      repo,
		embedder:  embedder,
		threshold: DefaultThreshold,
		topK:      DefaultTopK,
		maxTopK:   DefaultMaxTopK,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.topK <= 0 {
		s.topK = DefaultTopK
	}
	if s.maxTopK <= 0 {
		s.maxTopK = DefaultMaxTopK
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Search はクエリを埋め込み、類似度の高い順にチャンクを返す。
// 閾値を超えるチャンクが無い場合は空のスライスを返す
func (s *SearchService) Search(ctx context.Context, params Params) ([]*document.SearchResult, error) {
	startTime := time.Now()

	query := strings.TrimSpace(params.Query)
	if query == "" {
		return nil, &document.ValidationError{Field: "query", Message: "query is required"}
	}

	threshold := params.Threshold.OrElse(s.threshold)
	if threshold < 0 || threshold > 1 {
		return nil, &document.ValidationError{Field: "threshold", Message: fmt.Sprintf("threshold must be within [0, 1]: %v", threshold)}
	}

	if params.TopK < 0 {
		return nil, &document.ValidationError{Field: "topK", Message: "topK must not be negative"}
	}
	topK := params.TopK
	if topK == 0 {
		topK = s.topK
	}
	topK = min(topK, s.maxTopK)

	if ft, ok := params.FileType.Get(); ok && !ft.Valid() {
		return nil, &document.ValidationError{Field: "fileType", Message: "unsupported file type: " + ft.String()}
	}

	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.repo.MatchChunks(ctx, queryVector, threshold, topK, params.FileType)
	if err != nil {
		return nil, &document.StorageError{Op: "match chunks", Err: err}
	}
	if results == nil {
		results = []*document.SearchResult{}
	}

	elapsed := time.Since(startTime)
	if s.recorder != nil {
		s.recorder.SearchObserved(elapsed)
	}
	s.logger.Debug("検索完了",
		"results", len(results),
		"threshold", threshold,
		"topK", topK,
		"duration", elapsed,
	)

	return results, nil
}
