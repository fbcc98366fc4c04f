package ask

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jinford/doc-rag/internal/core/document"
	"github.com/jinford/doc-rag/internal/core/search"
)

// DefaultExcerptLength はソース抜粋の文字数
const DefaultExcerptLength = 200

// Searcher は類似チャンク検索インターフェース
type Searcher interface {
	Search(ctx context.Context, params search.Params) ([]*document.SearchResult, error)
}

// AskService は質問応答のビジネスロジックを提供する
type AskService struct {
	searcher      Searcher
	synthesizer   *Synthesizer
	excerptLength int
	logger        *slog.Logger
}

type AskServiceOption func(*AskService)

// WithExcerptLength はソース抜粋の文字数を設定する
func WithExcerptLength(n int) AskServiceOption {
	return func(s *AskService) {
		s.excerptLength = n
	}
}

// WithAskLogger は AskService にロガーを設定する
func WithAskLogger(logger *slog.Logger) AskServiceOption {
	return func(s *AskService) {
		s.logger = logger
	}
}

// NewAskService は新しいAskServiceを作成する
func NewAskService(
	searcher Searcher,
	synthesizer *Synthesizer,
	opts ...AskServiceOption,
) *AskService {
	svc := &AskService{
		searcher:      searcher,
		synthesizer:   synthesizer,
		excerptLength: DefaultExcerptLength,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(svc)
	}

	if svc.excerptLength <= 0 {
		svc.excerptLength = DefaultExcerptLength
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}

	return svc
}

// Ask は質問に対してRAGベースで回答を生成する
func (s *AskService) Ask(ctx context.Context, params AskParams) (*AskResult, error) {
	s.logger.Info("executing similarity search",
		"query", params.Query,
		"fileType", params.FileType.OrEmpty(),
	)

	results, err := s.searcher.Search(ctx, search.Params{
		Query:    params.Query,
		FileType: params.FileType,
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	s.logger.Info("similarity search completed", "chunks", len(results))

	contents := make([]string, 0, len(results))
	sources := make([]Source, 0, len(results))
	for _, result := range results {
		contents = append(contents, result.Content)
		sources = append(sources, newSource(result, s.excerptLength))
	}

	answer, err := s.synthesizer.Answer(ctx, params.Query, contents)
	if err != nil {
		return nil, err
	}

	s.logger.Info("ask completed successfully",
		"answerLength", len(answer),
		"sources", len(sources),
	)

	return &AskResult{
		Answer:  answer,
		Sources: sources,
	}, nil
}
