package ask

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const (
	// DefaultTemperature は回答生成の温度
	DefaultTemperature = 0.3
	// DefaultMaxTokens は回答の最大トークン数
	DefaultMaxTokens = 1000
)

// CompletionRequest はLLMへの補完リクエスト
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
}

// Completer はLLM通信インターフェース
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// TokenTrimmer はコンテキストのトークン数を数えて切り詰める
type TokenTrimmer interface {
	CountTokens(text string) int
	TrimToTokenLimit(text string, limit int) string
}

// Synthesizer は検索結果のチャンクから回答を生成する
type Synthesizer struct {
	completer        Completer
	language         Language
	temperature      float64
	maxTokens        int
	trimmer          TokenTrimmer
	maxContextTokens int
	logger           *slog.Logger
}

// SynthesizerOption は Synthesizer のオプション
type SynthesizerOption func(*Synthesizer)

// WithLanguage は回答言語を設定する
func WithLanguage(lang Language) SynthesizerOption {
	return func(s *Synthesizer) {
		s.language = lang
	}
}

// WithTemperature は温度を設定する
func WithTemperature(t float64) SynthesizerOption {
	return func(s *Synthesizer) {
		s.temperature = t
	}
}

// WithMaxTokens は回答の最大トークン数を設定する
func WithMaxTokens(n int) SynthesizerOption {
	return func(s *Synthesizer) {
		s.maxTokens = n
	}
}

// WithContextBudget はコンテキストのトークン上限を設定する。0 以下なら無制限
func WithContextBudget(trimmer TokenTrimmer, maxTokens int) SynthesizerOption {
	return func(s *Synthesizer) {
		s.trimmer = trimmer
		s.maxContextTokens = maxTokens
	}
}

// WithSynthesizerLogger は Synthesizer にロガーを設定する
func WithSynthesizerLogger(logger *slog.Logger) SynthesizerOption {
	return func(s *Synthesizer) {
		s.logger = logger
	}
}

// NewSynthesizer は新しいSynthesizerを作成する
func NewSynthesizer(completer Completer, opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{
		completer:   completer,
		language:    DefaultLanguage,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, ok := catalogs[s.language]; !ok {
		s.language = DefaultLanguage
	}
	if s.maxTokens <= 0 {
		s.maxTokens = DefaultMaxTokens
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Answer はチャンクのみを根拠に質問への回答を生成する。
// チャンクが無い場合はLLMを呼ばずに固定文言を返す
func (s *Synthesizer) Answer(ctx context.Context, query string, chunks []string) (string, error) {
	c := catalogFor(s.language)
	if len(chunks) == 0 {
		return c.noResults, nil
	}

	contextChunks := s.fitContext(chunks)
	if len(contextChunks) < len(chunks) {
		s.logger.Debug("コンテキストをトークン上限で切り詰めました",
			"chunks", len(chunks),
			"kept", len(contextChunks),
			"maxContextTokens", s.maxContextTokens,
		)
	}

	answer, err := s.completer.Complete(ctx, CompletionRequest{
		SystemPrompt: c.system,
		UserPrompt:   BuildUserPrompt(s.language, query, contextChunks),
		Temperature:  s.temperature,
		MaxTokens:    s.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}

	if strings.TrimSpace(answer) == "" {
		return c.noAnswer, nil
	}
	return answer, nil
}

// fitContext は上限に収まるまで先頭からチャンクを採用する。先頭の1件は必ず残す
func (s *Synthesizer) fitContext(chunks []string) []string {
	if s.trimmer == nil || s.maxContextTokens <= 0 {
		return chunks
	}

	kept := make([]string, 0, len(chunks))
	used := 0
	for i, chunk := range chunks {
		n := s.trimmer.CountTokens(chunk)
		if used+n <= s.maxContextTokens {
			kept = append(kept, chunk)
			used += n
			continue
		}
		if i == 0 {
			kept = append(kept, s.trimmer.TrimToTokenLimit(chunk, s.maxContextTokens))
		}
		break
	}
	return kept
}
