package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/jinford/doc-rag/internal/core/ask"
	"github.com/jinford/doc-rag/internal/core/embedding"
)

const (
	// DefaultEmbeddingModel はモデル未指定時の埋め込みモデル
	DefaultEmbeddingModel = "gemini-embedding-001"
	// DefaultCompletionModel はモデル未指定時の生成モデル
	DefaultCompletionModel = "gemini-2.5-flash"
	// DefaultEmbeddingDimension は出力ベクトルの次元
	DefaultEmbeddingDimension = 1536
)

// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
var ErrAPIKeyNotSet = errors.New("Gemini API key not set: please set GEMINI_API_KEY environment variable")

// Client は Gemini API を使用した埋め込み・回答生成クライアント
type Client struct {
	client          *genai.Client
	embeddingModel  string
	completionModel string
	dimension       int
}

type clientOptions struct {
	embeddingModel  string
	completionModel string
	dimension       int
	baseURL         string
	httpClient      *http.Client
}

// Option は Client のオプション設定
type Option func(*clientOptions)

// WithEmbeddingModel は埋め込みモデル名を上書きする
func WithEmbeddingModel(model string) Option {
	return func(o *clientOptions) {
		if model != "" {
			o.embeddingModel = model
		}
	}
}

// WithCompletionModel は生成モデル名を上書きする
func WithCompletionModel(model string) Option {
	return func(o *clientOptions) {
		if model != "" {
			o.completionModel = model
		}
	}
}

// WithDimension は出力ベクトルの次元を設定する
func WithDimension(dimension int) Option {
	return func(o *clientOptions) {
		o.dimension = dimension
	}
}

// WithBaseURL はAPIのベースURLを上書きする
func WithBaseURL(baseURL string) Option {
	return func(o *clientOptions) {
		o.baseURL = baseURL
	}
}

// WithHTTPClient はHTTPクライアントを差し替える
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = httpClient
	}
}

// NewClient は新しい Client を作成する
func NewClient(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	options := clientOptions{
		embeddingModel:  DefaultEmbeddingModel,
		completionModel: DefaultCompletionModel,
		dimension:       DefaultEmbeddingDimension,
	}
	for _, opt := range opts {
		opt(&options)
	}

	config := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: options.httpClient,
	}
	if options.baseURL != "" {
		config.HTTPOptions = genai.HTTPOptions{BaseURL: options.baseURL}
	}

	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Client{
		client:          client,
		embeddingModel:  options.embeddingModel,
		completionModel: options.completionModel,
		dimension:       options.dimension,
	}, nil
}

// Embed は単一テキストの Embedding を生成する
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	config := &genai.EmbedContentConfig{}
	if c.dimension > 0 {
		config.OutputDimensionality = genai.Ptr(int32(c.dimension))
	}

	resp, err := c.client.Models.EmbedContent(ctx, c.embeddingModel, genai.Text(text), config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("no embeddings generated")
	}

	return resp.Embeddings[0].Values, nil
}

// Complete はシステムプロンプトとユーザープロンプトから回答を生成する
func (c *Client) Complete(ctx context.Context, req ask.CompletionRequest) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.completionModel, genai.Text(req.UserPrompt), config)
	if err != nil {
		return "", fmt.Errorf("Gemini API call failed: %w", err)
	}

	return resp.Text(), nil
}

// ModelName は生成モデル名を返す
func (c *Client) ModelName() string {
	return c.completionModel
}

// EmbeddingModelName は Embedding モデル名を返す
func (c *Client) EmbeddingModelName() string {
	return c.embeddingModel
}

// インターフェース実装の確認
var (
	_ embedding.Provider = (*Client)(nil)
	_ ask.Completer      = (*Client)(nil)
)
