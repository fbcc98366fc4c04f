package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"github.com/jinford/doc-rag/internal/core/ask"
	"github.com/jinford/doc-rag/internal/core/embedding"
	"github.com/jinford/doc-rag/internal/core/ingestion"
	"github.com/jinford/doc-rag/internal/core/ingestion/chunk"
	"github.com/jinford/doc-rag/internal/core/ingestion/extract"
	"github.com/jinford/doc-rag/internal/core/search"
	"github.com/jinford/doc-rag/internal/infra/blob"
	"github.com/jinford/doc-rag/internal/infra/gemini"
	"github.com/jinford/doc-rag/internal/infra/openai"
	"github.com/jinford/doc-rag/internal/infra/postgres"
	"github.com/jinford/doc-rag/internal/infra/postgres/sqlc"
	"github.com/jinford/doc-rag/internal/infra/tokenizer"
	"github.com/jinford/doc-rag/internal/interface/httpapi"
	"github.com/jinford/doc-rag/internal/platform/config"
	"github.com/jinford/doc-rag/internal/platform/database"
	"github.com/jinford/doc-rag/internal/platform/metrics"
)

// DefaultShutdownTimeout は実行中のインジェストを待つ時間
const DefaultShutdownTimeout = 30 * time.Second

// ServiceContainer はアプリケーションの依存関係を保持する
type ServiceContainer struct {
	Config      *config.Config
	Documents   *ingestion.Service
	Pipeline    *ingestion.Pipeline
	Runner      *ingestion.Runner
	Search      *search.SearchService
	Ask         *ask.AskService
	Blobs       *blob.Store
	Metrics     *metrics.Metrics
	ChunkReader *postgres.Repository

	pinger   httpapi.Pinger
	logger   *slog.Logger
	database *database.Database
}

// Providers はモデルプロバイダの実装
type Providers struct {
	Embedder  embedding.Provider
	Completer ask.Completer

	// ログ出力用のモデル名
	EmbeddingModel  string
	CompletionModel string
}

type containerOptions struct {
	logger    *slog.Logger
	providers *Providers
	fs        afero.Fs
	metrics   *metrics.Metrics
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerProviders はモデルプロバイダを差し替える
func WithContainerProviders(p Providers) ContainerOption {
	return func(opts *containerOptions) {
		opts.providers = &p
	}
}

// WithContainerFs は原本保存先のファイルシステムを差し替える
func WithContainerFs(fs afero.Fs) ContainerOption {
	return func(opts *containerOptions) {
		opts.fs = fs
	}
}

// WithContainerMetrics はメトリクスを差し替える
func WithContainerMetrics(m *metrics.Metrics) ContainerOption {
	return func(opts *containerOptions) {
		opts.metrics = m
	}
}

// NewContainer は設定からデータベースに接続してコンテナを生成する
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	db, err := database.New(ctx, database.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
	}

	c, err := Build(ctx, cfg, db.Pool, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	c.database = db
	c.pinger = db.Pool
	return c, nil
}

// Build は接続済みのデータベースを受け取りコンテナを組み立てる
func Build(ctx context.Context, cfg *config.Config, db postgres.DB, opts ...ContainerOption) (*ServiceContainer, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if options.fs == nil {
		options.fs = afero.NewOsFs()
	}
	if options.metrics == nil {
		options.metrics = metrics.New()
	}
	logger := options.logger
	m := options.metrics

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定が不正です: %w", err)
	}

	providers := options.providers
	if providers == nil {
		p, err := NewProviders(ctx, cfg)
		if err != nil {
			return nil, err
		}
		providers = p
	}
	logger.Info("モデルプロバイダを初期化",
		"provider", cfg.LLM.Provider,
		"embeddingModel", providers.EmbeddingModel,
		"completionModel", providers.CompletionModel,
	)

	// 永続化
	repo := postgres.NewRepository(db)
	searchRepo := postgres.NewSearchRepository(sqlc.New(db))
	blobs, err := blob.NewStore(options.fs, cfg.Storage.Dir)
	if err != nil {
		return nil, fmt.Errorf("ストレージ初期化に失敗しました: %w", err)
	}

	// Embedding
	embedClient := embedding.NewClient(providers.Embedder,
		embedding.WithConcurrency(cfg.Ingestion.EmbeddingConcurrency),
		embedding.WithDimension(cfg.LLM.EmbeddingDimension),
		embedding.WithRateLimit(cfg.Ingestion.EmbeddingRateLimit, cfg.Ingestion.EmbeddingConcurrency),
		embedding.WithRecorder(m),
		embedding.WithClientLogger(logger),
	)
	var queryEmbedder embedding.Embedder = embedClient
	if cfg.Search.QueryCacheSize > 0 {
		cached, err := embedding.NewCachedEmbedder(embedClient, cfg.Search.QueryCacheSize)
		if err != nil {
			return nil, err
		}
		queryEmbedder = cached
	}

	counter, err := tokenizer.New()
	if err != nil {
		return nil, err
	}

	// インジェスト
	chunker, err := chunk.New(chunk.Config{
		Size:      cfg.Ingestion.ChunkSize,
		Overlap:   cfg.Ingestion.ChunkOverlap,
		MinLength: cfg.Ingestion.MinChunkLength,
	})
	if err != nil {
		return nil, fmt.Errorf("チャンク設定が不正です: %w", err)
	}
	pipeline := ingestion.NewPipeline(repo, extract.New(), chunker, embedClient,
		ingestion.WithBatchSize(cfg.Ingestion.EmbeddingBatchSize),
		ingestion.WithTokenCounter(counter),
		ingestion.WithPipelineRecorder(m),
		ingestion.WithPipelineLogger(logger),
	)
	runner := ingestion.NewRunner(cfg.Ingestion.Workers, ingestion.WithRunnerLogger(logger))
	documents := ingestion.NewService(repo, blobs, pipeline, runner,
		ingestion.WithMaxUploadBytes(cfg.Ingestion.MaxUploadBytes),
		ingestion.WithServiceRecorder(m),
		ingestion.WithServiceLogger(logger),
	)

	// 検索・回答
	searchService := search.NewSearchService(searchRepo, queryEmbedder,
		search.WithDefaultThreshold(cfg.Search.MatchThreshold),
		search.WithDefaultTopK(cfg.Search.MatchCount),
		search.WithMaxTopK(cfg.Search.MaxMatchCount),
		search.WithSearchRecorder(m),
		search.WithSearchLogger(logger),
	)
	lang, err := ask.ParseLanguage(cfg.Answer.Language)
	if err != nil {
		return nil, err
	}
	synthesizer := ask.NewSynthesizer(providers.Completer,
		ask.WithLanguage(lang),
		ask.WithTemperature(cfg.Answer.Temperature),
		ask.WithMaxTokens(cfg.Answer.MaxTokens),
		ask.WithContextBudget(counter, cfg.Answer.MaxContextTokens),
		ask.WithSynthesizerLogger(logger),
	)
	askService := ask.NewAskService(searchService, synthesizer,
		ask.WithExcerptLength(cfg.Search.ExcerptLength),
		ask.WithAskLogger(logger),
	)

	return &ServiceContainer{
		Config:      cfg,
		Documents:   documents,
		Pipeline:    pipeline,
		Runner:      runner,
		Search:      searchService,
		Ask:         askService,
		Blobs:       blobs,
		Metrics:     m,
		ChunkReader: repo,
		logger:      logger,
	}, nil
}

// NewProviders は LLM_PROVIDER に応じたプロバイダを生成する
func NewProviders(ctx context.Context, cfg *config.Config) (*Providers, error) {
	switch cfg.LLM.Provider {
	case config.ProviderOpenAI:
		embedder, err := openai.NewEmbedder(cfg.LLM.OpenAIAPIKey,
			openai.WithEmbeddingModel(cfg.LLM.OpenAIEmbeddingModel),
			openai.WithEmbeddingDimension(cfg.LLM.EmbeddingDimension),
			openai.WithEmbeddingBaseURL(cfg.LLM.OpenAIBaseURL),
		)
		if err != nil {
			return nil, fmt.Errorf("Embedder の初期化に失敗しました: %w", err)
		}
		completer, err := openai.NewClient(cfg.LLM.OpenAIAPIKey,
			openai.WithModel(cfg.LLM.OpenAICompletionModel),
			openai.WithBaseURL(cfg.LLM.OpenAIBaseURL),
		)
		if err != nil {
			return nil, fmt.Errorf("LLM クライアントの初期化に失敗しました: %w", err)
		}
		return &Providers{
			Embedder:        embedder,
			Completer:       completer,
			EmbeddingModel:  embedder.ModelName(),
			CompletionModel: completer.ModelName(),
		}, nil

	case config.ProviderGemini:
		client, err := gemini.NewClient(ctx, cfg.LLM.GeminiAPIKey,
			gemini.WithEmbeddingModel(cfg.LLM.GeminiEmbeddingModel),
			gemini.WithCompletionModel(cfg.LLM.GeminiCompletionModel),
			gemini.WithDimension(cfg.LLM.EmbeddingDimension),
		)
		if err != nil {
			return nil, fmt.Errorf("Gemini クライアントの初期化に失敗しました: %w", err)
		}
		return &Providers{
			Embedder:        client,
			Completer:       client,
			EmbeddingModel:  client.EmbeddingModelName(),
			CompletionModel: client.ModelName(),
		}, nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLM.Provider)
	}
}

// HTTPServer はコンテナのサービスを使うHTTPサーバーを返す
func (c *ServiceContainer) HTTPServer() *httpapi.Server {
	opts := []httpapi.Option{
		httpapi.WithBlobReader(c.Blobs),
		httpapi.WithMetricsHandler(c.Metrics.Handler()),
		httpapi.WithMaxUploadBytes(c.Config.Ingestion.MaxUploadBytes),
		httpapi.WithLogger(c.logger),
	}
	if c.pinger != nil {
		opts = append(opts, httpapi.WithPinger(c.pinger))
	}
	return httpapi.NewServer(c.Documents, c.Ask, opts...)
}

// Logger はロガーを返す
func (c *ServiceContainer) Logger() *slog.Logger {
	return c.logger
}

// Shutdown は実行中のインジェストを待ってからデータベース接続を閉じる
func (c *ServiceContainer) Shutdown(ctx context.Context) error {
	var errs []error
	if c.Runner != nil {
		if err := c.Runner.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("インジェストの停止に失敗しました: %w", err))
		}
	}
	if c.database != nil {
		c.database.Close()
	}
	return errors.Join(errs...)
}

// Close はタイムアウト付きで Shutdown する
func (c *ServiceContainer) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := c.Shutdown(ctx); err != nil {
		c.logger.Warn("コンテナの停止に失敗しました", "error", err)
	}
}
