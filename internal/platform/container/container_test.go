package container

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/doc-rag/internal/core/ask"
	"github.com/jinford/doc-rag/internal/platform/config"
	"github.com/jinford/doc-rag/internal/platform/metrics"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1}, nil
}

type stubCompleter struct{}

func (stubCompleter) Complete(ctx context.Context, req ask.CompletionRequest) (string, error) {
	return "ok", nil
}

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.Dir = "/blobs"
	return cfg
}

func TestBuild(t *testing.T) {
	// Setup
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	fs := afero.NewMemMapFs()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Execute
	c, err := Build(context.Background(), loadConfig(t), mock,
		WithContainerLogger(logger),
		WithContainerProviders(Providers{Embedder: stubEmbedder{}, Completer: stubCompleter{}}),
		WithContainerFs(fs),
		WithContainerMetrics(metrics.New()),
	)

	// Assert
	require.NoError(t, err)
	assert.NotNil(t, c.Documents)
	assert.NotNil(t, c.Pipeline)
	assert.NotNil(t, c.Search)
	assert.NotNil(t, c.Ask)
	assert.NotNil(t, c.HTTPServer().Handler())

	exists, err := afero.DirExists(fs, "/blobs")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, c.Shutdown(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuild_InvalidConfig(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cfg := loadConfig(t)
	cfg.Ingestion.ChunkOverlap = cfg.Ingestion.ChunkSize

	_, err = Build(context.Background(), cfg, mock,
		WithContainerProviders(Providers{Embedder: stubEmbedder{}, Completer: stubCompleter{}}),
		WithContainerFs(afero.NewMemMapFs()),
	)
	assert.Error(t, err)
}

func TestNewProviders(t *testing.T) {
	tests := []struct {
		name           string
		mutate         func(*config.Config)
		wantEmbedModel string
		wantErr        bool
	}{
		{
			name: "openai",
			mutate: func(c *config.Config) {
				c.LLM.Provider = config.ProviderOpenAI
				c.LLM.OpenAIAPIKey = "sk-test"
				c.LLM.OpenAIEmbeddingModel = "text-embedding-3-small"
			},
			wantEmbedModel: "text-embedding-3-small",
		},
		{name: "openai without key", mutate: func(c *config.Config) { c.LLM.Provider = config.ProviderOpenAI; c.LLM.OpenAIAPIKey = "" }, wantErr: true},
		{
			name: "gemini",
			mutate: func(c *config.Config) {
				c.LLM.Provider = config.ProviderGemini
				c.LLM.GeminiAPIKey = "test-key"
				c.LLM.GeminiEmbeddingModel = "gemini-embedding-001"
			},
			wantEmbedModel: "gemini-embedding-001",
		},
		{name: "gemini without key", mutate: func(c *config.Config) { c.LLM.Provider = config.ProviderGemini; c.LLM.GeminiAPIKey = "" }, wantErr: true},
		{name: "unknown", mutate: func(c *config.Config) { c.LLM.Provider = "anthropic" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadConfig(t)
			tt.mutate(cfg)

			providers, err := NewProviders(context.Background(), cfg)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, providers.Embedder)
			assert.NotNil(t, providers.Completer)
			assert.Equal(t, tt.wantEmbedModel, providers.EmbeddingModel)
			assert.NotEmpty(t, providers.CompletionModel)
		})
	}
}
