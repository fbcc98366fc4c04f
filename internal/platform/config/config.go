package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	Database  DatabaseConfig
	LLM       LLMConfig
	Ingestion IngestionConfig
	Search    SearchConfig
	Answer    AnswerConfig
	Storage   StorageConfig
	Server    ServerConfig
	Log       LogConfig
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN は接続文字列を返します
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// LLMConfig はモデルプロバイダ設定（Embeddings + 回答生成）
type LLMConfig struct {
	Provider              string // "openai" or "gemini"
	OpenAIAPIKey          string
	OpenAIBaseURL         string
	OpenAIEmbeddingModel  string
	OpenAICompletionModel string
	GeminiAPIKey          string
	GeminiEmbeddingModel  string
	GeminiCompletionModel string
	EmbeddingDimension    int
}

// IngestionConfig はチャンク分割と埋め込みの設定
type IngestionConfig struct {
	ChunkSize            int
	ChunkOverlap         int
	MinChunkLength       int
	EmbeddingBatchSize   int
	EmbeddingConcurrency int
	EmbeddingRateLimit   float64 // 1秒あたりのリクエスト数。0 なら無制限
	MaxUploadBytes       int64
	Workers              int
}

// SearchConfig は類似度検索の設定
type SearchConfig struct {
	MatchThreshold float64
	MatchCount     int
	MaxMatchCount  int
	QueryCacheSize int
	ExcerptLength  int
}

// AnswerConfig は回答生成の設定
type AnswerConfig struct {
	Language         string // "nl", "en" or "ja"
	Temperature      float64
	MaxTokens        int
	MaxContextTokens int
}

// StorageConfig はアップロード原本の保存先
type StorageConfig struct {
	Dir string
}

// ServerConfig はHTTPサーバー設定
type ServerConfig struct {
	Port int
}

// LogConfig はログ出力設定
type LogConfig struct {
	Level  string
	Format string
}

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// SchemaEmbeddingDimension は document_chunks.embedding 列の次元数。
// マイグレーションの vector(1536) と一致させること
const SchemaEmbeddingDimension = 1536

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "docrag"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "docrag"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		LLM: LLMConfig{
			Provider:              getEnv("LLM_PROVIDER", ProviderOpenAI),
			OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", ""),
			OpenAIEmbeddingModel:  getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			OpenAICompletionModel: getEnv("OPENAI_COMPLETION_MODEL", "gpt-4o-mini"),
			GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
			GeminiEmbeddingModel:  getEnv("GEMINI_EMBEDDING_MODEL", "gemini-embedding-001"),
			GeminiCompletionModel: getEnv("GEMINI_COMPLETION_MODEL", "gemini-2.5-flash"),
			EmbeddingDimension:    getEnvAsInt("EMBEDDING_DIMENSION", SchemaEmbeddingDimension),
		},
		Ingestion: IngestionConfig{
			ChunkSize:            getEnvAsInt("CHUNK_SIZE", 3000),
			ChunkOverlap:         getEnvAsInt("CHUNK_OVERLAP", 150),
			MinChunkLength:       getEnvAsInt("MIN_CHUNK_LENGTH", 50),
			EmbeddingBatchSize:   getEnvAsInt("EMBEDDING_BATCH_SIZE", 5),
			EmbeddingConcurrency: getEnvAsInt("EMBEDDING_CONCURRENCY", 5),
			EmbeddingRateLimit:   getEnvAsFloat("EMBEDDING_RATE_LIMIT", 0),
			MaxUploadBytes:       int64(getEnvAsInt("MAX_UPLOAD_BYTES", 50<<20)),
			Workers:              getEnvAsInt("INGESTION_WORKERS", 4),
		},
		Search: SearchConfig{
			MatchThreshold: getEnvAsFloat("MATCH_THRESHOLD", 0.5),
			MatchCount:     getEnvAsInt("MATCH_COUNT", 5),
			MaxMatchCount:  getEnvAsInt("MAX_MATCH_COUNT", 50),
			QueryCacheSize: getEnvAsInt("QUERY_CACHE_SIZE", 256),
			ExcerptLength:  getEnvAsInt("EXCERPT_LENGTH", 200),
		},
		Answer: AnswerConfig{
			Language:         getEnv("ANSWER_LANGUAGE", "nl"),
			Temperature:      getEnvAsFloat("ANSWER_TEMPERATURE", 0.3),
			MaxTokens:        getEnvAsInt("ANSWER_MAX_TOKENS", 1000),
			MaxContextTokens: getEnvAsInt("ANSWER_MAX_CONTEXT_TOKENS", 6000),
		},
		Storage: StorageConfig{
			Dir: getEnv("STORAGE_DIR", "/var/lib/doc-rag/blobs"),
		},
		Server: ServerConfig{
			Port: getEnvAsInt("HTTP_PORT", 8080),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// Validate は設定値の整合性を検証します
func (c *Config) Validate() error {
	var errs []error

	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("unsupported LLM_PROVIDER: %q", c.LLM.Provider))
	}
	if c.LLM.EmbeddingDimension != SchemaEmbeddingDimension {
		errs = append(errs, fmt.Errorf("EMBEDDING_DIMENSION must be %d to match the database schema: %d", SchemaEmbeddingDimension, c.LLM.EmbeddingDimension))
	}

	in := c.Ingestion
	if in.ChunkSize <= 0 {
		errs = append(errs, errors.New("CHUNK_SIZE must be positive"))
	}
	if in.ChunkOverlap < 0 || in.ChunkOverlap >= in.ChunkSize {
		errs = append(errs, fmt.Errorf("CHUNK_OVERLAP must be within [0, CHUNK_SIZE): %d", in.ChunkOverlap))
	}
	if in.MinChunkLength < 0 {
		errs = append(errs, errors.New("MIN_CHUNK_LENGTH must not be negative"))
	}
	if in.EmbeddingBatchSize <= 0 || in.EmbeddingConcurrency <= 0 || in.Workers <= 0 {
		errs = append(errs, errors.New("EMBEDDING_BATCH_SIZE, EMBEDDING_CONCURRENCY and INGESTION_WORKERS must be positive"))
	}
	if in.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}

	if c.Search.MatchThreshold < 0 || c.Search.MatchThreshold > 1 {
		errs = append(errs, fmt.Errorf("MATCH_THRESHOLD must be within [0, 1]: %v", c.Search.MatchThreshold))
	}
	if c.Search.MatchCount <= 0 || c.Search.MaxMatchCount < c.Search.MatchCount {
		errs = append(errs, errors.New("MATCH_COUNT must be positive and not exceed MAX_MATCH_COUNT"))
	}

	switch c.Answer.Language {
	case "nl", "en", "ja":
	default:
		errs = append(errs, fmt.Errorf("unsupported ANSWER_LANGUAGE: %q", c.Answer.Language))
	}

	return errors.Join(errs...)
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
