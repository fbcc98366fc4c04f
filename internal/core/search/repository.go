package search

import (
	"context"

	"github.com/samber/mo"

	"github.com/jinford/doc-rag/internal/core/document"
)

// Repository は類似度検索のデータアクセスインターフェース
type Repository interface {
	// MatchChunks は類似度が threshold 以上のチャンクを類似度の高い順に最大 count 件返す
	MatchChunks(ctx context.Context, queryVector []float32, threshold float64, count int, fileType mo.Option[document.FileType]) ([]*document.SearchResult, error)
}
