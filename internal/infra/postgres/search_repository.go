package postgres

import (
	"context"
	"fmt"

	pgvector "github.com/pgvector/pgvector-go"
	"github.com/samber/mo"

	"github.com/jinford/doc-rag/internal/core/document"
	"github.com/jinford/doc-rag/internal/core/search"
	"github.com/jinford/doc-rag/internal/infra/postgres/sqlc"
)

// SearchRepository は core/search.Repository を実装する PostgreSQL リポジトリ。
type SearchRepository struct {
	q sqlc.Querier
}

// NewSearchRepository は新しい SearchRepository を返す。
func NewSearchRepository(q sqlc.Querier) *SearchRepository {
	return &SearchRepository{q: q}
}

var _ search.Repository = (*SearchRepository)(nil)

// MatchChunks は match_documents 関数で類似度が threshold 以上のチャンクを類似度の高い順に最大 count 件返す
func (r *SearchRepository) MatchChunks(ctx context.Context, queryVector []float32, threshold float64, count int, fileType mo.Option[document.FileType]) ([]*document.SearchResult, error) {
	filter := mo.None[string]()
	if ft, ok := fileType.Get(); ok {
		filter = mo.Some(ft.String())
	}

	rows, err := r.q.MatchDocuments(ctx, sqlc.MatchDocumentsParams{
		QueryEmbedding: pgvector.NewVector(queryVector),
		MatchThreshold: threshold,
		MatchCount:     int32(count),
		FilterFileType: OptionStringToPgtext(filter),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to match documents: %w", err)
	}

	results := make([]*document.SearchResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, &document.SearchResult{
			ChunkID:    PgtypeToUUID(row.ID),
			DocumentID: PgtypeToUUID(row.DocumentID),
			Content:    row.Content,
			Similarity: row.Similarity,
			FileName:   row.FileName,
			FileType:   document.FileType(row.FileType),
			Title:      row.Title,
			PageNumber: PgInt4ToOption(row.PageNumber),
			SheetName:  PgtextToOption(row.SheetName),
		})
	}
	return results, nil
}
