package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/doc-rag/internal/core/document"
	"github.com/jinford/doc-rag/internal/infra/postgres/sqlc"
)

var matchColumns = []string{
	"id", "document_id", "content", "similarity", "file_name", "file_type", "title", "page_number", "sheet_name",
}

func TestSearchRepository_MatchChunks(t *testing.T) {
	// Setup
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	chunkID, docID := uuid.New(), uuid.New()
	query := []float32{0.5, 0.5}
	mock.ExpectQuery("FROM match_documents").
		WithArgs(pgvector.NewVector(query), 0.5, int32(5), pgtype.Text{String: "pdf", Valid: true}).
		WillReturnRows(mock.NewRows(matchColumns).AddRow(
			UUIDToPgtype(chunkID), UUIDToPgtype(docID), "De omzet steeg met 12%.", 0.87,
			"jaarverslag.pdf", "pdf", "jaarverslag", pgtype.Int4{Int32: 3, Valid: true}, pgtype.Text{},
		))

	repo := NewSearchRepository(sqlc.New(mock))

	// Execute
	results, err := repo.MatchChunks(context.Background(), query, 0.5, 5, mo.Some(document.FileTypePDF))

	// Assert
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, chunkID, results[0].ChunkID)
	assert.Equal(t, docID, results[0].DocumentID)
	assert.InDelta(t, 0.87, results[0].Similarity, 1e-9)
	assert.Equal(t, mo.Some(3), results[0].PageNumber)
	assert.True(t, results[0].SheetName.IsAbsent())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchRepository_MatchChunks_NoFilterNoRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM match_documents").
		WithArgs(pgxmock.AnyArg(), 0.9, int32(3), pgtype.Text{}).
		WillReturnRows(mock.NewRows(matchColumns))

	repo := NewSearchRepository(sqlc.New(mock))
	results, err := repo.MatchChunks(context.Background(), []float32{1}, 0.9, 3, mo.None[document.FileType]())

	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NoError(t, mock.ExpectationsWereMet())
}
