package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/doc-rag/internal/core/document"
	"github.com/jinford/doc-rag/internal/core/ingestion"
)

var documentColumns = []string{
	"id", "title", "file_name", "file_type", "file_path", "file_size",
	"upload_date", "processed", "status", "status_changed_at", "metadata",
}

func newMockRepository(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRepository(mock), mock
}

func documentRow(mock pgxmock.PgxPoolIface, id uuid.UUID, uploadedAt time.Time) *pgxmock.Rows {
	ts := pgtype.Timestamptz{Time: uploadedAt, Valid: true}
	return mock.NewRows(documentColumns).AddRow(
		UUIDToPgtype(id), "jaarverslag", "jaarverslag.pdf", "pdf", "/blobs/1-jaarverslag.pdf", int64(2048),
		ts, false, "uploaded", ts, []byte(`{"content_type":"application/pdf"}`),
	)
}

func TestRepository_CreateDocument(t *testing.T) {
	// Setup
	repo, mock := newMockRepository(t)
	id := uuid.New()
	uploadedAt := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO documents").
		WithArgs("jaarverslag", "jaarverslag.pdf", "pdf", "/blobs/1-jaarverslag.pdf", int64(2048), "uploaded", pgxmock.AnyArg()).
		WillReturnRows(documentRow(mock, id, uploadedAt))

	// Execute
	doc, err := repo.CreateDocument(context.Background(), ingestion.CreateDocumentParams{
		Title:    "jaarverslag",
		FileName: "jaarverslag.pdf",
		FileType: document.FileTypePDF,
		FilePath: "/blobs/1-jaarverslag.pdf",
		FileSize: 2048,
		Metadata: map[string]any{document.MetadataKeyContentType: "application/pdf"},
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID)
	assert.Equal(t, document.FileTypePDF, doc.FileType)
	assert.Equal(t, document.StatusUploaded, doc.Status)
	assert.Equal(t, uploadedAt, doc.UploadDate)
	assert.Equal(t, "application/pdf", doc.Metadata[document.MetadataKeyContentType])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetDocument(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		id := uuid.New()
		mock.ExpectQuery("SELECT (.+) FROM documents").
			WithArgs(UUIDToPgtype(id)).
			WillReturnRows(documentRow(mock, id, time.Now().UTC()))

		docOpt, err := repo.GetDocument(context.Background(), id)

		require.NoError(t, err)
		doc, ok := docOpt.Get()
		require.True(t, ok)
		assert.Equal(t, "jaarverslag.pdf", doc.FileName)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		id := uuid.New()
		mock.ExpectQuery("SELECT (.+) FROM documents").
			WithArgs(UUIDToPgtype(id)).
			WillReturnRows(mock.NewRows(documentColumns))

		docOpt, err := repo.GetDocument(context.Background(), id)

		require.NoError(t, err)
		assert.True(t, docOpt.IsAbsent())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery("SELECT (.+) FROM documents").
			WillReturnError(errors.New("connection reset"))

		_, err := repo.GetDocument(context.Background(), uuid.New())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get document")
	})
}

func TestRepository_ListDocumentsOrdersByUploadDate(t *testing.T) {
	repo, mock := newMockRepository(t)
	newer, older := uuid.New(), uuid.New()
	now := time.Now().UTC()
	rows := documentRow(mock, newer, now)
	rows.AddRow(
		UUIDToPgtype(older), "begroting", "begroting.xlsx", "xlsx", "/blobs/0-begroting.xlsx", int64(10),
		pgtype.Timestamptz{Time: now.Add(-time.Hour), Valid: true}, true, "processed",
		pgtype.Timestamptz{Time: now, Valid: true}, []byte(`{}`),
	)
	mock.ExpectQuery("SELECT (.+) FROM documents\\s+ORDER BY upload_date DESC").
		WillReturnRows(rows)

	docs, err := repo.ListDocuments(context.Background())

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, newer, docs[0].ID)
	assert.Equal(t, older, docs[1].ID)
	assert.True(t, docs[1].Processed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_DeleteDocument(t *testing.T) {
	t.Run("deleted", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		id := uuid.New()
		mock.ExpectExec("DELETE FROM documents").
			WithArgs(UUIDToPgtype(id)).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, repo.DeleteDocument(context.Background(), id))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectExec("DELETE FROM documents").
			WithArgs(pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err := repo.DeleteDocument(context.Background(), uuid.New())

		assert.ErrorIs(t, err, document.ErrDocumentNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_UpdateDocumentStatus(t *testing.T) {
	t.Run("updated", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		id := uuid.New()
		mock.ExpectExec("UPDATE documents").
			WithArgs("failed", []byte(`{"error":"boom"}`), UUIDToPgtype(id)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.UpdateDocumentStatus(context.Background(), id, document.StatusFailed, map[string]any{
			document.MetadataKeyError: "boom",
		})

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil patch sends empty object", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		id := uuid.New()
		mock.ExpectExec("UPDATE documents").
			WithArgs("extracting", []byte(`{}`), UUIDToPgtype(id)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.UpdateDocumentStatus(context.Background(), id, document.StatusExtracting, nil))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("vanished document", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectExec("UPDATE documents").
			WithArgs("chunking", []byte(`{}`), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdateDocumentStatus(context.Background(), uuid.New(), document.StatusChunking, nil)

		assert.ErrorIs(t, err, document.ErrDocumentNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func testChunks(documentID uuid.UUID) []*document.Chunk {
	return []*document.Chunk{
		{
			DocumentID: documentID,
			Content:    "eerste stuk tekst",
			Embedding:  []float32{0.1, 0.2},
			ChunkIndex: 0,
			PageNumber: mo.Some(1),
		},
		{
			DocumentID: documentID,
			Content:    "tweede stuk tekst",
			Embedding:  []float32{0.3, 0.4},
			ChunkIndex: 1,
			SheetName:  mo.Some("Kosten"),
		},
	}
}

// anyChunkArgs は InsertChunk の全引数に一致する
func anyChunkArgs() []any {
	args := make([]any, 7)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestRepository_InsertChunks(t *testing.T) {
	// Setup
	repo, mock := newMockRepository(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO document_chunks").
		WithArgs(UUIDToPgtype(id), "eerste stuk tekst", pgxmock.AnyArg(), int32(0),
			pgtype.Int4{Int32: 1, Valid: true}, pgtype.Text{}, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO document_chunks").
		WithArgs(UUIDToPgtype(id), "tweede stuk tekst", pgxmock.AnyArg(), int32(1),
			pgtype.Int4{}, pgtype.Text{String: "Kosten", Valid: true}, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	// Execute
	err := repo.InsertChunks(context.Background(), testChunks(id))

	// Assert
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_InsertChunks_ForeignKeyViolation(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO document_chunks").
		WithArgs(anyChunkArgs()...).
		WillReturnError(&pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"})
	mock.ExpectRollback()

	err := repo.InsertChunks(context.Background(), testChunks(uuid.New()))

	assert.ErrorIs(t, err, document.ErrDocumentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_InsertChunks_OtherErrorRollsBack(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO document_chunks").
		WithArgs(anyChunkArgs()...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO document_chunks").
		WithArgs(anyChunkArgs()...).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.InsertChunks(context.Background(), testChunks(uuid.New()))

	require.Error(t, err)
	assert.False(t, document.IsNotFound(err))
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_InsertChunks_Empty(t *testing.T) {
	repo, mock := newMockRepository(t)

	require.NoError(t, repo.InsertChunks(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_CountChunks(t *testing.T) {
	repo, mock := newMockRepository(t)
	id := uuid.New()
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM document_chunks").
		WithArgs(UUIDToPgtype(id)).
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(int64(7)))

	count, err := repo.CountChunks(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
