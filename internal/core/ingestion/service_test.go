package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/doc-rag/internal/core/document"
	"github.com/jinford/doc-rag/internal/core/ingestion/chunk"
	"github.com/jinford/doc-rag/internal/core/ingestion/extract"
)

var fixedNow = time.UnixMilli(1700000000123)

func newTestService(repo *memoryRepository, blobs *memoryBlobStore, processor Processor, runner TaskRunner, opts ...ServiceOption) *Service {
	opts = append([]ServiceOption{
		WithClock(func() time.Time { return fixedNow }),
		WithServiceLogger(discardLogger()),
	}, opts...)
	return NewService(repo, blobs, processor, runner, opts...)
}

func TestService_Upload_Success(t *testing.T) {
	// Setup
	ctx := context.Background()
	repo := newMemoryRepository()
	blobs := newMemoryBlobStore()
	processor := &stubProcessor{}
	runner := &syncRunner{}
	recorder := &stubRecorder{}
	service := newTestService(repo, blobs, processor, runner, WithServiceRecorder(recorder))
	payload := []byte("%PDF-1.4\n%fake")

	// Execute
	result, err := service.Upload(ctx, UploadParams{
		FileName:    "jaarverslag 2023.pdf",
		ContentType: "application/pdf",
		Payload:     payload,
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, result.Status)

	doc := result.Document
	assert.Equal(t, "jaarverslag 2023", doc.Title)
	assert.Equal(t, "jaarverslag 2023.pdf", doc.FileName)
	assert.Equal(t, document.FileTypePDF, doc.FileType)
	assert.Equal(t, "blobs/1700000000123-jaarverslag 2023.pdf", doc.FilePath)
	assert.Equal(t, int64(len(payload)), doc.FileSize)
	assert.Equal(t, document.StatusUploaded, doc.Status)
	assert.Equal(t, "application/pdf", doc.Metadata[document.MetadataKeyContentType])
	assert.Equal(t, "application/pdf", doc.Metadata[document.MetadataKeyDetectedMIME])

	assert.Contains(t, blobs.blobs, doc.FilePath)
	assert.Equal(t, []uuid.UUID{doc.ID}, processor.ids)
	assert.Equal(t, payload, processor.payload)
	assert.Equal(t, []string{"ingest:" + doc.ID.String()}, runner.names)
	assert.Equal(t, 1, recorder.uploaded)
}

func TestService_Upload_Validation(t *testing.T) {
	tests := []struct {
		name      string
		params    UploadParams
		wantField string
		tooLarge  bool
	}{
		{name: "missing name", params: UploadParams{FileName: " ", Payload: []byte("x")}, wantField: "fileName"},
		{name: "empty payload", params: UploadParams{FileName: "a.pdf"}, wantField: "file"},
		{name: "too large", params: UploadParams{FileName: "a.pdf", Payload: make([]byte, 11)}, wantField: "file", tooLarge: true},
		{name: "unsupported extension", params: UploadParams{FileName: "a.png", Payload: []byte("x")}, wantField: "fileType"},
		{name: "unsupported content type", params: UploadParams{FileName: "a.pdf", ContentType: "image/png", Payload: []byte("x")}, wantField: "contentType"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemoryRepository()
			blobs := newMemoryBlobStore()
			processor := &stubProcessor{}
			service := newTestService(repo, blobs, processor, &syncRunner{}, WithMaxUploadBytes(10))

			result, err := service.Upload(context.Background(), tt.params)

			require.Error(t, err)
			assert.Nil(t, result)
			var validationErr *document.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.wantField, validationErr.Field)
			assert.Equal(t, tt.tooLarge, errors.Is(err, document.ErrFileTooLarge))
			assert.Empty(t, blobs.blobs)
			assert.Empty(t, repo.docs)
			assert.Empty(t, processor.ids)
		})
	}
}

func TestService_Upload_PathComponentsStripped(t *testing.T) {
	repo := newMemoryRepository()
	blobs := newMemoryBlobStore()
	service := newTestService(repo, blobs, &stubProcessor{}, &syncRunner{})

	result, err := service.Upload(context.Background(), UploadParams{
		FileName: "../../etc/begroting.xlsx",
		Payload:  []byte("PK\x03\x04"),
	})

	require.NoError(t, err)
	assert.Equal(t, "begroting.xlsx", result.Document.FileName)
	assert.Equal(t, "blobs/1700000000123-begroting.xlsx", result.Document.FilePath)
}

func TestService_Upload_BlobFailure(t *testing.T) {
	repo := newMemoryRepository()
	blobs := newMemoryBlobStore()
	blobs.putErr = errBoom
	service := newTestService(repo, blobs, &stubProcessor{}, &syncRunner{})

	_, err := service.Upload(context.Background(), UploadParams{FileName: "a.docx", Payload: []byte("x")})

	var storageErr *document.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "put blob", storageErr.Op)
	assert.Empty(t, repo.docs)
}

func TestService_Upload_RecordFailureRemovesBlob(t *testing.T) {
	// Setup
	repo := newMemoryRepository()
	repo.createErr = errBoom
	blobs := newMemoryBlobStore()
	processor := &stubProcessor{}
	service := newTestService(repo, blobs, processor, &syncRunner{})

	// Execute
	_, err := service.Upload(context.Background(), UploadParams{FileName: "a.docx", Payload: []byte("x")})

	// Assert
	var storageErr *document.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "create document", storageErr.Op)
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, blobs.blobs)
	assert.Equal(t, []string{"blobs/1700000000123-a.docx"}, blobs.removed)
	assert.Empty(t, processor.ids)
}

func TestService_Upload_SubmitFailureMarksFailed(t *testing.T) {
	repo := newMemoryRepository()
	service := newTestService(repo, newMemoryBlobStore(), &stubProcessor{}, &syncRunner{err: ErrRunnerClosed})

	_, err := service.Upload(context.Background(), UploadParams{FileName: "a.docx", Payload: []byte("x")})

	require.ErrorIs(t, err, ErrRunnerClosed)
	docs, listErr := service.List(context.Background())
	require.NoError(t, listErr)
	require.Len(t, docs, 1)
	assert.Equal(t, document.StatusFailed, docs[0].Status)
	assert.Contains(t, docs[0].FailureReason().OrEmpty(), "runner is closed")
}

func TestService_Delete(t *testing.T) {
	// Setup
	ctx := context.Background()
	repo := newMemoryRepository()
	blobs := newMemoryBlobStore()
	doc := newTestDocument(repo, document.FileTypePDF)
	doc.FilePath = "blobs/1-report.pdf"
	blobs.blobs[doc.FilePath] = []byte("x")
	repo.chunks = []*document.Chunk{
		{ID: uuid.New(), DocumentID: doc.ID, ChunkIndex: 0},
		{ID: uuid.New(), DocumentID: doc.ID, ChunkIndex: 1},
	}
	other := newTestDocument(repo, document.FileTypeDOCX)
	service := newTestService(repo, blobs, &stubProcessor{}, &syncRunner{})

	// Execute
	err := service.Delete(ctx, doc.ID)

	// Assert
	require.NoError(t, err)
	assert.Empty(t, blobs.blobs)
	assert.Empty(t, repo.chunksOf(doc.ID))
	docs, err := service.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, other.ID, docs[0].ID)

	// 2 回目は not found
	err = service.Delete(ctx, doc.ID)
	assert.True(t, document.IsNotFound(err))
}

func TestService_Delete_BlobFailureStillDeletesRecord(t *testing.T) {
	repo := newMemoryRepository()
	blobs := newMemoryBlobStore()
	blobs.removeErr = errBoom
	doc := newTestDocument(repo, document.FileTypePDF)
	service := newTestService(repo, blobs, &stubProcessor{}, &syncRunner{})

	require.NoError(t, service.Delete(context.Background(), doc.ID))

	_, err := service.Get(context.Background(), doc.ID)
	assert.True(t, document.IsNotFound(err))
}

func TestService_UploadThenIngest(t *testing.T) {
	// Setup
	ctx := context.Background()
	repo := newMemoryRepository()
	blobs := newMemoryBlobStore()
	extractor := &stubExtractor{extraction: &extract.Extraction{
		Sections: []extract.Section{{Text: letters(10000)}},
	}}
	pipeline := NewPipeline(repo, extractor, newTestChunker(t, chunk.DefaultConfig()), &stubEmbedder{},
		WithPipelineLogger(discardLogger()),
	)
	runner := NewRunner(2, WithRunnerLogger(discardLogger()))
	service := newTestService(repo, blobs, pipeline, runner)

	// Execute
	result, err := service.Upload(ctx, UploadParams{FileName: "notulen.docx", Payload: []byte("PK")})
	require.NoError(t, err)
	runner.Wait()

	// Assert
	doc, err := service.Get(ctx, result.Document.ID)
	require.NoError(t, err)
	assert.True(t, doc.Processed)
	count, err := service.ChunkCount(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}
