package ingestion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/doc-rag/internal/core/document"
	"github.com/jinford/doc-rag/internal/core/ingestion/extract"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memoryRepository はテスト用のインメモリ Repository
type memoryRepository struct {
	mu       sync.Mutex
	docs     map[uuid.UUID]*document.Document
	chunks   []*document.Chunk
	statuses []document.Status

	createErr error
	getErr    error
	insertErr error
	// beforeInsert は InsertChunks の直前に呼ばれる
	beforeInsert func(chunks []*document.Chunk)
	insertCalls  int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{docs: make(map[uuid.UUID]*document.Document)}
}

func (r *memoryRepository) add(doc *document.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = doc
}

func (r *memoryRepository) CreateDocument(_ context.Context, params CreateDocumentParams) (*document.Document, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	now := time.Now()
	doc := &document.Document{
		ID:              uuid.New(),
		Title:           params.Title,
		FileName:        params.FileName,
		FileType:        params.FileType,
		FilePath:        params.FilePath,
		FileSize:        params.FileSize,
		UploadDate:      now,
		Status:          document.StatusUploaded,
		StatusChangedAt: now,
		Metadata:        maps.Clone(params.Metadata),
	}
	r.add(doc)
	return doc, nil
}

func (r *memoryRepository) GetDocument(_ context.Context, id uuid.UUID) (mo.Option[*document.Document], error) {
	if r.getErr != nil {
		return mo.None[*document.Document](), r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return mo.None[*document.Document](), nil
	}
	return mo.Some(doc), nil
}

func (r *memoryRepository) ListDocuments(context.Context) ([]*document.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	docs := make([]*document.Document, 0, len(r.docs))
	for _, doc := range r.docs {
		docs = append(docs, doc)
	}
	return docs, nil
}

func (r *memoryRepository) DeleteDocument(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return document.ErrDocumentNotFound
	}
	delete(r.docs, id)
	kept := r.chunks[:0]
	for _, c := range r.chunks {
		if c.DocumentID != id {
			kept = append(kept, c)
		}
	}
	r.chunks = kept
	return nil
}

func (r *memoryRepository) UpdateDocumentStatus(_ context.Context, id uuid.UUID, status document.Status, patch map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return document.ErrDocumentNotFound
	}
	doc.Status = status
	doc.Processed = status == document.StatusProcessed
	doc.StatusChangedAt = time.Now()
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any)
	}
	maps.Copy(doc.Metadata, patch)
	r.statuses = append(r.statuses, status)
	return nil
}

func (r *memoryRepository) InsertChunks(_ context.Context, chunks []*document.Chunk) error {
	if r.beforeInsert != nil {
		r.beforeInsert(chunks)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertCalls++
	if r.insertErr != nil {
		return r.insertErr
	}
	for _, c := range chunks {
		if _, ok := r.docs[c.DocumentID]; !ok {
			return document.ErrDocumentNotFound
		}
	}
	r.chunks = append(r.chunks, chunks...)
	return nil
}

func (r *memoryRepository) CountChunks(_ context.Context, id uuid.UUID) (int, error) {
	return len(r.chunksOf(id)), nil
}

func (r *memoryRepository) chunksOf(id uuid.UUID) []*document.Chunk {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*document.Chunk
	for _, c := range r.chunks {
		if c.DocumentID == id {
			out = append(out, c)
		}
	}
	return out
}

// memoryBlobStore はテスト用の BlobStore
type memoryBlobStore struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	putErr    error
	removeErr error
	removed   []string
}

func newMemoryBlobStore() *memoryBlobStore {
	return &memoryBlobStore{blobs: make(map[string][]byte)}
}

func (s *memoryBlobStore) Put(_ context.Context, key string, data []byte) (string, error) {
	if s.putErr != nil {
		return "", s.putErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := "blobs/" + key
	s.blobs[path] = data
	return path, nil
}

func (s *memoryBlobStore) Remove(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, path)
	if s.removeErr != nil {
		return s.removeErr
	}
	delete(s.blobs, path)
	return nil
}

// stubExtractor は固定の抽出結果を返す
type stubExtractor struct {
	extraction *extract.Extraction
	err        error
}

func (e *stubExtractor) Extract(_ context.Context, format document.FileType, _ []byte) (*extract.Extraction, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := *e.extraction
	if out.Format == "" {
		out.Format = format
	}
	return &out, nil
}

// stubEmbedder はバッチ内の位置を受け取る関数で失敗を注入できる BatchEmbedder
type stubEmbedder struct {
	mu      sync.Mutex
	calls   int
	texts   []string
	failFor func(text string) error
}

func (e *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if e.failFor != nil {
			if err := e.failFor(text); err != nil {
				return nil, &document.EmbeddingError{ChunkIndex: i, Err: err}
			}
		}
		e.texts = append(e.texts, text)
		vectors[i] = []float32{float32(len(text)), 1}
	}
	return vectors, nil
}

// stubRecorder は記録された値を保持する
type stubRecorder struct {
	mu       sync.Mutex
	uploaded int
	outcomes []string
	stored   int
}

func (r *stubRecorder) DocumentUploaded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploaded++
}

func (r *stubRecorder) IngestionFinished(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *stubRecorder) ChunksStored(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stored += n
}

// syncRunner は Submit されたタスクをその場で実行する
type syncRunner struct {
	err     error
	names   []string
	lastErr error
}

func (r *syncRunner) Submit(name string, task func(ctx context.Context) error) error {
	if r.err != nil {
		return r.err
	}
	r.names = append(r.names, name)
	r.lastErr = task(context.Background())
	return nil
}

// stubProcessor は Process の呼び出しを記録する
type stubProcessor struct {
	mu      sync.Mutex
	ids     []uuid.UUID
	payload []byte
}

func (p *stubProcessor) Process(_ context.Context, id uuid.UUID, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, id)
	p.payload = payload
	return nil
}

var errBoom = errors.New("boom")
