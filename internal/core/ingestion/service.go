package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/jinford/doc-rag/internal/core/document"
)

// DefaultMaxUploadBytes はアップロード可能な最大サイズ
const DefaultMaxUploadBytes int64 = 50 << 20

// StatusProcessing はアップロード直後に返す処理状態
const StatusProcessing = "processing"

// Processor はアップロード済みドキュメントのインジェストを実行する
type Processor interface {
	Process(ctx context.Context, documentID uuid.UUID, payload []byte) error
}

// TaskRunner はリクエストから切り離してタスクを実行する
type TaskRunner interface {
	Submit(name string, task func(ctx context.Context) error) error
}

// UploadParams はアップロードのパラメータ
type UploadParams struct {
	FileName    string
	ContentType string
	Payload     []byte
}

// UploadResult はアップロードの結果。インジェストはバックグラウンドで継続する
type UploadResult struct {
	Document *document.Document `json:"document"`
	Status   string             `json:"status"`
}

// Service はドキュメントのアップロード・一覧・削除のユースケースを提供する
type Service struct {
	repository     Repository
	blobs          BlobStore
	processor      Processor
	runner         TaskRunner
	recorder       Recorder
	maxUploadBytes int64
	now            func() time.Time
	logger         *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*Service)

// WithMaxUploadBytes はアップロード上限を設定する
func WithMaxUploadBytes(n int64) ServiceOption {
	return func(s *Service) {
		s.maxUploadBytes = n
	}
}

// WithServiceRecorder はメトリクス記録先を設定する
func WithServiceRecorder(r Recorder) ServiceOption {
	return func(s *Service) {
		s.recorder = r
	}
}

// WithClock は保存キーの生成に使う時計を差し替える
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithServiceLogger は Service にロガーを設定する
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService は新しい Service を作成する
func NewService(
	repository Repository,
	blobs BlobStore,
	processor Processor,
	runner TaskRunner,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		repository:     repository,
		blobs:          blobs,
		processor:      processor,
		runner:         runner,
		maxUploadBytes: DefaultMaxUploadBytes,
		now:            time.Now,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxUploadBytes <= 0 {
		s.maxUploadBytes = DefaultMaxUploadBytes
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Upload は原本とドキュメントレコードを保存し、インジェストを登録して即座に返す
func (s *Service) Upload(ctx context.Context, params UploadParams) (*UploadResult, error) {
	fileName := filepath.Base(strings.TrimSpace(params.FileName))
	if fileName == "" || fileName == "." || fileName == string(filepath.Separator) {
		return nil, &document.ValidationError{Field: "fileName", Message: "file name is required"}
	}
	if len(params.Payload) == 0 {
		return nil, &document.ValidationError{Field: "file", Message: "file is empty"}
	}
	if int64(len(params.Payload)) > s.maxUploadBytes {
		return nil, &document.ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("file exceeds maximum size of %d bytes", s.maxUploadBytes),
			Err:     document.ErrFileTooLarge,
		}
	}
	fileType, err := document.DetectFileType(fileName)
	if err != nil {
		return nil, err
	}
	if err := document.ValidateContentType(params.ContentType); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%d-%s", s.now().UnixMilli(), fileName)
	path, err := s.blobs.Put(ctx, key, params.Payload)
	if err != nil {
		return nil, &document.StorageError{Op: "put blob", Err: err}
	}

	doc, err := s.repository.CreateDocument(ctx, CreateDocumentParams{
		Title:    document.TitleFromFileName(fileName),
		FileName: fileName,
		FileType: fileType,
		FilePath: path,
		FileSize: int64(len(params.Payload)),
		Metadata: map[string]any{
			document.MetadataKeyContentType:  params.ContentType,
			document.MetadataKeyDetectedMIME: mimetype.Detect(params.Payload).String(),
		},
	})
	if err != nil {
		if rmErr := s.blobs.Remove(ctx, path); rmErr != nil {
			s.logger.Warn("保存済みファイルの削除に失敗", "path", path, "error", rmErr)
		}
		return nil, &document.StorageError{Op: "create document", Err: err}
	}

	if s.recorder != nil {
		s.recorder.DocumentUploaded()
	}
	s.logger.Info("ドキュメントをアップロード",
		"documentID", doc.ID,
		"fileName", doc.FileName,
		"fileType", doc.FileType,
		"size", doc.FileSize,
	)

	payload := params.Payload
	taskName := "ingest:" + doc.ID.String()
	if err := s.runner.Submit(taskName, func(ctx context.Context) error {
		return s.processor.Process(ctx, doc.ID, payload)
	}); err != nil {
		s.markFailed(ctx, doc.ID, err)
		return nil, &document.StorageError{Op: "submit ingestion", Err: err}
	}

	return &UploadResult{Document: doc, Status: StatusProcessing}, nil
}

func (s *Service) markFailed(ctx context.Context, id uuid.UUID, cause error) {
	patch := map[string]any{document.MetadataKeyError: cause.Error()}
	if err := s.repository.UpdateDocumentStatus(context.WithoutCancel(ctx), id, document.StatusFailed, patch); err != nil {
		s.logger.Error("失敗状態の書き込みに失敗", "documentID", id, "error", err)
	}
}

// List はアップロード日時の新しい順にドキュメントを返す
func (s *Service) List(ctx context.Context) ([]*document.Document, error) {
	docs, err := s.repository.ListDocuments(ctx)
	if err != nil {
		return nil, &document.StorageError{Op: "list documents", Err: err}
	}
	return docs, nil
}

// Get はドキュメントを返す。存在しない場合は document.ErrDocumentNotFound
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*document.Document, error) {
	docOpt, err := s.repository.GetDocument(ctx, id)
	if err != nil {
		return nil, &document.StorageError{Op: "get document", Err: err}
	}
	doc, ok := docOpt.Get()
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, document.ErrDocumentNotFound)
	}
	return doc, nil
}

// ChunkCount は保存済みのチャンク数を返す
func (s *Service) ChunkCount(ctx context.Context, id uuid.UUID) (int, error) {
	count, err := s.repository.CountChunks(ctx, id)
	if err != nil {
		return 0, &document.StorageError{Op: "count chunks", Err: err}
	}
	return count, nil
}

// Delete は原本とドキュメントを削除する。チャンクはカスケードで削除される。
// 原本の削除失敗はログに残してレコードの削除を続ける
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.blobs.Remove(ctx, doc.FilePath); err != nil {
		s.logger.Warn("原本ファイルの削除に失敗", "documentID", id, "path", doc.FilePath, "error", err)
	}

	if err := s.repository.DeleteDocument(ctx, id); err != nil {
		if document.IsNotFound(err) {
			return fmt.Errorf("document %s: %w", id, document.ErrDocumentNotFound)
		}
		return &document.StorageError{Op: "delete document", Err: err}
	}

	s.logger.Info("ドキュメントを削除", "documentID", id, "fileName", doc.FileName)
	return nil
}
