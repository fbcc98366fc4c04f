package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/doc-rag/internal/core/document"
	"github.com/jinford/doc-rag/internal/core/ingestion/chunk"
	"github.com/jinford/doc-rag/internal/core/ingestion/extract"
)

const (
	// DefaultEmbeddingBatchSize は 1 回の EmbedBatch に渡すチャンク数
	DefaultEmbeddingBatchSize = 5
	// DefaultStatusTimeout は失敗状態を書き込む際のタイムアウト
	DefaultStatusTimeout = 10 * time.Second

	// pageSeparator は PDF のページを連結する区切り
	pageSeparator = "\n\n"
)

// パイプラインの結果区分（メトリクスのラベル）
const (
	OutcomeProcessed = "processed"
	OutcomeFailed    = "failed"
	OutcomeAborted   = "aborted"
)

var errNoExtractableText = errors.New("no extractable text")

// TextExtractor はファイル形式に応じたテキスト抽出を行う
type TextExtractor interface {
	Extract(ctx context.Context, format document.FileType, payload []byte) (*extract.Extraction, error)
}

// BatchEmbedder は複数テキストを入力順に埋め込む
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Recorder はインジェストのメトリクスを記録する
type Recorder interface {
	DocumentUploaded()
	IngestionFinished(outcome string)
	ChunksStored(n int)
}

// Pipeline はアップロード済みドキュメントを抽出・分割・埋め込み・保存する
type Pipeline struct {
	repository   Repository
	extractor    TextExtractor
	chunker      *chunk.Chunker
	embedder     BatchEmbedder
	tokenCounter chunk.TokenCounter
	recorder     Recorder
	batchSize    int
	logger       *slog.Logger
}

// PipelineOption は Pipeline のオプション設定
type PipelineOption func(*Pipeline)

// WithBatchSize は埋め込みバッチサイズを設定する
func WithBatchSize(n int) PipelineOption {
	return func(p *Pipeline) {
		p.batchSize = n
	}
}

// WithTokenCounter はチャンクのトークン数計測に使うカウンタを設定する
func WithTokenCounter(tc chunk.TokenCounter) PipelineOption {
	return func(p *Pipeline) {
		p.tokenCounter = tc
	}
}

// WithPipelineRecorder はメトリクス記録先を設定する
func WithPipelineRecorder(r Recorder) PipelineOption {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// WithPipelineLogger は Pipeline にロガーを設定する
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline は新しい Pipeline を作成する
func NewPipeline(
	repository Repository,
	extractor TextExtractor,
	chunker *chunk.Chunker,
	embedder BatchEmbedder,
	opts ...PipelineOption,
) *Pipeline {
	p := &Pipeline{
		repository:   repository,
		extractor:    extractor,
		chunker:      chunker,
		embedder:     embedder,
		tokenCounter: chunk.NopTokenCounter{},
		batchSize:    DefaultEmbeddingBatchSize,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.batchSize <= 0 {
		p.batchSize = DefaultEmbeddingBatchSize
	}
	if p.tokenCounter == nil {
		p.tokenCounter = chunk.NopTokenCounter{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// plannedChunk は埋め込み前のチャンク
type plannedChunk struct {
	content string
	start   int
	end     int
	page    mo.Option[int]
	sheet   mo.Option[string]
}

// Process は 1 ドキュメントのインジェストを実行する。
// 途中でドキュメントが削除された場合は何もせず nil を返す。
// それ以外の失敗はドキュメントを failed にしたうえでエラーを返す
func (p *Pipeline) Process(ctx context.Context, documentID uuid.UUID, payload []byte) error {
	startTime := time.Now()
	logger := p.logger.With("documentID", documentID)

	docOpt, err := p.repository.GetDocument(ctx, documentID)
	if err != nil {
		err = &document.StorageError{Op: "get document", Err: err}
		p.fail(ctx, logger, documentID, err)
		return err
	}
	doc, ok := docOpt.Get()
	if !ok {
		logger.Info("ドキュメントが削除済みのためインジェストを中止")
		p.finish(OutcomeAborted)
		return nil
	}

	totalChunks, err := p.run(ctx, logger, doc, payload)
	if err != nil {
		if document.IsNotFound(err) {
			logger.Info("処理中にドキュメントが削除されたためインジェストを中止")
			p.finish(OutcomeAborted)
			return nil
		}
		p.fail(ctx, logger, documentID, err)
		return err
	}

	p.finish(OutcomeProcessed)
	logger.Info("インジェスト完了",
		"fileName", doc.FileName,
		"chunks", totalChunks,
		"duration", time.Since(startTime),
	)
	return nil
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, doc *document.Document, payload []byte) (int, error) {
	if err := p.transition(ctx, logger, doc.ID, document.StatusExtracting, nil); err != nil {
		return 0, err
	}

	extraction, err := p.extractor.Extract(ctx, doc.FileType, payload)
	if err != nil {
		return 0, err
	}
	if extraction.Empty() {
		return 0, &document.ExtractionError{Format: doc.FileType, Err: errNoExtractableText}
	}

	if err := p.transition(ctx, logger, doc.ID, document.StatusChunking, nil); err != nil {
		return 0, err
	}
	planned := p.plan(extraction)
	logger.Info("チャンク分割完了", "sections", len(extraction.Sections), "chunks", len(planned))

	if err := p.transition(ctx, logger, doc.ID, document.StatusEmbedding, nil); err != nil {
		return 0, err
	}

	for start := 0; start < len(planned); start += p.batchSize {
		end := min(start+p.batchSize, len(planned))
		if err := p.storeBatch(ctx, doc.ID, planned, start, end); err != nil {
			return 0, err
		}
		logger.Info("チャンクを保存", "processed", end, "total", len(planned))
	}

	if len(planned) == 0 {
		logger.Warn("最小長以上のチャンクが得られなかった")
	}

	patch := map[string]any{
		document.MetadataKeyTotalChunks: len(planned),
	}
	if extraction.PageCount > 0 {
		patch[document.MetadataKeyTotalPages] = extraction.PageCount
	}
	if err := p.transition(ctx, logger, doc.ID, document.StatusProcessed, patch); err != nil {
		return 0, err
	}
	return len(planned), nil
}

// storeBatch は planned[start:end] を並行に埋め込み、1 トランザクションで保存する
func (p *Pipeline) storeBatch(ctx context.Context, documentID uuid.UUID, planned []plannedChunk, start, end int) error {
	batch := planned[start:end]
	texts := make([]string, len(batch))
	for i, pc := range batch {
		texts[i] = pc.content
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		var embErr *document.EmbeddingError
		if errors.As(err, &embErr) {
			return &document.EmbeddingError{ChunkIndex: start + embErr.ChunkIndex, Err: embErr.Err}
		}
		return &document.EmbeddingError{ChunkIndex: start, Err: err}
	}
	if len(vectors) != len(batch) {
		return &document.EmbeddingError{
			ChunkIndex: start,
			Err:        fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(batch)),
		}
	}

	chunks := make([]*document.Chunk, len(batch))
	for i, pc := range batch {
		chunks[i] = &document.Chunk{
			DocumentID: documentID,
			Content:    pc.content,
			Embedding:  vectors[i],
			ChunkIndex: start + i,
			PageNumber: pc.page,
			SheetName:  pc.sheet,
			Metadata: map[string]any{
				document.MetadataKeyChunkSize:   len(pc.content),
				document.MetadataKeyTotalChunks: len(planned),
				document.MetadataKeyTokenCount:  p.tokenCounter.CountTokens(pc.content),
				document.MetadataKeyCharStart:   pc.start,
				document.MetadataKeyCharEnd:     pc.end,
			},
		}
	}

	if err := p.repository.InsertChunks(ctx, chunks); err != nil {
		if document.IsNotFound(err) {
			return err
		}
		return &document.StorageError{Op: "insert chunks", Err: err}
	}
	if p.recorder != nil {
		p.recorder.ChunksStored(len(chunks))
	}
	return nil
}

// plan は抽出結果をチャンクに分割する。
// Excel はシートごとに分割し、それ以外はセクションを連結して 1 回で分割する。
// 連結時の各チャンクのページは開始位置を含むセクションのページになる
func (p *Pipeline) plan(extraction *extract.Extraction) []plannedChunk {
	planned := make([]plannedChunk, 0)

	if extraction.Format == document.FileTypeXLSX {
		for _, section := range extraction.Sections {
			for _, piece := range p.chunker.Split(section.Text) {
				planned = append(planned, plannedChunk{
					content: piece.Content,
					start:   piece.Start,
					end:     piece.End,
					page:    section.Page,
					sheet:   section.Sheet,
				})
			}
		}
		return planned
	}

	var sb strings.Builder
	starts := make([]int, len(extraction.Sections))
	offset := 0
	for i, section := range extraction.Sections {
		if i > 0 {
			sb.WriteString(pageSeparator)
			offset += len([]rune(pageSeparator))
		}
		starts[i] = offset
		sb.WriteString(section.Text)
		offset += len([]rune(section.Text))
	}

	for _, piece := range p.chunker.Split(sb.String()) {
		// piece.Start を含む最後のセクション
		idx := sort.Search(len(starts), func(i int) bool { return starts[i] > piece.Start }) - 1
		idx = max(idx, 0)
		section := extraction.Sections[idx]
		planned = append(planned, plannedChunk{
			content: piece.Content,
			start:   piece.Start,
			end:     piece.End,
			page:    section.Page,
			sheet:   section.Sheet,
		})
	}
	return planned
}

func (p *Pipeline) transition(ctx context.Context, logger *slog.Logger, id uuid.UUID, status document.Status, patch map[string]any) error {
	if err := p.repository.UpdateDocumentStatus(ctx, id, status, patch); err != nil {
		if document.IsNotFound(err) {
			return err
		}
		return &document.StorageError{Op: "update status", Err: err}
	}
	logger.Debug("状態を更新", "status", status)
	return nil
}

// fail はドキュメントを failed にしてエラー内容をメタデータに残す。
// 呼び出し元のコンテキストがキャンセル済みでも書き込めるよう切り離したコンテキストを使う
func (p *Pipeline) fail(ctx context.Context, logger *slog.Logger, id uuid.UUID, cause error) {
	logger.Error("インジェスト失敗", "error", cause)
	p.finish(OutcomeFailed)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultStatusTimeout)
	defer cancel()

	patch := map[string]any{document.MetadataKeyError: cause.Error()}
	if err := p.repository.UpdateDocumentStatus(writeCtx, id, document.StatusFailed, patch); err != nil {
		if document.IsNotFound(err) {
			return
		}
		logger.Error("失敗状態の書き込みに失敗", "error", err)
	}
}

func (p *Pipeline) finish(outcome string) {
	if p.recorder != nil {
		p.recorder.IngestionFinished(outcome)
	}
}
