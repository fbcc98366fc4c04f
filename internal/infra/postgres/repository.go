package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/samber/mo"

	"github.com/jinford/doc-rag/internal/core/document"
	"github.com/jinford/doc-rag/internal/core/ingestion"
	"github.com/jinford/doc-rag/internal/infra/postgres/sqlc"
	"github.com/jinford/doc-rag/internal/platform/database"
)

// foreignKeyViolation は外部キー制約違反の SQLSTATE
const foreignKeyViolation = "23503"

// DB はクエリ実行とトランザクション開始ができる接続（pgxpool.Pool など）
type DB interface {
	sqlc.DBTX
	database.TxBeginner
}

// Repository は ingestion.Repository インターフェースを実装する PostgreSQL リポジトリです
type Repository struct {
	db DB
	q  *sqlc.Queries
}

// NewRepository は新しい Repository を作成します
func NewRepository(db DB) *Repository {
	return &Repository{db: db, q: sqlc.New(db)}
}

// コンパイル時の型チェック
var _ ingestion.Repository = (*Repository)(nil)

func (r *Repository) CreateDocument(ctx context.Context, params ingestion.CreateDocumentParams) (*document.Document, error) {
	metadata, err := MetadataToJSONB(params.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document metadata: %w", err)
	}

	row, err := r.q.CreateDocument(ctx, sqlc.CreateDocumentParams{
		Title:    params.Title,
		FileName: params.FileName,
		FileType: params.FileType.String(),
		FilePath: params.FilePath,
		FileSize: params.FileSize,
		Status:   string(document.StatusUploaded),
		Metadata: metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	return convertSQLCDocument(row), nil
}

func (r *Repository) GetDocument(ctx context.Context, id uuid.UUID) (mo.Option[*document.Document], error) {
	row, err := r.q.GetDocument(ctx, UUIDToPgtype(id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mo.None[*document.Document](), nil
		}
		return mo.None[*document.Document](), fmt.Errorf("failed to get document: %w", err)
	}

	return mo.Some(convertSQLCDocument(row)), nil
}

func (r *Repository) ListDocuments(ctx context.Context) ([]*document.Document, error) {
	rows, err := r.q.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	result := make([]*document.Document, 0, len(rows))
	for _, row := range rows {
		result = append(result, convertSQLCDocument(row))
	}
	return result, nil
}

func (r *Repository) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	affected, err := r.q.DeleteDocument(ctx, UUIDToPgtype(id))
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if affected == 0 {
		return document.ErrDocumentNotFound
	}
	return nil
}

func (r *Repository) UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status document.Status, patch map[string]any) error {
	metadataPatch, err := MetadataToJSONB(patch)
	if err != nil {
		return fmt.Errorf("failed to encode metadata patch: %w", err)
	}

	affected, err := r.q.UpdateDocumentStatus(ctx, sqlc.UpdateDocumentStatusParams{
		Status:        string(status),
		MetadataPatch: metadataPatch,
		ID:            UUIDToPgtype(id),
	})
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}
	if affected == 0 {
		return document.ErrDocumentNotFound
	}
	return nil
}

// InsertChunks はチャンクを 1 トランザクションで保存する。
// 親ドキュメントが削除済みで外部キー制約に違反した場合は document.ErrDocumentNotFound を返す
func (r *Repository) InsertChunks(ctx context.Context, chunks []*document.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	params := make([]sqlc.InsertChunkParams, 0, len(chunks))
	for _, c := range chunks {
		metadata, err := MetadataToJSONB(c.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode chunk metadata: %w", err)
		}
		params = append(params, sqlc.InsertChunkParams{
			DocumentID: UUIDToPgtype(c.DocumentID),
			Content:    c.Content,
			Embedding:  pgvector.NewVector(c.Embedding),
			ChunkIndex: int32(c.ChunkIndex),
			PageNumber: OptionIntToPgInt4(c.PageNumber),
			SheetName:  OptionStringToPgtext(c.SheetName),
			Metadata:   metadata,
		})
	}

	_, err := database.Transact(ctx, r.db, func(tx pgx.Tx) (struct{}, error) {
		qtx := r.q.WithTx(tx)
		for _, p := range params {
			if err := qtx.InsertChunk(ctx, p); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return fmt.Errorf("failed to insert chunks: %w", document.ErrDocumentNotFound)
		}
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	return nil
}

// CountChunks はドキュメントに紐づくチャンク数を返す
func (r *Repository) CountChunks(ctx context.Context, documentID uuid.UUID) (int, error) {
	count, err := r.q.CountChunksByDocument(ctx, UUIDToPgtype(documentID))
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return int(count), nil
}

// ListChunks はドキュメントのチャンクを chunk_index 順に返す
func (r *Repository) ListChunks(ctx context.Context, documentID uuid.UUID) ([]*document.Chunk, error) {
	rows, err := r.q.ListChunksByDocument(ctx, UUIDToPgtype(documentID))
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}

	result := make([]*document.Chunk, 0, len(rows))
	for _, row := range rows {
		result = append(result, &document.Chunk{
			ID:         PgtypeToUUID(row.ID),
			DocumentID: PgtypeToUUID(row.DocumentID),
			Content:    row.Content,
			Embedding:  row.Embedding.Slice(),
			ChunkIndex: int(row.ChunkIndex),
			PageNumber: PgInt4ToOption(row.PageNumber),
			SheetName:  PgtextToOption(row.SheetName),
			Metadata:   JSONBToMetadata(row.Metadata),
			CreatedAt:  PgtypeToTime(row.CreatedAt),
		})
	}
	return result, nil
}

func convertSQLCDocument(row sqlc.Document) *document.Document {
	return &document.Document{
		ID:              PgtypeToUUID(row.ID),
		Title:           row.Title,
		FileName:        row.FileName,
		FileType:        document.FileType(row.FileType),
		FilePath:        row.FilePath,
		FileSize:        row.FileSize,
		UploadDate:      PgtypeToTime(row.UploadDate),
		Processed:       row.Processed,
		Status:          document.Status(row.Status),
		StatusChangedAt: PgtypeToTime(row.StatusChangedAt),
		Metadata:        JSONBToMetadata(row.Metadata),
	}
}
