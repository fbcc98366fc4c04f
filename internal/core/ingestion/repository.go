package ingestion

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/doc-rag/internal/core/document"
)

// CreateDocumentParams はドキュメント登録時のパラメータ
type CreateDocumentParams struct {
	Title    string
	FileName string
	FileType document.FileType
	FilePath string
	FileSize int64
	Metadata map[string]any
}

// Repository はドキュメントとチャンクの永続化インターフェース
// テスト時のモック用に消費者側で定義
type Repository interface {
	CreateDocument(ctx context.Context, params CreateDocumentParams) (*document.Document, error)
	GetDocument(ctx context.Context, id uuid.UUID) (mo.Option[*document.Document], error)
	// ListDocuments はアップロード日時の新しい順に返す
	ListDocuments(ctx context.Context) ([]*document.Document, error)
	// DeleteDocument は対象が存在しない場合 document.ErrDocumentNotFound を返す。チャンクはカスケード削除される
	DeleteDocument(ctx context.Context, id uuid.UUID) error
	// UpdateDocumentStatus は状態を遷移させ、patch をメタデータにマージする
	UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status document.Status, patch map[string]any) error
	// InsertChunks はチャンクを 1 トランザクションで書き込む。
	// 親ドキュメントが削除済みの場合は document.ErrDocumentNotFound を返す
	InsertChunks(ctx context.Context, chunks []*document.Chunk) error
	CountChunks(ctx context.Context, documentID uuid.UUID) (int, error)
}

// BlobStore はアップロードされた原本の保存先
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	Remove(ctx context.Context, path string) error
}
