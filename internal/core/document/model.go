package document

import (
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// FileType はアップロード可能なドキュメント形式を表す
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeDOCX FileType = "docx"
	FileTypeXLSX FileType = "xlsx"
)

// String は文字列表現を返す
func (f FileType) String() string {
	return string(f)
}

// Valid は既知の形式かどうかを返す
func (f FileType) Valid() bool {
	switch f {
	case FileTypePDF, FileTypeDOCX, FileTypeXLSX:
		return true
	}
	return false
}

// ParseFileType は文字列を FileType に変換する
func ParseFileType(s string) (FileType, error) {
	ft := FileType(strings.ToLower(strings.TrimSpace(s)))
	if !ft.Valid() {
		return "", &ValidationError{Field: "fileType", Message: "unsupported file type: " + s}
	}
	return ft, nil
}

// DetectFileType はファイル名の拡張子から形式を判定する
func DetectFileType(filename string) (FileType, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FileTypePDF, nil
	case ".docx", ".doc":
		return FileTypeDOCX, nil
	case ".xlsx", ".xls":
		return FileTypeXLSX, nil
	}
	return "", &ValidationError{Field: "fileType", Message: "unsupported file extension: " + filepath.Ext(filename)}
}

var acceptedContentTypes = map[string]struct{}{}

func init() {
	for _, ct := range []string{
		"",
		"application/octet-stream",
		"application/zip",
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	} {
		acceptedContentTypes[ct] = struct{}{}
	}
}

// ValidateContentType は申告された MIME タイプが受け付け可能かを検証する。
// 空や application/octet-stream は拡張子による判定に委ねる
func ValidateContentType(contentType string) error {
	mediaType := strings.TrimSpace(contentType)
	if mediaType != "" {
		parsed, _, err := mime.ParseMediaType(mediaType)
		if err != nil {
			return &ValidationError{Field: "contentType", Message: "malformed content type: " + contentType}
		}
		mediaType = parsed
	}
	if _, ok := acceptedContentTypes[mediaType]; !ok {
		return &ValidationError{Field: "contentType", Message: "unsupported content type: " + contentType}
	}
	return nil
}

// TitleFromFileName は拡張子を除いたファイル名を返す
func TitleFromFileName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Status はインジェスト処理の状態
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusExtracting Status = "extracting"
	StatusChunking   Status = "chunking"
	StatusEmbedding  Status = "embedding"
	StatusProcessed  Status = "processed"
	StatusFailed     Status = "failed"
)

// Terminal は終端状態かどうかを返す
func (s Status) Terminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

// Document はアップロードされたファイル1件を表す
type Document struct {
	ID              uuid.UUID      `json:"id"`
	Title           string         `json:"title"`
	FileName        string         `json:"fileName"`
	FileType        FileType       `json:"fileType"`
	FilePath        string         `json:"filePath"`
	FileSize        int64          `json:"fileSize"`
	UploadDate      time.Time      `json:"uploadDate"`
	Processed       bool           `json:"processed"`
	Status          Status         `json:"status"`
	StatusChangedAt time.Time      `json:"statusChangedAt"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// FailureReason は失敗時に記録されたエラー文字列を返す
func (d *Document) FailureReason() mo.Option[string] {
	if d.Metadata == nil {
		return mo.None[string]()
	}
	if reason, ok := d.Metadata[MetadataKeyError].(string); ok && reason != "" {
		return mo.Some(reason)
	}
	return mo.None[string]()
}

// Chunk は埋め込みベクトル付きのテキスト断片
type Chunk struct {
	ID         uuid.UUID         `json:"id"`
	DocumentID uuid.UUID         `json:"documentID"`
	Content    string            `json:"content"`
	Embedding  []float32         `json:"-"`
	ChunkIndex int               `json:"chunkIndex"`
	PageNumber mo.Option[int]    `json:"pageNumber"`
	SheetName  mo.Option[string] `json:"sheetName"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// SearchResult は類似度検索でヒットしたチャンク
type SearchResult struct {
	ChunkID    uuid.UUID         `json:"id"`
	DocumentID uuid.UUID         `json:"documentID"`
	Content    string            `json:"content"`
	Similarity float64           `json:"similarity"`
	FileName   string            `json:"fileName"`
	FileType   FileType          `json:"fileType"`
	Title      string            `json:"title"`
	PageNumber mo.Option[int]    `json:"pageNumber"`
	SheetName  mo.Option[string] `json:"sheetName"`
}

// メタデータキー
const (
	MetadataKeyError        = "error"
	MetadataKeyContentType  = "content_type"
	MetadataKeyDetectedMIME = "detected_mime"
	MetadataKeyTotalPages   = "total_pages"
	MetadataKeyTotalChunks  = "total_chunks"
	MetadataKeyChunkSize    = "chunk_size"
	MetadataKeyTokenCount   = "token_count"
	MetadataKeyCharStart    = "char_start"
	MetadataKeyCharEnd      = "char_end"
)
