package ask

import (
	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/doc-rag/internal/core/document"
)

// AskParams は質問応答のパラメータを表す
type AskParams struct {
	Query    string                       // ユーザーの質問文
	FileType mo.Option[document.FileType] // 形式で絞り込む
}

// AskResult は質問応答の結果を表す
type AskResult struct {
	Answer  string   `json:"answer"`  // LLMによる回答
	Sources []Source `json:"sources"` // 参照したチャンク
}

// Source は回答の根拠となったチャンクを表す
type Source struct {
	ChunkID    uuid.UUID         `json:"id"`
	DocumentID uuid.UUID         `json:"documentID"`
	Title      string            `json:"title"`
	FileName   string            `json:"fileName"`
	FileType   document.FileType `json:"fileType"`
	Excerpt    string            `json:"excerpt"`
	Similarity float64           `json:"similarity"`
	PageNumber mo.Option[int]    `json:"pageNumber"`
	SheetName  mo.Option[string] `json:"sheetName"`
}

// Excerpt は content の先頭 limit 文字を返す。切り詰めた場合は "..." を付ける
func Excerpt(content string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "..."
}

func newSource(result *document.SearchResult, excerptLength int) Source {
	return Source{
		ChunkID:    result.ChunkID,
		DocumentID: result.DocumentID,
		Title:      result.Title,
		FileName:   result.FileName,
		FileType:   result.FileType,
		Excerpt:    Excerpt(result.Content, excerptLength),
		Similarity: result.Similarity,
		PageNumber: result.PageNumber,
		SheetName:  result.SheetName,
	}
}
