package extract

import (
	"context"
	"fmt"

	"github.com/samber/mo"

	"github.com/jinford/doc-rag/internal/core/document"
)

// Section は位置情報付きの抽出テキスト。
// PDF はページ単位、Excel はシート単位、Word は文書全体で 1 件
type Section struct {
	Text  string
	Page  mo.Option[int]
	Sheet mo.Option[string]
}

// Extraction は 1 ファイル分の抽出結果
type Extraction struct {
	Format    document.FileType
	Sections  []Section
	PageCount int
}

// Empty は抽出テキストが存在しないかを返す
func (e *Extraction) Empty() bool {
	return len(e.Sections) == 0
}

// Parser は単一形式のテキスト抽出を行う
type Parser interface {
	Parse(ctx context.Context, payload []byte) (*Extraction, error)
	FileType() document.FileType
}

// Extractor は形式ごとの Parser を束ねる
type Extractor struct {
	parsers map[document.FileType]Parser
}

// New は PDF / Word / Excel の Parser を登録済みの Extractor を返す
func New() *Extractor {
	e := &Extractor{parsers: make(map[document.FileType]Parser)}
	e.Register(NewPDFParser())
	e.Register(NewDOCXParser())
	e.Register(NewXLSXParser())
	return e
}

// Register は Parser を登録する。同じ形式は上書きされる
func (e *Extractor) Register(p Parser) {
	e.parsers[p.FileType()] = p
}

// Extract は format に対応する Parser でテキストを抽出する
func (e *Extractor) Extract(ctx context.Context, format document.FileType, payload []byte) (*Extraction, error) {
	parser, ok := e.parsers[format]
	if !ok {
		return nil, &document.ValidationError{Field: "fileType", Message: fmt.Sprintf("no parser registered for %q", format)}
	}
	if len(payload) == 0 {
		return nil, &document.ExtractionError{Format: format, Err: fmt.Errorf("empty payload")}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return parser.Parse(ctx, payload)
}
