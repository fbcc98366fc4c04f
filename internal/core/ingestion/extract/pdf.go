package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/samber/mo"

	"github.com/jinford/doc-rag/internal/core/document"
)

// PDFParser はページ単位でテキストを抽出する
type PDFParser struct{}

// NewPDFParser は新しい PDFParser を返す
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

func (p *PDFParser) FileType() document.FileType {
	return document.FileTypePDF
}

// Parse は PDF の各ページからプレーンテキストを取り出す。
// 破損ファイルではライブラリが panic することがあるため recover して ExtractionError に変換する
func (p *PDFParser) Parse(ctx context.Context, payload []byte) (result *Extraction, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &document.ExtractionError{Format: document.FileTypePDF, Err: fmt.Errorf("pdf parser panic: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, &document.ExtractionError{Format: document.FileTypePDF, Err: err}
	}

	numPages := reader.NumPage()
	result = &Extraction{
		Format:    document.FileTypePDF,
		PageCount: numPages,
	}

	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		for _, name := range page.Fonts() {
			f := page.Font(name)
			fonts[name] = &f
		}

		text, err := page.GetPlainText(fonts)
		if err != nil {
			return nil, &document.ExtractionError{Format: document.FileTypePDF, Err: fmt.Errorf("page %d: %w", i, err)}
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		result.Sections = append(result.Sections, Section{
			Text: text,
			Page: mo.Some(i),
		})
	}

	return result, nil
}

var _ Parser = (*PDFParser)(nil)
