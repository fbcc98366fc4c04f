package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/samber/mo"
	"github.com/xuri/excelize/v2"

	"github.com/jinford/doc-rag/internal/core/document"
)

// XLSXParser はシートごとに行をカンマ区切りテキストへ平坦化する
type XLSXParser struct{}

// NewXLSXParser は新しい XLSXParser を返す
func NewXLSXParser() *XLSXParser {
	return &XLSXParser{}
}

func (p *XLSXParser) FileType() document.FileType {
	return document.FileTypeXLSX
}

// Parse はワークブック順にシートを走査し、空でないシートを 1 セクションずつ返す
func (p *XLSXParser) Parse(ctx context.Context, payload []byte) (*Extraction, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, &document.ExtractionError{Format: document.FileTypeXLSX, Err: err}
	}
	defer wb.Close()

	result := &Extraction{Format: document.FileTypeXLSX}
	for _, sheet := range wb.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rows, err := wb.GetRows(sheet)
		if err != nil {
			return nil, &document.ExtractionError{Format: document.FileTypeXLSX, Err: fmt.Errorf("sheet %q: %w", sheet, err)}
		}

		text, err := rowsToCSV(rows)
		if err != nil {
			return nil, &document.ExtractionError{Format: document.FileTypeXLSX, Err: fmt.Errorf("sheet %q: %w", sheet, err)}
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		result.Sections = append(result.Sections, Section{
			Text:  text,
			Sheet: mo.Some(sheet),
		})
	}

	return result, nil
}

func rowsToCSV(rows [][]string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var _ Parser = (*XLSXParser)(nil)
