package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jinford/doc-rag/internal/core/document"
)

const docxBodyPart = "word/document.xml"

var errMissingBody = errors.New("word/document.xml not found")

// DOCXParser は Office Open XML 形式の Word 文書から本文を抽出する
type DOCXParser struct{}

// NewDOCXParser は新しい DOCXParser を返す
func NewDOCXParser() *DOCXParser {
	return &DOCXParser{}
}

func (p *DOCXParser) FileType() document.FileType {
	return document.FileTypeDOCX
}

// Parse は段落を改行で連結した 1 セクションを返す。表のセル内段落も文書順に含める
func (p *DOCXParser) Parse(ctx context.Context, payload []byte) (*Extraction, error) {
	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		// 旧形式の .doc（OLE2）もここで失敗する
		return nil, &document.ExtractionError{Format: document.FileTypeDOCX, Err: fmt.Errorf("not an OOXML archive: %w", err)}
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBodyPart {
			body = f
			break
		}
	}
	if body == nil {
		return nil, &document.ExtractionError{Format: document.FileTypeDOCX, Err: errMissingBody}
	}

	rc, err := body.Open()
	if err != nil {
		return nil, &document.ExtractionError{Format: document.FileTypeDOCX, Err: err}
	}
	defer rc.Close()

	text, err := readParagraphs(ctx, rc)
	if err != nil {
		return nil, &document.ExtractionError{Format: document.FileTypeDOCX, Err: err}
	}

	result := &Extraction{Format: document.FileTypeDOCX}
	if strings.TrimSpace(text) != "" {
		result.Sections = []Section{{Text: text}}
	}
	return result, nil
}

// readParagraphs は document.xml をストリームで読み、w:p ごとに 1 行を生成する
func readParagraphs(ctx context.Context, r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		out     strings.Builder
		para    strings.Builder
		inText  bool
		written bool
	)

	flush := func() {
		line := para.String()
		para.Reset()
		if strings.TrimSpace(line) == "" {
			return
		}
		if written {
			out.WriteByte('\n')
		}
		out.WriteString(line)
		written = true
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("malformed document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				para.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	flush()

	return out.String(), nil
}

var _ Parser = (*DOCXParser)(nil)
