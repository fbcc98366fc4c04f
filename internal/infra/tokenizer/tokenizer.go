package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding は埋め込み・補完モデル共通のエンコーディング
const DefaultEncoding = "cl100k_base"

// Counter はトークン数をカウントする機能を提供する
type Counter struct {
	encoding *tiktoken.Tiktoken
}

// New は cl100k_base エンコーディングを使用する Counter を作成する
func New() (*Counter, error) {
	encoding, err := tiktoken.GetEncoding(DefaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding: %w", err)
	}

	return &Counter{
		encoding: encoding,
	}, nil
}

// CountTokens はテキストのトークン数をカウントする
func (c *Counter) CountTokens(text string) int {
	if c == nil || c.encoding == nil {
		return 0
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// TrimToTokenLimit は先頭から limit トークン分のテキストを返す
func (c *Counter) TrimToTokenLimit(text string, limit int) string {
	if c == nil || c.encoding == nil || limit <= 0 {
		return ""
	}
	tokens := c.encoding.Encode(text, nil, nil)
	if len(tokens) <= limit {
		return text
	}
	return c.encoding.Decode(tokens[:limit])
}
