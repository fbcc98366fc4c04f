package document

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentNotFound は対象ドキュメントが存在しない場合のエラー
	ErrDocumentNotFound = errors.New("document not found")
	// ErrFileTooLarge はアップロード上限を超えた場合のエラー
	ErrFileTooLarge = errors.New("file too large")
)

// ValidationError は入力不正を表す。呼び出し元に即座に返される
type ValidationError struct {
	Field   string
	Message string
	Err     error // 分類用のセンチネル（任意）
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ExtractionError はファイル形式の解析失敗を表す
type ExtractionError struct {
	Format FileType
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract %s: %v", e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// EmbeddingError はプロバイダ呼び出しの失敗を表す。
// ChunkIndex はクエリ埋め込みの場合 -1
type EmbeddingError struct {
	ChunkIndex int
	Err        error
}

func (e *EmbeddingError) Error() string {
	if e.ChunkIndex < 0 {
		return fmt.Sprintf("embedding failed: %v", e.Err)
	}
	return fmt.Sprintf("embedding failed at chunk %d: %v", e.ChunkIndex, e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// StorageError は blob ストアまたは DB の書き込み失敗を表す
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsValidation は err が ValidationError を含むかを返す
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound は err が ErrDocumentNotFound を含むかを返す
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDocumentNotFound)
}

// IsEmbedding は err が EmbeddingError を含むかを返す
func IsEmbedding(err error) bool {
	var ee *EmbeddingError
	return errors.As(err, &ee)
}
