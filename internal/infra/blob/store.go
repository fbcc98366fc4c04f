package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/jinford/doc-rag/internal/core/ingestion"
)

const (
	dirPermissions  = 0o755
	filePermissions = 0o644
)

// ErrInvalidKey はキーからファイル名を決められない場合のエラー
var ErrInvalidKey = errors.New("invalid blob key")

// Store はファイルシステム上にアップロード原本を保存する BlobStore
type Store struct {
	fs  afero.Fs
	dir string
}

// NewStore は dir 配下に保存する Store を作成する。dir が無ければ作成する
func NewStore(fs afero.Fs, dir string) (*Store, error) {
	if err := fs.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Store{fs: fs, dir: dir}, nil
}

var _ ingestion.BlobStore = (*Store)(nil)

// Put は data を key の名前で保存し、保存先のパスを返す。
// key のディレクトリ成分は取り除かれる
func (s *Store) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name, err := sanitize(key)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, name)
	if err := afero.WriteFile(s.fs, path, data, filePermissions); err != nil {
		return "", fmt.Errorf("failed to write blob %s: %w", name, err)
	}
	return path, nil
}

// Get は保存済みの内容を返す
func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resolved, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

// Remove は保存済みのファイルを削除する。存在しない場合は何もしない
func (s *Store) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resolved, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(resolved); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove blob: %w", err)
	}
	return nil
}

// resolve はストレージディレクトリ外を指すパスを拒否する
func (s *Store) resolve(path string) (string, error) {
	name, err := sanitize(path)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

func sanitize(key string) (string, error) {
	name := filepath.Base(strings.TrimSpace(key))
	if name == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return name, nil
}
