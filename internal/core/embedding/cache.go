package embedding

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Embedder は単一テキストの埋め込みを返す
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CachedEmbedder は正規化済みテキストをキーに埋め込み結果を LRU で保持する。
// 検索クエリの再入力に使う
type CachedEmbedder struct {
	next  Embedder
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedder は size 件まで保持する CachedEmbedder を作成する
func NewCachedEmbedder(next Embedder, size int) (*CachedEmbedder, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &CachedEmbedder{next: next, cache: cache}, nil
}

// Embed はキャッシュにあればそれを、なければ下位の Embedder の結果を返す
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := Normalize(text)
	if vector, ok := e.cache.Get(key); ok {
		return cloneVector(vector), nil
	}

	vector, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Add(key, cloneVector(vector))
	return vector, nil
}

// Len はキャッシュ件数を返す
func (e *CachedEmbedder) Len() int {
	return e.cache.Len()
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

var _ Embedder = (*CachedEmbedder)(nil)
var _ Embedder = (*Client)(nil)
