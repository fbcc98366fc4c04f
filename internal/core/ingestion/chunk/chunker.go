package chunk

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultSize はチャンクの目標文字数
	DefaultSize = 3000
	// DefaultOverlap は隣接チャンク間で重複させる文字数
	DefaultOverlap = 150
	// DefaultMinLength はトリム後にこの文字数未満のチャンクを破棄する閾値
	DefaultMinLength = 50
)

var (
	// ErrInvalidSize はチャンクサイズが不正な場合のエラー
	ErrInvalidSize = errors.New("chunk size must be positive")
	// ErrInvalidOverlap はオーバーラップが不正な場合のエラー
	ErrInvalidOverlap = errors.New("chunk overlap must be >= 0 and smaller than chunk size")
)

// Config はチャンク分割の設定
type Config struct {
	Size      int // 文字数（rune 単位）
	Overlap   int
	MinLength int
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Size:      DefaultSize,
		Overlap:   DefaultOverlap,
		MinLength: DefaultMinLength,
	}
}

// Validate は設定値を検証する
func (c Config) Validate() error {
	if c.Size <= 0 {
		return ErrInvalidSize
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidOverlap, c.Size, c.Overlap)
	}
	return nil
}

// Piece は分割されたテキスト断片。
// Start/End は元テキストにおける rune オフセット（トリム前の範囲）
type Piece struct {
	Index   int
	Content string
	Start   int
	End     int
}

// Chunker は固定長スライディングウィンドウでテキストを分割する
type Chunker struct {
	cfg Config
}

// New は新しい Chunker を作成する
func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MinLength < 0 {
		cfg.MinLength = 0
	}
	return &Chunker{cfg: cfg}, nil
}

// Windows はトリム・破棄前のウィンドウ範囲を返す。
// i 番目のウィンドウは i*(size-overlap) から始まり、末尾に到達したウィンドウで終了する
func (c *Chunker) Windows(length int) [][2]int {
	if length <= 0 {
		return nil
	}

	step := c.cfg.Size - c.cfg.Overlap
	var windows [][2]int
	for start := 0; start < length; start += step {
		end := min(start+c.cfg.Size, length)
		windows = append(windows, [2]int{start, end})
		if end == length {
			break
		}
	}
	return windows
}

// Split はテキストを分割し、最小長未満の断片を除外して 0 から振り直したインデックスを付与する
func (c *Chunker) Split(text string) []Piece {
	runes := []rune(text)

	pieces := make([]Piece, 0)
	for _, w := range c.Windows(len(runes)) {
		content := strings.TrimSpace(string(runes[w[0]:w[1]]))
		if len([]rune(content)) < c.cfg.MinLength || content == "" {
			continue
		}
		pieces = append(pieces, Piece{
			Index:   len(pieces),
			Content: content,
			Start:   w[0],
			End:     w[1],
		})
	}
	return pieces
}
