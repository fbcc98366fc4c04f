package chunk

// TokenCounter はチャンクのトークン数を数える
type TokenCounter interface {
	CountTokens(text string) int
}

// NopTokenCounter は常に 0 を返す TokenCounter
type NopTokenCounter struct{}

func (NopTokenCounter) CountTokens(string) int { return 0 }
