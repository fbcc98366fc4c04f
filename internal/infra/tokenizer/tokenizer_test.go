package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	counter, err := New()
	require.NoError(t, err)
	require.NotNil(t, counter)
	require.NotNil(t, counter.encoding)
}

func TestCounter_CountTokens(t *testing.T) {
	counter, err := New()
	require.NoError(t, err)

	tests := []struct {
		name     string
		text     string
		expected int
	}{
		{
			name:     "empty string",
			text:     "",
			expected: 0,
		},
		{
			name:     "simple english",
			text:     "Hello, World!",
			expected: 4,
		},
		{
			name:     "longer text",
			text:     "This is a test sentence with multiple words.",
			expected: 9,
		},
		{
			name:     "japanese text",
			text:     "これはテストです",
			expected: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count := counter.CountTokens(tt.text)
			assert.Equal(t, tt.expected, count, "token count mismatch for: %s", tt.text)
		})
	}
}

func TestCounter_TrimToTokenLimit(t *testing.T) {
	counter, err := New()
	require.NoError(t, err)

	text := strings.Repeat("De omzet steeg dit jaar. ", 50)

	trimmed := counter.TrimToTokenLimit(text, 10)
	assert.LessOrEqual(t, counter.CountTokens(trimmed), 10)
	assert.Less(t, len(trimmed), len(text))
	assert.True(t, strings.HasPrefix(text, trimmed))

	assert.Equal(t, "kort", counter.TrimToTokenLimit("kort", 10))
	assert.Empty(t, counter.TrimToTokenLimit(text, 0))
}

func TestCounter_NilSafe(t *testing.T) {
	var counter *Counter
	assert.Zero(t, counter.CountTokens("hello"))
}
