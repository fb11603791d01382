package markov

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectTokens(t *testing.T, tok Tokenizer, text string) []string {
	t.Helper()
	stream := tok.NewStream(strings.NewReader(text))
	var out []string
	for {
		token, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, token.Text)
	}
}

func TestDefaultTokenizer(t *testing.T) {
	testCases := []struct {
		name     string
		opts     []Option
		input    string
		expected []string
	}{
		{
			name:     "Whitespace split",
			input:    "one  fish\ttwo\n\n  fish",
			expected: []string{"one", "fish", "two", "fish"},
		},
		{
			name:     "Punctuation stays attached",
			input:    "Hello, world!",
			expected: []string{"Hello,", "world!"},
		},
		{
			name:     "Hyphen fragments merge by default",
			input:    "a well -known fact",
			expected: []string{"a", "well-known", "fact"},
		},
		{
			name:     "Hyphen merging disabled",
			opts:     []Option{WithMergeHyphens(false)},
			input:    "a well -known fact",
			expected: []string{"a", "well", "-known", "fact"},
		},
		{
			name:     "Apostrophe merging",
			opts:     []Option{WithMergeApostrophes(true)},
			input:    "I 'm here",
			expected: []string{"I'm", "here"},
		},
		{
			name:     "Newline token",
			opts:     []Option{WithNewlineToken("<nl>")},
			input:    "a b\n\nc\n",
			expected: []string{"a", "b", "<nl>", "c", "<nl>"},
		},
		{
			name:     "Sentence markers",
			opts:     []Option{WithSentenceMarkers(true)},
			input:    "Hi there. How\nare you",
			expected: []string{"<s>", "Hi", "there.", "</s>", "<s>", "How", "are", "you", "</s>"},
		},
		{
			name:     "Unique lines",
			opts:     []Option{WithUniqueLines(true)},
			input:    "la la\nla la\nend",
			expected: []string{"la", "la", "end"},
		},
		{
			name:     "Empty input",
			input:    "",
			expected: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := collectTokens(t, NewDefaultTokenizer(tc.opts...), tc.input)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestMarkerFlag(t *testing.T) {
	stream := NewDefaultTokenizer(WithNewlineToken("<nl>")).NewStream(strings.NewReader("word"))
	first, err := stream.Next()
	require.NoError(t, err)
	second, err := stream.Next()
	require.NoError(t, err)

	assert.False(t, first.Marker, "words are not markers")
	assert.True(t, second.Marker, "the newline token is a marker")
}
