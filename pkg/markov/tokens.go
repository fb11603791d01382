package markov

import "io"

// Token represents a single tokenized unit of text. Marker is set for
// synthetic tokens such as line breaks and sentence boundaries that do not
// come from the words of the source.
type Token struct {
	Text   string
	Marker bool
}

// Tokenizer is an interface that defines the contract for splitting input text
// into tokens. This allows training to be independent of the specific
// tokenization strategy.
type Tokenizer interface {
	// NewStream returns a stateful StreamTokenizer for processing an io.Reader.
	NewStream(io.Reader) StreamTokenizer
}

// StreamTokenizer is an interface for a stateful tokenizer that processes a
// stream of data, returning one token at a time.
type StreamTokenizer interface {
	// Next returns the next token from the stream. It returns io.EOF as the
	// error when the stream is fully consumed.
	Next() (*Token, error)
}
