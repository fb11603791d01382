package markov

import (
	"bufio"
	"io"
	"regexp"
	"strings"
)

const (
	// SentenceStartText marks the beginning of a sentence when sentence markers are enabled.
	SentenceStartText = "<s>"
	// SentenceEndText marks the end of a sentence when sentence markers are enabled.
	SentenceEndText = "</s>"
)

// maxLineSize bounds a single line of training text.
const maxLineSize = 1024 * 1024

// DefaultTokenizer is a default implementation of the Tokenizer interface.
// It splits each line of text on whitespace and can optionally merge hyphen
// and apostrophe fragments, emit a token for every line break, emit sentence
// boundary markers and skip repeated lines.
// Its behavior can be customized with functional options.
type DefaultTokenizer struct {
	newlineToken     string
	sentenceMarkers  bool
	mergeHyphens     bool
	mergeApostrophes bool
	uniqueLines      bool
	eosRegex         *regexp.Regexp
}

// Option Is a function that configures a DefaultTokenizer.
type Option func(*DefaultTokenizer)

// WithNewlineToken emits tok after the words of every non-blank line.
// Default: "" (line breaks are not tokens)
func WithNewlineToken(tok string) Option {
	return func(t *DefaultTokenizer) {
		t.newlineToken = tok
	}
}

// WithSentenceMarkers wraps every sentence in SentenceStartText and SentenceEndText.
// Default: false
func WithSentenceMarkers(enabled bool) Option {
	return func(t *DefaultTokenizer) {
		t.sentenceMarkers = enabled
	}
}

// WithMergeHyphens appends tokens starting with '-' to the token before them.
// Default: true
func WithMergeHyphens(enabled bool) Option {
	return func(t *DefaultTokenizer) {
		t.mergeHyphens = enabled
	}
}

// WithMergeApostrophes appends tokens starting with an apostrophe to the token before them.
// Default: false
func WithMergeApostrophes(enabled bool) Option {
	return func(t *DefaultTokenizer) {
		t.mergeApostrophes = enabled
	}
}

// WithUniqueLines skips lines that have already been seen in the same stream.
// Default: false
func WithUniqueLines(enabled bool) Option {
	return func(t *DefaultTokenizer) {
		t.uniqueLines = enabled
	}
}

// WithSentenceEndRegex sets the regex deciding whether a word ends a sentence.
// Default: `[.!?]["')\]]*$`
func WithSentenceEndRegex(expr string) Option {
	return func(t *DefaultTokenizer) {
		t.eosRegex = regexp.MustCompile(expr)
	}
}

// NewDefaultTokenizer creates a new tokenizer with default settings, which can be
// overridden by providing one or more Option functions.
func NewDefaultTokenizer(opts ...Option) *DefaultTokenizer {
	t := &DefaultTokenizer{
		mergeHyphens: true,
		// A word ends a sentence when its last letter-like rune is followed by
		// terminal punctuation, optionally wrapped in closing quotes or brackets.
		eosRegex: regexp.MustCompile(`[.!?]["')\]]*$`),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// NewStream Returns the stream processor.
func (t *DefaultTokenizer) NewStream(r io.Reader) StreamTokenizer {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	s := &DefaultStreamTokenizer{
		scanner: scanner,
		config:  t,
		atStart: true,
	}
	if t.uniqueLines {
		s.seen = make(map[string]struct{})
	}
	return s
}

// DefaultStreamTokenizer is the default implementation of the StreamTokenizer interface.
// It reads the stream line by line with a bufio.Scanner.
type DefaultStreamTokenizer struct {
	scanner *bufio.Scanner
	config  *DefaultTokenizer
	buffer  []Token
	seen    map[string]struct{}
	// atStart is true when the next word opens a sentence.
	atStart bool
	// open is true while a sentence start marker has been emitted without its end.
	open bool
	done bool
}

// Next returns the next token from the stream. It returns a Token and a nil error on
// success. When the stream is exhausted, it returns a nil Token and io.EOF.
// Any other error indicates a problem reading from the underlying stream.
func (s *DefaultStreamTokenizer) Next() (*Token, error) {
	for len(s.buffer) == 0 { // Loop until we have tokens
		if s.done {
			return nil, io.EOF
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, err
			}
			s.done = true
			// Close a sentence left open by the last line.
			if s.open {
				s.buffer = append(s.buffer, Token{Text: SentenceEndText, Marker: true})
				s.open = false
			}
			continue
		}
		s.fill(s.scanner.Text())
	}

	token := s.buffer[0]
	s.buffer = s.buffer[1:] // Consume the token
	return &token, nil
}

// fill tokenizes one line into the buffer.
func (s *DefaultStreamTokenizer) fill(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	if s.seen != nil {
		if _, dup := s.seen[trimmed]; dup {
			return
		}
		s.seen[trimmed] = struct{}{}
	}

	words := s.config.merge(strings.Fields(trimmed))
	for _, word := range words {
		if s.config.sentenceMarkers && s.atStart {
			s.buffer = append(s.buffer, Token{Text: SentenceStartText, Marker: true})
			s.atStart = false
			s.open = true
		}
		s.buffer = append(s.buffer, Token{Text: word})
		if s.config.sentenceMarkers && s.config.eosRegex.MatchString(word) {
			s.buffer = append(s.buffer, Token{Text: SentenceEndText, Marker: true})
			s.atStart = true
			s.open = false
		}
	}
	if s.config.newlineToken != "" {
		s.buffer = append(s.buffer, Token{Text: s.config.newlineToken, Marker: true})
	}
}

// merge joins hyphen and apostrophe fragments onto the word before them.
func (t *DefaultTokenizer) merge(words []string) []string {
	if !t.mergeHyphens && !t.mergeApostrophes {
		return words
	}
	out := words[:0]
	for _, w := range words {
		if len(out) > 0 &&
			((t.mergeHyphens && strings.HasPrefix(w, "-")) ||
				(t.mergeApostrophes && (strings.HasPrefix(w, "'") || strings.HasPrefix(w, "’")))) {
			out[len(out)-1] += w
			continue
		}
		out = append(out, w)
	}
	return out
}
