package poem

import (
	"strings"
)

const (
	// DefaultSyllableTolerance is how far a line's syllable count may stray from its goal.
	DefaultSyllableTolerance = 2
	// RhymeTolerance is the number of mismatched trailing sounds a rhyme may have.
	RhymeTolerance = 1
	// rhymeWidth is how many trailing phonetic characters are compared.
	rhymeWidth = 2
)

// Line is a candidate line of a poem: the tokens chosen so far, annotated
// with the syllable goal and the word the line should rhyme with.
//
// A Line is immutable. Add returns a new Line sharing nothing with the
// receiver, so a search can branch from a common prefix freely.
//
// Syllables are approximated by counting tokens.
type Line struct {
	tokens    []string
	goal      int
	rhymeGoal string
	rhymeKey  string // reversed code of rhymeGoal
	tolerance int
	encoder   Encoder
}

// LineOption configures a Line.
type LineOption func(*Line)

// WithLineTolerance sets the syllable tolerance of a line.
func WithLineTolerance(n int) LineOption {
	return func(l *Line) {
		if n >= 0 {
			l.tolerance = n
		}
	}
}

// WithLineEncoder sets the phonetic encoder used for rhyme distance.
func WithLineEncoder(enc Encoder) LineOption {
	return func(l *Line) {
		if enc != nil {
			l.encoder = enc
		}
	}
}

// NewLine returns an empty line aiming for goal syllables. An empty
// rhymeGoal means the line is free to end on any sound.
func NewLine(goal int, rhymeGoal string, opts ...LineOption) *Line {
	l := &Line{
		goal:      goal,
		rhymeGoal: rhymeGoal,
		tolerance: DefaultSyllableTolerance,
		encoder:   DoubleMetaphone,
	}
	for _, opt := range opts {
		opt(l)
	}
	if rhymeGoal != "" {
		l.rhymeKey = reverse(l.encoder.Encode(rhymeGoal))
	}
	return l
}

// Add returns a copy of the line with token appended.
func (l *Line) Add(token string) *Line {
	tokens := make([]string, len(l.tokens)+1)
	copy(tokens, l.tokens)
	tokens[len(l.tokens)] = token

	next := *l
	next.tokens = tokens
	return &next
}

// Tokens returns a copy of the tokens in the line.
func (l *Line) Tokens() []string {
	out := make([]string, len(l.tokens))
	copy(out, l.tokens)
	return out
}

// Last returns the final token, or "" for an empty line.
func (l *Line) Last() string {
	if len(l.tokens) == 0 {
		return ""
	}
	return l.tokens[len(l.tokens)-1]
}

// Goal returns the syllable goal of the line.
func (l *Line) Goal() int { return l.goal }

// RhymeGoal returns the word the line should rhyme with, or "".
func (l *Line) RhymeGoal() string { return l.rhymeGoal }

// Syllables returns the syllable count of the line, one per token.
func (l *Line) Syllables() int {
	return len(l.tokens)
}

// SyllableDistance returns how far the syllable count is from the goal.
func (l *Line) SyllableDistance() int {
	d := l.goal - l.Syllables()
	if d < 0 {
		return -d
	}
	return d
}

// RhymeDistance compares the last rhymeWidth characters of the phonetic
// codes of the last token and the rhyme goal, returning the number of
// positions that differ. A position present in only one code counts as a
// difference. Lines without a rhyme goal or without tokens score 0.
func (l *Line) RhymeDistance() int {
	if l.rhymeGoal == "" || len(l.tokens) == 0 {
		return 0
	}
	key := reverse(l.encoder.Encode(l.Last()))

	mismatches := 0
	for i := 0; i < rhymeWidth; i++ {
		a, aok := charAt(key, i)
		b, bok := charAt(l.rhymeKey, i)
		if aok != bok || a != b {
			mismatches++
		}
	}
	return mismatches
}

// Score is the fitness of the line; lower is better and 0 is perfect.
func (l *Line) Score() int {
	if len(l.tokens) == 0 {
		return 0
	}
	return l.SyllableDistance() + l.RhymeDistance()
}

// Valid reports whether the line is within both tolerances.
func (l *Line) Valid() bool {
	return l.SyllableDistance() <= l.tolerance && l.RhymeDistance() <= RhymeTolerance
}

// Over reports whether the line already has too many syllables to be valid,
// so extending it further is pointless.
func (l *Line) Over() bool {
	return l.Syllables()-l.goal > l.tolerance
}

// BetterThan reports whether l scores strictly better than other. Every
// line is better than a nil line.
func (l *Line) BetterThan(other *Line) bool {
	if other == nil {
		return true
	}
	return l.Score() < other.Score()
}

// String returns the tokens joined with single spaces.
func (l *Line) String() string {
	return strings.Join(l.tokens, " ")
}

func charAt(s string, i int) (byte, bool) {
	if i < len(s) {
		return s[i], true
	}
	return 0, false
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}
