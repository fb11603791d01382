package markov

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
)

// UnknownTokenText is returned by Sample in place of a successor when the
// requested token is unknown or has nothing recorded after it.
const UnknownTokenText = "<UNK>"

// SampleStatus describes how a Choice was produced.
type SampleStatus int

const (
	// StatusOK means the token was drawn from recorded successors.
	StatusOK SampleStatus = iota
	// StatusUnknownToken means the requested token was never seen.
	StatusUnknownToken
	// StatusNoSuccessors means the token was seen, but only ever at the end of a source.
	StatusNoSuccessors
)

func (s SampleStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnknownToken:
		return "unknown token"
	case StatusNoSuccessors:
		return "no successors"
	default:
		return "invalid"
	}
}

// Choice is the result of sampling a successor. A degraded Choice carries
// UnknownTokenText and the reason it could not sample normally.
type Choice struct {
	Token  string
	Status SampleStatus
}

// Degraded reports whether the Choice is a stand-in rather than a real successor.
func (c Choice) Degraded() bool {
	return c.Status != StatusOK
}

// successors holds the outgoing transitions of one token in first-seen order.
type successors struct {
	index map[string]int
	next  []string
	freq  []int
	total int
}

func (s *successors) add(token string) {
	if i, ok := s.index[token]; ok {
		s.freq[i]++
		s.total++
		return
	}
	s.index[token] = len(s.next)
	s.next = append(s.next, token)
	s.freq = append(s.freq, 1)
	s.total++
}

// Model is a first-order transition table mapping each token to the tokens
// observed directly after it and how many times each was observed.
//
// Every token that has been seen, as a source or as a successor, is a key of
// the model. Counts only ever grow. Reads are safe for concurrent use; Add
// takes a write lock, but training is expected to finish before generation.
type Model struct {
	mu     sync.RWMutex
	vocab  []string
	table  map[string]*successors
	logger *slog.Logger
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithLogger sets the logger used to report rejected transitions.
func WithLogger(logger *slog.Logger) ModelOption {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewModel creates an empty Model.
func NewModel(opts ...ModelOption) *Model {
	m := &Model{
		table:  make(map[string]*successors),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetLogger sets the logger for the Model. By default, all logs are discarded.
func (m *Model) SetLogger(logger *slog.Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// ensure registers token as a key. The caller must hold the write lock.
func (m *Model) ensure(token string) *successors {
	s, ok := m.table[token]
	if !ok {
		s = &successors{index: make(map[string]int)}
		m.table[token] = s
		m.vocab = append(m.vocab, token)
	}
	return s
}

// Add records one observation of next following prev. Either token being
// empty is logged and ignored so bad training data cannot corrupt the model.
// It reports whether the transition was recorded.
func (m *Model) Add(prev, next string) bool {
	if prev == "" || next == "" {
		m.logger.Warn("Bad token pair ignored",
			slog.String("prev", prev),
			slog.String("next", next),
		)
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.ensure(prev)
	m.ensure(next)
	s.add(next)
	return true
}

// addCount records n observations at once. Used when restoring a model.
func (m *Model) addCount(prev, next string, n int) {
	s := m.ensure(prev)
	m.ensure(next)
	if i, ok := s.index[next]; ok {
		s.freq[i] += n
	} else {
		s.index[next] = len(s.next)
		s.next = append(s.next, next)
		s.freq = append(s.freq, n)
	}
	s.total += n
}

// Sample draws a successor of token with probability proportional to its
// recorded count. Unknown tokens and tokens without successors yield a
// degraded Choice instead of an error, so a walk never stops mid-stream.
func (m *Model) Sample(rng *rand.Rand, token string) Choice {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.table[token]
	if !ok {
		return Choice{Token: UnknownTokenText, Status: StatusUnknownToken}
	}
	if s.total == 0 {
		return Choice{Token: UnknownTokenText, Status: StatusNoSuccessors}
	}

	draw := rng.IntN(s.total) + 1
	sum := 0
	for i, f := range s.freq {
		sum += f
		if sum >= draw {
			return Choice{Token: s.next[i], Status: StatusOK}
		}
	}
	// Unreachable while total matches the sum of freq.
	return Choice{Token: UnknownTokenText, Status: StatusNoSuccessors}
}

// Tokens returns every distinct token in the model in first-seen order.
func (m *Model) Tokens() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.vocab))
	copy(out, m.vocab)
	return out
}

// RandomToken picks a token uniformly from the vocabulary. It reports false
// when the model is empty.
func (m *Model) RandomToken(rng *rand.Rand) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.vocab) == 0 {
		return "", false
	}
	return m.vocab[rng.IntN(len(m.vocab))], true
}

// Len returns the number of distinct tokens.
func (m *Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vocab)
}

// Has reports whether token has been seen.
func (m *Model) Has(token string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.table[token]
	return ok
}

// Count returns how many times next was observed after prev.
func (m *Model) Count(prev, next string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.table[prev]
	if !ok {
		return 0
	}
	if i, ok := s.index[next]; ok {
		return s.freq[i]
	}
	return 0
}

// Successors returns a copy of the successor counts of token. The result is
// nil for unknown tokens and empty for tokens with no successors.
func (m *Model) Successors(token string) map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.table[token]
	if !ok {
		return nil
	}
	out := make(map[string]int, len(s.next))
	for i, next := range s.next {
		out[next] = s.freq[i]
	}
	return out
}

// snapshot copies the ordered successor list of token.
func (m *Model) snapshot(token string) ([]string, []int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.table[token]
	if !ok {
		return nil, nil
	}
	next := make([]string, len(s.next))
	freq := make([]int, len(s.freq))
	copy(next, s.next)
	copy(freq, s.freq)
	return next, freq
}

// Equal reports whether both models hold the same token set and the same
// counts for every transition. Insertion order is not compared. The locks of
// the two models are never held at the same time.
func (m *Model) Equal(other *Model) bool {
	if m == other {
		return true
	}
	if other == nil {
		return false
	}
	theirs := other.counts()

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.table) != len(theirs) {
		return false
	}
	for token, s := range m.table {
		o, ok := theirs[token]
		if !ok || len(s.next) != len(o) {
			return false
		}
		for i, next := range s.next {
			if f, ok := o[next]; !ok || f != s.freq[i] {
				return false
			}
		}
	}
	return true
}

// counts copies the whole transition table under the read lock.
func (m *Model) counts() map[string]map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]map[string]int, len(m.table))
	for token, s := range m.table {
		succ := make(map[string]int, len(s.next))
		for i, next := range s.next {
			succ[next] = s.freq[i]
		}
		out[token] = succ
	}
	return out
}
