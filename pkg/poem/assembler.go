package poem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/CTAG07/Stanza/pkg/markov"
	"github.com/google/uuid"
)

const (
	// DefaultMaxDepth bounds how many tokens a single search branch may add.
	DefaultMaxDepth = 64
	// DefaultMaxAttempts bounds how many extensions a single line search may try.
	DefaultMaxAttempts = 50000
	// encoderCacheSize is the size of the default phonetic cache.
	encoderCacheSize = 4096
)

var (
	// ErrNoCandidate is returned when a line search produced no candidate at all.
	ErrNoCandidate = errors.New("poem: no candidate line")
	// ErrEmptyModel is returned when assembling from a model with no tokens.
	ErrEmptyModel = errors.New("poem: model is empty")
)

// Outcome records how a line was chosen.
type Outcome int

const (
	// Accepted means the line is within tolerance of its goals.
	Accepted Outcome = iota
	// Fallback means no valid line was found and the best candidate was used.
	Fallback
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Fallback:
		return "fallback"
	default:
		return "invalid"
	}
}

// LineResult is one assembled line together with how it was found.
type LineResult struct {
	Line     *Line
	Entry    Entry
	Outcome  Outcome
	Attempts int
	// SeedFallback is set when the previous line ended on a token without
	// successors and the search was seeded from the whole vocabulary.
	SeedFallback bool
}

// Poem is the result of one Assemble run.
type Poem struct {
	ID     uuid.UUID
	Scheme Scheme
	Lines  []LineResult
}

// String renders the poem one line per scheme entry.
func (p *Poem) String() string {
	lines := make([]string, len(p.Lines))
	for i, l := range p.Lines {
		lines[i] = l.Line.String()
	}
	return strings.Join(lines, "\n")
}

// Fallbacks returns how many lines were not accepted.
func (p *Poem) Fallbacks() int {
	n := 0
	for _, l := range p.Lines {
		if l.Outcome == Fallback {
			n++
		}
	}
	return n
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the logger for the Assembler.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithEncoder sets the phonetic encoder used for rhyme distance.
func WithEncoder(enc Encoder) Option {
	return func(a *Assembler) {
		if enc != nil {
			a.encoder = enc
		}
	}
}

// WithSyllableTolerance sets how far a line may stray from its syllable goal.
func WithSyllableTolerance(n int) Option {
	return func(a *Assembler) {
		if n >= 0 {
			a.tolerance = n
		}
	}
}

// WithMaxDepth bounds the length of a search branch. Values <= 0 keep the default.
func WithMaxDepth(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.maxDepth = n
		}
	}
}

// WithMaxAttempts bounds the extensions tried per line. Values <= 0 keep the default.
func WithMaxAttempts(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// Assembler builds poems from a trained model. It never modifies the model,
// so several Assemblers, or several concurrent Assemble calls with their own
// random sources, may share one model.
type Assembler struct {
	model       *markov.Model
	encoder     Encoder
	tolerance   int
	maxDepth    int
	maxAttempts int
	logger      *slog.Logger
}

// NewAssembler creates an Assembler over m.
func NewAssembler(m *markov.Model, opts ...Option) *Assembler {
	a := &Assembler{
		model:       m,
		tolerance:   DefaultSyllableTolerance,
		maxDepth:    DefaultMaxDepth,
		maxAttempts: DefaultMaxAttempts,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.encoder == nil {
		if cached, err := NewCachedEncoder(DoubleMetaphone, encoderCacheSize); err == nil {
			a.encoder = cached
		} else {
			a.encoder = DoubleMetaphone
		}
	}
	return a
}

// SetLogger sets the logger for the Assembler. By default, all logs are discarded.
func (a *Assembler) SetLogger(logger *slog.Logger) {
	if logger != nil {
		a.logger = logger
	}
}

// Assemble produces one line per entry of scheme, in order. Lines that cannot
// meet their goals fall back to the best candidate seen, so a poem is
// returned whenever the model has at least one token.
func (a *Assembler) Assemble(ctx context.Context, rng *rand.Rand, scheme Scheme) (*Poem, error) {
	if len(scheme) == 0 {
		return nil, fmt.Errorf("%w: scheme is empty", ErrInvalidScheme)
	}
	vocab := a.model.Tokens()
	if len(vocab) == 0 {
		return nil, ErrEmptyModel
	}

	poem := &Poem{ID: uuid.New(), Scheme: scheme, Lines: make([]LineResult, 0, len(scheme))}
	logger := a.logger.With(slog.String("run_id", poem.ID.String()))
	logger.DebugContext(ctx, "Assembling poem", slog.String("scheme", scheme.String()))

	groups := make(RhymeGroups)
	for i, entry := range scheme {
		var seed *markov.ChoiceQueue
		seedFallback := false
		if i == 0 {
			seed = markov.NewUniformQueue(vocab)
		} else {
			last := poem.Lines[i-1].Line.Last()
			seed = markov.NewChoiceQueue(a.model, last)
			if seed.Len() == 0 {
				logger.WarnContext(ctx, "Previous line ends on a dead end, seeding from vocabulary",
					slog.Int("line", i+1),
					slog.String("token", last),
				)
				seed = markov.NewUniformQueue(vocab)
				seedFallback = true
			}
		}

		start := NewLine(entry.Syllables, groups.Target(entry.Group),
			WithLineTolerance(a.tolerance),
			WithLineEncoder(a.encoder),
		)
		result, err := a.searchLine(ctx, rng, start, seed)
		if err != nil {
			return nil, fmt.Errorf("line %d (%s): %w", i+1, entry, err)
		}
		result.Entry = entry
		result.SeedFallback = seedFallback

		if result.Outcome == Fallback {
			logger.InfoContext(ctx, "No valid line found, using best candidate",
				slog.Int("line", i+1),
				slog.String("entry", entry.String()),
				slog.Int("score", result.Line.Score()),
				slog.Int("attempts", result.Attempts),
			)
		}
		groups.Record(entry.Group, result.Line.Last())
		poem.Lines = append(poem.Lines, result)
	}

	logger.InfoContext(ctx, "Poem assembled",
		slog.Int("lines", len(poem.Lines)),
		slog.Int("fallbacks", poem.Fallbacks()),
	)
	return poem, nil
}

// frame is one level of the search: a partial line and the tokens still to
// try after it.
type frame struct {
	line  *Line
	queue *markov.ChoiceQueue
}

// searchLine runs a depth-first search from start, expanding seed first. The
// first valid extension is accepted; otherwise the best scoring extension
// seen is returned as a fallback.
func (a *Assembler) searchLine(ctx context.Context, rng *rand.Rand, start *Line, seed *markov.ChoiceQueue) (LineResult, error) {
	var best *Line
	attempts := 0
	stack := []frame{{line: start, queue: seed}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return LineResult{}, err
		}

		top := &stack[len(stack)-1]
		token, ok := top.queue.Next(rng)
		if !ok {
			stack = stack[:len(stack)-1]
			continue
		}
		if attempts >= a.maxAttempts {
			break
		}
		attempts++

		candidate := top.line.Add(token)
		if candidate.BetterThan(best) {
			best = candidate
		}
		if candidate.Valid() {
			return LineResult{Line: candidate, Outcome: Accepted, Attempts: attempts}, nil
		}
		if candidate.Over() || len(stack) >= a.maxDepth {
			continue
		}
		stack = append(stack, frame{line: candidate, queue: markov.NewChoiceQueue(a.model, token)})
	}

	if best == nil {
		return LineResult{}, ErrNoCandidate
	}
	return LineResult{Line: best, Outcome: Fallback, Attempts: attempts}, nil
}
