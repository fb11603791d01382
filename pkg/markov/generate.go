package markov

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

var (
	// ErrEmptyModel is returned when generating from a model with no tokens.
	ErrEmptyModel = errors.New("markov: model has no tokens")
	// ErrInvalidLength is returned when the requested length is below 1.
	ErrInvalidLength = errors.New("markov: length must be at least 1")
)

// NewRand returns a random source seeded with seed. Passing the same source
// to successive calls continues its stream instead of restarting it, and two
// sources with the same seed produce the same output for the same model.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// generateOptions Is used by the generate functions to configure default options.
type generateOptions struct {
	length     int
	startToken string
	reseed     bool
}

// GenerateOption is a function that configures generation parameters. It's used
// as a variadic argument in generation functions like Generate and GenerateStream.
type GenerateOption func(*generateOptions)

// WithLength sets the number of tokens to generate.
func WithLength(n int) GenerateOption {
	return func(o *generateOptions) { o.length = n }
}

// WithStartToken sets the token the walk starts from. The start token itself
// is not part of the output. When unset, a token is picked uniformly from the
// vocabulary.
func WithStartToken(token string) GenerateOption {
	return func(o *generateOptions) { o.startToken = token }
}

// WithReseed makes the walk continue from a random vocabulary token after a
// step that could not sample. By default the walk keeps sampling the latest
// token, so once it degrades every following step is UnknownTokenText.
func WithReseed(enabled bool) GenerateOption {
	return func(o *generateOptions) { o.reseed = enabled }
}

func newGenerateOptions(opts []GenerateOption) *generateOptions {
	options := &generateOptions{
		length: 100,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// Generation is the output of a plain walk over the model.
type Generation struct {
	Text     string   // Tokens joined with single spaces.
	Tokens   []string // The generated tokens, without the start token.
	Degraded int      // How many steps produced UnknownTokenText.
}

// Generate walks the model for exactly the configured number of steps, each
// step sampling a successor of the previous token. A step that cannot sample
// emits UnknownTokenText instead of failing, so a non-empty model always
// yields the requested number of tokens. See WithReseed.
func Generate(ctx context.Context, rng *rand.Rand, m *Model, opts ...GenerateOption) (*Generation, error) {
	options := newGenerateOptions(opts)

	prev, err := startToken(rng, m, options)
	if err != nil {
		return nil, err
	}

	gen := &Generation{Tokens: make([]string, 0, options.length)}
	for i := 0; i < options.length; i++ {
		if i%checkEvery == 0 {
			if err = ctx.Err(); err != nil {
				return nil, err
			}
		}
		choice := m.Sample(rng, prev)
		if choice.Degraded() {
			gen.Degraded++
			m.logger.DebugContext(ctx, "Sampling degraded",
				"token", prev,
				"reason", choice.Status.String(),
				"step", i,
			)
		}
		gen.Tokens = append(gen.Tokens, choice.Token)
		prev = resume(rng, m, choice, options.reseed)
	}
	gen.Text = strings.Join(gen.Tokens, " ")

	m.logger.DebugContext(ctx, "Generation finished",
		"length", options.length,
		"degraded_steps", gen.Degraded,
	)
	return gen, nil
}

// resume returns the token the walk continues from after choice.
func resume(rng *rand.Rand, m *Model, choice Choice, reseed bool) string {
	if !reseed || !choice.Degraded() {
		return choice.Token
	}
	if token, ok := m.RandomToken(rng); ok {
		return token
	}
	return choice.Token
}

// startToken validates options and resolves the token a walk starts from.
func startToken(rng *rand.Rand, m *Model, options *generateOptions) (string, error) {
	if options.length < 1 {
		return "", fmt.Errorf("%w: got %d", ErrInvalidLength, options.length)
	}
	if options.startToken != "" {
		return options.startToken, nil
	}
	token, ok := m.RandomToken(rng)
	if !ok {
		return "", ErrEmptyModel
	}
	return token, nil
}
