package markov

import (
	"context"
	"log/slog"
	"math/rand/v2"
)

// GenerateStream performs the same walk as Generate but returns a read-only
// channel yielding one Choice per step. This allows for processing the
// generated text token-by-token. The channel will be closed once generation
// is complete or the context is cancelled.
//
// The random source is used by the streaming goroutine until the channel is
// closed; callers must not share it with other work in the meantime.
func GenerateStream(ctx context.Context, rng *rand.Rand, m *Model, opts ...GenerateOption) (<-chan Choice, error) {
	options := newGenerateOptions(opts)

	prev, err := startToken(rng, m, options)
	if err != nil {
		return nil, err
	}

	choiceChan := make(chan Choice)

	go func() {
		defer close(choiceChan)

		for i := 0; i < options.length; i++ {
			select {
			case <-ctx.Done():
				m.logger.DebugContext(ctx, "Generation stream cancelled by context",
					slog.Int("generated_length", i),
				)
				return
			default:
				// continue
			}

			choice := m.Sample(rng, prev)
			select {
			case <-ctx.Done():
				return
			case choiceChan <- choice:
			}
			prev = resume(rng, m, choice, options.reseed)
		}
	}()

	return choiceChan, nil
}
