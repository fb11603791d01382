package markov

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// checkEvery is how many tokens are consumed between context checks during training.
const checkEvery = 1024

// TrainStats summarises one call to Train.
type TrainStats struct {
	Tokens      int // Tokens read from the source.
	Transitions int // Transitions recorded in the model.
	Rejected    int // Transitions dropped because a token was empty.
	Markers     int // Synthetic tokens such as line breaks and sentence boundaries.
}

// Train tokenizes data and records every consecutive token pair in the model.
// The previous token is carried across lines of the same reader and reset
// between readers, so each call to Train is one source unit.
func (m *Model) Train(ctx context.Context, tokenizer Tokenizer, data io.Reader) (TrainStats, error) {
	var stats TrainStats
	stream := tokenizer.NewStream(data)

	prev := ""
	for {
		if stats.Tokens%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}

		token, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return stats, fmt.Errorf("tokenizer error: %w", err)
		}
		stats.Tokens++
		if token.Marker {
			stats.Markers++
		}

		if prev != "" {
			if m.Add(prev, token.Text) {
				stats.Transitions++
			} else {
				stats.Rejected++
			}
		}
		prev = token.Text
	}

	m.logger.InfoContext(ctx, "Training completed",
		slog.Int("tokens_read", stats.Tokens),
		slog.Int("transitions_added", stats.Transitions),
		slog.Int("transitions_rejected", stats.Rejected),
		slog.Int("markers", stats.Markers),
		slog.Int("vocabulary_size", m.Len()),
	)

	return stats, nil
}
