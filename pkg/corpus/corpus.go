// Package corpus finds training text on disk and feeds it to a markov.Model.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/CTAG07/Stanza/pkg/markov"
)

// Ext is the extension of files treated as training text.
const Ext = ".txt"

// ErrNoText is returned when a directory holds no training text.
var ErrNoText = errors.New("corpus: no text files")

// Files returns the regular .txt files directly inside dir, sorted by name.
// Subdirectories are not searched.
func Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.EqualFold(filepath.Ext(entry.Name()), Ext) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoText, dir)
	}
	sort.Strings(files)
	return files, nil
}

// Train trains m on every file in paths, one source unit per file, and
// returns the combined statistics.
func Train(ctx context.Context, m *markov.Model, tokenizer markov.Tokenizer, paths []string) (markov.TrainStats, error) {
	var total markov.TrainStats
	for _, path := range paths {
		stats, err := trainFile(ctx, m, tokenizer, path)
		total.Tokens += stats.Tokens
		total.Transitions += stats.Transitions
		total.Rejected += stats.Rejected
		total.Markers += stats.Markers
		if err != nil {
			return total, fmt.Errorf("failed to train on %s: %w", path, err)
		}
	}
	return total, nil
}

func trainFile(ctx context.Context, m *markov.Model, tokenizer markov.Tokenizer, path string) (markov.TrainStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return markov.TrainStats{}, err
	}
	defer func() { _ = f.Close() }()
	return m.Train(ctx, tokenizer, f)
}
