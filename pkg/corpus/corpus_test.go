package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/CTAG07/Stanza/pkg/markov"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	b := writeFile(t, dir, "b.txt", "red fish")
	a := writeFile(t, dir, "a.TXT", "one fish")
	writeFile(t, dir, "notes.md", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.txt"), 0o755))

	files, err := Files(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, files)
}

func TestFilesErrors(t *testing.T) {
	_, err := Files(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	dir := t.TempDir()
	writeFile(t, dir, "readme.md", "no text here")
	_, err = Files(dir)
	assert.ErrorIs(t, err, ErrNoText)
}

func TestTrainResetsPerFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "1.txt", "one fish")
	writeFile(t, dir, "2.txt", "two fish")

	files, err := Files(dir)
	require.NoError(t, err)

	m := markov.NewModel()
	stats, err := Train(context.Background(), m, markov.NewDefaultTokenizer(), files)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Tokens)
	assert.Equal(t, 2, stats.Transitions)
	assert.Equal(t, 1, m.Count("one", "fish"))
	assert.Equal(t, 1, m.Count("two", "fish"))
	assert.Zero(t, m.Count("fish", "two"), "files are separate sources")
}

func TestTrainMissingFile(t *testing.T) {
	m := markov.NewModel()
	_, err := Train(context.Background(), m, markov.NewDefaultTokenizer(), []string{filepath.Join(t.TempDir(), "gone.txt")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
