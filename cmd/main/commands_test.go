package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCorpus = `the night is long and the light is low
the cat sat by the fire and the wind did blow
a fish in the sea and a bird in the tree
the moon on the hill is a light for me
`

// testEnv is a scratch directory holding a config, a database and a corpus.
type testEnv struct {
	dir string
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	corpusDir := filepath.Join(dir, "corpus")
	require.NoError(t, os.Mkdir(corpusDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(corpusDir, "rhymes.txt"), []byte(testCorpus), 0o644))
	return &testEnv{dir: dir}
}

// run executes the CLI with args and returns standard output.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	a := &app{}
	root := newRootCmd(a)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{
		"--config", filepath.Join(e.dir, "stanza.json"),
		"--db", filepath.Join(e.dir, "data", "stanza.db"),
		"--log-level", "error",
	}, args...))

	err := root.ExecuteContext(context.Background())
	require.NoError(t, a.close())
	return stdout.String(), err
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, "stanza %s", strings.Join(args, " "))
	return out
}

func TestTrainAndGenerate(t *testing.T) {
	env := setupTestEnv(t)

	out := env.mustRun(t, "train", filepath.Join(env.dir, "corpus"))
	assert.Contains(t, out, `trained "default" on 1 file(s)`)
	assert.Contains(t, out, "(0 markers)")

	out = env.mustRun(t, "generate", "--length", "7", "--seed", "3")
	assert.Len(t, strings.Fields(out), 7)

	again := env.mustRun(t, "generate", "--length", "7", "--seed", "3")
	assert.Equal(t, out, again, "the same seed gives the same text")

	streamed := env.mustRun(t, "generate", "--length", "5", "--stream")
	assert.Len(t, strings.Fields(streamed), 5)
}

func TestGenerateWithoutModel(t *testing.T) {
	env := setupTestEnv(t)
	_, err := env.run(t, "generate")
	assert.ErrorContains(t, err, "not found")
}

func TestPoem(t *testing.T) {
	env := setupTestEnv(t)
	env.mustRun(t, "train", filepath.Join(env.dir, "corpus"))

	out := env.mustRun(t, "poem", "--form", "haiku", "--seed", "11")
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 3)

	out = env.mustRun(t, "poem", "--scheme", "4a 4a", "--count", "2", "--seed", "11", "--verbose")
	blocks := strings.Split(strings.TrimSpace(out), "\n\n")
	require.Len(t, blocks, 2)
	for _, block := range blocks {
		lines := strings.Split(block, "\n")
		require.Len(t, lines, 2)
		assert.Contains(t, lines[0], "# 4a")
		assert.Contains(t, lines[0], "/4 syllables")
		assert.NotContains(t, lines[0], "rhymes with", "the first line of a group has no rhyme goal")
		assert.Contains(t, lines[1], "rhymes with")
	}

	out = env.mustRun(t, "poem", "--scheme", "4a 4a", "--seed", "11", "--encoder", "metaphone")
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)
	_, err := env.run(t, "poem", "--encoder", "soundex")
	assert.ErrorContains(t, err, "unknown phonetic encoder")

	_, err = env.run(t, "poem", "--scheme", "a5")
	assert.Error(t, err)
	_, err = env.run(t, "poem", "--form", "sonnet")
	assert.ErrorContains(t, err, "unknown form")
}

func TestExportImportRoundTrip(t *testing.T) {
	env := setupTestEnv(t)
	env.mustRun(t, "train", filepath.Join(env.dir, "corpus"))

	exportPath := filepath.Join(env.dir, "model.json")
	env.mustRun(t, "export", exportPath)
	stdoutExport := env.mustRun(t, "export")

	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), stdoutExport)

	env.mustRun(t, "--model", "copy", "import", exportPath)
	out := env.mustRun(t, "list")
	assert.Contains(t, out, "  copy\n")
	assert.Contains(t, out, "* default\n")

	original := env.mustRun(t, "stats")
	copied := env.mustRun(t, "--model", "copy", "stats")
	assert.Equal(t,
		strings.Split(original, "\n")[1:5],
		strings.Split(copied, "\n")[1:5],
		"imported model has the same shape")

	env.mustRun(t, "remove", "copy")
	out = env.mustRun(t, "list")
	assert.NotContains(t, out, "copy")
}

func TestTrainAppend(t *testing.T) {
	env := setupTestEnv(t)
	extra := filepath.Join(env.dir, "extra.txt")
	require.NoError(t, os.WriteFile(extra, []byte("zebra crossing\n"), 0o644))

	env.mustRun(t, "train", filepath.Join(env.dir, "corpus"))
	env.mustRun(t, "train", "--append", extra)
	out := env.mustRun(t, "generate", "--start", "zebra", "--length", "1")
	assert.Equal(t, "crossing\n", out)

	env.mustRun(t, "train", extra)
	out = env.mustRun(t, "stats")
	assert.Contains(t, out, "tokens:         2\n")
	assert.Contains(t, out, "  default:      2\n")
}

func TestGenerateReseed(t *testing.T) {
	env := setupTestEnv(t)
	extra := filepath.Join(env.dir, "extra.txt")
	require.NoError(t, os.WriteFile(extra, []byte("zebra crossing\n"), 0o644))
	env.mustRun(t, "train", extra)

	out := env.mustRun(t, "generate", "--start", "zebra", "--length", "4")
	assert.Equal(t, "crossing <UNK> <UNK> <UNK>\n", out)

	out = env.mustRun(t, "generate", "--start", "zebra", "--length", "4", "--reseed", "--seed", "5")
	fields := strings.Fields(out)
	require.Len(t, fields, 4)
	assert.Equal(t, "crossing", fields[0])
	assert.Equal(t, "<UNK>", fields[1])
}

func TestStatsListsModelSizes(t *testing.T) {
	env := setupTestEnv(t)
	extra := filepath.Join(env.dir, "extra.txt")
	require.NoError(t, os.WriteFile(extra, []byte("zebra crossing ahead\n"), 0o644))

	env.mustRun(t, "train", filepath.Join(env.dir, "corpus"))
	env.mustRun(t, "--model", "zebra", "train", extra)

	out := env.mustRun(t, "stats")
	assert.Contains(t, out, "stored models:  2\n")
	assert.Contains(t, out, "  zebra:        3\n")
	assert.Contains(t, out, "  default:")
}

func TestFormsAndVersion(t *testing.T) {
	env := setupTestEnv(t)

	out := env.mustRun(t, "forms")
	assert.Contains(t, out, "haiku")
	assert.Contains(t, out, "5a 7b 5a")

	out = env.mustRun(t, "version")
	assert.Contains(t, out, "stanza dev")
}
