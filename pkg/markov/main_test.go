package markov

import (
	"context"
	"database/sql"
	"go/build"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const testCorpus = "one fish two fish\nred fish blue fish\n"

// setupTestModel trains a fresh model on testCorpus.
func setupTestModel(t *testing.T) *Model {
	t.Helper()
	m := NewModel()
	_, err := m.Train(context.Background(), NewDefaultTokenizer(), strings.NewReader(testCorpus))
	require.NoError(t, err, "setup: Train()")
	return m
}

// setupTestStore creates a new SQLite database file and a Store for testing.
// It uses t.Cleanup to ensure resources are released.
func setupTestStore(t *testing.T) (*sql.DB, *Store) {
	t.Helper()
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbFile)
	require.NoError(t, err, "failed to open database")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, SetupSchema(db), "failed to set up schema")

	s, err := NewStore(db)
	require.NoError(t, err, "NewStore()")
	t.Cleanup(s.Close)

	return db, s
}

var (
	benchmarkCorpus string
	corpusOnce      sync.Once
)

// createBenchmarkCorpus reads Go source files to create a corpus for benchmarking.
func createBenchmarkCorpus() string {
	corpusOnce.Do(func() {
		var sb strings.Builder
		goRoot := build.Default.GOROOT
		filesToRead := []string{
			filepath.Join(goRoot, "src/net/http/server.go"),
			filepath.Join(goRoot, "src/go/parser/parser.go"),
		}

		for _, file := range filesToRead {
			content, err := os.ReadFile(file)
			if err != nil {
				benchmarkCorpus = "this is a fallback corpus for benchmarking. it is not very long but will prevent a crash. "
				return
			}
			sb.Write(content)
			sb.WriteString("\n")
		}
		benchmarkCorpus = sb.String()
	})
	return benchmarkCorpus
}
