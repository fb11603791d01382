package markov

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSaveLoad(t *testing.T) {
	_, s := setupTestStore(t)
	ctx := context.Background()
	m := setupTestModel(t)

	require.NoError(t, s.Save(ctx, "fish", m))

	loaded, err := s.Load(ctx, "fish")
	require.NoError(t, err)
	assert.True(t, m.Equal(loaded), "loaded model differs from the saved one")
	assert.Equal(t, m.Tokens(), loaded.Tokens(), "vocabulary order changed")
}

func TestStoreSaveReplaces(t *testing.T) {
	db, s := setupTestStore(t)
	ctx := context.Background()

	first := NewModel()
	first.Add("a", "b")
	second := NewModel()
	second.Add("c", "d")
	second.Add("d", "c")

	require.NoError(t, s.Save(ctx, "m", first))
	require.NoError(t, s.Save(ctx, "m", second))

	loaded, err := s.Load(ctx, "m")
	require.NoError(t, err)
	assert.True(t, second.Equal(loaded), "expected the second model, got tokens %v", loaded.Tokens())

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM markov_models").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestStoreListRemoveStats(t *testing.T) {
	db, s := setupTestStore(t)
	ctx := context.Background()

	keep := NewModel()
	keep.Add("keep", "this")
	drop := NewModel()
	drop.Add("drop", "this")
	require.NoError(t, s.Save(ctx, "to_keep", keep))
	require.NoError(t, s.Save(ctx, "to_delete", drop))

	models, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "to_delete", models[0].Name)
	assert.Equal(t, "to_keep", models[1].Name)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	// "this" is shared between both models.
	assert.Equal(t, 2, stats.Models)
	assert.Equal(t, 3, stats.VocabSize)
	assert.Equal(t, map[string]int{"to_keep": 2, "to_delete": 2}, stats.ModelSizes)

	require.NoError(t, s.Remove(ctx, "to_delete"))
	assert.NoError(t, s.Remove(ctx, "never_existed"), "removing a missing model is a no-op")

	_, err = s.Load(ctx, "to_delete")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM markov_transitions").Scan(&count))
	assert.Equal(t, 1, count, "only the kept model's transition should remain")

	_, err = s.Load(ctx, "to_keep")
	assert.NoError(t, err)
}

// removalWitness counts the stored models each time a record is logged.
type removalWitness struct {
	db     *sql.DB
	counts []int
}

func (w *removalWitness) Enabled(context.Context, slog.Level) bool { return true }
func (w *removalWitness) WithAttrs([]slog.Attr) slog.Handler      { return w }
func (w *removalWitness) WithGroup(string) slog.Handler           { return w }

func (w *removalWitness) Handle(ctx context.Context, r slog.Record) error {
	if r.Message != "Model removed successfully" {
		return nil
	}
	var n int
	if err := w.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM markov_models").Scan(&n); err != nil {
		n = -1
	}
	w.counts = append(w.counts, n)
	return nil
}

func TestStoreRemoveLogsAfterCommit(t *testing.T) {
	db, s := setupTestStore(t)
	ctx := context.Background()

	m := NewModel()
	m.Add("a", "b")
	require.NoError(t, s.Save(ctx, "gone", m))

	witness := &removalWitness{db: db}
	s.SetLogger(slog.New(witness))
	require.NoError(t, s.Remove(ctx, "gone"))

	// The removal is visible to other connections by the time it is logged.
	assert.Equal(t, []int{0}, witness.counts)
}

func TestStoreRemoveFailureIsNotLogged(t *testing.T) {
	_, s := setupTestStore(t)

	m := NewModel()
	m.Add("a", "b")
	require.NoError(t, s.Save(context.Background(), "kept", m))

	var logs bytes.Buffer
	s.SetLogger(slog.New(slog.NewTextHandler(&logs, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.Remove(ctx, "kept"))
	assert.NotContains(t, logs.String(), "Model removed")

	models, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "kept", models[0].Name)
}

func TestStoreRejectsEmptyName(t *testing.T) {
	_, s := setupTestStore(t)
	assert.Error(t, s.Save(context.Background(), "", NewModel()))
}

func TestSetupSchemaIsIdempotent(t *testing.T) {
	db, _ := setupTestStore(t)
	assert.NoError(t, SetupSchema(db), "second SetupSchema call")
}
