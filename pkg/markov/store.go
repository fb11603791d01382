package markov

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// SetupSchema initializes the necessary tables in the provided database.
// This function should be called once on a new database before a Store is
// created. It is idempotent and safe to call on an already-initialized
// database.
func SetupSchema(db *sql.DB) error {

	const (
		schemaVocab = `
CREATE TABLE IF NOT EXISTS markov_vocabulary (
    token_id INTEGER PRIMARY KEY,
    token_text TEXT NOT NULL UNIQUE
);
`
		schemaModels = `
CREATE TABLE IF NOT EXISTS markov_models (
    model_id INTEGER PRIMARY KEY,
    model_name TEXT NOT NULL UNIQUE
);
`
		schemaModelTokens = `
CREATE TABLE IF NOT EXISTS markov_model_tokens (
    model_id INTEGER NOT NULL,
    position INTEGER NOT NULL,
    token_id INTEGER NOT NULL,
    PRIMARY KEY (model_id, position)
);
`
		schemaTransitions = `
CREATE TABLE IF NOT EXISTS markov_transitions (
    model_id INTEGER NOT NULL,
    position INTEGER NOT NULL,
    prev_id INTEGER NOT NULL,
    next_id INTEGER NOT NULL,
    frequency INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (model_id, prev_id, next_id)
);
`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	// If the transaction succeeds, tx.Commit() will be called first, and the rollback will do nothing. If it fails, this will clean up.
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaVocab); err != nil {
		return fmt.Errorf("could not create vocabulary schema: %w", err)
	}

	if _, err = tx.Exec(schemaModels); err != nil {
		return fmt.Errorf("could not create models schema: %w", err)
	}

	if _, err = tx.Exec(schemaModelTokens); err != nil {
		return fmt.Errorf("could not create model tokens schema: %w", err)
	}

	if _, err = tx.Exec(schemaTransitions); err != nil {
		return fmt.Errorf("could not create transitions schema: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}

// ModelInfo holds the metadata of a stored model.
type ModelInfo struct {
	Id   int
	Name string
}

// Store persists Models in a SQLite database. Many named models can live in
// one database and share a single vocabulary table. It holds prepared SQL
// statements for efficient database interaction.
type Store struct {
	db                 *sql.DB
	stmtGetModelID     *sql.Stmt
	stmtGetModels      *sql.Stmt
	stmtUpsertModel    *sql.Stmt
	stmtInsertVocab    *sql.Stmt
	stmtGetModelTokens *sql.Stmt
	stmtGetTransitions *sql.Stmt
	stmtGetVocabLen    *sql.Stmt
	stmtGetModelLen    *sql.Stmt
	logger             *slog.Logger
}

// NewStore creates and returns a new Store. It pre-compiles all necessary SQL
// statements, returning an error if any preparation fails. SetupSchema must
// have been called on db first.
func NewStore(db *sql.DB) (*Store, error) {
	stmtGetModelID, err := db.Prepare(`SELECT model_id FROM markov_models WHERE model_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtGetModels, err := db.Prepare(`SELECT model_id, model_name FROM markov_models ORDER BY model_name;`)
	if err != nil {
		return nil, err
	}

	stmtUpsertModel, err := db.Prepare(`INSERT INTO markov_models (model_name) VALUES (?) ON CONFLICT(model_name) DO UPDATE SET model_name=excluded.model_name RETURNING model_id;`)
	if err != nil {
		return nil, err
	}

	stmtInsertVocab, err := db.Prepare(`INSERT INTO markov_vocabulary (token_text) VALUES (?) ON CONFLICT(token_text) DO UPDATE SET token_text=excluded.token_text RETURNING token_id;`)
	if err != nil {
		return nil, err
	}

	stmtGetModelTokens, err := db.Prepare(`
SELECT v.token_text FROM markov_model_tokens t
JOIN markov_vocabulary v ON v.token_id = t.token_id
WHERE t.model_id = ? ORDER BY t.position;`)
	if err != nil {
		return nil, err
	}

	stmtGetTransitions, err := db.Prepare(`
SELECT p.token_text, n.token_text, c.frequency FROM markov_transitions c
JOIN markov_vocabulary p ON p.token_id = c.prev_id
JOIN markov_vocabulary n ON n.token_id = c.next_id
WHERE c.model_id = ? ORDER BY c.position;`)
	if err != nil {
		return nil, err
	}

	stmtGetVocabLen, err := db.Prepare(`SELECT COUNT(*) FROM markov_vocabulary;`)
	if err != nil {
		return nil, err
	}

	stmtGetModelLen, err := db.Prepare(`SELECT COUNT(*) FROM markov_model_tokens WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:                 db,
		stmtGetModelID:     stmtGetModelID,
		stmtGetModels:      stmtGetModels,
		stmtUpsertModel:    stmtUpsertModel,
		stmtInsertVocab:    stmtInsertVocab,
		stmtGetModelTokens: stmtGetModelTokens,
		stmtGetTransitions: stmtGetTransitions,
		stmtGetVocabLen:    stmtGetVocabLen,
		stmtGetModelLen:    stmtGetModelLen,
		logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases all prepared SQL statements held by the Store. It does not
// close the database.
func (s *Store) Close() {
	_ = s.stmtGetModelID.Close()
	_ = s.stmtGetModels.Close()
	_ = s.stmtUpsertModel.Close()
	_ = s.stmtInsertVocab.Close()
	_ = s.stmtGetModelTokens.Close()
	_ = s.stmtGetTransitions.Close()
	_ = s.stmtGetVocabLen.Close()
	_ = s.stmtGetModelLen.Close()
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Save writes m under name, replacing any model previously stored under that
// name. The entire operation is performed within a single transaction.
func (s *Store) Save(ctx context.Context, name string, m *Model) error {
	if name == "" {
		return errors.New("markov: model name is required")
	}
	exported := m.Snapshot(name)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction for save: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var modelID int
	if err = tx.StmtContext(ctx, s.stmtUpsertModel).QueryRowContext(ctx, name).Scan(&modelID); err != nil {
		return fmt.Errorf("failed to upsert model '%s': %w", name, err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM markov_transitions WHERE model_id = ?", modelID); err != nil {
		return fmt.Errorf("failed to clear transitions for model %d: %w", modelID, err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM markov_model_tokens WHERE model_id = ?", modelID); err != nil {
		return fmt.Errorf("failed to clear tokens for model %d: %w", modelID, err)
	}

	stmtInsertVocab := tx.StmtContext(ctx, s.stmtInsertVocab)
	stmtInsertToken, err := tx.PrepareContext(ctx, `INSERT INTO markov_model_tokens (model_id, position, token_id) VALUES (?, ?, ?);`)
	if err != nil {
		return fmt.Errorf("failed to prepare token insert statement: %w", err)
	}
	defer func(stmt *sql.Stmt) {
		_ = stmt.Close()
	}(stmtInsertToken)

	stmtInsertTransition, err := tx.PrepareContext(ctx, `INSERT INTO markov_transitions (model_id, position, prev_id, next_id, frequency) VALUES (?, ?, ?, ?, ?);`)
	if err != nil {
		return fmt.Errorf("failed to prepare transition insert statement: %w", err)
	}
	defer func(stmt *sql.Stmt) {
		_ = stmt.Close()
	}(stmtInsertTransition)

	tokenIDs := make(map[string]int, len(exported.Vocabulary))
	for pos, text := range exported.Vocabulary {
		var tokenID int
		if err = stmtInsertVocab.QueryRowContext(ctx, text).Scan(&tokenID); err != nil {
			return fmt.Errorf("sql insert vocabulary error for token '%s': %w", text, err)
		}
		tokenIDs[text] = tokenID
		if _, err = stmtInsertToken.ExecContext(ctx, modelID, pos, tokenID); err != nil {
			return fmt.Errorf("failed to insert model token '%s': %w", text, err)
		}
	}

	for pos, t := range exported.Transitions {
		if _, err = stmtInsertTransition.ExecContext(ctx, modelID, pos, tokenIDs[t.Prev], tokenIDs[t.Next], t.Frequency); err != nil {
			return fmt.Errorf("failed to insert transition (%q -> %q): %w", t.Prev, t.Next, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit model '%s': %w", name, err)
	}

	s.logger.InfoContext(ctx, "Model saved",
		slog.String("model_name", name),
		slog.Int("model_id", modelID),
		slog.Int("vocab_items_saved", len(exported.Vocabulary)),
		slog.Int("transitions_saved", len(exported.Transitions)),
	)
	return nil
}

// Load reads the model stored under name. A missing model returns an error
// wrapping sql.ErrNoRows; stored data that does not form a valid model
// returns an error wrapping ErrMalformedModel.
func (s *Store) Load(ctx context.Context, name string, opts ...ModelOption) (*Model, error) {
	var modelID int
	if err := s.stmtGetModelID.QueryRowContext(ctx, name).Scan(&modelID); err != nil {
		return nil, fmt.Errorf("failed to look up model '%s': %w", name, err)
	}

	exported := &ExportedModel{Name: name}

	rows, err := s.stmtGetModelTokens.QueryContext(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("could not query tokens for model '%s': %w", name, err)
	}
	for rows.Next() {
		var text string
		if err = rows.Scan(&text); err != nil {
			_ = rows.Close()
			return nil, err
		}
		exported.Vocabulary = append(exported.Vocabulary, text)
	}
	_ = rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}

	tRows, err := s.stmtGetTransitions.QueryContext(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("could not query transitions for model '%s': %w", name, err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(tRows)
	for tRows.Next() {
		var t ExportedTransition
		if err = tRows.Scan(&t.Prev, &t.Next, &t.Frequency); err != nil {
			return nil, err
		}
		exported.Transitions = append(exported.Transitions, t)
	}
	if err = tRows.Err(); err != nil {
		return nil, err
	}

	m, err := Restore(exported, opts...)
	if err != nil {
		return nil, fmt.Errorf("stored model '%s': %w", name, err)
	}

	s.logger.DebugContext(ctx, "Model loaded",
		slog.String("model_name", name),
		slog.Int("model_id", modelID),
		slog.Int("vocab_items_loaded", len(exported.Vocabulary)),
		slog.Int("transitions_loaded", len(exported.Transitions)),
	)
	return m, nil
}

// List returns the metadata of every stored model, ordered by name.
func (s *Store) List(ctx context.Context) ([]ModelInfo, error) {
	rows, err := s.stmtGetModels.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var models []ModelInfo
	for rows.Next() {
		var model ModelInfo
		if err = rows.Scan(&model.Id, &model.Name); err != nil {
			return nil, err
		}
		models = append(models, model)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return models, nil
}

// Remove deletes a model and all of its transitions. The shared vocabulary
// is left untouched. Removing a model that does not exist is not an error.
func (s *Store) Remove(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction for remove: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var modelID int
	err = tx.StmtContext(ctx, s.stmtGetModelID).QueryRowContext(ctx, name).Scan(&modelID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up model '%s': %w", name, err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM markov_transitions WHERE model_id = ?", modelID); err != nil {
		return fmt.Errorf("failed to remove transitions for model %d: %w", modelID, err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM markov_model_tokens WHERE model_id = ?", modelID); err != nil {
		return fmt.Errorf("failed to remove tokens for model %d: %w", modelID, err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM markov_models WHERE model_id = ?", modelID); err != nil {
		return fmt.Errorf("failed to remove model %d: %w", modelID, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit removal of model '%s': %w", name, err)
	}

	s.logger.InfoContext(ctx, "Model removed successfully",
		slog.String("model_name", name),
		slog.Int("model_id", modelID),
	)
	return nil
}

// StoreStats holds database-wide counts.
type StoreStats struct {
	Models     int            // The number of stored models.
	VocabSize  int            // The number of unique tokens shared by all models.
	ModelSizes map[string]int // Vocabulary size of each model, keyed by name.
}

// Stats returns a snapshot of database-wide statistics.
func (s *Store) Stats(ctx context.Context) (*StoreStats, error) {
	models, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := &StoreStats{Models: len(models), ModelSizes: make(map[string]int, len(models))}
	if err = s.stmtGetVocabLen.QueryRowContext(ctx).Scan(&stats.VocabSize); err != nil {
		return nil, err
	}
	for _, model := range models {
		var n int
		if err = s.stmtGetModelLen.QueryRowContext(ctx, model.Id).Scan(&n); err != nil {
			return nil, err
		}
		stats.ModelSizes[model.Name] = n
	}
	return stats, nil
}
