package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/CTAG07/Stanza/pkg/markov"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	dbPath     string
	modelName  string
	logLevel   string

	cfg    *Config
	logger *slog.Logger
	db     *sql.DB
	store  *markov.Store
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	if closeErr := a.close(); closeErr != nil {
		fmt.Fprintln(os.Stderr, closeErr)
	}
	if err != nil {
		stop()
		os.Exit(1)
	}
}

// newRootCmd builds the command tree around a. The caller closes a once the
// command has run, whether or not it failed.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "stanza",
		Short: "Train word-transition models and generate text and poems from them",
		Long: `stanza trains first-order Markov models from plain text, keeps them in a
SQLite database and generates free text or poems that follow a scheme of
syllable goals and end rhymes, such as the haiku scheme "5a 7b 5a".`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "./stanza.json", "path to the JSON config file")
	flags.StringVar(&a.dbPath, "db", "", "SQLite database path (overrides database_path)")
	flags.StringVarP(&a.modelName, "model", "m", "", "model name (overrides model_name)")
	flags.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (overrides log_level)")

	root.AddCommand(
		newTrainCmd(a),
		newGenerateCmd(a),
		newPoemCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newListCmd(a),
		newStatsCmd(a),
		newRemoveCmd(a),
		newFormsCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads the config, applies flag overrides and builds the logger.
func (a *app) setup(logOut io.Writer) error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if a.dbPath != "" {
		cfg.DatabasePath = a.dbPath
	}
	if a.modelName != "" {
		cfg.ModelName = a.modelName
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}

	level, err := parseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))
	return nil
}

// openStore opens the database and prepares the model store on first use.
func (a *app) openStore() (*markov.Store, error) {
	if a.store != nil {
		return a.store, nil
	}

	path, _, _ := strings.Cut(a.cfg.DatabasePath, "?")
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := initDB(a.cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err = markov.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to setup markov schema: %w", err)
	}
	store, err := markov.NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create model store: %w", err)
	}
	store.SetLogger(a.logger)

	a.logger.Debug("Database opened", "driver", driverName, "path", path)
	a.db = db
	a.store = store
	return store, nil
}

// loadModel loads the configured model from the store.
func (a *app) loadModel(ctx context.Context) (*markov.Model, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	m, err := store.Load(ctx, a.cfg.ModelName, markov.WithLogger(a.logger))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("model %q not found, train or import it first", a.cfg.ModelName)
	}
	return m, err
}

func (a *app) close() error {
	if a.store != nil {
		a.store.Close()
		a.store = nil
	}
	if a.db != nil {
		err := a.db.Close()
		a.db = nil
		if err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	return nil
}
