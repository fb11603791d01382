package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/CTAG07/Stanza/pkg/markov"
	"github.com/CTAG07/Stanza/pkg/poem"
	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

// TokenizerConfig mirrors the options of markov.DefaultTokenizer.
type TokenizerConfig struct {
	NewlineToken     string `json:"newline_token"`
	SentenceMarkers  bool   `json:"sentence_markers"`
	MergeApostrophes bool   `json:"merge_apostrophes"`
	MergeHyphens     bool   `json:"merge_hyphens"`
	UniqueLines      bool   `json:"unique_lines"`
}

// GenerateConfig holds defaults for plain generation.
type GenerateConfig struct {
	Length int    `json:"length"`
	Seed   uint64 `json:"seed"` // 0 picks a random seed per run
	Reseed bool   `json:"reseed"`
}

// PoemConfig holds defaults for poem assembly.
type PoemConfig struct {
	SyllableTolerance int    `json:"syllable_tolerance"`
	MaxDepth          int    `json:"max_depth"`
	MaxAttempts       int    `json:"max_attempts"`
	Encoder           string `json:"encoder"`
}

// Config is the top-level configuration of the stanza command.
type Config struct {
	LogLevel     string           `json:"log_level"`
	DatabasePath string           `json:"database_path"`
	ModelName    string           `json:"model_name"`
	CorpusDir    string           `json:"corpus_dir"`
	FormsPath    string           `json:"forms_path"`
	Tokenizer    *TokenizerConfig `json:"tokenizer"`
	Generate     *GenerateConfig  `json:"generate"`
	Poem         *PoemConfig      `json:"poem"`
}

// DefaultConfig creates a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:     "info",
		DatabasePath: "./data/stanza.db?_journal_mode=WAL&_busy_timeout=5000",
		ModelName:    "default",
		CorpusDir:    "./data/corpus",
		FormsPath:    "./forms.yaml",
		Tokenizer: &TokenizerConfig{
			MergeHyphens: true,
		},
		Generate: &GenerateConfig{
			Length: 100,
		},
		Poem: &PoemConfig{
			SyllableTolerance: poem.DefaultSyllableTolerance,
			MaxDepth:          poem.DefaultMaxDepth,
			MaxAttempts:       poem.DefaultMaxAttempts,
			Encoder:           poem.EncoderDoubleMetaphone,
		},
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// Defaults are still usable without the file.
				fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err = config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.Tokenizer == nil {
		c.Tokenizer = DefaultConfig().Tokenizer
	}
	if c.Generate == nil {
		c.Generate = DefaultConfig().Generate
	}
	if c.Poem == nil {
		c.Poem = DefaultConfig().Poem
	}
	if c.Generate.Length < 1 {
		return fmt.Errorf("generate.length must be at least 1, got %d", c.Generate.Length)
	}
	if c.Poem.SyllableTolerance < 0 {
		return fmt.Errorf("poem.syllable_tolerance must not be negative, got %d", c.Poem.SyllableTolerance)
	}
	if _, err := poem.EncoderByName(c.Poem.Encoder); err != nil {
		return fmt.Errorf("poem.encoder: %w", err)
	}
	if _, err := parseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// TokenizerOptions converts the tokenizer section into markov options.
func (c *Config) TokenizerOptions() []markov.Option {
	t := c.Tokenizer
	return []markov.Option{
		markov.WithNewlineToken(t.NewlineToken),
		markov.WithSentenceMarkers(t.SentenceMarkers),
		markov.WithMergeApostrophes(t.MergeApostrophes),
		markov.WithMergeHyphens(t.MergeHyphens),
		markov.WithUniqueLines(t.UniqueLines),
	}
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// Forms maps a form name to its scheme entries, for example
// "haiku: [5a, 7b, 5a]".
type Forms map[string][]string

// DefaultForms returns the built-in poem forms.
func DefaultForms() Forms {
	return Forms{
		"haiku":    {"5a", "7b", "5a"},
		"couplet":  {"8a", "8a"},
		"limerick": {"8a", "8a", "5b", "5b", "8a"},
		"quatrain": {"8a", "8b", "8a", "8b"},
		"tercet":   {"7a", "7a", "7a"},
	}
}

// LoadForms reads poem forms from a YAML file and layers them over the
// built-in forms. A missing file is not an error.
func LoadForms(path string) (Forms, error) {
	forms := DefaultForms()

	file, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return forms, nil
		}
		return nil, fmt.Errorf("failed to read forms file: %w", err)
	}

	var custom Forms
	if err = yaml.Unmarshal(file, &custom); err != nil {
		return nil, fmt.Errorf("failed to parse forms file: %w", err)
	}
	for name, entries := range custom {
		if _, err = poem.ParseScheme(entries); err != nil {
			return nil, fmt.Errorf("form %q: %w", name, err)
		}
		forms[name] = entries
	}
	return forms, nil
}

// Scheme returns the parsed scheme of the named form.
func (f Forms) Scheme(name string) (poem.Scheme, error) {
	entries, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("unknown form %q (have %s)", name, strings.Join(f.Names(), ", "))
	}
	return poem.ParseScheme(entries)
}

// Names returns the form names in sorted order.
func (f Forms) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
