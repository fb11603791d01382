package main

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"sort"
	"strings"

	"github.com/CTAG07/Stanza/pkg/corpus"
	"github.com/CTAG07/Stanza/pkg/markov"
	"github.com/CTAG07/Stanza/pkg/poem"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
)

func newTrainCmd(a *app) *cobra.Command {
	var appendMode bool

	cmd := &cobra.Command{
		Use:   "train [path...]",
		Short: "Train a model from .txt files or directories of them",
		Long: `Train reads every given file, or every .txt file in a given directory, and
saves the resulting model. Without arguments the configured corpus_dir is used.
Each file is a separate source: no transition links the end of one file to
the start of the next.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{a.cfg.CorpusDir}
			}
			files, err := collectFiles(args)
			if err != nil {
				return err
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}

			m := markov.NewModel(markov.WithLogger(a.logger))
			if appendMode {
				existing, err := store.Load(cmd.Context(), a.cfg.ModelName, markov.WithLogger(a.logger))
				switch {
				case err == nil:
					m = existing
				case !errors.Is(err, sql.ErrNoRows):
					return err
				}
			}

			tokenizer := markov.NewDefaultTokenizer(a.cfg.TokenizerOptions()...)
			stats, err := corpus.Train(cmd.Context(), m, tokenizer, files)
			if err != nil {
				return err
			}
			if err = store.Save(cmd.Context(), a.cfg.ModelName, m); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "trained %q on %d file(s): %d tokens (%d markers), %d transitions, %d rejected, vocabulary %d\n",
				a.cfg.ModelName, len(files), stats.Tokens, stats.Markers, stats.Transitions, stats.Rejected, m.Len())
			return err
		},
	}
	cmd.Flags().BoolVar(&appendMode, "append", false, "add to the existing model instead of replacing it")
	return cmd
}

// collectFiles expands directories into their .txt files.
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read training source: %w", err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		found, err := corpus.Files(path)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}

// newRand seeds a source from the flag, the config, or at random, in that order.
func (a *app) newRand(cmd *cobra.Command, seed uint64) *rand.Rand {
	if !cmd.Flags().Changed("seed") {
		seed = a.cfg.Generate.Seed
	}
	if seed == 0 {
		seed = rand.Uint64()
	}
	a.logger.Debug("Random source seeded", "seed", seed)
	return markov.NewRand(seed)
}

func newGenerateCmd(a *app) *cobra.Command {
	var (
		length int
		seed   uint64
		start  string
		stream bool
		reseed bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate free text by walking the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.loadModel(cmd.Context())
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("length") {
				length = a.cfg.Generate.Length
			}
			if !cmd.Flags().Changed("reseed") {
				reseed = a.cfg.Generate.Reseed
			}
			rng := a.newRand(cmd, seed)
			opts := []markov.GenerateOption{markov.WithLength(length), markov.WithReseed(reseed)}
			if start != "" {
				opts = append(opts, markov.WithStartToken(start))
			}

			out := cmd.OutOrStdout()
			if stream {
				choices, err := markov.GenerateStream(cmd.Context(), rng, m, opts...)
				if err != nil {
					return err
				}
				sep := ""
				for c := range choices {
					if _, err = fmt.Fprint(out, sep+c.Token); err != nil {
						return err
					}
					sep = " "
				}
				_, err = fmt.Fprintln(out)
				if err == nil {
					err = cmd.Context().Err()
				}
				return err
			}

			gen, err := markov.Generate(cmd.Context(), rng, m, opts...)
			if err != nil {
				return err
			}
			if gen.Degraded > 0 {
				a.logger.Warn("Generation hit tokens without successors", "degraded_steps", gen.Degraded)
			}
			_, err = fmt.Fprintln(out, gen.Text)
			return err
		},
	}
	cmd.Flags().IntVarP(&length, "length", "n", 100, "number of tokens to generate (overrides generate.length)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed, 0 for a random one (overrides generate.seed)")
	cmd.Flags().StringVar(&start, "start", "", "token to start the walk from")
	cmd.Flags().BoolVar(&stream, "stream", false, "print tokens as they are generated")
	cmd.Flags().BoolVar(&reseed, "reseed", false, "restart from a random token after "+markov.UnknownTokenText+" (overrides generate.reseed)")
	return cmd
}

func newPoemCmd(a *app) *cobra.Command {
	var (
		form        string
		schemeText  string
		seed        uint64
		count       int
		tolerance   int
		maxDepth    int
		maxAttempts int
		encoderName string
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "poem",
		Short: "Assemble poems that follow a form or an explicit scheme",
		Example: `  stanza poem --form haiku
  stanza poem --scheme "8a 8b 8a 8b" --count 3 --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var scheme poem.Scheme
			var err error
			if schemeText != "" {
				scheme, err = poem.ParseSchemeString(schemeText)
			} else {
				var forms Forms
				if forms, err = LoadForms(a.cfg.FormsPath); err == nil {
					scheme, err = forms.Scheme(form)
				}
			}
			if err != nil {
				return err
			}
			if count < 1 {
				return fmt.Errorf("count must be at least 1, got %d", count)
			}

			m, err := a.loadModel(cmd.Context())
			if err != nil {
				return err
			}

			pc := a.cfg.Poem
			if cmd.Flags().Changed("tolerance") {
				pc.SyllableTolerance = tolerance
			}
			if cmd.Flags().Changed("max-depth") {
				pc.MaxDepth = maxDepth
			}
			if cmd.Flags().Changed("max-attempts") {
				pc.MaxAttempts = maxAttempts
			}
			if cmd.Flags().Changed("encoder") {
				pc.Encoder = encoderName
			}
			enc, err := poem.EncoderByName(pc.Encoder)
			if err != nil {
				return err
			}
			cached, err := poem.NewCachedEncoder(enc, encoderCacheSize)
			if err != nil {
				return err
			}
			assembler := poem.NewAssembler(m,
				poem.WithLogger(a.logger),
				poem.WithEncoder(cached),
				poem.WithSyllableTolerance(pc.SyllableTolerance),
				poem.WithMaxDepth(pc.MaxDepth),
				poem.WithMaxAttempts(pc.MaxAttempts),
			)

			rng := a.newRand(cmd, seed)
			out := cmd.OutOrStdout()
			for i := 0; i < count; i++ {
				p, err := assembler.Assemble(cmd.Context(), rng, scheme)
				if err != nil {
					return err
				}
				if i > 0 {
					if _, err = fmt.Fprintln(out); err != nil {
						return err
					}
				}
				if _, err = fmt.Fprintln(out, renderPoem(p, verbose)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&form, "form", "f", "haiku", "named form from the forms file")
	cmd.Flags().StringVarP(&schemeText, "scheme", "s", "", `explicit scheme such as "5a 7b 5a" (overrides --form)`)
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed, 0 for a random one (overrides generate.seed)")
	cmd.Flags().IntVar(&count, "count", 1, "number of poems to assemble")
	cmd.Flags().IntVar(&tolerance, "tolerance", poem.DefaultSyllableTolerance, "allowed syllable distance per line")
	cmd.Flags().IntVar(&maxDepth, "max-depth", poem.DefaultMaxDepth, "maximum tokens per search branch")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", poem.DefaultMaxAttempts, "maximum extensions tried per line")
	cmd.Flags().StringVar(&encoderName, "encoder", poem.EncoderDoubleMetaphone, "phonetic encoder for rhymes: double-metaphone or metaphone (overrides poem.encoder)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "annotate each line with its goals and outcome")
	return cmd
}

const encoderCacheSize = 4096

func renderPoem(p *poem.Poem, verbose bool) string {
	if !verbose {
		return p.String()
	}
	var sb strings.Builder
	for i, l := range p.Lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s\t# %s %s, %d/%d syllables", l.Line, l.Entry, l.Outcome, l.Line.Syllables(), l.Line.Goal())
		if rhyme := l.Line.RhymeGoal(); rhyme != "" {
			fmt.Fprintf(&sb, ", rhymes with %q", rhyme)
		}
		fmt.Fprintf(&sb, ", score %d, %d attempts", l.Line.Score(), l.Attempts)
		if l.SeedFallback {
			sb.WriteString(", reseeded")
		}
	}
	return sb.String()
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the model as JSON to a file or standard output",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.loadModel(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return m.Export(a.cfg.ModelName, cmd.OutOrStdout())
			}

			var buf bytes.Buffer
			if err = m.Export(a.cfg.ModelName, &buf); err != nil {
				return err
			}
			if err = atomic.WriteFile(args[0], &buf); err != nil {
				return fmt.Errorf("failed to write export file: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "exported %q to %s\n", a.cfg.ModelName, args[0])
			return err
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Load a JSON model export into the database",
		Long: `Import stores the model under the name given with --model, else the name
recorded in the export, else the configured model_name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open import file: %w", err)
			}
			defer func() { _ = f.Close() }()

			m, name, err := markov.Import(f, markov.WithLogger(a.logger))
			if err != nil {
				return err
			}
			if a.modelName != "" || name == "" {
				name = a.cfg.ModelName
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			if err = store.Save(cmd.Context(), name, m); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %q: vocabulary %d\n", name, m.Len())
			return err
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			models, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, info := range models {
				marker := " "
				if info.Name == a.cfg.ModelName {
					marker = "*"
				}
				if _, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, info.Name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show statistics of the model and the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.loadModel(cmd.Context())
			if err != nil {
				return err
			}
			ms := m.Stats()
			ss, err := a.store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"model:          %s\ntokens:         %d\ntransitions:    %d\nobservations:   %d\ndead ends:      %d\nstored models:  %d\nshared vocab:   %d\n",
				a.cfg.ModelName, ms.Tokens, ms.Transitions, ms.TotalFrequency, ms.DeadEnds, ss.Models, ss.VocabSize)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(ss.ModelSizes))
			for name := range ss.ModelSizes {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if _, err = fmt.Fprintf(cmd.OutOrStdout(), "  %-14s%d\n", name+":", ss.ModelSizes[name]); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Delete a stored model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			if err = store.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %q\n", args[0])
			return err
		},
	}
}

func newFormsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "forms",
		Short: "List the poem forms available to --form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			forms, err := LoadForms(a.cfg.FormsPath)
			if err != nil {
				return err
			}
			for _, name := range forms.Names() {
				if _, err = fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", name, strings.Join(forms[name], " ")); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// No config or database is needed.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "stanza %s (commit %s, built %s)\n", Version, Commit, BuildDate)
			return err
		},
	}
}
