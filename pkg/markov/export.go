package markov

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// ErrMalformedModel is returned when a serialized model cannot be restored.
var ErrMalformedModel = errors.New("markov: malformed model")

// ExportedModel is the serializable representation of a trained model,
// used for JSON-based import and export.
type ExportedModel struct {
	Name        string               `json:"name,omitempty"`
	Vocabulary  []string             `json:"vocabulary"`
	Transitions []ExportedTransition `json:"transitions"`
}

// ExportedTransition is the serializable representation of a single link
// in the model, used within an ExportedModel.
type ExportedTransition struct {
	Prev      string `json:"prev"`
	Next      string `json:"next"`
	Frequency int    `json:"frequency"`
}

// Snapshot returns the serializable form of the model. Vocabulary and
// transitions keep their first-seen order.
func (m *Model) Snapshot(name string) *ExportedModel {
	m.mu.RLock()
	defer m.mu.RUnlock()

	exported := &ExportedModel{
		Name:        name,
		Vocabulary:  make([]string, len(m.vocab)),
		Transitions: make([]ExportedTransition, 0, len(m.vocab)),
	}
	copy(exported.Vocabulary, m.vocab)
	for _, prev := range m.vocab {
		s := m.table[prev]
		for i, next := range s.next {
			exported.Transitions = append(exported.Transitions, ExportedTransition{
				Prev:      prev,
				Next:      next,
				Frequency: s.freq[i],
			})
		}
	}
	return exported
}

// Restore builds a Model from its serialized form. Every transition must
// refer to vocabulary tokens and carry a positive frequency; anything else
// is reported as ErrMalformedModel.
func Restore(exported *ExportedModel, opts ...ModelOption) (*Model, error) {
	m := NewModel(opts...)
	known := make(map[string]struct{}, len(exported.Vocabulary))
	for _, token := range exported.Vocabulary {
		if token == "" {
			return nil, fmt.Errorf("%w: empty vocabulary token", ErrMalformedModel)
		}
		if _, dup := known[token]; dup {
			return nil, fmt.Errorf("%w: duplicate vocabulary token %q", ErrMalformedModel, token)
		}
		known[token] = struct{}{}
		m.ensure(token)
	}

	type link struct{ prev, next string }
	seen := make(map[link]struct{}, len(exported.Transitions))
	for _, t := range exported.Transitions {
		if _, ok := known[t.Prev]; !ok {
			return nil, fmt.Errorf("%w: transition source %q not in vocabulary", ErrMalformedModel, t.Prev)
		}
		if _, ok := known[t.Next]; !ok {
			return nil, fmt.Errorf("%w: transition target %q not in vocabulary", ErrMalformedModel, t.Next)
		}
		if t.Frequency <= 0 {
			return nil, fmt.Errorf("%w: non-positive frequency %d for %q -> %q", ErrMalformedModel, t.Frequency, t.Prev, t.Next)
		}
		l := link{t.Prev, t.Next}
		if _, dup := seen[l]; dup {
			return nil, fmt.Errorf("%w: duplicate transition %q -> %q", ErrMalformedModel, t.Prev, t.Next)
		}
		seen[l] = struct{}{}
		m.addCount(t.Prev, t.Next, t.Frequency)
	}
	return m, nil
}

// Export serializes the model into a JSON format and writes it to the
// provided io.Writer. This is useful for backups or for transferring models.
func (m *Model) Export(name string, w io.Writer) error {
	exported := m.Snapshot(name)

	m.logger.Info("Model exported",
		slog.String("model_name", name),
		slog.Int("vocab_items_exported", len(exported.Vocabulary)),
		slog.Int("transitions_exported", len(exported.Transitions)),
	)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exported)
}

// Import reads a JSON representation of a model from an io.Reader and
// returns the restored model together with the name it was exported under.
func Import(r io.Reader, opts ...ModelOption) (*Model, string, error) {
	var imported ExportedModel
	if err := json.NewDecoder(r).Decode(&imported); err != nil {
		return nil, "", fmt.Errorf("%w: failed to decode json model: %v", ErrMalformedModel, err)
	}

	m, err := Restore(&imported, opts...)
	if err != nil {
		return nil, "", err
	}

	m.logger.Info("Model imported",
		slog.String("model_name", imported.Name),
		slog.Int("vocab_items_imported", len(imported.Vocabulary)),
		slog.Int("transitions_imported", len(imported.Transitions)),
	)
	return m, imported.Name, nil
}

// MarshalJSON encodes the model as an unnamed ExportedModel.
func (m *Model) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Snapshot(""))
}

// UnmarshalJSON restores the model from JSON; the model must be empty.
func (m *Model) UnmarshalJSON(d []byte) error {
	if m.Len() > 0 {
		return errors.New("markov: model already has data")
	}
	var exported ExportedModel
	if err := json.Unmarshal(d, &exported); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedModel, err)
	}
	restored, err := Restore(&exported)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.vocab = restored.vocab
	m.table = restored.table
	if m.logger == nil {
		m.logger = restored.logger
	}
	return nil
}
