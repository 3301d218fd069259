package supervised

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

const (
	DefaultModelFile        = "classifier.json"
	DefaultVectorizerFile   = "vectorizer.json"
	DefaultLabelEncoderFile = "label_encoder.json"
)

// Paths locates the three model artifacts.
type Paths struct {
	Model        string
	Vectorizer   string
	LabelEncoder string
}

func PathsIn(dir string) Paths {
	return Paths{
		Model:        filepath.Join(dir, DefaultModelFile),
		Vectorizer:   filepath.Join(dir, DefaultVectorizerFile),
		LabelEncoder: filepath.Join(dir, DefaultLabelEncoderFile),
	}
}

// Model is a trained vectorizer, forest and label encoder. It is read-only
// after construction and safe for concurrent use.
type Model struct {
	vectorizer *Vectorizer
	forest     *Forest
	labels     *LabelEncoder
}

func newModel(v *Vectorizer, f *Forest, l *LabelEncoder) (*Model, error) {
	if err := v.validate(); err != nil {
		return nil, err
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	if err := l.validate(); err != nil {
		return nil, err
	}
	if f.NFeatures != v.Dim() {
		return nil, fmt.Errorf("forest expects %d features, vectorizer produces %d", f.NFeatures, v.Dim())
	}
	if f.NClasses != len(l.Classes) {
		return nil, fmt.Errorf("forest has %d classes, label encoder %d", f.NClasses, len(l.Classes))
	}
	return &Model{vectorizer: v, forest: f, labels: l}, nil
}

// Load reads the artifacts written by Save. Missing or inconsistent files
// are reported as ErrModelLoad.
func Load(modelPath, vectorizerPath, labelEncoderPath string) (*Model, error) {
	return LoadPaths(Paths{Model: modelPath, Vectorizer: vectorizerPath, LabelEncoder: labelEncoderPath})
}

func LoadPaths(paths Paths) (*Model, error) {
	var (
		v Vectorizer
		f Forest
		l LabelEncoder
	)
	if err := readJSON(paths.Model, &f); err != nil {
		return nil, domain.WrapError(domain.ErrModelLoad, "load model", err)
	}
	if err := readJSON(paths.Vectorizer, &v); err != nil {
		return nil, domain.WrapError(domain.ErrModelLoad, "load vectorizer", err)
	}
	if err := readJSON(paths.LabelEncoder, &l); err != nil {
		return nil, domain.WrapError(domain.ErrModelLoad, "load label encoder", err)
	}
	m, err := newModel(&v, &f, &l)
	if err != nil {
		return nil, domain.WrapError(domain.ErrModelLoad, "validate model", err)
	}
	return m, nil
}

func (m *Model) Save(paths Paths) error {
	if m == nil {
		return errors.New("model not trained")
	}
	if err := writeJSON(paths.Model, m.forest); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	if err := writeJSON(paths.Vectorizer, m.vectorizer); err != nil {
		return fmt.Errorf("save vectorizer: %w", err)
	}
	if err := writeJSON(paths.LabelEncoder, m.labels); err != nil {
		return fmt.Errorf("save label encoder: %w", err)
	}
	return nil
}

// Predict returns the most probable label and its probability. A forest
// index outside the encoder's classes yields unknown with probability 0.
func (m *Model) Predict(text string) (string, float64) {
	probs := m.forest.PredictProba(m.vectorizer.Transform(text))
	if len(probs) == 0 {
		return string(domain.LabelUnknown), 0
	}
	best := argmax(probs)
	label, err := m.labels.Decode(best)
	if err != nil {
		return string(domain.LabelUnknown), 0
	}
	return label, probs[best]
}

func (m *Model) Classes() []string {
	return append([]string(nil), m.labels.Classes...)
}

func readJSON(path string, dst any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
