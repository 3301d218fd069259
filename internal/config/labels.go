package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

// LabelSpec is one entry of the label taxonomy file. Entries are matched
// against filenames in file order.
type LabelSpec struct {
	Name        string   `yaml:"name"`
	Keywords    []string `yaml:"keywords"`
	Description string   `yaml:"description"`
}

type Taxonomy struct {
	Labels []LabelSpec `yaml:"labels"`
}

// LoadTaxonomy reads the YAML label file. An empty path yields an empty
// taxonomy, meaning built-in defaults apply.
func LoadTaxonomy(path string) (Taxonomy, error) {
	if strings.TrimSpace(path) == "" {
		return Taxonomy{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Taxonomy{}, fmt.Errorf("read labels file: %w", err)
	}
	return ParseTaxonomy(raw)
}

func ParseTaxonomy(raw []byte) (Taxonomy, error) {
	var t Taxonomy
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return Taxonomy{}, fmt.Errorf("parse labels file: %w", err)
	}

	seen := make(map[domain.Label]struct{}, len(t.Labels))
	for i, spec := range t.Labels {
		label, ok := domain.ParseLabel(spec.Name)
		if !ok || label == domain.LabelUnknown {
			return Taxonomy{}, fmt.Errorf("labels[%d]: unsupported label %q", i, spec.Name)
		}
		if _, dup := seen[label]; dup {
			return Taxonomy{}, fmt.Errorf("labels[%d]: duplicate label %q", i, spec.Name)
		}
		seen[label] = struct{}{}
		t.Labels[i].Name = string(label)
	}
	return t, nil
}

func (t Taxonomy) Empty() bool {
	return len(t.Labels) == 0
}
