package supervised

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

type VectorizerConfig struct {
	MaxFeatures int     `json:"max_features"`
	MinDF       int     `json:"min_df"`
	MaxDF       float64 `json:"max_df"`
	NgramMax    int     `json:"ngram_max"`
}

func DefaultVectorizerConfig() VectorizerConfig {
	return VectorizerConfig{
		MaxFeatures: 1000,
		MinDF:       2,
		MaxDF:       0.9,
		NgramMax:    2,
	}
}

// Vectorizer maps text to L2-normalized TF-IDF vectors over a fixed
// vocabulary. Terms are indexed in lexical order.
type Vectorizer struct {
	Config     VectorizerConfig `json:"config"`
	Vocabulary map[string]int   `json:"vocabulary"`
	IDF        []float64        `json:"idf"`
}

var errEmptyVocabulary = errors.New("no terms remain after document frequency pruning")

// FitVectorizer learns the vocabulary and smoothed idf weights from docs.
func FitVectorizer(docs []string, cfg VectorizerConfig) (*Vectorizer, error) {
	if cfg.NgramMax <= 0 {
		cfg.NgramMax = 1
	}
	if cfg.MinDF <= 0 {
		cfg.MinDF = 1
	}
	if cfg.MaxDF <= 0 || cfg.MaxDF > 1 {
		cfg.MaxDF = 1
	}

	df := make(map[string]int)
	tf := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, term := range analyze(doc, cfg.NgramMax) {
			tf[term]++
			if _, ok := seen[term]; !ok {
				seen[term] = struct{}{}
				df[term]++
			}
		}
	}

	maxDocs := cfg.MaxDF * float64(len(docs))
	if maxDocs < float64(cfg.MinDF) {
		return nil, fmt.Errorf("max_df corresponds to fewer documents (%.1f) than min_df (%d)", maxDocs, cfg.MinDF)
	}

	terms := make([]string, 0, len(df))
	for term, count := range df {
		if count >= cfg.MinDF && float64(count) <= maxDocs {
			terms = append(terms, term)
		}
	}
	if len(terms) == 0 {
		return nil, errEmptyVocabulary
	}

	if cfg.MaxFeatures > 0 && len(terms) > cfg.MaxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if tf[terms[i]] != tf[terms[j]] {
				return tf[terms[i]] > tf[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:cfg.MaxFeatures]
	}
	sort.Strings(terms)

	v := &Vectorizer{
		Config:     cfg,
		Vocabulary: make(map[string]int, len(terms)),
		IDF:        make([]float64, len(terms)),
	}
	n := float64(len(docs))
	for idx, term := range terms {
		v.Vocabulary[term] = idx
		v.IDF[idx] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return v, nil
}

func (v *Vectorizer) Dim() int {
	return len(v.IDF)
}

// Transform returns the dense TF-IDF vector of text. Text without known terms
// yields the zero vector.
func (v *Vectorizer) Transform(text string) []float64 {
	out := make([]float64, len(v.IDF))
	for _, term := range analyze(text, v.Config.NgramMax) {
		if idx, ok := v.Vocabulary[term]; ok {
			out[idx]++
		}
	}
	var norm float64
	for idx, count := range out {
		if count == 0 {
			continue
		}
		out[idx] = count * v.IDF[idx]
		norm += out[idx] * out[idx]
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for idx := range out {
			out[idx] /= norm
		}
	}
	return out
}

// FeatureNames returns the vocabulary ordered by feature index.
func (v *Vectorizer) FeatureNames() []string {
	out := make([]string, len(v.IDF))
	for term, idx := range v.Vocabulary {
		if idx >= 0 && idx < len(out) {
			out[idx] = term
		}
	}
	return out
}

func (v *Vectorizer) validate() error {
	if len(v.IDF) == 0 || len(v.Vocabulary) != len(v.IDF) {
		return fmt.Errorf("vectorizer vocabulary (%d) and idf (%d) mismatch", len(v.Vocabulary), len(v.IDF))
	}
	for term, idx := range v.Vocabulary {
		if idx < 0 || idx >= len(v.IDF) {
			return fmt.Errorf("term %q has out-of-range index %d", term, idx)
		}
	}
	return nil
}
