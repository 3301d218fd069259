package supervised

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

type TrainingConfig struct {
	Vectorizer      VectorizerConfig
	Forest          ForestConfig
	ValidationSplit float64
	TopFeatures     int
}

func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Vectorizer:      DefaultVectorizerConfig(),
		Forest:          DefaultForestConfig(),
		ValidationSplit: 0.2,
		TopFeatures:     10,
	}
}

type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

type Metrics struct {
	ValAccuracy float64             `json:"val_accuracy"`
	NFeatures   int                 `json:"n_features"`
	NClasses    int                 `json:"n_classes"`
	TrainSize   int                 `json:"train_size"`
	ValSize     int                 `json:"val_size"`
	TopFeatures []FeatureImportance `json:"top_features"`
}

// Train fits the vectorizer on all texts, holds out a stratified validation
// split and grows the forest on the rest with balanced class weights.
func Train(ctx context.Context, texts, labels []string, cfg TrainingConfig) (*Model, Metrics, error) {
	if len(texts) != len(labels) {
		return nil, Metrics{}, fmt.Errorf("got %d texts and %d labels", len(texts), len(labels))
	}
	if len(texts) < 2 {
		return nil, Metrics{}, domain.WrapError(domain.ErrInsufficientTrainingData, "train", errors.New("need at least 2 documents for training"))
	}
	encoder := FitLabelEncoder(labels)
	if len(encoder.Classes) < 2 {
		return nil, Metrics{}, domain.WrapError(domain.ErrInsufficientTrainingData, "train", errors.New("need at least 2 different classes for training"))
	}

	vectorizer, err := FitVectorizer(texts, cfg.Vectorizer)
	if err != nil {
		return nil, Metrics{}, domain.WrapError(domain.ErrInsufficientTrainingData, "fit vectorizer", err)
	}

	x := make([][]float64, len(texts))
	y := make([]int, len(texts))
	for i, text := range texts {
		x[i] = vectorizer.Transform(text)
		y[i], _ = encoder.Encode(labels[i])
	}

	trainIdx, valIdx, err := stratifiedSplit(y, len(encoder.Classes), cfg.ValidationSplit, cfg.Forest.Seed)
	if err != nil {
		return nil, Metrics{}, domain.WrapError(domain.ErrInsufficientTrainingData, "split", err)
	}

	xTrain, yTrain := subset(x, y, trainIdx)
	forest, err := TrainForest(ctx, xTrain, yTrain, balancedWeights(yTrain, len(encoder.Classes)), len(encoder.Classes), cfg.Forest)
	if err != nil {
		return nil, Metrics{}, fmt.Errorf("train forest: %w", err)
	}

	model, err := newModel(vectorizer, forest, encoder)
	if err != nil {
		return nil, Metrics{}, fmt.Errorf("assemble model: %w", err)
	}

	correct := 0
	for _, i := range valIdx {
		probs := forest.PredictProba(x[i])
		if argmax(probs) == y[i] {
			correct++
		}
	}
	metrics := Metrics{
		NFeatures:   vectorizer.Dim(),
		NClasses:    len(encoder.Classes),
		TrainSize:   len(trainIdx),
		ValSize:     len(valIdx),
		TopFeatures: topFeatures(vectorizer.FeatureNames(), forest.Importances, cfg.TopFeatures),
	}
	if len(valIdx) > 0 {
		metrics.ValAccuracy = float64(correct) / float64(len(valIdx))
	}
	return model, metrics, nil
}

// stratifiedSplit keeps the class proportions in both parts. Every class needs
// two members and each part must be able to hold every class.
func stratifiedSplit(y []int, nClasses int, testFraction float64, seed uint64) ([]int, []int, error) {
	if testFraction <= 0 || testFraction >= 1 {
		all := make([]int, len(y))
		for i := range all {
			all[i] = i
		}
		return all, nil, nil
	}

	byClass := make([][]int, nClasses)
	for i, c := range y {
		byClass[c] = append(byClass[c], i)
	}
	for c, members := range byClass {
		if len(members) < 2 {
			return nil, nil, fmt.Errorf("class %d has %d document(s), stratified split needs at least 2", c, len(members))
		}
	}

	n := len(y)
	nTest := int(math.Ceil(testFraction * float64(n)))
	if nTest < nClasses || n-nTest < nClasses {
		return nil, nil, fmt.Errorf("%d documents cannot be split %d/%d across %d classes", n, n-nTest, nTest, nClasses)
	}

	// Floor allocation first, then hand out the remainder by largest fraction.
	alloc := make([]int, nClasses)
	type remainder struct {
		class int
		frac  float64
	}
	rems := make([]remainder, nClasses)
	assigned := 0
	for c, members := range byClass {
		exact := float64(nTest) * float64(len(members)) / float64(n)
		alloc[c] = int(math.Floor(exact))
		rems[c] = remainder{class: c, frac: exact - float64(alloc[c])}
		assigned += alloc[c]
	}
	sort.SliceStable(rems, func(i, j int) bool { return rems[i].frac > rems[j].frac })
	for i := 0; assigned < nTest; i = (i + 1) % nClasses {
		c := rems[i].class
		if alloc[c] < len(byClass[c])-1 {
			alloc[c]++
			assigned++
		}
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	var train, test []int
	for c, members := range byClass {
		shuffled := append([]int(nil), members...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		test = append(test, shuffled[:alloc[c]]...)
		train = append(train, shuffled[alloc[c]:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

// balancedWeights returns n_samples / (n_classes * count_c) per class.
// Classes missing from y get weight 1.
func balancedWeights(y []int, nClasses int) []float64 {
	counts := make([]int, nClasses)
	for _, c := range y {
		counts[c]++
	}
	out := make([]float64, nClasses)
	for c, count := range counts {
		if count == 0 {
			out[c] = 1
			continue
		}
		out[c] = float64(len(y)) / (float64(nClasses) * float64(count))
	}
	return out
}

func subset(x [][]float64, y []int, idx []int) ([][]float64, []int) {
	xs := make([][]float64, len(idx))
	ys := make([]int, len(idx))
	for i, j := range idx {
		xs[i] = x[j]
		ys[i] = y[j]
	}
	return xs, ys
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

func topFeatures(names []string, importances []float64, k int) []FeatureImportance {
	out := make([]FeatureImportance, 0, len(names))
	for i, name := range names {
		if i < len(importances) {
			out = append(out, FeatureImportance{Feature: name, Importance: importances[i]})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].Feature > out[j].Feature
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}
