package supervised

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

type ForestConfig struct {
	Trees           int    `json:"trees"`
	MaxFeatures     int    `json:"max_features"`
	MinSamplesSplit int    `json:"min_samples_split"`
	MinSamplesLeaf  int    `json:"min_samples_leaf"`
	MaxDepth        int    `json:"max_depth"`
	Seed            uint64 `json:"seed"`
	Workers         int    `json:"-"`
}

func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		Trees:           100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Seed:            42,
	}
}

type treeNode struct {
	// Feature is -1 for leaves.
	Feature   int       `json:"f"`
	Threshold float64   `json:"t,omitempty"`
	Left      int       `json:"l,omitempty"`
	Right     int       `json:"r,omitempty"`
	Value     []float64 `json:"v,omitempty"`
}

type decisionTree struct {
	Nodes []treeNode `json:"nodes"`
}

func (t *decisionTree) leaf(x []float64) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Forest is a bagged ensemble of CART trees grown with weighted gini
// impurity. Class probabilities are the mean of the leaf distributions.
type Forest struct {
	NClasses    int            `json:"n_classes"`
	NFeatures   int            `json:"n_features"`
	Trees       []decisionTree `json:"trees"`
	Importances []float64      `json:"feature_importances"`
}

// TrainForest fits a forest on dense rows x with class indices y. classWeight
// holds one multiplier per class. The result depends only on cfg.Seed, not on
// how trees are scheduled across workers.
func TrainForest(ctx context.Context, x [][]float64, y []int, classWeight []float64, nClasses int, cfg ForestConfig) (*Forest, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("forest needs matching rows and labels, got %d/%d", len(x), len(y))
	}
	if nClasses < 2 || len(classWeight) != nClasses {
		return nil, fmt.Errorf("forest needs at least 2 classes with weights, got %d/%d", nClasses, len(classWeight))
	}
	nFeatures := len(x[0])
	if nFeatures == 0 {
		return nil, errors.New("forest needs at least one feature")
	}
	for i, label := range y {
		if label < 0 || label >= nClasses {
			return nil, fmt.Errorf("row %d has class %d outside [0,%d)", i, label, nClasses)
		}
		if len(x[i]) != nFeatures {
			return nil, fmt.Errorf("row %d has %d features, expected %d", i, len(x[i]), nFeatures)
		}
	}

	if cfg.Trees <= 0 {
		cfg.Trees = DefaultForestConfig().Trees
	}
	if cfg.MinSamplesSplit < 2 {
		cfg.MinSamplesSplit = 2
	}
	if cfg.MinSamplesLeaf < 1 {
		cfg.MinSamplesLeaf = 1
	}
	mtry := cfg.MaxFeatures
	if mtry <= 0 || mtry > nFeatures {
		mtry = int(math.Max(1, math.Floor(math.Sqrt(float64(nFeatures)))))
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	master := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	seeds := make([]uint64, cfg.Trees)
	for i := range seeds {
		seeds[i] = master.Uint64()
	}

	trees := make([]decisionTree, cfg.Trees)
	importances := make([][]float64, cfg.Trees)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b := &treeBuilder{
				x:          x,
				y:          y,
				nClasses:   nClasses,
				nFeatures:  nFeatures,
				mtry:       mtry,
				cfg:        cfg,
				rng:        rand.New(rand.NewPCG(seeds[i], uint64(i))),
				importance: make([]float64, nFeatures),
			}
			samples := b.bootstrap(classWeight)
			b.build(samples, 0)
			trees[i] = decisionTree{Nodes: b.nodes}
			importances[i] = b.importance
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Forest{
		NClasses:    nClasses,
		NFeatures:   nFeatures,
		Trees:       trees,
		Importances: averageImportances(importances, nFeatures),
	}, nil
}

// PredictProba returns one probability per class, summing to 1.
func (f *Forest) PredictProba(x []float64) []float64 {
	out := make([]float64, f.NClasses)
	if len(f.Trees) == 0 {
		for i := range out {
			out[i] = 1 / float64(f.NClasses)
		}
		return out
	}
	for i := range f.Trees {
		for c, p := range f.Trees[i].leaf(x) {
			out[c] += p
		}
	}
	for c := range out {
		out[c] /= float64(len(f.Trees))
	}
	return out
}

func (f *Forest) validate() error {
	if f.NClasses < 2 || f.NFeatures <= 0 || len(f.Trees) == 0 {
		return fmt.Errorf("forest shape invalid: classes=%d features=%d trees=%d", f.NClasses, f.NFeatures, len(f.Trees))
	}
	for ti, tree := range f.Trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for ni, node := range tree.Nodes {
			if node.Feature < 0 {
				if len(node.Value) != f.NClasses {
					return fmt.Errorf("tree %d leaf %d has %d class values", ti, ni, len(node.Value))
				}
				continue
			}
			if node.Feature >= f.NFeatures ||
				node.Left <= ni || node.Left >= len(tree.Nodes) ||
				node.Right <= ni || node.Right >= len(tree.Nodes) {
				return fmt.Errorf("tree %d node %d is malformed", ti, ni)
			}
		}
	}
	return nil
}

func averageImportances(perTree [][]float64, nFeatures int) []float64 {
	out := make([]float64, nFeatures)
	for _, imp := range perTree {
		var sum float64
		for _, v := range imp {
			sum += v
		}
		if sum <= 0 {
			continue
		}
		for i, v := range imp {
			out[i] += v / sum
		}
	}
	var total float64
	for _, v := range out {
		total += v
	}
	if total > 0 {
		for i := range out {
			out[i] /= total
		}
	}
	return out
}

type treeBuilder struct {
	x         [][]float64
	y         []int
	nClasses  int
	nFeatures int
	mtry      int
	cfg       ForestConfig
	rng       *rand.Rand

	weight     []float64
	nodes      []treeNode
	importance []float64
	scratch    []int
}

// bootstrap draws len(x) rows with replacement. A row drawn k times carries
// k times its class weight.
func (b *treeBuilder) bootstrap(classWeight []float64) []int {
	n := len(b.x)
	counts := make([]int, n)
	for i := 0; i < n; i++ {
		counts[b.rng.IntN(n)]++
	}
	b.weight = make([]float64, n)
	samples := make([]int, 0, n)
	for i, c := range counts {
		if c == 0 {
			continue
		}
		b.weight[i] = float64(c) * classWeight[b.y[i]]
		samples = append(samples, i)
	}
	return samples
}

type split struct {
	ok        bool
	feature   int
	threshold float64
	gain      float64
	impLeft   float64
	impRight  float64
	wLeft     float64
	wRight    float64
}

func (b *treeBuilder) build(samples []int, depth int) int {
	dist := make([]float64, b.nClasses)
	var total float64
	for _, s := range samples {
		dist[b.y[s]] += b.weight[s]
		total += b.weight[s]
	}

	idx := len(b.nodes)
	b.nodes = append(b.nodes, treeNode{Feature: -1})

	if len(samples) < b.cfg.MinSamplesSplit ||
		len(samples) < 2*b.cfg.MinSamplesLeaf ||
		(b.cfg.MaxDepth > 0 && depth >= b.cfg.MaxDepth) ||
		isPure(dist) {
		b.nodes[idx].Value = normalizeDist(dist, total)
		return idx
	}

	impurity := gini(dist, total)
	best := b.findSplit(samples, dist, total, impurity)
	if !best.ok {
		b.nodes[idx].Value = normalizeDist(dist, total)
		return idx
	}

	b.importance[best.feature] += total*impurity - best.wLeft*best.impLeft - best.wRight*best.impRight

	left := make([]int, 0, len(samples))
	right := make([]int, 0, len(samples))
	for _, s := range samples {
		if b.x[s][best.feature] <= best.threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	leftIdx := b.build(left, depth+1)
	rightIdx := b.build(right, depth+1)
	b.nodes[idx] = treeNode{
		Feature:   best.feature,
		Threshold: best.threshold,
		Left:      leftIdx,
		Right:     rightIdx,
	}
	return idx
}

// findSplit visits features in random order. It stops after mtry
// non-constant features once a valid split exists, and keeps looking past
// mtry otherwise.
func (b *treeBuilder) findSplit(samples []int, dist []float64, total, impurity float64) split {
	var best split
	visited := 0
	leftDist := make([]float64, b.nClasses)
	rightDist := make([]float64, b.nClasses)

	for _, f := range b.rng.Perm(b.nFeatures) {
		if visited >= b.mtry && best.ok {
			break
		}
		sorted := append(b.scratch[:0], samples...)
		sort.Slice(sorted, func(i, j int) bool { return b.x[sorted[i]][f] < b.x[sorted[j]][f] })
		b.scratch = sorted
		if b.x[sorted[0]][f] == b.x[sorted[len(sorted)-1]][f] {
			continue
		}
		visited++

		for c := range leftDist {
			leftDist[c] = 0
		}
		var wLeft float64
		for i := 0; i < len(sorted)-1; i++ {
			s := sorted[i]
			leftDist[b.y[s]] += b.weight[s]
			wLeft += b.weight[s]

			v, next := b.x[s][f], b.x[sorted[i+1]][f]
			if v == next {
				continue
			}
			nLeft := i + 1
			if nLeft < b.cfg.MinSamplesLeaf || len(sorted)-nLeft < b.cfg.MinSamplesLeaf {
				continue
			}
			wRight := total - wLeft
			for c := range rightDist {
				rightDist[c] = dist[c] - leftDist[c]
			}
			impLeft := gini(leftDist, wLeft)
			impRight := gini(rightDist, wRight)
			gain := impurity - (wLeft/total)*impLeft - (wRight/total)*impRight
			if !best.ok || gain > best.gain+1e-12 {
				threshold := v + (next-v)/2
				if threshold >= next {
					threshold = v
				}
				best = split{
					ok:        true,
					feature:   f,
					threshold: threshold,
					gain:      gain,
					impLeft:   impLeft,
					impRight:  impRight,
					wLeft:     wLeft,
					wRight:    wRight,
				}
			}
		}
	}
	return best
}

func gini(dist []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	sum := 1.0
	for _, w := range dist {
		p := w / total
		sum -= p * p
	}
	return sum
}

func isPure(dist []float64) bool {
	nonZero := 0
	for _, w := range dist {
		if w > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func normalizeDist(dist []float64, total float64) []float64 {
	out := make([]float64, len(dist))
	if total <= 0 {
		for i := range out {
			out[i] = 1 / float64(len(out))
		}
		return out
	}
	for i, w := range dist {
		out[i] = w / total
	}
	return out
}
