package risk

import (
	"math"
	"math/rand"
	"sort"

	"github.com/alem-hub/academic-risk-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANDOM FOREST
// Ансамбль деревьев CART с bootstrap-выборкой и случайным подмножеством
// признаков в каждом узле. Критерий разбиения - индекс Джини.
// ══════════════════════════════════════════════════════════════════════════════

// ForestConfig - параметры леса.
type ForestConfig struct {
	// Trees - число деревьев. По умолчанию 100.
	Trees int

	// MaxDepth - максимальная глубина дерева. По умолчанию 5.
	MaxDepth int

	// MinSamplesSplit - минимум образцов в узле для разбиения. По умолчанию 2.
	MinSamplesSplit int

	// Seed делает обучение воспроизводимым. По умолчанию 42.
	Seed int64
}

// DefaultForestConfig возвращает параметры по умолчанию.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		Trees:           100,
		MaxDepth:        5,
		MinSamplesSplit: 2,
		Seed:            42,
	}
}

type treeNode struct {
	leaf      bool
	class     int
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
}

func (n *treeNode) predict(x []float64) int {
	for !n.leaf {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.class
}

// Forest - обученный случайный лес над классами 0..classes-1.
type Forest struct {
	config    ForestConfig
	trees     []*treeNode
	nFeatures int
	nClasses  int
}

// NewForest создаёт необученный лес.
func NewForest(cfg ForestConfig) *Forest {
	def := DefaultForestConfig()
	if cfg.Trees <= 0 {
		cfg.Trees = def.Trees
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	if cfg.MinSamplesSplit < 2 {
		cfg.MinSamplesSplit = def.MinSamplesSplit
	}
	if cfg.Seed == 0 {
		cfg.Seed = def.Seed
	}
	return &Forest{config: cfg}
}

// Fitted сообщает, обучен ли лес.
func (f *Forest) Fitted() bool {
	return len(f.trees) > 0
}

// NumFeatures возвращает длину вектора, на котором обучен лес.
func (f *Forest) NumFeatures() int {
	return f.nFeatures
}

// Fit обучает лес. Все строки X должны иметь одинаковую длину, метки
// неотрицательны.
func (f *Forest) Fit(X [][]float64, y []int) error {
	if len(X) == 0 || len(X) != len(y) {
		return shared.ErrFeatureShape
	}
	nFeatures := len(X[0])
	if nFeatures == 0 {
		return shared.ErrFeatureShape
	}
	nClasses := 0
	for i, row := range X {
		if len(row) != nFeatures || y[i] < 0 {
			return shared.ErrFeatureShape
		}
		if y[i]+1 > nClasses {
			nClasses = y[i] + 1
		}
	}

	rng := rand.New(rand.NewSource(f.config.Seed))
	b := &treeBuilder{
		X:         X,
		y:         y,
		nClasses:  nClasses,
		maxDepth:  f.config.MaxDepth,
		minSplit:  f.config.MinSamplesSplit,
		subspace:  subspaceSize(nFeatures),
		nFeatures: nFeatures,
		rng:       rng,
	}

	trees := make([]*treeNode, 0, f.config.Trees)
	n := len(X)
	for t := 0; t < f.config.Trees; t++ {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		trees = append(trees, b.build(sample, 0))
	}

	f.trees = trees
	f.nFeatures = nFeatures
	f.nClasses = nClasses
	return nil
}

// Predict возвращает класс большинством голосов; при равенстве побеждает
// меньший класс.
func (f *Forest) Predict(x []float64) (int, error) {
	if !f.Fitted() {
		return 0, shared.ErrNoModel
	}
	if len(x) != f.nFeatures {
		return 0, shared.ErrFeatureShape
	}
	votes := make([]int, f.nClasses)
	for _, t := range f.trees {
		votes[t.predict(x)]++
	}
	return argmax(votes), nil
}

func subspaceSize(nFeatures int) int {
	k := int(math.Sqrt(float64(nFeatures)))
	if k < 1 {
		k = 1
	}
	return k
}

func argmax(counts []int) int {
	best := 0
	for c := 1; c < len(counts); c++ {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

// ──────────────────────────────────────────────────────────────────────────────
// CART
// ──────────────────────────────────────────────────────────────────────────────

type treeBuilder struct {
	X         [][]float64
	y         []int
	nClasses  int
	nFeatures int
	maxDepth  int
	minSplit  int
	subspace  int
	rng       *rand.Rand
}

func (b *treeBuilder) counts(idx []int) []int {
	c := make([]int, b.nClasses)
	for _, i := range idx {
		c[b.y[i]]++
	}
	return c
}

func gini(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(total)
		g -= p * p
	}
	return g
}

func (b *treeBuilder) build(idx []int, depth int) *treeNode {
	counts := b.counts(idx)
	majority := argmax(counts)
	parent := gini(counts, len(idx))

	if depth >= b.maxDepth || len(idx) < b.minSplit || parent == 0 {
		return &treeNode{leaf: true, class: majority}
	}

	feature, threshold, ok := b.bestSplit(idx, parent)
	if !ok {
		return &treeNode{leaf: true, class: majority}
	}

	var left, right []int
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      b.build(left, depth+1),
		right:     b.build(right, depth+1),
	}
}

// bestSplit перебирает пороги посередине между соседними различными
// значениями каждого выбранного признака.
func (b *treeBuilder) bestSplit(idx []int, parent float64) (int, float64, bool) {
	candidates := b.rng.Perm(b.nFeatures)[:b.subspace]

	bestFeature, bestThreshold := -1, 0.0
	bestImpurity := parent
	n := len(idx)

	order := make([]int, n)
	for _, feature := range candidates {
		copy(order, idx)
		sort.SliceStable(order, func(a, c int) bool {
			return b.X[order[a]][feature] < b.X[order[c]][feature]
		})

		left := make([]int, b.nClasses)
		right := b.counts(order)
		for k := 0; k < n-1; k++ {
			cls := b.y[order[k]]
			left[cls]++
			right[cls]--

			cur, next := b.X[order[k]][feature], b.X[order[k+1]][feature]
			if cur == next {
				continue
			}
			nl, nr := k+1, n-k-1
			impurity := (float64(nl)*gini(left, nl) + float64(nr)*gini(right, nr)) / float64(n)
			if impurity < bestImpurity {
				bestImpurity = impurity
				bestFeature = feature
				bestThreshold = (cur + next) / 2
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}
