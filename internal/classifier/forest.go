package classifier

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"

	log "github.com/sirupsen/logrus"
)

type forestTrainer struct {
	cfg Config
}

type treeNode struct {
	leaf      bool
	posRate   float64
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
}

type forestModel struct {
	trees []*treeNode
	d     int
}

func (t *forestTrainer) Name() string { return Forest }

// Train grows cfg.Trees CART trees on bootstrap samples. Each tree draws from
// its own PCG stream so the forest is reproducible for a fixed seed.
func (t *forestTrainer) Train(ctx context.Context, X [][]float64, y []int) (Model, error) {
	d, err := checkTraining(X, y)
	if err != nil {
		return nil, err
	}
	mtry := t.cfg.MaxFeatures
	if mtry <= 0 {
		mtry = int(math.Sqrt(float64(d)))
	}
	mtry = max(1, min(mtry, d))

	m := &forestModel{d: d, trees: make([]*treeNode, t.cfg.Trees)}
	for ti := range m.trees {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rng := newRand(t.cfg.Seed, uint64(ti)+100)
		sample := make([]int, len(X))
		for i := range sample {
			sample[i] = rng.IntN(len(X))
		}
		b := &treeBuilder{X: X, y: y, d: d, mtry: mtry, maxDepth: t.cfg.MaxDepth, minLeaf: t.cfg.MinLeaf, rng: rng}
		m.trees[ti] = b.grow(sample, 0)
	}
	log.Debugf("forest: grew %d trees (mtry=%d)", len(m.trees), mtry)
	return m, nil
}

type treeBuilder struct {
	X        [][]float64
	y        []int
	d        int
	mtry     int
	maxDepth int
	minLeaf  int
	rng      *rand.Rand
}

func (b *treeBuilder) leaf(rows []int) *treeNode {
	pos := 0
	for _, i := range rows {
		pos += b.y[i]
	}
	return &treeNode{leaf: true, posRate: float64(pos) / float64(len(rows))}
}

func (b *treeBuilder) grow(rows []int, depth int) *treeNode {
	pos := 0
	for _, i := range rows {
		pos += b.y[i]
	}
	if depth >= b.maxDepth || len(rows) < 2*b.minLeaf || pos == 0 || pos == len(rows) {
		return b.leaf(rows)
	}

	feature, threshold, ok := b.bestSplit(rows, pos)
	if !ok {
		return b.leaf(rows)
	}
	var left, right []int
	for _, i := range rows {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      b.grow(left, depth+1),
		right:     b.grow(right, depth+1),
	}
}

// bestSplit scans mtry random features for the threshold minimizing the
// weighted Gini impurity of the children.
func (b *treeBuilder) bestSplit(rows []int, pos int) (int, float64, bool) {
	n := len(rows)
	best := gini(pos, n)
	bestFeature, bestThreshold, found := -1, 0.0, false

	sorted := make([]int, n)
	for _, f := range b.rng.Perm(b.d)[:b.mtry] {
		copy(sorted, rows)
		sort.Slice(sorted, func(i, j int) bool { return b.X[sorted[i]][f] < b.X[sorted[j]][f] })

		leftPos := 0
		for k := 0; k < n-1; k++ {
			leftPos += b.y[sorted[k]]
			lo, hi := b.X[sorted[k]][f], b.X[sorted[k+1]][f]
			if lo == hi {
				continue
			}
			nl := k + 1
			nr := n - nl
			if nl < b.minLeaf || nr < b.minLeaf {
				continue
			}
			score := (float64(nl)*gini(leftPos, nl) + float64(nr)*gini(pos-leftPos, nr)) / float64(n)
			if score < best-1e-12 {
				best, bestFeature, bestThreshold, found = score, f, (lo+hi)/2, true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

func gini(pos, n int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(pos) / float64(n)
	return 2 * p * (1 - p)
}

func (m *forestModel) Predict(X [][]float64) ([]int, error) {
	if err := checkPredict(X, m.d); err != nil {
		return nil, err
	}
	out := make([]int, len(X))
	for i, x := range X {
		var sum float64
		for _, tree := range m.trees {
			node := tree
			for !node.leaf {
				if x[node.feature] <= node.threshold {
					node = node.left
				} else {
					node = node.right
				}
			}
			sum += node.posRate
		}
		if sum/float64(len(m.trees)) > 0.5 {
			out[i] = 1
		}
	}
	return out, nil
}
