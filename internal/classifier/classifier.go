// Package classifier holds the sentiment classifiers compared by the
// benchmark. Each variant is a Trainer producing an immutable Model.
package classifier

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"cinematch/internal/models"
)

const (
	Logistic   = "logistic"
	Forest     = "forest"
	NNShallow  = "nn-shallow"
	NNDeep     = "nn-deep"
	NaiveBayes = "naive-bayes"
)

// Names lists every classifier in registration order.
func Names() []string {
	return []string{Logistic, Forest, NNShallow, NNDeep, NaiveBayes}
}

// DefaultNames is Names without naive Bayes when features can be negative.
func DefaultNames(nonNegativeFeatures bool) []string {
	if nonNegativeFeatures {
		return Names()
	}
	return []string{Logistic, Forest, NNShallow, NNDeep}
}

type Trainer interface {
	Name() string
	Train(ctx context.Context, X [][]float64, y []int) (Model, error)
}

type Model interface {
	Predict(X [][]float64) ([]int, error)
}

// Config carries the hyperparameters of every variant; each one reads the
// fields it needs. Zero values pick the defaults below.
type Config struct {
	Seed         uint64  `json:"seed" yaml:"seed"`
	Epochs       int     `json:"epochs" yaml:"epochs"`
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate"`
	BatchSize    int     `json:"batch_size" yaml:"batch_size"`
	L2           float64 `json:"l2" yaml:"l2"`
	Trees        int     `json:"trees" yaml:"trees"`
	MaxDepth     int     `json:"max_depth" yaml:"max_depth"`
	MinLeaf      int     `json:"min_leaf" yaml:"min_leaf"`
	// MaxFeatures per split; 0 means sqrt(d).
	MaxFeatures int     `json:"max_features" yaml:"max_features"`
	Alpha       float64 `json:"alpha" yaml:"alpha"`
}

func (c Config) withDefaults() Config {
	if c.Epochs <= 0 {
		c.Epochs = 20
	}
	if c.LearningRate <= 0 {
		c.LearningRate = 0.1
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.L2 < 0 {
		c.L2 = 0
	}
	if c.Trees <= 0 {
		c.Trees = 50
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 12
	}
	if c.MinLeaf <= 0 {
		c.MinLeaf = 1
	}
	if c.Alpha <= 0 {
		c.Alpha = 1
	}
	return c
}

// New returns the named trainer.
func New(name string, cfg Config) (Trainer, error) {
	cfg = cfg.withDefaults()
	switch name {
	case Logistic:
		return &logisticTrainer{cfg: cfg}, nil
	case Forest:
		return &forestTrainer{cfg: cfg}, nil
	case NNShallow:
		return &networkTrainer{name: NNShallow, hidden: []int{64}, cfg: cfg}, nil
	case NNDeep:
		return &networkTrainer{name: NNDeep, hidden: []int{128, 32}, cfg: cfg}, nil
	case NaiveBayes:
		return &bayesTrainer{cfg: cfg}, nil
	default:
		return nil, fmt.Errorf("%w: unknown classifier %q", models.ErrConfiguration, name)
	}
}

// checkTraining validates a training set and returns its width.
func checkTraining(X [][]float64, y []int) (int, error) {
	if len(X) == 0 {
		return 0, fmt.Errorf("%w: no training rows", models.ErrEmptyInput)
	}
	if len(X) != len(y) {
		return 0, fmt.Errorf("%w: %d rows but %d labels", models.ErrConfiguration, len(X), len(y))
	}
	d := len(X[0])
	if d == 0 {
		return 0, fmt.Errorf("%w: training rows have no features", models.ErrEmptyInput)
	}
	for i, row := range X {
		if len(row) != d {
			return 0, fmt.Errorf("%w: row %d has %d features, want %d", models.ErrDimensionMismatch, i, len(row), d)
		}
		if y[i] != models.LabelNegative && y[i] != models.LabelPositive {
			return 0, fmt.Errorf("%w: label %d at row %d is not 0|1", models.ErrConfiguration, y[i], i)
		}
	}
	return d, nil
}

func checkPredict(X [][]float64, d int) error {
	for i, row := range X {
		if len(row) != d {
			return fmt.Errorf("%w: row %d has %d features, model expects %d", models.ErrDimensionMismatch, i, len(row), d)
		}
	}
	return nil
}

func newRand(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func dot(w, x []float64) float64 {
	var s float64
	for i := range w {
		s += w[i] * x[i]
	}
	return s
}

func order(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
