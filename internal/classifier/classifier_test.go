package classifier

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinematch/internal/models"
)

// separable builds two well separated non-negative blobs: positives load on
// the first half of the columns, negatives on the second half.
func separable(n, d int, seed uint64) Dataset {
	rng := rand.New(rand.NewPCG(seed, 9))
	ds := Dataset{X: make([][]float64, n), Y: make([]int, n)}
	for i := 0; i < n; i++ {
		label := i % 2
		row := make([]float64, d)
		for k := range row {
			hot := (k < d/2) == (label == 1)
			if hot {
				row[k] = 1 + rng.Float64()
			} else {
				row[k] = 0.1 * rng.Float64()
			}
		}
		ds.X[i], ds.Y[i] = row, label
	}
	return ds
}

func TestEachClassifierLearnsSeparableData(t *testing.T) {
	train := separable(80, 6, 1)
	test := separable(40, 6, 2)
	cfg := Config{Seed: 42, Epochs: 50, LearningRate: 0.05, Trees: 15}

	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			tr, err := New(name, cfg)
			require.NoError(t, err)
			assert.Equal(t, name, tr.Name())

			m, err := tr.Train(context.Background(), train.X, train.Y)
			require.NoError(t, err)
			pred, err := m.Predict(test.X)
			require.NoError(t, err)
			acc, err := Accuracy(pred, test.Y)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, acc, 0.95)
		})
	}
}

func TestSeededTrainingIsReproducible(t *testing.T) {
	train := separable(60, 4, 3)
	test := separable(20, 4, 4)
	for _, name := range []string{Logistic, Forest, NNShallow} {
		t.Run(name, func(t *testing.T) {
			run := func() []int {
				tr, err := New(name, Config{Seed: 7, Epochs: 5, Trees: 5})
				require.NoError(t, err)
				m, err := tr.Train(context.Background(), train.X, train.Y)
				require.NoError(t, err)
				p, err := m.Predict(test.X)
				require.NoError(t, err)
				return p
			}
			assert.Equal(t, run(), run())
		})
	}
}

func TestTrainValidation(t *testing.T) {
	tr, err := New(Logistic, Config{})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = tr.Train(ctx, nil, nil)
	assert.ErrorIs(t, err, models.ErrEmptyInput)

	_, err = tr.Train(ctx, [][]float64{{1, 2}, {1}}, []int{0, 1})
	assert.ErrorIs(t, err, models.ErrDimensionMismatch)

	_, err = tr.Train(ctx, [][]float64{{1}}, []int{0, 1})
	assert.ErrorIs(t, err, models.ErrConfiguration)

	_, err = tr.Train(ctx, [][]float64{{1}}, []int{2})
	assert.ErrorIs(t, err, models.ErrConfiguration)

	m, err := tr.Train(ctx, [][]float64{{1, 0}, {0, 1}}, []int{1, 0})
	require.NoError(t, err)
	_, err = m.Predict([][]float64{{1, 0, 0}})
	assert.ErrorIs(t, err, models.ErrDimensionMismatch)
}

func TestUnknownClassifier(t *testing.T) {
	_, err := New("svm", Config{})
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestNaiveBayesRejectsNegativeFeatures(t *testing.T) {
	tr, err := New(NaiveBayes, Config{})
	require.NoError(t, err)
	_, err = tr.Train(context.Background(), [][]float64{{1, -0.5}, {0, 1}}, []int{1, 0})
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestBankEvaluate(t *testing.T) {
	train := separable(80, 6, 5)
	test := separable(30, 6, 6)
	cfg := Config{Seed: 1, Epochs: 20, Trees: 10}

	for _, parallel := range []bool{false, true} {
		bank, err := NewBank(Names(), cfg, parallel)
		require.NoError(t, err)
		results, err := bank.Evaluate(context.Background(), train, test)
		require.NoError(t, err)
		require.Len(t, results, len(Names()))
		for i, r := range results {
			assert.Equal(t, Names()[i], r.Model)
			c := r.Confusion
			assert.Equal(t, len(test.Y), c.TP+c.TN+c.FP+c.FN)
			assert.InDelta(t, r.Accuracy, float64(c.TP+c.TN)/float64(len(test.Y)), 1e-12)
		}
	}
}

type failingTrainer struct{}

func (failingTrainer) Name() string { return "broken" }
func (failingTrainer) Train(context.Context, [][]float64, []int) (Model, error) {
	return nil, errors.New("boom")
}

func TestBankEvaluateFailureAborts(t *testing.T) {
	train := separable(20, 4, 1)
	for _, parallel := range []bool{false, true} {
		bank, err := NewBank([]string{Logistic}, Config{}, parallel)
		require.NoError(t, err)
		bank.Register(failingTrainer{})
		assert.Equal(t, []string{Logistic, "broken"}, bank.Names())
		_, err = bank.Evaluate(context.Background(), train, train)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "train broken")
	}
}

func TestNewBankValidation(t *testing.T) {
	_, err := NewBank(nil, Config{}, false)
	assert.ErrorIs(t, err, models.ErrConfiguration)
	_, err = NewBank([]string{Logistic, Logistic}, Config{}, false)
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestAccuracyAndConfusion(t *testing.T) {
	pred := []int{1, 1, 0, 0, 1}
	truth := []int{1, 0, 0, 1, 1}
	acc, err := Accuracy(pred, truth)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, acc, 1e-12)

	c, err := Confusion(pred, truth)
	require.NoError(t, err)
	assert.Equal(t, models.ConfusionMatrix{TP: 2, TN: 1, FP: 1, FN: 1}, c)
	assert.InDelta(t, 2.0/3.0, c.Precision(), 1e-12)
	assert.InDelta(t, 2.0/3.0, c.Recall(), 1e-12)
	assert.InDelta(t, 2.0/3.0, c.F1(), 1e-12)

	_, err = Accuracy(nil, nil)
	assert.ErrorIs(t, err, models.ErrEmptyInput)
	_, err = Accuracy([]int{1}, []int{1, 0})
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestBest(t *testing.T) {
	assert.Equal(t, -1, Best(nil))
	rs := []models.ClassifierResult{{Accuracy: 0.7}, {Accuracy: 0.9}, {Accuracy: 0.9}}
	assert.Equal(t, 1, Best(rs))
}
