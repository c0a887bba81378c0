package classifier

import (
	"context"
	"fmt"
	"math"

	"cinematch/internal/models"
)

type bayesTrainer struct {
	cfg Config
}

// bayesModel is multinomial naive Bayes over non-negative feature weights.
type bayesModel struct {
	logPrior [2]float64
	logTheta [2][]float64
	d        int
}

func (t *bayesTrainer) Name() string { return NaiveBayes }

func (t *bayesTrainer) Train(ctx context.Context, X [][]float64, y []int) (Model, error) {
	d, err := checkTraining(X, y)
	if err != nil {
		return nil, err
	}
	var counts [2][]float64
	var totals [2]float64
	var docs [2]int
	counts[0], counts[1] = make([]float64, d), make([]float64, d)

	for i, row := range X {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := y[i]
		docs[c]++
		for k, v := range row {
			if v < 0 {
				return nil, fmt.Errorf("%w: naive Bayes needs non-negative features (row %d col %d = %v)", models.ErrConfiguration, i, k, v)
			}
			counts[c][k] += v
			totals[c] += v
		}
	}

	m := &bayesModel{d: d}
	n := float64(len(X))
	alpha := t.cfg.Alpha
	for c := 0; c < 2; c++ {
		// Laplace smoothing on the prior too, so a class absent from the
		// training split is never log(0).
		m.logPrior[c] = math.Log((float64(docs[c]) + 1) / (n + 2))
		m.logTheta[c] = make([]float64, d)
		denom := totals[c] + alpha*float64(d)
		for k := range counts[c] {
			m.logTheta[c][k] = math.Log((counts[c][k] + alpha) / denom)
		}
	}
	return m, nil
}

func (m *bayesModel) Predict(X [][]float64) ([]int, error) {
	if err := checkPredict(X, m.d); err != nil {
		return nil, err
	}
	out := make([]int, len(X))
	for i, x := range X {
		s0, s1 := m.logPrior[0], m.logPrior[1]
		for k, v := range x {
			if v < 0 {
				return nil, fmt.Errorf("%w: naive Bayes got negative feature at row %d col %d", models.ErrConfiguration, i, k)
			}
			if v == 0 {
				continue
			}
			s0 += v * m.logTheta[0][k]
			s1 += v * m.logTheta[1][k]
		}
		if s1 > s0 {
			out[i] = 1
		}
	}
	return out, nil
}
