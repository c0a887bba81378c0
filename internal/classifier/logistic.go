package classifier

import (
	"context"

	log "github.com/sirupsen/logrus"
)

type logisticTrainer struct {
	cfg Config
}

type logisticModel struct {
	w []float64
	b float64
}

func (t *logisticTrainer) Name() string { return Logistic }

// Train runs mini-batch gradient descent on the L2-regularized log loss.
func (t *logisticTrainer) Train(ctx context.Context, X [][]float64, y []int) (Model, error) {
	d, err := checkTraining(X, y)
	if err != nil {
		return nil, err
	}
	m := &logisticModel{w: make([]float64, d)}
	rng := newRand(t.cfg.Seed, 1)
	idx := order(len(X))
	grad := make([]float64, d)

	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		for start := 0; start < len(idx); start += t.cfg.BatchSize {
			batch := idx[start:min(start+t.cfg.BatchSize, len(idx))]
			clear(grad)
			var gb float64
			for _, i := range batch {
				r := sigmoid(dot(m.w, X[i])+m.b) - float64(y[i])
				for k, x := range X[i] {
					if x != 0 {
						grad[k] += r * x
					}
				}
				gb += r
			}
			scale := t.cfg.LearningRate / float64(len(batch))
			for k := range m.w {
				m.w[k] -= scale*grad[k] + t.cfg.LearningRate*t.cfg.L2*m.w[k]
			}
			m.b -= scale * gb
		}
		log.Debugf("logistic: epoch %d/%d", epoch+1, t.cfg.Epochs)
	}
	return m, nil
}

func (m *logisticModel) Predict(X [][]float64) ([]int, error) {
	if err := checkPredict(X, len(m.w)); err != nil {
		return nil, err
	}
	out := make([]int, len(X))
	for i, x := range X {
		if sigmoid(dot(m.w, x)+m.b) >= 0.5 {
			out[i] = 1
		}
	}
	return out, nil
}
