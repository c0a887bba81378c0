package classifier

import (
	"context"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"
)

// networkTrainer builds a feed-forward net: ReLU hidden layers, one sigmoid
// output unit, binary cross-entropy.
type networkTrainer struct {
	name   string
	hidden []int
	cfg    Config
}

type layer struct {
	w   [][]float64 // [out][in]
	b   []float64
	out int
	in  int
}

type networkModel struct {
	layers []*layer
	d      int
}

func (t *networkTrainer) Name() string { return t.name }

func (t *networkTrainer) Train(ctx context.Context, X [][]float64, y []int) (Model, error) {
	d, err := checkTraining(X, y)
	if err != nil {
		return nil, err
	}
	rng := newRand(t.cfg.Seed, 2)

	sizes := append(append([]int{d}, t.hidden...), 1)
	m := &networkModel{d: d}
	for l := 1; l < len(sizes); l++ {
		in, out := sizes[l-1], sizes[l]
		ly := &layer{w: make([][]float64, out), b: make([]float64, out), in: in, out: out}
		std := math.Sqrt(2 / float64(in))
		for o := range ly.w {
			ly.w[o] = make([]float64, in)
			for k := range ly.w[o] {
				ly.w[o][k] = rng.NormFloat64() * std
			}
		}
		m.layers = append(m.layers, ly)
	}

	gw := make([][][]float64, len(m.layers))
	gb := make([][]float64, len(m.layers))
	for l, ly := range m.layers {
		gw[l] = make([][]float64, ly.out)
		for o := range gw[l] {
			gw[l][o] = make([]float64, ly.in)
		}
		gb[l] = make([]float64, ly.out)
	}

	idx := order(len(X))
	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		var loss float64
		for start := 0; start < len(idx); start += t.cfg.BatchSize {
			batch := idx[start:min(start+t.cfg.BatchSize, len(idx))]
			for l := range gw {
				for o := range gw[l] {
					clear(gw[l][o])
				}
				clear(gb[l])
			}
			for _, i := range batch {
				loss += m.backprop(X[i], float64(y[i]), gw, gb)
			}
			m.step(gw, gb, t.cfg.LearningRate/float64(len(batch)), t.cfg.LearningRate*t.cfg.L2)
		}
		loss /= float64(len(idx))
		if math.IsNaN(loss) {
			return nil, fmt.Errorf("%s: training diverged at epoch %d", t.name, epoch+1)
		}
		log.Debugf("%s: epoch %d/%d loss %.4f", t.name, epoch+1, t.cfg.Epochs, loss)
	}
	return m, nil
}

// forward returns the activations of every layer, input first.
func (m *networkModel) forward(x []float64) [][]float64 {
	acts := make([][]float64, len(m.layers)+1)
	acts[0] = x
	for l, ly := range m.layers {
		a := make([]float64, ly.out)
		for o := range a {
			z := dot(ly.w[o], acts[l]) + ly.b[o]
			if l == len(m.layers)-1 {
				a[o] = sigmoid(z)
			} else {
				a[o] = math.Max(0, z)
			}
		}
		acts[l+1] = a
	}
	return acts
}

// backprop accumulates one example's gradients and returns its loss.
func (m *networkModel) backprop(x []float64, y float64, gw [][][]float64, gb [][]float64) float64 {
	acts := m.forward(x)
	p := acts[len(acts)-1][0]

	delta := []float64{p - y}
	for l := len(m.layers) - 1; l >= 0; l-- {
		ly := m.layers[l]
		prev := acts[l]
		for o, dv := range delta {
			if dv == 0 {
				continue
			}
			row := gw[l][o]
			for k, a := range prev {
				if a != 0 {
					row[k] += dv * a
				}
			}
			gb[l][o] += dv
		}
		if l == 0 {
			break
		}
		next := make([]float64, ly.in)
		for k := range next {
			if prev[k] <= 0 {
				continue
			}
			var s float64
			for o, dv := range delta {
				s += dv * ly.w[o][k]
			}
			next[k] = s
		}
		delta = next
	}

	const eps = 1e-12
	return -(y*math.Log(p+eps) + (1-y)*math.Log(1-p+eps))
}

func (m *networkModel) step(gw [][][]float64, gb [][]float64, scale, decay float64) {
	for l, ly := range m.layers {
		for o := range ly.w {
			w := ly.w[o]
			g := gw[l][o]
			for k := range w {
				w[k] -= scale*g[k] + decay*w[k]
			}
			ly.b[o] -= scale * gb[l][o]
		}
	}
}

func (m *networkModel) Predict(X [][]float64) ([]int, error) {
	if err := checkPredict(X, m.d); err != nil {
		return nil, err
	}
	out := make([]int, len(X))
	for i, x := range X {
		acts := m.forward(x)
		if acts[len(acts)-1][0] >= 0.5 {
			out[i] = 1
		}
	}
	return out, nil
}
