package classifier

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"cinematch/internal/models"
)

// Dataset is a feature matrix with its labels. Evaluate never mutates it.
type Dataset struct {
	X [][]float64
	Y []int
}

// Bank trains a fixed list of classifiers on one split and scores each on
// the same held-out rows.
type Bank struct {
	trainers []Trainer
	parallel bool
}

func NewBank(names []string, cfg Config, parallel bool) (*Bank, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no classifiers selected", models.ErrConfiguration)
	}
	seen := map[string]bool{}
	b := &Bank{parallel: parallel}
	for _, name := range names {
		if seen[name] {
			return nil, fmt.Errorf("%w: classifier %q listed twice", models.ErrConfiguration, name)
		}
		seen[name] = true
		tr, err := New(name, cfg)
		if err != nil {
			return nil, err
		}
		b.trainers = append(b.trainers, tr)
	}
	return b, nil
}

// Register appends a custom trainer.
func (b *Bank) Register(t Trainer) { b.trainers = append(b.trainers, t) }

func (b *Bank) Names() []string {
	out := make([]string, len(b.trainers))
	for i, t := range b.trainers {
		out[i] = t.Name()
	}
	return out
}

// Evaluate returns one result per classifier in registration order. The first
// failure cancels the remaining work and is returned.
func (b *Bank) Evaluate(ctx context.Context, train, test Dataset) ([]models.ClassifierResult, error) {
	if len(test.X) == 0 {
		return nil, fmt.Errorf("%w: empty test split", models.ErrEmptyInput)
	}
	if len(test.X) != len(test.Y) {
		return nil, fmt.Errorf("%w: %d test rows but %d labels", models.ErrConfiguration, len(test.X), len(test.Y))
	}

	results := make([]models.ClassifierResult, len(b.trainers))
	if !b.parallel {
		for i, tr := range b.trainers {
			res, err := evaluateOne(ctx, tr, train, test)
			if err != nil {
				return nil, err
			}
			results[i] = res
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, tr := range b.trainers {
		g.Go(func() error {
			res, err := evaluateOne(gctx, tr, train, test)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func evaluateOne(ctx context.Context, tr Trainer, train, test Dataset) (models.ClassifierResult, error) {
	log.Infof("Training %s on %d rows", tr.Name(), len(train.X))
	start := time.Now()
	model, err := tr.Train(ctx, train.X, train.Y)
	if err != nil {
		return models.ClassifierResult{}, fmt.Errorf("train %s: %w", tr.Name(), err)
	}
	elapsed := time.Since(start)

	pred, err := model.Predict(test.X)
	if err != nil {
		return models.ClassifierResult{}, fmt.Errorf("predict %s: %w", tr.Name(), err)
	}
	acc, err := Accuracy(pred, test.Y)
	if err != nil {
		return models.ClassifierResult{}, fmt.Errorf("score %s: %w", tr.Name(), err)
	}
	conf, err := Confusion(pred, test.Y)
	if err != nil {
		return models.ClassifierResult{}, fmt.Errorf("score %s: %w", tr.Name(), err)
	}
	log.Infof("%s: accuracy %.4f (%s)", tr.Name(), acc, elapsed.Round(time.Millisecond))
	return models.ClassifierResult{Model: tr.Name(), Accuracy: acc, Confusion: conf, TrainDuration: elapsed}, nil
}

// Accuracy is the exact-match rate of pred against truth.
func Accuracy(pred, truth []int) (float64, error) {
	if len(truth) == 0 {
		return 0, fmt.Errorf("%w: no labels to score", models.ErrEmptyInput)
	}
	if len(pred) != len(truth) {
		return 0, fmt.Errorf("%w: %d predictions for %d labels", models.ErrConfiguration, len(pred), len(truth))
	}
	hits := 0
	for i := range pred {
		if pred[i] == truth[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(truth)), nil
}

// Confusion counts binary outcomes with 1 as the positive class.
func Confusion(pred, truth []int) (models.ConfusionMatrix, error) {
	if len(pred) != len(truth) {
		return models.ConfusionMatrix{}, fmt.Errorf("%w: %d predictions for %d labels", models.ErrConfiguration, len(pred), len(truth))
	}
	var c models.ConfusionMatrix
	for i := range pred {
		switch {
		case pred[i] == 1 && truth[i] == 1:
			c.TP++
		case pred[i] == 0 && truth[i] == 0:
			c.TN++
		case pred[i] == 1:
			c.FP++
		default:
			c.FN++
		}
	}
	return c, nil
}

// Best returns the index of the highest-accuracy result; the earliest wins
// ties. It returns -1 for an empty slice.
func Best(results []models.ClassifierResult) int {
	best := -1
	for i, r := range results {
		if best < 0 || r.Accuracy > results[best].Accuracy {
			best = i
		}
	}
	return best
}
