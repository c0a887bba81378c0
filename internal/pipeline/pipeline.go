// Package pipeline wires loader, normalizer, extractor, classifier bank and
// clustering engine into the two experiments cinematch runs: the sentiment
// benchmark and the catalog build.
package pipeline

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"cinematch/internal/classifier"
	"cinematch/internal/cluster"
	"cinematch/internal/corpus"
	"cinematch/internal/features"
	"cinematch/internal/models"
	"cinematch/internal/report"
	"cinematch/internal/textnorm"
)

// SentimentOptions is everything one benchmark run depends on.
type SentimentOptions struct {
	CorpusPath  string             `json:"corpus_path"`
	Load        corpus.LoadOptions `json:"load"`
	TestRatio   float64            `json:"test_ratio"`
	Seed        uint64             `json:"seed"`
	Normalize   textnorm.Options   `json:"normalize"`
	Features    features.Config    `json:"features"`
	Classifiers []string           `json:"classifiers,omitempty"`
	Classifier  classifier.Config  `json:"classifier"`
	Parallel    bool               `json:"parallel"`
}

// SentimentReport is the outcome of a benchmark run.
type SentimentReport struct {
	Run       models.ExperimentRun
	Results   []models.ClassifierResult
	Train     int
	Test      int
	Dimension int
	Extractor features.Extractor
}

// RunSentiment loads the corpus at opts.CorpusPath and benchmarks it.
func RunSentiment(ctx context.Context, opts SentimentOptions, embedder features.Embedder) (*SentimentReport, error) {
	docs, err := corpus.Load(ctx, opts.CorpusPath, opts.Load)
	if err != nil {
		return nil, err
	}
	log.Infof("Loaded %d documents from %s", len(docs), opts.CorpusPath)
	return RunSentimentDocs(ctx, docs, opts, embedder)
}

// RunSentimentDocs splits docs, fits the extractor on the training half only
// and evaluates every configured classifier on the held-out half.
func RunSentimentDocs(ctx context.Context, docs []models.Document, opts SentimentOptions, embedder features.Embedder) (*SentimentReport, error) {
	started := time.Now()
	opts.Features.Seed = opts.Seed
	opts.Classifier.Seed = opts.Seed

	for _, d := range docs {
		if !d.Labeled {
			return nil, fmt.Errorf("%w: document %d has no label", models.ErrValidation, d.ID)
		}
	}
	train, test, err := corpus.Split(docs, opts.TestRatio, opts.Seed)
	if err != nil {
		return nil, err
	}

	names := opts.Classifiers
	if len(names) == 0 {
		names = classifier.DefaultNames(nonNegative(opts.Features.Strategy))
	}
	bank, err := classifier.NewBank(names, opts.Classifier, opts.Parallel)
	if err != nil {
		return nil, err
	}

	ext, err := features.New(opts.Features, embedder)
	if err != nil {
		return nil, err
	}
	norm := textnorm.New(opts.Normalize)
	trainIn := Inputs(norm, texts(train))
	testIn := Inputs(norm, texts(test))

	log.Infof("Fitting %s extractor on %d training documents", ext.Name(), len(train))
	if err := ext.Fit(ctx, trainIn); err != nil {
		return nil, fmt.Errorf("fit %s extractor: %w", ext.Name(), err)
	}
	trainVecs, err := ext.Transform(ctx, trainIn)
	if err != nil {
		return nil, fmt.Errorf("transform training set: %w", err)
	}
	testVecs, err := ext.Transform(ctx, testIn)
	if err != nil {
		return nil, fmt.Errorf("transform test set: %w", err)
	}
	log.Debugf("Extractor %s produced %d-dimensional vectors", ext.Name(), ext.Dimension())

	results, err := bank.Evaluate(ctx,
		classifier.Dataset{X: Matrix(trainVecs), Y: labels(train)},
		classifier.Dataset{X: Matrix(testVecs), Y: labels(test)})
	if err != nil {
		return nil, err
	}

	cfgJSON, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("encode run config: %w", err)
	}
	return &SentimentReport{
		Run: models.ExperimentRun{
			ID:        uuid.New(),
			Kind:      models.RunKindSentiment,
			Strategy:  ext.Name(),
			Config:    cfgJSON,
			StartedAt: started.UTC(),
			Duration:  time.Since(started),
			Results:   results,
		},
		Results:   results,
		Train:     len(train),
		Test:      len(test),
		Dimension: ext.Dimension(),
		Extractor: ext,
	}, nil
}

// Experiment converts the report into its exported form.
func (r *SentimentReport) Experiment() report.Experiment {
	var cfg any
	_ = json.Unmarshal(r.Run.Config, &cfg)
	return report.Experiment{
		RunID:     r.Run.ID,
		Kind:      r.Run.Kind,
		Strategy:  r.Run.Strategy,
		StartedAt: r.Run.StartedAt,
		Duration:  r.Run.Duration.String(),
		Corpus:    report.CorpusStats{Train: r.Train, Test: r.Test, Dimension: r.Dimension},
		Config:    cfg,
		Results:   report.Rows(r.Results),
	}
}

// Inputs normalizes raw texts for an extractor. Text keeps the cleaned
// string for remote embedders, Tokens the normalized tokens.
func Inputs(norm *textnorm.Normalizer, raw []string) []features.Input {
	out := make([]features.Input, len(raw))
	for i, t := range raw {
		out[i] = features.Input{Text: norm.Clean(t), Tokens: norm.Tokens(t)}
	}
	return out
}

// Matrix extracts the raw values of vectors, sharing the backing slices.
func Matrix(vectors []models.FeatureVector) [][]float64 {
	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		out[i] = v.Values
	}
	return out
}

func texts(docs []models.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Text
	}
	return out
}

func labels(docs []models.Document) []int {
	out := make([]int, len(docs))
	for i, d := range docs {
		out[i] = d.Label
	}
	return out
}

func nonNegative(strategy string) bool {
	return strategy == features.StrategySparse || strategy == "tfidf"
}

// Points turns vectorized catalog items into clustering input. Every movie
// must carry a vector.
func Points(movies []models.Movie) ([]cluster.Point, error) {
	points := make([]cluster.Point, len(movies))
	for i, m := range movies {
		if m.Vector == nil {
			return nil, fmt.Errorf("%w: movie %d has no vector, build the catalog first", models.ErrConfiguration, m.ID)
		}
		points[i] = cluster.Point{ID: m.ID, Values: m.Vector.Values}
	}
	return points, nil
}
