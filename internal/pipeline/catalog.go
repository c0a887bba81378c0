package pipeline

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"cinematch/internal/cluster"
	"cinematch/internal/features"
	"cinematch/internal/models"
	"cinematch/internal/report"
	"cinematch/internal/textnorm"
)

type CatalogOptions struct {
	Seed      uint64           `json:"seed"`
	Normalize textnorm.Options `json:"normalize"`
	Features  features.Config  `json:"features"`
}

// CatalogBuild holds a vectorized catalog and the fit that produced it.
type CatalogBuild struct {
	Movies    []models.Movie
	Extractor features.Extractor
	Snapshot  []byte
}

// BuildCatalog fits a fresh extractor on the catalog bodies and attaches a
// vector to every movie. The input slice is not modified.
func BuildCatalog(ctx context.Context, movies []models.Movie, opts CatalogOptions, embedder features.Embedder) (*CatalogBuild, error) {
	if len(movies) == 0 {
		return nil, fmt.Errorf("%w: catalog is empty", models.ErrEmptyInput)
	}
	opts.Features.Seed = opts.Seed
	ext, err := features.New(opts.Features, embedder)
	if err != nil {
		return nil, err
	}

	bodies := make([]string, len(movies))
	for i, m := range movies {
		bodies[i] = m.Body
	}
	inputs := Inputs(textnorm.New(opts.Normalize), bodies)

	log.Infof("Fitting %s extractor on %d catalog items", ext.Name(), len(movies))
	if err := ext.Fit(ctx, inputs); err != nil {
		return nil, fmt.Errorf("fit %s extractor: %w", ext.Name(), err)
	}
	vecs, err := ext.Transform(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("transform catalog: %w", err)
	}
	snap, err := ext.Snapshot()
	if err != nil {
		return nil, err
	}

	out := make([]models.Movie, len(movies))
	zero := 0
	for i, m := range movies {
		v := vecs[i]
		m.Vector = &v
		if v.IsZero() {
			zero++
		}
		out[i] = m
	}
	if zero > 0 {
		log.Warnf("WARN: %d of %d catalog items have an all-zero vector and will score 0 against everything", zero, len(movies))
	}
	return &CatalogBuild{Movies: out, Extractor: ext, Snapshot: snap}, nil
}

// ApplyFit restores the extractor saved in snapshot and vectorizes movies
// with it without refitting, so the vectors are comparable with the catalog
// the fit was built on. The input slice is not modified.
func ApplyFit(ctx context.Context, movies []models.Movie, snapshot []byte, normalize textnorm.Options, embedder features.Embedder) ([]models.Movie, error) {
	ext, err := features.Restore(snapshot, embedder)
	if err != nil {
		return nil, err
	}
	if len(movies) == 0 {
		return nil, nil
	}
	bodies := make([]string, len(movies))
	for i, m := range movies {
		bodies[i] = m.Body
	}
	vecs, err := ext.Transform(ctx, Inputs(textnorm.New(normalize), bodies))
	if err != nil {
		return nil, fmt.Errorf("transform with fit %s: %w", ext.FitID(), err)
	}
	out := make([]models.Movie, len(movies))
	for i, m := range movies {
		v := vecs[i]
		m.Vector = &v
		out[i] = m
	}
	log.Infof("Vectorized %d movies with existing %s fit %s", len(out), ext.Name(), ext.FitID())
	return out, nil
}

// ClusterReport is the outcome of clustering a vectorized catalog.
type ClusterReport struct {
	Run    models.ExperimentRun
	Result *cluster.Result
}

// ClusterCatalog partitions vectorized movies with cfg.
func ClusterCatalog(ctx context.Context, movies []models.Movie, cfg cluster.Config) (*ClusterReport, error) {
	started := time.Now()
	points, err := Points(movies)
	if err != nil {
		return nil, err
	}
	res, err := cluster.Run(ctx, cfg, points)
	if err != nil {
		return nil, err
	}
	log.Infof("Clustered %d movies with %s into %d clusters (%d noise)", len(movies), cfg.Algorithm, res.Assignment.Clusters, res.Assignment.Noise)

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode cluster config: %w", err)
	}
	return &ClusterReport{
		Run: models.ExperimentRun{
			ID:        uuid.New(),
			Kind:      models.RunKindCluster,
			Strategy:  cfg.Algorithm,
			Config:    cfgJSON,
			StartedAt: started.UTC(),
			Duration:  time.Since(started),
		},
		Result: res,
	}, nil
}

// Experiment converts the report into its exported form.
func (r *ClusterReport) Experiment(movies []models.Movie, samples int) report.Experiment {
	titles := make(map[int64]string, len(movies))
	for _, m := range movies {
		titles[m.ID] = m.Title
	}
	var cfg any
	_ = json.Unmarshal(r.Run.Config, &cfg)
	return report.Experiment{
		RunID:     r.Run.ID,
		Kind:      r.Run.Kind,
		Strategy:  r.Run.Strategy,
		StartedAt: r.Run.StartedAt,
		Duration:  r.Run.Duration.String(),
		Config:    cfg,
		Clusters:  report.SummarizeClusters(r.Result.Assignment, titles, samples),
	}
}
