package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinematch/internal/classifier"
	"cinematch/internal/cluster"
	"cinematch/internal/features"
	"cinematch/internal/models"
	"cinematch/internal/pipeline"
	"cinematch/internal/store"
	"cinematch/internal/tasks"
	"cinematch/internal/textnorm"
)

type fakeRuns struct {
	runs        []models.ExperimentRun
	assignments map[uuid.UUID]models.ClusterAssignment
}

func (f *fakeRuns) RecordRun(_ context.Context, run *models.ExperimentRun) error {
	f.runs = append(f.runs, *run)
	return nil
}

func (f *fakeRuns) GetRun(context.Context, uuid.UUID) (*models.ExperimentRun, error) {
	return nil, store.ErrNotFound
}

func (f *fakeRuns) ListRuns(context.Context, int, int) ([]models.ExperimentRun, error) {
	return f.runs, nil
}

func (f *fakeRuns) SaveClusterAssignment(_ context.Context, id uuid.UUID, a models.ClusterAssignment) error {
	if f.assignments == nil {
		f.assignments = map[uuid.UUID]models.ClusterAssignment{}
	}
	f.assignments[id] = a
	return nil
}

func (f *fakeRuns) GetClusterAssignment(_ context.Context, id uuid.UUID) (*models.ClusterAssignment, error) {
	a, ok := f.assignments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

type fakeCatalog struct {
	movies []models.Movie
}

func (f *fakeCatalog) SaveFit(context.Context, *models.ExtractorFit, []models.Movie) error { return nil }
func (f *fakeCatalog) LatestFit(context.Context) (*models.ExtractorFit, error)             { return nil, store.ErrNoFit }

func (f *fakeCatalog) AddVectors(context.Context, uuid.UUID, []models.Movie) error { return nil }

func (f *fakeCatalog) UnvectorizedMovies(context.Context, uuid.UUID) ([]models.Movie, error) {
	return nil, nil
}

func (f *fakeCatalog) LoadVectorizedCatalog(context.Context) ([]models.Movie, *models.ExtractorFit, error) {
	if len(f.movies) == 0 {
		return nil, nil, store.ErrNoFit
	}
	return f.movies, &models.ExtractorFit{ID: f.movies[0].Vector.FitID}, nil
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("text,label\n")
	for i := range 20 {
		if i%2 == 0 {
			b.WriteString("\"great wonderful brilliant film\",1\n")
		} else {
			b.WriteString("\"terrible boring awful film\",0\n")
		}
	}
	path := filepath.Join(t.TempDir(), "reviews.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func testDeps(runs *fakeRuns, cat *fakeCatalog) Deps {
	return Deps{
		Runs:    runs,
		Catalog: cat,
		Sentiment: pipeline.SentimentOptions{
			TestRatio:  0.25,
			Seed:       3,
			Normalize:  textnorm.DefaultOptions(),
			Features:   features.Config{Strategy: features.StrategySparse, TFIDF: features.TFIDFConfig{VocabularySize: 50}},
			Classifier: classifier.Config{Epochs: 50, LearningRate: 1},
		},
		Cluster: cluster.Config{
			Algorithm:     cluster.AlgorithmAgglomerative,
			Agglomerative: cluster.AgglomerativeConfig{TargetClusters: 2},
		},
	}
}

func TestRegisterHandlers(t *testing.T) {
	mux := asynq.NewServeMux()
	RegisterHandlers(mux, testDeps(&fakeRuns{}, &fakeCatalog{}))
	for _, typ := range []string{tasks.TypeExperimentRun, tasks.TypeClusterRun} {
		_, pattern := mux.Handler(asynq.NewTask(typ, nil))
		assert.Equal(t, typ, pattern)
	}
}

func TestHandleExperiment(t *testing.T) {
	runs := &fakeRuns{}
	task, err := tasks.NewExperimentTask(tasks.ExperimentPayload{
		CorpusPath:  writeCorpus(t),
		Classifiers: []string{classifier.NaiveBayes},
	})
	require.NoError(t, err)

	require.NoError(t, HandleExperiment(testDeps(runs, &fakeCatalog{}))(context.Background(), task))
	require.Len(t, runs.runs, 1)
	assert.Equal(t, models.RunKindSentiment, runs.runs[0].Kind)
	require.Len(t, runs.runs[0].Results, 1)
	assert.Equal(t, classifier.NaiveBayes, runs.runs[0].Results[0].Model)
}

func TestHandleExperimentConfigErrorSkipsRetry(t *testing.T) {
	task, err := tasks.NewExperimentTask(tasks.ExperimentPayload{CorpusPath: writeCorpus(t), Strategy: "unknown"})
	require.NoError(t, err)

	err = HandleExperiment(testDeps(&fakeRuns{}, &fakeCatalog{}))(context.Background(), task)
	assert.ErrorIs(t, err, models.ErrConfiguration)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleExperimentBadPayload(t *testing.T) {
	task := asynq.NewTask(tasks.TypeExperimentRun, []byte("{not json"))
	err := HandleExperiment(testDeps(&fakeRuns{}, &fakeCatalog{}))(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleCluster(t *testing.T) {
	fit := uuid.New()
	vec := func(v ...float64) *models.FeatureVector { return &models.FeatureVector{Values: v, FitID: fit} }
	cat := &fakeCatalog{movies: []models.Movie{
		{ID: 1, Title: "a", Vector: vec(0, 0)},
		{ID: 2, Title: "b", Vector: vec(0, 0.1)},
		{ID: 3, Title: "c", Vector: vec(5, 5)},
		{ID: 4, Title: "d", Vector: vec(5, 5.1)},
	}}
	runs := &fakeRuns{}

	require.NoError(t, HandleCluster(testDeps(runs, cat))(context.Background(), asynq.NewTask(tasks.TypeClusterRun, nil)))
	require.Len(t, runs.runs, 1)
	assert.Equal(t, cluster.AlgorithmAgglomerative, runs.runs[0].Strategy)
	a, err := runs.GetClusterAssignment(context.Background(), runs.runs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, a.Clusters)
	assert.Equal(t, a.Labels[1], a.Labels[2])
	assert.NotEqual(t, a.Labels[1], a.Labels[3])
}

func TestHandleClusterWithoutCatalog(t *testing.T) {
	err := HandleCluster(testDeps(&fakeRuns{}, &fakeCatalog{}))(context.Background(), asynq.NewTask(tasks.TypeClusterRun, nil))
	assert.ErrorIs(t, err, store.ErrNoFit)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestPermanent(t *testing.T) {
	assert.True(t, permanent(fmt.Errorf("wrap: %w", models.ErrValidation)))
	assert.False(t, permanent(errors.New("redis: connection refused")))
}
