package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinematch/internal/classifier"
	"cinematch/internal/cluster"
	"cinematch/internal/features"
	"cinematch/internal/models"
	"cinematch/internal/textnorm"
)

func reviews(n int) []models.Document {
	docs := make([]models.Document, n)
	for i := range docs {
		if i%2 == 0 {
			docs[i] = models.Document{ID: i, Text: "A great, wonderful film. I loved the brilliant cast!", Label: 1, Labeled: true}
		} else {
			docs[i] = models.Document{ID: i, Text: "A terrible, boring film. An awful waste of <b>time</b>.", Label: 0, Labeled: true}
		}
	}
	return docs
}

func sentimentOpts() SentimentOptions {
	return SentimentOptions{
		TestRatio:   0.25,
		Seed:        7,
		Normalize:   textnorm.DefaultOptions(),
		Features:    features.Config{Strategy: features.StrategySparse, TFIDF: features.TFIDFConfig{VocabularySize: 100}},
		Classifiers: []string{classifier.Logistic, classifier.NaiveBayes},
		Classifier:  classifier.Config{Epochs: 200, LearningRate: 1},
	}
}

func TestRunSentimentDocs(t *testing.T) {
	rep, err := RunSentimentDocs(context.Background(), reviews(40), sentimentOpts(), nil)
	require.NoError(t, err)

	assert.Equal(t, 30, rep.Train)
	assert.Equal(t, 10, rep.Test)
	assert.Equal(t, models.RunKindSentiment, rep.Run.Kind)
	assert.NotEmpty(t, rep.Run.Config)
	require.Len(t, rep.Results, 2)
	assert.Equal(t, classifier.Logistic, rep.Results[0].Model)
	assert.Equal(t, classifier.NaiveBayes, rep.Results[1].Model)
	for _, r := range rep.Results {
		assert.Equal(t, 1.0, r.Accuracy, r.Model)
	}

	exp := rep.Experiment()
	assert.Equal(t, rep.Run.ID, exp.RunID)
	assert.Equal(t, rep.Dimension, exp.Corpus.Dimension)
	assert.Len(t, exp.Results, 2)
}

func TestRunSentimentFromFile(t *testing.T) {
	var b strings.Builder
	b.WriteString("text,label\n")
	for _, d := range reviews(20) {
		fmt.Fprintf(&b, "%q,%d\n", d.Text, d.Label)
	}
	path := filepath.Join(t.TempDir(), "reviews.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	opts := sentimentOpts()
	opts.CorpusPath = path
	rep, err := RunSentiment(context.Background(), opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 20, rep.Train+rep.Test)
}

func TestRunSentimentRejectsUnlabeled(t *testing.T) {
	docs := reviews(4)
	docs[2].Labeled = false
	_, err := RunSentimentDocs(context.Background(), docs, sentimentOpts(), nil)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestRunSentimentUnknownStrategy(t *testing.T) {
	opts := sentimentOpts()
	opts.Features.Strategy = "bag-of-magic"
	_, err := RunSentimentDocs(context.Background(), reviews(10), opts, nil)
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func catalog() []models.Movie {
	return []models.Movie{
		{ID: 1, Title: "Space One", Body: "astronaut rocket orbit galaxy"},
		{ID: 2, Title: "Space Two", Body: "rocket galaxy astronaut launch"},
		{ID: 3, Title: "Kitchen One", Body: "chef recipe kitchen dinner"},
		{ID: 4, Title: "Kitchen Two", Body: "dinner chef kitchen dessert"},
	}
}

func TestBuildAndClusterCatalog(t *testing.T) {
	ctx := context.Background()
	movies := catalog()
	build, err := BuildCatalog(ctx, movies, CatalogOptions{
		Seed:      1,
		Normalize: textnorm.DefaultOptions(),
		Features:  features.Config{Strategy: features.StrategySparse, TFIDF: features.TFIDFConfig{VocabularySize: 50}},
	}, nil)
	require.NoError(t, err)
	require.Len(t, build.Movies, 4)
	assert.Nil(t, movies[0].Vector, "input must not be modified")
	for _, m := range build.Movies {
		require.NotNil(t, m.Vector)
		assert.Equal(t, build.Extractor.FitID(), m.Vector.FitID)
	}
	assert.NotEmpty(t, build.Snapshot)

	rep, err := ClusterCatalog(ctx, build.Movies, cluster.Config{
		Algorithm:     cluster.AlgorithmAgglomerative,
		Agglomerative: cluster.AgglomerativeConfig{TargetClusters: 2},
	})
	require.NoError(t, err)
	a := rep.Result.Assignment
	assert.Equal(t, 2, a.Clusters)
	assert.Equal(t, a.Labels[1], a.Labels[2])
	assert.Equal(t, a.Labels[3], a.Labels[4])
	assert.NotEqual(t, a.Labels[1], a.Labels[3])

	exp := rep.Experiment(build.Movies, 2)
	assert.Equal(t, models.RunKindCluster, exp.Kind)
	assert.Len(t, exp.Clusters, 2)
}

func TestApplyFitMatchesBuild(t *testing.T) {
	ctx := context.Background()
	opts := CatalogOptions{
		Seed:      1,
		Normalize: textnorm.DefaultOptions(),
		Features:  features.Config{Strategy: features.StrategySparse, TFIDF: features.TFIDFConfig{VocabularySize: 50}},
	}
	build, err := BuildCatalog(ctx, catalog(), opts, nil)
	require.NoError(t, err)

	late := []models.Movie{
		catalog()[0],
		{ID: 5, Title: "Space Three", Body: "astronaut galaxy orbit mission"},
	}
	out, err := ApplyFit(ctx, late, build.Snapshot, opts.Normalize, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Nil(t, late[1].Vector, "input must not be modified")
	assert.Equal(t, build.Movies[0].Vector, out[0].Vector)
	assert.Equal(t, build.Extractor.FitID(), out[1].Vector.FitID)
	assert.Len(t, out[1].Vector.Values, build.Extractor.Dimension())

	_, err = ApplyFit(ctx, late, []byte("not a snapshot"), opts.Normalize, nil)
	assert.Error(t, err)
}

func TestClusterCatalogNeedsVectors(t *testing.T) {
	_, err := ClusterCatalog(context.Background(), catalog(), cluster.Config{Algorithm: cluster.AlgorithmKMeans})
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestBuildCatalogEmpty(t *testing.T) {
	_, err := BuildCatalog(context.Background(), nil, CatalogOptions{}, nil)
	assert.ErrorIs(t, err, models.ErrEmptyInput)
}
