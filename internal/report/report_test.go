package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"cinematch/internal/models"
)

func sampleResults() []models.ClassifierResult {
	return []models.ClassifierResult{
		{Model: "logistic", Accuracy: 0.85, Confusion: models.ConfusionMatrix{TP: 4, TN: 4, FP: 1, FN: 1}, TrainDuration: 1500 * time.Millisecond},
		{Model: "forest", Accuracy: 0.91, Confusion: models.ConfusionMatrix{TP: 5, TN: 4, FP: 1}, TrainDuration: time.Second},
	}
}

func TestClassifierTableHighlightsBest(t *testing.T) {
	var buf bytes.Buffer
	ClassifierTable(&buf, sampleResults(), func(s string) string { return "*" + s })
	out := buf.String()
	assert.Contains(t, out, "*forest")
	assert.NotContains(t, out, "*logistic")
	assert.Contains(t, out, "0.8500")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, strings.ToUpper(out), "ACCURACY")
}

func TestSummarizeClusters(t *testing.T) {
	a := models.ClusterAssignment{
		Order:  []int64{1, 2, 3, 4, 5},
		Labels: map[int64]int{1: 1, 2: models.NoiseLabel, 3: 0, 4: 1, 5: 1},
	}
	titles := map[int64]string{1: "A", 2: "B", 3: "C", 4: "D", 5: "E"}
	got := SummarizeClusters(a, titles, 2)
	assert.Equal(t, []ClusterSummary{
		{Label: 0, Size: 1, Samples: []string{"C"}},
		{Label: 1, Size: 3, Samples: []string{"A", "D"}},
		{Label: models.NoiseLabel, Size: 1, Samples: []string{"B"}},
	}, got)

	var buf bytes.Buffer
	ClusterTable(&buf, got)
	assert.Contains(t, buf.String(), "noise")
	assert.Contains(t, buf.String(), "A; D")
}

func TestRecommendationTable(t *testing.T) {
	var buf bytes.Buffer
	RecommendationTable(&buf, []models.Recommendation{{MovieID: 3, IMDBID: "tt3", Title: "Heat", Score: 0.5}})
	assert.Contains(t, buf.String(), "Heat")
	assert.Contains(t, buf.String(), "0.5000")
}

func TestWriteYAML(t *testing.T) {
	id := uuid.New()
	exp := Experiment{
		RunID:    id,
		Kind:     models.RunKindSentiment,
		Strategy: "sparse",
		Duration: "2s",
		Corpus:   CorpusStats{Train: 8, Test: 2, Dimension: 6},
		Config:   map[string]any{"seed": 42},
		Results:  Rows(sampleResults()),
	}
	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, exp))

	var back map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, id.String(), back["run_id"])
	results := back["results"].([]any)
	require.Len(t, results, 2)
	first := results[0].(map[string]any)
	assert.Equal(t, "logistic", first["model"])
	assert.InDelta(t, 0.8, first["precision"], 1e-9)
}

func TestNDJSONRoundTrip(t *testing.T) {
	docs := []models.SimilarityDoc{
		{MovieID: 1, Metric: "cosine", K: 2, Neighbors: []models.Neighbor{{MovieID: 2, Sim: 0.9}, {MovieID: 3, Sim: 0.1}}, UpdatedAt: "2024-05-01T12:00:00Z"},
		{MovieID: 2, Metric: "cosine", K: 2, Neighbors: []models.Neighbor{{MovieID: 1, Sim: 0.9}}, UpdatedAt: "2024-05-01T12:00:00Z"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteNDJSON(&buf, docs))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"movieId":1`)

	back, err := ReadNDJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, docs, back)
}
