package recommend

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinematch/internal/models"
)

func catalog(fit uuid.UUID) []models.Movie {
	mk := func(id int64, title string, v ...float64) models.Movie {
		return models.Movie{ID: id, IMDBID: "tt" + title, Title: title, Vector: &models.FeatureVector{Values: v, FitID: fit}}
	}
	return []models.Movie{
		mk(1, "Alien", 1, 0, 0),
		mk(2, "Aliens", 0.9, 0.1, 0),
		mk(3, "Heat", 0, 1, 0),
		mk(4, "Ronin", 0, 1, 0),
		mk(5, "Amelie", 0, 0, 1),
		mk(6, "Blank", 0, 0, 0),
	}
}

func TestSimilarCountExclusionOrder(t *testing.T) {
	e, err := NewEngine(catalog(uuid.New()))
	require.NoError(t, err)

	recs, err := e.ForID(1, 3)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, int64(2), recs[0].MovieID)
	for i, r := range recs {
		assert.NotEqual(t, int64(1), r.MovieID)
		if i > 0 {
			assert.GreaterOrEqual(t, recs[i-1].Score, r.Score)
		}
	}
}

func TestSimilarTiesKeepCatalogOrder(t *testing.T) {
	e, err := NewEngine(catalog(uuid.New()))
	require.NoError(t, err)

	// Heat and Ronin are identical; from Amelie's point of view every
	// other item except the zero vector scores 0.
	recs, err := e.ForTitle("Amelie", 5)
	require.NoError(t, err)
	ids := make([]int64, len(recs))
	for i, r := range recs {
		ids[i] = r.MovieID
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 6}, ids)

	recs, err = e.ForTitle("Heat", 1)
	require.NoError(t, err)
	assert.Equal(t, "Ronin", recs[0].Title)
	assert.InDelta(t, 1.0, recs[0].Score, 1e-12)
}

func TestSimilarFewerThanN(t *testing.T) {
	e, err := NewEngine(catalog(uuid.New()))
	require.NoError(t, err)
	recs, err := e.ForID(3, 50)
	require.NoError(t, err)
	assert.Len(t, recs, 5)
}

func TestSimilarErrors(t *testing.T) {
	fit := uuid.New()
	e, err := NewEngine(catalog(fit))
	require.NoError(t, err)

	_, err = e.ForID(1, 0)
	assert.ErrorIs(t, err, models.ErrConfiguration)
	_, err = e.ForID(99, 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = e.ForTitle("Nope", 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = e.Similar(models.FeatureVector{Values: []float64{1, 0, 0}, FitID: uuid.New()}, 0, 1)
	assert.ErrorIs(t, err, models.ErrDimensionMismatch)
	_, err = e.Similar(models.FeatureVector{Values: []float64{1, 0}, FitID: fit}, 0, 1)
	assert.ErrorIs(t, err, models.ErrDimensionMismatch)

	recs, err := e.Similar(models.FeatureVector{Values: []float64{0, 1, 0}, FitID: fit}, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, []int64{recs[0].MovieID, recs[1].MovieID})
}

func TestNewEngineValidation(t *testing.T) {
	_, err := NewEngine(nil)
	assert.ErrorIs(t, err, models.ErrEmptyInput)

	movies := catalog(uuid.New())
	movies[2].Vector = &models.FeatureVector{Values: []float64{0, 1, 0}, FitID: uuid.New()}
	_, err = NewEngine(movies)
	assert.ErrorIs(t, err, models.ErrDimensionMismatch)

	movies = catalog(uuid.New())
	movies[0].Vector = nil
	_, err = NewEngine(movies)
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestLookupCaseInsensitive(t *testing.T) {
	e, err := NewEngine(catalog(uuid.New()))
	require.NoError(t, err)
	m, err := e.Lookup("  aliens ")
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.ID)
}

func TestRandomIsSeeded(t *testing.T) {
	e, err := NewEngine(catalog(uuid.New()))
	require.NoError(t, err)
	assert.Equal(t, e.Random(11), e.Random(11))
	_, err = e.Movie(e.Random(12).ID)
	assert.NoError(t, err)
}

func TestNeighbors(t *testing.T) {
	e, err := NewEngine(catalog(uuid.New()))
	require.NoError(t, err)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	docs, err := e.Neighbors(context.Background(), 2, at)
	require.NoError(t, err)
	require.Len(t, docs, 6)
	assert.Equal(t, int64(1), docs[0].MovieID)
	assert.Equal(t, "cosine", docs[0].Metric)
	assert.Equal(t, 2, docs[0].K)
	assert.Equal(t, "2024-05-01T12:00:00Z", docs[0].UpdatedAt)
	require.Len(t, docs[0].Neighbors, 2)
	assert.Equal(t, int64(2), docs[0].Neighbors[0].MovieID)

	_, err = e.Neighbors(context.Background(), 0, at)
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestHistory(t *testing.T) {
	h := NewHistory(3)
	assert.True(t, h.Add(models.ViewEvent{MovieID: 1}))
	assert.False(t, h.Add(models.ViewEvent{MovieID: 1}))
	h.Add(models.ViewEvent{MovieID: 2})
	h.Add(models.ViewEvent{MovieID: 1})
	h.Add(models.ViewEvent{MovieID: 3})

	ids := func() []int64 {
		var out []int64
		for _, ev := range h.Items() {
			out = append(out, ev.MovieID)
		}
		return out
	}
	assert.Equal(t, []int64{3, 1, 2}, ids())

	h.Load([]models.ViewEvent{{MovieID: 7}, {MovieID: 7}, {MovieID: 8}})
	assert.Equal(t, []int64{8, 7}, ids())
	assert.Equal(t, DefaultHistorySize, NewHistory(0).Capacity())
}
