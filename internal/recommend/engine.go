// Package recommend answers "movies like X" queries by full-scan cosine
// similarity over the vectorized catalog.
package recommend

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"cinematch/internal/models"
	"cinematch/internal/similarity"
)

// Engine is immutable after construction and safe for concurrent queries.
type Engine struct {
	movies []models.Movie
	byID   map[int64]int
	fitID  uuid.UUID
	dim    int
}

// NewEngine indexes movies in the given order; that order breaks score ties.
func NewEngine(movies []models.Movie) (*Engine, error) {
	if len(movies) == 0 {
		return nil, fmt.Errorf("%w: empty catalog", models.ErrEmptyInput)
	}
	e := &Engine{movies: movies, byID: make(map[int64]int, len(movies))}
	for i, m := range movies {
		if m.Vector == nil {
			return nil, fmt.Errorf("%w: movie %d (%s) has no vector; build the catalog first", models.ErrConfiguration, m.ID, m.Title)
		}
		if i == 0 {
			e.fitID, e.dim = m.Vector.FitID, len(m.Vector.Values)
		}
		if m.Vector.FitID != e.fitID || len(m.Vector.Values) != e.dim {
			return nil, fmt.Errorf("%w: movie %d vector (%s, %d) differs from catalog fit (%s, %d)",
				models.ErrDimensionMismatch, m.ID, m.Vector.FitID, len(m.Vector.Values), e.fitID, e.dim)
		}
		e.byID[m.ID] = i
	}
	return e, nil
}

func (e *Engine) Len() int         { return len(e.movies) }
func (e *Engine) FitID() uuid.UUID { return e.fitID }
func (e *Engine) Dimension() int   { return e.dim }

// Movies returns the catalog in engine order.
func (e *Engine) Movies() []models.Movie { return e.movies }

func (e *Engine) Movie(id int64) (models.Movie, error) {
	i, ok := e.byID[id]
	if !ok {
		return models.Movie{}, fmt.Errorf("movie %d: %w", id, models.ErrNotFound)
	}
	return e.movies[i], nil
}

// Lookup finds a movie by exact title, then case-insensitively. The first
// catalog match wins.
func (e *Engine) Lookup(title string) (models.Movie, error) {
	for _, m := range e.movies {
		if m.Title == title {
			return m, nil
		}
	}
	want := strings.TrimSpace(title)
	for _, m := range e.movies {
		if strings.EqualFold(m.Title, want) {
			return m, nil
		}
	}
	return models.Movie{}, fmt.Errorf("movie %q: %w", title, models.ErrNotFound)
}

// Similar scans the whole catalog and returns the n items most similar to
// query, excluding excludeID (0 excludes nothing). Scores descend; equal
// scores keep catalog order. Fewer than n results means the catalog ran out.
func (e *Engine) Similar(query models.FeatureVector, excludeID int64, n int) ([]models.Recommendation, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: n=%d must be positive", models.ErrConfiguration, n)
	}
	if query.FitID != e.fitID || len(query.Values) != e.dim {
		return nil, fmt.Errorf("%w: query vector (%s, %d) vs catalog (%s, %d)",
			models.ErrDimensionMismatch, query.FitID, len(query.Values), e.fitID, e.dim)
	}

	recs := make([]models.Recommendation, 0, len(e.movies))
	for _, m := range e.movies {
		if excludeID != 0 && m.ID == excludeID {
			continue
		}
		s, err := similarity.Cosine(query, *m.Vector)
		if err != nil {
			return nil, err
		}
		recs = append(recs, models.Recommendation{MovieID: m.ID, IMDBID: m.IMDBID, Title: m.Title, Score: s})
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Score > recs[j].Score })
	if len(recs) > n {
		recs = recs[:n]
	}
	return recs, nil
}

func (e *Engine) ForID(id int64, n int) ([]models.Recommendation, error) {
	m, err := e.Movie(id)
	if err != nil {
		return nil, err
	}
	return e.Similar(*m.Vector, m.ID, n)
}

func (e *Engine) ForTitle(title string, n int) ([]models.Recommendation, error) {
	m, err := e.Lookup(title)
	if err != nil {
		return nil, err
	}
	return e.Similar(*m.Vector, m.ID, n)
}

// Random picks one movie with a PCG source seeded by seed.
func (e *Engine) Random(seed uint64) models.Movie {
	rng := rand.New(rand.NewPCG(seed, 0x73757270726973))
	return e.movies[rng.IntN(len(e.movies))]
}

// Neighbors precomputes the top-k cosine neighbors of every movie.
func (e *Engine) Neighbors(ctx context.Context, k int, updatedAt time.Time) ([]models.SimilarityDoc, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k=%d must be positive", models.ErrConfiguration, k)
	}
	stamp := updatedAt.UTC().Format(time.RFC3339)
	docs := make([]models.SimilarityDoc, 0, len(e.movies))
	for _, m := range e.movies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recs, err := e.Similar(*m.Vector, m.ID, k)
		if err != nil {
			return nil, err
		}
		nb := make([]models.Neighbor, len(recs))
		for i, r := range recs {
			nb[i] = models.Neighbor{MovieID: r.MovieID, Sim: r.Score}
		}
		docs = append(docs, models.SimilarityDoc{
			MovieID:   m.ID,
			Metric:    similarity.MetricCosine,
			K:         k,
			Neighbors: nb,
			UpdatedAt: stamp,
		})
	}
	return docs, nil
}
