package primary

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"cinematch/internal/models"
	"cinematch/internal/store"
)

// encodeVector packs values as little-endian float64s.
func encodeVector(values []float64) []byte {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float64, error) {
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("vector blob has %d bytes, not a multiple of 8", len(buf))
	}
	out := make([]float64, len(buf)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return out, nil
}

// SaveFit records the fit and replaces all catalog vectors with the ones it
// produced. Vectors of older fits are dropped.
func (s *StoreImpl) SaveFit(ctx context.Context, fit *models.ExtractorFit, movies []models.Movie) error {
	if fit.ID == uuid.Nil {
		return fmt.Errorf("%w: fit has no id", models.ErrValidation)
	}
	if fit.CreatedAt.IsZero() {
		fit.CreatedAt = time.Now().UTC()
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save fit: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM movie_vectors`); err != nil {
		return fmt.Errorf("clear vectors: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO extractor_fits (id, kind, dimension, snapshot, created_at) VALUES (?, ?, ?, ?, ?)`,
		fit.ID, fit.Kind, fit.Dimension, fit.Snapshot, fit.CreatedAt); err != nil {
		return fmt.Errorf("insert fit %s: %w", fit.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO movie_vectors (fit_id, movie_id, vector) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare vector insert: %w", err)
	}
	defer stmt.Close()
	for _, m := range movies {
		if m.Vector == nil {
			return fmt.Errorf("%w: movie %d has no vector", models.ErrValidation, m.ID)
		}
		if m.Vector.FitID != fit.ID || len(m.Vector.Values) != fit.Dimension {
			return fmt.Errorf("%w: movie %d vector does not belong to fit %s", models.ErrDimensionMismatch, m.ID, fit.ID)
		}
		if _, err := stmt.ExecContext(ctx, fit.ID, m.ID, encodeVector(m.Vector.Values)); err != nil {
			return fmt.Errorf("insert vector for movie %d: %w", m.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM extractor_fits WHERE id != ?`, fit.ID); err != nil {
		return fmt.Errorf("prune old fits: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save fit: %w", err)
	}
	return nil
}

// AddVectors stores vectors produced by an existing fit, replacing any the
// movies already have under it. Other movies' vectors are untouched.
func (s *StoreImpl) AddVectors(ctx context.Context, fitID uuid.UUID, movies []models.Movie) error {
	var dim int
	err := s.db.GetContext(ctx, &dim, `SELECT dimension FROM extractor_fits WHERE id = ?`, fitID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("fit %s: %w", fitID, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get fit %s: %w", fitID, err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add vectors: %w", err)
	}
	defer tx.Rollback()
	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO movie_vectors (fit_id, movie_id, vector) VALUES (?, ?, ?)
		ON CONFLICT (fit_id, movie_id) DO UPDATE SET vector = excluded.vector`)
	if err != nil {
		return fmt.Errorf("prepare vector upsert: %w", err)
	}
	defer stmt.Close()
	for _, m := range movies {
		if m.Vector == nil || m.Vector.FitID != fitID || len(m.Vector.Values) != dim {
			return fmt.Errorf("%w: movie %d vector does not belong to fit %s", models.ErrDimensionMismatch, m.ID, fitID)
		}
		if _, err := stmt.ExecContext(ctx, fitID, m.ID, encodeVector(m.Vector.Values)); err != nil {
			return fmt.Errorf("upsert vector for movie %d: %w", m.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit add vectors: %w", err)
	}
	return nil
}

// UnvectorizedMovies lists, in ID order, the movies with no vector under
// fitID: those imported or edited after the fit was built.
func (s *StoreImpl) UnvectorizedMovies(ctx context.Context, fitID uuid.UUID) ([]models.Movie, error) {
	var out []models.Movie
	err := s.db.SelectContext(ctx, &out, `
		SELECT m.id, m.imdb_id, m.title, m.director, m.genres, m.body, m.created_at
		FROM movies m
		WHERE NOT EXISTS (SELECT 1 FROM movie_vectors v WHERE v.fit_id = ? AND v.movie_id = m.id)
		ORDER BY m.id`, fitID)
	if err != nil {
		return nil, fmt.Errorf("list unvectorized movies: %w", err)
	}
	return out, nil
}

func (s *StoreImpl) LatestFit(ctx context.Context) (*models.ExtractorFit, error) {
	var fit models.ExtractorFit
	err := s.db.GetContext(ctx, &fit,
		`SELECT id, kind, dimension, snapshot, created_at FROM extractor_fits ORDER BY created_at DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNoFit
	}
	if err != nil {
		return nil, fmt.Errorf("get latest fit: %w", err)
	}
	return &fit, nil
}

type vectorRow struct {
	models.Movie
	Blob []byte `db:"vector"`
}

// LoadVectorizedCatalog returns every movie that has a vector from the
// latest fit, in ID order. Movies without one (see UnvectorizedMovies) are
// left out.
func (s *StoreImpl) LoadVectorizedCatalog(ctx context.Context) ([]models.Movie, *models.ExtractorFit, error) {
	fit, err := s.LatestFit(ctx)
	if err != nil {
		return nil, nil, err
	}
	var rows []vectorRow
	err = s.db.SelectContext(ctx, &rows, `
		SELECT m.id, m.imdb_id, m.title, m.director, m.genres, m.body, m.created_at, v.vector
		FROM movies m JOIN movie_vectors v ON v.movie_id = m.id
		WHERE v.fit_id = ?
		ORDER BY m.id`, fit.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load vectorized catalog: %w", err)
	}

	movies := make([]models.Movie, len(rows))
	for i, r := range rows {
		values, err := decodeVector(r.Blob)
		if err != nil {
			return nil, nil, fmt.Errorf("movie %d: %w", r.ID, err)
		}
		m := r.Movie
		m.Vector = &models.FeatureVector{Values: values, FitID: fit.ID}
		movies[i] = m
	}
	return movies, fit, nil
}
