package primary

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cinematch/internal/models"
	"cinematch/internal/store"
)

const movieColumns = `id, imdb_id, title, director, genres, body, created_at`

// naturalKey identifies a movie across imports.
func naturalKey(m models.Movie) string {
	if id := strings.TrimSpace(m.IMDBID); id != "" {
		return "imdb:" + strings.ToLower(id)
	}
	return "title:" + strings.ToLower(strings.TrimSpace(m.Title))
}

// UpsertMovies writes movies in one transaction, updating rows whose
// natural key already exists. IDs are written back into movies. Movies whose
// body changed lose their stored vectors.
func (s *StoreImpl) UpsertMovies(ctx context.Context, movies []models.Movie) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO movies (natural_key, imdb_id, title, director, genres, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (natural_key) DO UPDATE SET
			imdb_id = excluded.imdb_id,
			title = excluded.title,
			director = excluded.director,
			genres = excluded.genres,
			body = excluded.body
		RETURNING id`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	// A changed body invalidates the movie's vector under every fit.
	stale, err := tx.PreparexContext(ctx, `
		DELETE FROM movie_vectors WHERE movie_id IN (
			SELECT id FROM movies WHERE natural_key = ? AND body != ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare stale vector delete: %w", err)
	}
	defer stale.Close()

	now := time.Now().UTC()
	for i := range movies {
		m := &movies[i]
		if strings.TrimSpace(m.Title) == "" {
			return 0, fmt.Errorf("%w: movie %d has no title", models.ErrValidation, i)
		}
		if _, err := stale.ExecContext(ctx, naturalKey(*m), m.Body); err != nil {
			return 0, fmt.Errorf("drop stale vector of %q: %w", m.Title, err)
		}
		if err := stmt.QueryRowxContext(ctx, naturalKey(*m), m.IMDBID, m.Title, m.Director, m.Genres, m.Body, now).
			Scan(&m.ID); err != nil {
			return 0, fmt.Errorf("upsert movie %q: %w", m.Title, err)
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	return len(movies), nil
}

func (s *StoreImpl) GetMovie(ctx context.Context, id int64) (*models.Movie, error) {
	var m models.Movie
	err := s.db.GetContext(ctx, &m, `SELECT `+movieColumns+` FROM movies WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("movie %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get movie %d: %w", id, err)
	}
	return &m, nil
}

// ListMovies pages through the catalog in ID order.
func (s *StoreImpl) ListMovies(ctx context.Context, limit, offset int) ([]models.Movie, error) {
	limit, offset = clampPage(limit, offset)
	var out []models.Movie
	if err := s.db.SelectContext(ctx, &out, `SELECT `+movieColumns+` FROM movies ORDER BY id LIMIT ? OFFSET ?`, limit, offset); err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}
	return out, nil
}

func (s *StoreImpl) CountMovies(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM movies`); err != nil {
		return 0, fmt.Errorf("count movies: %w", err)
	}
	return n, nil
}
