package vector

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	log "github.com/sirupsen/logrus"

	"cinematch/internal/models"
	"cinematch/internal/store"
)

// StoreImpl is a pgvector-backed store.VectorIndex. One table holds the
// vectors of every fit; queries are always scoped to a single fit.
type StoreImpl struct {
	db *pgxpool.Pool
}

var _ store.VectorIndex = (*StoreImpl)(nil)

func NewStore(ctx context.Context, dsn string) (*StoreImpl, error) {
	if dsn == "" {
		return nil, fmt.Errorf("vector store DSN cannot be empty")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse vector store DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping vector store: %w", err)
	}
	s := &StoreImpl{db: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	log.Infof("Connected to PostgreSQL vector store")
	return s, nil
}

func (s *StoreImpl) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS movie_embeddings (
			fit_id UUID NOT NULL,
			movie_id BIGINT NOT NULL,
			imdb_id TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			position INT NOT NULL,
			embedding vector NOT NULL,
			PRIMARY KEY (fit_id, movie_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply vector schema: %w", err)
		}
	}
	return nil
}

func (s *StoreImpl) Close() error {
	if s.db != nil {
		log.Debugf("Closing PostgreSQL vector store connection")
		s.db.Close()
	}
	return nil
}

func (s *StoreImpl) Ping(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("vector store connection is not initialized")
	}
	return s.db.Ping(ctx)
}

func toFloat32(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}

// Upsert replaces every row of fitID with movies' vectors. Position keeps
// catalog order so ties resolve the same way as the in-memory scan.
func (s *StoreImpl) Upsert(ctx context.Context, fitID uuid.UUID, movies []models.Movie) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin vector upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM movie_embeddings WHERE fit_id = $1`, fitID); err != nil {
		return fmt.Errorf("clear fit %s: %w", fitID, err)
	}
	batch := &pgx.Batch{}
	for i, m := range movies {
		if m.Vector == nil || m.Vector.FitID != fitID {
			return fmt.Errorf("%w: movie %d has no vector for fit %s", models.ErrDimensionMismatch, m.ID, fitID)
		}
		batch.Queue(`INSERT INTO movie_embeddings (fit_id, movie_id, imdb_id, title, position, embedding) VALUES ($1, $2, $3, $4, $5, $6)`,
			fitID, m.ID, m.IMDBID, m.Title, i, pgvector.NewVector(toFloat32(m.Vector.Values)))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert embeddings: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit vector upsert: %w", err)
	}
	log.Infof("Indexed %d vectors for fit %s", len(movies), fitID)
	return nil
}

// Similar returns the n most similar movies to movieID by cosine similarity
// (1 - <=>), excluding movieID itself. A zero-magnitude vector on either
// side scores 0, as in the in-memory scan, instead of NaN.
func (s *StoreImpl) Similar(ctx context.Context, fitID uuid.UUID, movieID int64, n int) ([]models.Recommendation, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: n must be positive, got %d", models.ErrConfiguration, n)
	}
	var query pgvector.Vector
	err := s.db.QueryRow(ctx, `SELECT embedding FROM movie_embeddings WHERE fit_id = $1 AND movie_id = $2`, fitID, movieID).Scan(&query)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("movie %d in fit %s: %w", movieID, fitID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("load query vector: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT movie_id, imdb_id, title, score FROM (
			SELECT movie_id, imdb_id, title, position,
				CASE WHEN vector_norm(embedding) = 0 OR vector_norm($1::vector) = 0 THEN 0
					ELSE 1 - (embedding <=> $1::vector) END AS score
			FROM movie_embeddings
			WHERE fit_id = $2 AND movie_id != $3
		) scored
		ORDER BY score DESC, position
		LIMIT $4`, query, fitID, movieID, n)
	if err != nil {
		return nil, fmt.Errorf("similarity search query: %w", err)
	}
	defer rows.Close()

	var out []models.Recommendation
	for rows.Next() {
		var r models.Recommendation
		if err := rows.Scan(&r.MovieID, &r.IMDBID, &r.Title, &r.Score); err != nil {
			return nil, fmt.Errorf("scan similarity search row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate similarity search rows: %w", err)
	}
	return out, nil
}
