package primary

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cinematch/internal/models"
	"cinematch/internal/store"
)

type runRow struct {
	ID        uuid.UUID `db:"id"`
	Kind      string    `db:"kind"`
	Strategy  string    `db:"strategy"`
	Config    []byte    `db:"config"`
	StartedAt time.Time `db:"started_at"`
	Duration  int64     `db:"duration"`
}

func (r runRow) model() models.ExperimentRun {
	return models.ExperimentRun{
		ID:        r.ID,
		Kind:      r.Kind,
		Strategy:  r.Strategy,
		Config:    r.Config,
		StartedAt: r.StartedAt,
		Duration:  time.Duration(r.Duration),
	}
}

type resultRow struct {
	Model         string  `db:"model"`
	Accuracy      float64 `db:"accuracy"`
	TP            int     `db:"tp"`
	TN            int     `db:"tn"`
	FP            int     `db:"fp"`
	FN            int     `db:"fn"`
	TrainDuration int64   `db:"train_duration"`
}

// RecordRun stores a run and its classifier results.
func (s *StoreImpl) RecordRun(ctx context.Context, run *models.ExperimentRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, kind, strategy, config, started_at, duration) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.Strategy, []byte(run.Config), run.StartedAt.UTC(), int64(run.Duration))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	for i, r := range run.Results {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO results (run_id, position, model, accuracy, tp, tn, fp, fn, train_duration) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, r.Model, r.Accuracy, r.Confusion.TP, r.Confusion.TN, r.Confusion.FP, r.Confusion.FN, int64(r.TrainDuration))
		if err != nil {
			return fmt.Errorf("insert result %s for run %s: %w", r.Model, run.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record run: %w", err)
	}
	return nil
}

func (s *StoreImpl) GetRun(ctx context.Context, id uuid.UUID) (*models.ExperimentRun, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, `SELECT id, kind, strategy, config, started_at, duration FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	run := row.model()
	if run.Results, err = s.results(ctx, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns runs newest first, results included.
func (s *StoreImpl) ListRuns(ctx context.Context, limit, offset int) ([]models.ExperimentRun, error) {
	limit, offset = clampPage(limit, offset)
	var rows []runRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, kind, strategy, config, started_at, duration FROM runs ORDER BY started_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	out := make([]models.ExperimentRun, len(rows))
	for i, row := range rows {
		out[i] = row.model()
		if out[i].Results, err = s.results(ctx, row.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *StoreImpl) results(ctx context.Context, runID uuid.UUID) ([]models.ClassifierResult, error) {
	var rows []resultRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT model, accuracy, tp, tn, fp, fn, train_duration FROM results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("load results for run %s: %w", runID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	out := make([]models.ClassifierResult, len(rows))
	for i, r := range rows {
		out[i] = models.ClassifierResult{
			Model:         r.Model,
			Accuracy:      r.Accuracy,
			Confusion:     models.ConfusionMatrix{TP: r.TP, TN: r.TN, FP: r.FP, FN: r.FN},
			TrainDuration: time.Duration(r.TrainDuration),
		}
	}
	return out, nil
}

// SaveClusterAssignment stores the labels of a cluster run. The run must
// already be recorded.
func (s *StoreImpl) SaveClusterAssignment(ctx context.Context, runID uuid.UUID, a models.ClusterAssignment) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save assignment: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO cluster_assignments (run_id, position, movie_id, label) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare assignment insert: %w", err)
	}
	defer stmt.Close()
	for i, id := range a.Order {
		if _, err := stmt.ExecContext(ctx, runID, i, id, a.Labels[id]); err != nil {
			return fmt.Errorf("insert assignment for movie %d: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *StoreImpl) GetClusterAssignment(ctx context.Context, runID uuid.UUID) (*models.ClusterAssignment, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Kind != models.RunKindCluster {
		return nil, fmt.Errorf("%w: run %s is a %s run", models.ErrValidation, runID, run.Kind)
	}
	var rows []struct {
		MovieID int64 `db:"movie_id"`
		Label   int   `db:"label"`
	}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT movie_id, label FROM cluster_assignments WHERE run_id = ? ORDER BY position`, runID); err != nil {
		return nil, fmt.Errorf("load assignment for run %s: %w", runID, err)
	}

	a := &models.ClusterAssignment{Algorithm: run.Strategy, Labels: make(map[int64]int, len(rows))}
	seen := map[int]bool{}
	for _, r := range rows {
		a.Order = append(a.Order, r.MovieID)
		a.Labels[r.MovieID] = r.Label
		if r.Label == models.NoiseLabel {
			a.Noise++
		} else if !seen[r.Label] {
			seen[r.Label] = true
			a.Clusters++
		}
	}
	return a, nil
}
