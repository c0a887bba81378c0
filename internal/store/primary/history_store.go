package primary

import (
	"context"
	"fmt"
	"time"

	"cinematch/internal/models"
)

// RecordView appends a view event. Deduplication of consecutive views is the
// caller's concern (recommend.History); the table keeps every view.
func (s *StoreImpl) RecordView(ctx context.Context, ev *models.ViewEvent) error {
	if ev.ViewedAt.IsZero() {
		ev.ViewedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO views (movie_id, title, viewed_at) VALUES (?, ?, ?)`, ev.MovieID, ev.Title, ev.ViewedAt.UTC())
	if err != nil {
		return fmt.Errorf("record view of movie %d: %w", ev.MovieID, err)
	}
	if ev.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("record view of movie %d: %w", ev.MovieID, err)
	}
	return nil
}

func (s *StoreImpl) RecentViews(ctx context.Context, limit int) ([]models.ViewEvent, error) {
	if limit <= 0 {
		limit = 5
	}
	var out []models.ViewEvent
	if err := s.db.SelectContext(ctx, &out,
		`SELECT id, movie_id, title, viewed_at FROM views ORDER BY id DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("list recent views: %w", err)
	}
	return out, nil
}
