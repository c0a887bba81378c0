package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"cinematch/internal/models"
	"cinematch/internal/tasks"
)

// --- Job Client ---

type JobClient interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	EnqueueExperiment(ctx context.Context, p tasks.ExperimentPayload) (*asynq.TaskInfo, error)
	EnqueueCluster(ctx context.Context, p tasks.ClusterPayload) (*asynq.TaskInfo, error)
	Close() error
}

// --- Movie Store ---

type MovieStore interface {
	// UpsertMovies inserts or updates movies keyed by IMDb id (or title
	// when the id is empty) and fills in their IDs.
	UpsertMovies(ctx context.Context, movies []models.Movie) (int, error)
	GetMovie(ctx context.Context, id int64) (*models.Movie, error)
	ListMovies(ctx context.Context, limit, offset int) ([]models.Movie, error)
	CountMovies(ctx context.Context) (int, error)
}

// --- Fit Store ---

type FitStore interface {
	// SaveFit stores the snapshot and every movie vector in one transaction.
	SaveFit(ctx context.Context, fit *models.ExtractorFit, movies []models.Movie) error
	LatestFit(ctx context.Context) (*models.ExtractorFit, error)
	// AddVectors stores extra vectors under an existing fit.
	AddVectors(ctx context.Context, fitID uuid.UUID, movies []models.Movie) error
	UnvectorizedMovies(ctx context.Context, fitID uuid.UUID) ([]models.Movie, error)
	// LoadVectorizedCatalog returns the movies vectorized by the latest fit.
	LoadVectorizedCatalog(ctx context.Context) ([]models.Movie, *models.ExtractorFit, error)
}

// --- Run Store ---

type RunStore interface {
	RecordRun(ctx context.Context, run *models.ExperimentRun) error
	GetRun(ctx context.Context, id uuid.UUID) (*models.ExperimentRun, error)
	ListRuns(ctx context.Context, limit, offset int) ([]models.ExperimentRun, error)
	SaveClusterAssignment(ctx context.Context, runID uuid.UUID, a models.ClusterAssignment) error
	GetClusterAssignment(ctx context.Context, runID uuid.UUID) (*models.ClusterAssignment, error)
}

// --- History Store ---

type HistoryStore interface {
	RecordView(ctx context.Context, ev *models.ViewEvent) error
	// RecentViews returns the newest views first.
	RecentViews(ctx context.Context, limit int) ([]models.ViewEvent, error)
}

// --- Job Store ---

// JobRecordParams holds parameters for recording a job event.
type JobRecordParams struct {
	JobID    uuid.UUID
	TaskType string
	Payload  json.RawMessage
	Queue    string
	Status   string
}

type JobStore interface {
	RecordJobEnqueue(ctx context.Context, params JobRecordParams) error
	UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status string) error
	GetJob(ctx context.Context, jobID uuid.UUID) (*models.BackgroundJob, error)
	ListJobs(ctx context.Context, limit, offset int) ([]*models.BackgroundJob, error)
}

// PrimaryStore is everything the SQLite store provides.
type PrimaryStore interface {
	MovieStore
	FitStore
	RunStore
	HistoryStore
	JobStore
	Ping(ctx context.Context) error
	Close() error
}

// --- Vector Index ---

// VectorIndex answers similarity queries from an external index. Scores are
// cosine similarities, to match the in-memory engine.
type VectorIndex interface {
	Upsert(ctx context.Context, fitID uuid.UUID, movies []models.Movie) error
	Similar(ctx context.Context, fitID uuid.UUID, movieID int64, n int) ([]models.Recommendation, error)
	Ping(ctx context.Context) error
	Close() error
}
