package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Sentiment labels used by the review corpus.
const (
	LabelNegative = 0
	LabelPositive = 1
)

// NoiseLabel is the cluster label given to density-based outliers.
const NoiseLabel = -1

// Document is one review record. Label is only meaningful when Labeled is set.
type Document struct {
	ID      int    `json:"id"`
	Text    string `json:"text"`
	Label   int    `json:"label"`
	Labeled bool   `json:"labeled"`
}

// FeatureVector is the numeric representation of a document or catalog item.
// FitID names the extractor fit that produced it; vectors are only comparable
// when their FitIDs and lengths agree.
type FeatureVector struct {
	Values []float64 `json:"values"`
	FitID  uuid.UUID `json:"fit_id"`
}

// Dimension returns the vector length.
func (v FeatureVector) Dimension() int { return len(v.Values) }

// IsZero reports whether every component is zero.
func (v FeatureVector) IsZero() bool {
	for _, x := range v.Values {
		if x != 0 {
			return false
		}
	}
	return true
}

// Movie is a catalog item.
type Movie struct {
	ID        int64          `db:"id" json:"id"`
	IMDBID    string         `db:"imdb_id" json:"imdb_id"`
	Title     string         `db:"title" json:"title"`
	Director  string         `db:"director" json:"director,omitempty"`
	Genres    string         `db:"genres" json:"genres,omitempty"` // comma separated
	Body      string         `db:"body" json:"-"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	Vector    *FeatureVector `db:"-" json:"-"`
}

// ConfusionMatrix holds binary classification counts (positive = 1).
type ConfusionMatrix struct {
	TP int `json:"tp" yaml:"tp"`
	TN int `json:"tn" yaml:"tn"`
	FP int `json:"fp" yaml:"fp"`
	FN int `json:"fn" yaml:"fn"`
}

// Precision returns TP/(TP+FP), or 0 when nothing was predicted positive.
func (c ConfusionMatrix) Precision() float64 {
	if c.TP+c.FP == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FP)
}

// Recall returns TP/(TP+FN), or 0 when there are no positives.
func (c ConfusionMatrix) Recall() float64 {
	if c.TP+c.FN == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FN)
}

// F1 is the harmonic mean of precision and recall.
func (c ConfusionMatrix) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// ClassifierResult is produced once per trained classifier.
type ClassifierResult struct {
	Model         string          `json:"model" yaml:"model"`
	Accuracy      float64         `json:"accuracy" yaml:"accuracy"`
	Confusion     ConfusionMatrix `json:"confusion" yaml:"confusion"`
	TrainDuration time.Duration   `json:"train_duration" yaml:"train_duration"`
}

// ClusterAssignment maps item IDs to cluster labels for one clustering run.
type ClusterAssignment struct {
	Algorithm string        `json:"algorithm" yaml:"algorithm"`
	Order     []int64       `json:"order" yaml:"order"`
	Labels    map[int64]int `json:"labels" yaml:"labels"`
	Clusters  int           `json:"clusters" yaml:"clusters"`
	Noise     int           `json:"noise" yaml:"noise"`
}

// Members returns the item IDs carrying label, in assignment order.
func (a *ClusterAssignment) Members(label int) []int64 {
	var out []int64
	for _, id := range a.Order {
		if a.Labels[id] == label {
			out = append(out, id)
		}
	}
	return out
}

// Recommendation is one entry of a similarity query result.
type Recommendation struct {
	MovieID int64   `json:"movie_id"`
	IMDBID  string  `json:"imdb_id,omitempty"`
	Title   string  `json:"title"`
	Score   float64 `json:"score"`
}

// Neighbor is an entry of a precomputed neighbor list.
type Neighbor struct {
	MovieID int64   `json:"movieId"`
	Sim     float64 `json:"sim"`
}

// SimilarityDoc holds the top-k neighbors of one catalog item.
type SimilarityDoc struct {
	MovieID   int64      `json:"movieId"`
	Metric    string     `json:"metric"`
	K         int        `json:"k"`
	Neighbors []Neighbor `json:"neighbors"`
	UpdatedAt string     `json:"updatedAt"`
}

// ExperimentRun is a persisted record of one pipeline execution.
type ExperimentRun struct {
	ID        uuid.UUID          `db:"id" json:"id"`
	Kind      string             `db:"kind" json:"kind"`
	Strategy  string             `db:"strategy" json:"strategy"`
	Config    json.RawMessage    `db:"config" json:"config,omitempty"`
	StartedAt time.Time          `db:"started_at" json:"started_at"`
	Duration  time.Duration      `db:"duration" json:"duration"`
	Results   []ClassifierResult `db:"-" json:"results,omitempty"`
}

// ViewEvent records a catalog item being viewed.
type ViewEvent struct {
	ID       int64     `db:"id" json:"id"`
	MovieID  int64     `db:"movie_id" json:"movie_id"`
	Title    string    `db:"title" json:"title"`
	ViewedAt time.Time `db:"viewed_at" json:"viewed_at"`
}

// BackgroundJob mirrors the jobs table.
type BackgroundJob struct {
	ID        int64           `db:"id"`
	JobID     uuid.UUID       `db:"job_id"`
	TaskType  string          `db:"task_type"`
	Payload   json.RawMessage `db:"payload"`
	Queue     string          `db:"queue"`
	Status    string          `db:"status"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// ExtractorFit is a persisted extractor snapshot. Catalog vectors reference
// the fit that produced them.
type ExtractorFit struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Kind      string    `db:"kind" json:"kind"`
	Dimension int       `db:"dimension" json:"dimension"`
	Snapshot  []byte    `db:"snapshot" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
