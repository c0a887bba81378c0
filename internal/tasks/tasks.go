package tasks

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/hibiken/asynq"
)

// Task types handled by the worker.
const (
	// TypeExperimentRun runs the sentiment benchmark.
	TypeExperimentRun = "experiment:run"
	// TypeClusterRun clusters the vectorized catalog.
	TypeClusterRun = "cluster:run"
)

// QueueExperiments is the default queue for both task types.
const QueueExperiments = "experiments"

// ExperimentPayload overrides parts of the configured benchmark. Empty
// fields fall back to the worker's configuration.
type ExperimentPayload struct {
	CorpusPath  string   `json:"corpus_path,omitempty"`
	Strategy    string   `json:"strategy,omitempty"`
	Classifiers []string `json:"classifiers,omitempty"`
	Seed        *uint64  `json:"seed,omitempty"`
}

// ClusterPayload overrides the configured clustering algorithm.
type ClusterPayload struct {
	Algorithm string `json:"algorithm,omitempty"`
	K         int    `json:"k,omitempty"`
}

func NewExperimentTask(p ExperimentPayload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", TypeExperimentRun, err)
	}
	return asynq.NewTask(TypeExperimentRun, b), nil
}

func NewClusterTask(p ClusterPayload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", TypeClusterRun, err)
	}
	return asynq.NewTask(TypeClusterRun, b), nil
}

// Decode unmarshals a task payload, treating an empty payload as {}.
func Decode(t *asynq.Task, v any) error {
	if len(t.Payload()) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.Payload(), v); err != nil {
		return fmt.Errorf("decode %s payload: %w", t.Type(), err)
	}
	return nil
}
