// Package worker executes queued experiment and clustering tasks.
package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"cinematch/internal/cluster"
	"cinematch/internal/features"
	"cinematch/internal/models"
	"cinematch/internal/pipeline"
	"cinematch/internal/store"
	"cinematch/internal/tasks"
)

// Deps are the collaborators shared by every handler. Sentiment and Cluster
// hold the configured defaults that task payloads override.
type Deps struct {
	Runs     store.RunStore
	Jobs     store.JobStore
	Catalog  store.FitStore
	Embedder features.Embedder

	Sentiment pipeline.SentimentOptions
	Cluster   cluster.Config
}

// RegisterHandlers wires every task type into mux.
func RegisterHandlers(mux *asynq.ServeMux, d Deps) {
	log.Infof("Registering %s handler", tasks.TypeExperimentRun)
	mux.HandleFunc(tasks.TypeExperimentRun, HandleExperiment(d))
	log.Infof("Registering %s handler", tasks.TypeClusterRun)
	mux.HandleFunc(tasks.TypeClusterRun, HandleCluster(d))
}

// HandleExperiment runs a sentiment benchmark and records the run.
func HandleExperiment(d Deps) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, t *asynq.Task) error {
		var p tasks.ExperimentPayload
		if err := tasks.Decode(t, &p); err != nil {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return tracked(ctx, d.Jobs, t, func() error {
			opts := d.Sentiment
			if p.CorpusPath != "" {
				opts.CorpusPath = p.CorpusPath
			}
			if p.Strategy != "" {
				opts.Features.Strategy = p.Strategy
			}
			if len(p.Classifiers) > 0 {
				opts.Classifiers = p.Classifiers
			}
			if p.Seed != nil {
				opts.Seed = *p.Seed
			}
			rep, err := pipeline.RunSentiment(ctx, opts, d.Embedder)
			if err != nil {
				return err
			}
			if err := d.Runs.RecordRun(ctx, &rep.Run); err != nil {
				return fmt.Errorf("record run: %w", err)
			}
			log.Infof("Experiment run %s finished: %d classifiers on %d test documents", rep.Run.ID, len(rep.Results), rep.Test)
			return nil
		})
	}
}

// HandleCluster clusters the vectorized catalog and stores the assignment.
func HandleCluster(d Deps) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, t *asynq.Task) error {
		var p tasks.ClusterPayload
		if err := tasks.Decode(t, &p); err != nil {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return tracked(ctx, d.Jobs, t, func() error {
			cfg := d.Cluster
			if p.Algorithm != "" {
				cfg.Algorithm = p.Algorithm
			}
			if p.K > 0 {
				cfg.KMeans.K = p.K
			}
			movies, _, err := d.Catalog.LoadVectorizedCatalog(ctx)
			if err != nil {
				return err
			}
			rep, err := pipeline.ClusterCatalog(ctx, movies, cfg)
			if err != nil {
				return err
			}
			if err := d.Runs.RecordRun(ctx, &rep.Run); err != nil {
				return fmt.Errorf("record run: %w", err)
			}
			if err := d.Runs.SaveClusterAssignment(ctx, rep.Run.ID, rep.Result.Assignment); err != nil {
				return fmt.Errorf("save assignment: %w", err)
			}
			log.Infof("Cluster run %s finished: %d clusters", rep.Run.ID, rep.Result.Assignment.Clusters)
			return nil
		})
	}
}

// tracked moves the job row through running to completed or failed around
// fn. Errors that retrying cannot fix are marked SkipRetry.
func tracked(ctx context.Context, js store.JobStore, t *asynq.Task, fn func() error) error {
	jobID, ok := taskID(ctx)
	setStatus := func(status string) {
		if !ok || js == nil {
			return
		}
		if err := js.UpdateJobStatus(ctx, jobID, status); err != nil {
			log.Warnf("WARN: Failed to mark job %s %s: %v", jobID, status, err)
		}
	}

	setStatus(models.JobStatusRunning)
	if err := fn(); err != nil {
		setStatus(models.JobStatusFailed)
		log.Errorf("ERROR: Task %s failed: %v", t.Type(), err)
		if permanent(err) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}
	setStatus(models.JobStatusCompleted)
	return nil
}

func taskID(ctx context.Context) (uuid.UUID, bool) {
	raw, ok := asynq.GetTaskID(ctx)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		log.Debugf("Task id %q is not a job uuid, status will not be tracked", raw)
		return uuid.Nil, false
	}
	return id, true
}

func permanent(err error) bool {
	for _, target := range []error{models.ErrConfiguration, models.ErrValidation, models.ErrEmptyInput, models.ErrNotFound, models.ErrDimensionMismatch} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
