package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"cinematch/internal/models"
	"cinematch/internal/tasks"
)

// AsynqJobClient enqueues experiment tasks and records them to the JobStore.
type AsynqJobClient struct {
	client   *asynq.Client
	jobStore JobStore
}

var _ JobClient = (*AsynqJobClient)(nil)

func NewAsynqJobClient(opt asynq.RedisClientOpt, js JobStore) (*AsynqJobClient, error) {
	if js == nil {
		return nil, fmt.Errorf("JobStore cannot be nil for AsynqJobClient")
	}
	return &AsynqJobClient{client: asynq.NewClient(opt), jobStore: js}, nil
}

func (jc *AsynqJobClient) Close() error {
	return jc.client.Close()
}

// Enqueue enqueues a task and records the event. A failed record is logged,
// not returned: the task is already queued at that point.
func (jc *AsynqJobClient) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if jc.client == nil {
		return nil, fmt.Errorf("AsynqJobClient internal client is not initialized")
	}
	jobID := uuid.New()
	opts = append(opts, asynq.TaskID(jobID.String()))
	info, err := jc.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	log.Debugf("Enqueued task %s id=%s queue=%s", task.Type(), info.ID, info.Queue)

	params := JobRecordParams{
		JobID:    jobID,
		TaskType: task.Type(),
		Payload:  task.Payload(),
		Queue:    info.Queue,
		Status:   models.JobStatusEnqueued,
	}
	if err := jc.jobStore.RecordJobEnqueue(ctx, params); err != nil {
		log.Errorf("ERROR: Failed to record job enqueue event for task %s: %v", info.ID, err)
	}
	return info, nil
}

func (jc *AsynqJobClient) EnqueueExperiment(ctx context.Context, p tasks.ExperimentPayload) (*asynq.TaskInfo, error) {
	task, err := tasks.NewExperimentTask(p)
	if err != nil {
		return nil, err
	}
	return jc.Enqueue(ctx, task, asynq.Queue(tasks.QueueExperiments), asynq.MaxRetry(1))
}

func (jc *AsynqJobClient) EnqueueCluster(ctx context.Context, p tasks.ClusterPayload) (*asynq.TaskInfo, error) {
	task, err := tasks.NewClusterTask(p)
	if err != nil {
		return nil, err
	}
	return jc.Enqueue(ctx, task, asynq.Queue(tasks.QueueExperiments), asynq.MaxRetry(1))
}
