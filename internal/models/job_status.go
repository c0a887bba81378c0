package models

/*
Job and task status constants shared by the job client, the worker and the
primary store.
*/

// Job status constants
const (
	JobStatusEnqueued  = "enqueued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Experiment kinds recorded on ExperimentRun.Kind
const (
	RunKindSentiment = "sentiment"
	RunKindCluster   = "cluster"
)
