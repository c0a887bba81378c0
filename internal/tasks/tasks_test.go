package tasks

import (
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExperimentTaskPayload(t *testing.T) {
	seed := uint64(9)
	task, err := NewExperimentTask(ExperimentPayload{Strategy: "dense", Seed: &seed})
	require.NoError(t, err)
	assert.Equal(t, TypeExperimentRun, task.Type())

	var p ExperimentPayload
	require.NoError(t, Decode(task, &p))
	assert.Equal(t, "dense", p.Strategy)
	require.NotNil(t, p.Seed)
	assert.Equal(t, uint64(9), *p.Seed)
}

func TestDecodeEmptyPayload(t *testing.T) {
	var p ClusterPayload
	require.NoError(t, Decode(asynq.NewTask(TypeClusterRun, nil), &p))
	assert.Equal(t, ClusterPayload{}, p)

	assert.Error(t, Decode(asynq.NewTask(TypeClusterRun, []byte("{")), &p))
}
