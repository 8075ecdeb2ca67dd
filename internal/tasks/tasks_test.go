package tasks

import (
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triage/internal/models"
)

func TestClassifyTaskPayload(t *testing.T) {
	in := ClassifyPayload{
		RequestID: "req-1",
		Message:   models.CustomerMessage{CustomerID: "c1", Message: "How does billing work?", Product: "1440 Mobile App"},
	}
	task, err := NewClassifyTask(in, asynq.Queue("classification"))
	require.NoError(t, err)
	assert.Equal(t, TypeClassifyMessage, task.Type())

	out, err := ParseClassifyPayload(task)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = ParseClassifyPayload(asynq.NewTask(TypeClassifyMessage, []byte("{")))
	assert.Error(t, err)
}
