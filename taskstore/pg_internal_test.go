package taskstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rise-and-shine/svcore/cqrs"
)

func TestTaskModelRoundTrip(t *testing.T) {
	// Arrange
	submit := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	started := submit.Add(time.Second)
	task := &cqrs.AsyncTaskData{
		RequestData: cqrs.RequestData{
			Verb:          "Report.generate",
			CorrelationID: "corr-1",
			Domain:        "reports",
			Schema:        "Report",
			Action:        "generate",
			Params:        map[string]any{"month": "may"},
		},
		TaskID:      "t-1",
		Status:      cqrs.StatusRunning,
		SubmitAt:    submit,
		StartedAt:   &started,
		UserContext: &cqrs.UserContext{ID: "u-1"},
	}

	// Act
	model := toModel(task)
	got := model.toTask()

	// Assert
	assert.Equal(t, "t-1", model.TaskID)
	assert.Equal(t, "Report.generate", model.Verb)
	assert.Equal(t, "reports", model.Domain)
	assert.Equal(t, cqrs.StatusRunning, model.Status)
	assert.Equal(t, task, got)
	assert.NotSame(t, task.UserContext, got.UserContext)
}

func TestTaskModelWithoutData(t *testing.T) {
	model := &taskModel{TaskID: "t-1", Status: cqrs.StatusSuccess}

	got := model.toTask()

	assert.Equal(t, "t-1", got.TaskID)
	assert.Equal(t, cqrs.StatusSuccess, got.Status)
}
