package taskstore_test

import (
	"sync"
	"testing"
	"time"

	"github.com/code19m/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/svcore/cqrs"
	"github.com/rise-and-shine/svcore/taskstore"
)

func newTask(id string) *cqrs.AsyncTaskData {
	return &cqrs.AsyncTaskData{
		RequestData: cqrs.RequestData{Schema: "Report", Action: "generate", Verb: "Report.generate"},
		TaskID:      id,
		Status:      cqrs.StatusPending,
		SubmitAt:    time.Now().UTC(),
	}
}

func TestMemoryStoreLastWriteWins(t *testing.T) {
	// Arrange
	store := taskstore.NewMemoryStore()
	task := newTask("t-1")
	require.NoError(t, store.RegisterTask(t.Context(), task))

	// Act
	started := time.Now().UTC()
	task.Status = cqrs.StatusRunning
	task.StartedAt = &started
	require.NoError(t, store.UpdateTask(t.Context(), task))
	task.Status = cqrs.StatusSuccess
	require.NoError(t, store.UpdateTask(t.Context(), task))

	// Assert
	got, err := store.GetTask(t.Context(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, cqrs.StatusSuccess, got.Status)
	assert.Equal(t, started, *got.StartedAt)
	assert.Equal(t, []cqrs.Status{cqrs.StatusPending, cqrs.StatusRunning, cqrs.StatusSuccess}, store.History("t-1"))
}

func TestMemoryStoreKeepsCopies(t *testing.T) {
	// Arrange
	store := taskstore.NewMemoryStore()
	task := newTask("t-1")
	require.NoError(t, store.RegisterTask(t.Context(), task))

	// Act
	task.Status = cqrs.StatusError
	got, err := store.GetTask(t.Context(), "t-1")
	require.NoError(t, err)
	got.Status = cqrs.StatusRunning

	// Assert
	again, err := store.GetTask(t.Context(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, cqrs.StatusPending, again.Status)
}

func TestMemoryStoreErrors(t *testing.T) {
	store := taskstore.NewMemoryStore()

	_, err := store.GetTask(t.Context(), "missing")
	assert.True(t, errx.IsCodeIn(err, taskstore.CodeTaskNotFound))

	err = store.RegisterTask(t.Context(), &cqrs.AsyncTaskData{})
	assert.True(t, errx.IsCodeIn(err, taskstore.CodeInvalidTask))

	err = store.UpdateTask(t.Context(), nil)
	assert.True(t, errx.IsCodeIn(err, taskstore.CodeInvalidTask))
}

func TestMemoryStoreConcurrentWrites(t *testing.T) {
	// Arrange
	store := taskstore.NewMemoryStore()
	var wg sync.WaitGroup

	// Act
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task := newTask("t-1")
			if i%2 == 0 {
				task.Status = cqrs.StatusRunning
			}
			_ = store.UpdateTask(t.Context(), task)
		}()
	}
	wg.Wait()

	// Assert
	assert.Len(t, store.History("t-1"), 20)
}
