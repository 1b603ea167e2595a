package taskstore

import (
	"context"
	"slices"
	"sync"

	"github.com/code19m/errx"

	"github.com/rise-and-shine/svcore/cqrs"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps tasks in process memory. It also remembers every status a
// task went through, which makes it handy in tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	tasks   map[string]*cqrs.AsyncTaskData
	history map[string][]cqrs.Status
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:   make(map[string]*cqrs.AsyncTaskData),
		history: make(map[string][]cqrs.Status),
	}
}

func (s *MemoryStore) RegisterTask(_ context.Context, task *cqrs.AsyncTaskData) error {
	return s.put(task)
}

func (s *MemoryStore) UpdateTask(_ context.Context, task *cqrs.AsyncTaskData) error {
	return s.put(task)
}

func (s *MemoryStore) put(task *cqrs.AsyncTaskData) error {
	if task == nil || task.TaskID == "" {
		return errx.New("[taskstore]: task has no id", errx.WithCode(CodeInvalidTask), errx.WithType(errx.T_Validation))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[task.TaskID] = task.Clone()
	s.history[task.TaskID] = append(s.history[task.TaskID], task.Status)
	return nil
}

func (s *MemoryStore) GetTask(_ context.Context, taskID string) (*cqrs.AsyncTaskData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, errx.New("[taskstore]: task not found",
			errx.WithCode(CodeTaskNotFound),
			errx.WithType(errx.T_NotFound),
			errx.WithDetails(errx.D{"task_id": taskID}),
		)
	}
	return task.Clone(), nil
}

// History returns the statuses written for taskID, oldest first.
func (s *MemoryStore) History(taskID string) []cqrs.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.history[taskID])
}
