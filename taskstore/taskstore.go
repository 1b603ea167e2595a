// Package taskstore persists async task snapshots so their status can be
// queried by task id. Writes are idempotent overwrites: the last write for a
// task id wins.
package taskstore

import (
	"context"

	"github.com/rise-and-shine/svcore/cqrs"
)

// Store records async task transitions.
type Store interface {
	// RegisterTask stores a newly submitted task.
	RegisterTask(ctx context.Context, task *cqrs.AsyncTaskData) error
	// UpdateTask overwrites the stored snapshot of task.
	UpdateTask(ctx context.Context, task *cqrs.AsyncTaskData) error
	// GetTask returns the latest snapshot of the task with id taskID.
	GetTask(ctx context.Context, taskID string) (*cqrs.AsyncTaskData, error)
}
