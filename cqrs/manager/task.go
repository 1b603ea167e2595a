package manager

import (
	"context"

	"github.com/code19m/errx"

	"github.com/rise-and-shine/svcore/cqrs"
	"github.com/rise-and-shine/svcore/cqrs/handler"
	"github.com/rise-and-shine/svcore/reqctx"
)

// ProcessAsyncTask runs a task delivered by the task channel.
//
// The task moves to Running, the handler runs and the task ends in Success or
// Error. The final transition is persisted whatever the outcome. Failures are
// logged and never returned, the submitter already got its acknowledgement.
func (m *Manager) ProcessAsyncTask(ctx context.Context, task *cqrs.AsyncTaskData) error {
	if task.Status.Terminal() {
		m.logger.WithContext(ctx).
			With("task_id", task.TaskID, "status", task.Status).
			Warn("[manager]: ignoring redelivered task that already completed")
		return nil
	}

	rc, err := reqctx.New(ctx, reqctx.KindAsyncTask, task, m.ContextOptions()...)
	if err != nil {
		m.logger.WithContext(ctx).Errorx(err)
		return nil
	}
	defer rc.Dispose()

	desc, ok := m.registry.Lookup(task.Schema, task.Action)
	if !ok || desc.Kind != handler.KindAction {
		rc.LogError(errx.New("[manager]: no handler registered for async task",
			errx.WithCode(cqrs.CodeHandlerNotFound),
			errx.WithType(errx.T_NotFound),
			errx.WithDetails(errx.D{"verb": task.Verb, "task_id": task.TaskID}),
		), "async task dropped")
		return nil
	}

	ctx = rc.Context()
	mode := desc.EventMode(true)

	started := m.now()
	if started.Before(task.SubmitAt) {
		started = task.SubmitAt
	}
	task.Status = cqrs.StatusRunning
	task.StartedAt = &started
	m.persist(ctx, task)

	defer func() {
		completed := m.now()
		if completed.Before(started) {
			completed = started
		}
		task.CompletedAt = &completed
		m.persist(context.WithoutCancel(ctx), task)
	}()

	runErr := m.executeTask(ctx, desc, rc, task, mode)
	if runErr == nil {
		task.Status = cqrs.StatusSuccess
		return nil
	}

	task.Status = cqrs.StatusError
	if mode == cqrs.EventModeAlways {
		evt := m.newEvent(desc, rc.Data(), rc, cqrs.StatusError, nil, runErr)
		evt.CompletedAt = ptr(m.now())
		m.publish(ctx, desc, rc, evt)
	}
	return nil
}

func (m *Manager) executeTask(
	ctx context.Context,
	desc *handler.Descriptor,
	rc *reqctx.Context,
	task *cqrs.AsyncTaskData,
	mode cqrs.EventMode,
) error {
	data := rc.Data()
	bind(desc, data)

	h, err := m.instance(desc, rc)
	if err != nil {
		rc.LogError(err, "async handler could not be created")
		return err
	}

	result, err := m.wrap(desc, h).Handle(ctx, rc, m.coerce(desc, task.Params))
	if err != nil {
		return cqrs.UnwrapRuntimeError(err)
	}

	if _, ok := result.(*cqrs.Response); ok {
		err = errx.New("[manager]: custom response is not valid in an async action",
			errx.WithCode(cqrs.CodeAsyncCustomResponse),
			errx.WithDetails(errx.D{"verb": desc.Verb(), "task_id": task.TaskID}),
		)
		rc.LogError(err, "async handler returned a transport response")
		return err
	}

	if mode == cqrs.EventModeAlways || mode == cqrs.EventModeSuccessOnly {
		evt := m.newEvent(desc, data, rc, cqrs.StatusSuccess, result, nil)
		evt.CompletedAt = ptr(m.now())
		m.publish(ctx, desc, rc, evt)
	}
	m.flushCustomEvents(ctx, desc, data, rc)
	return nil
}

// persist writes the task snapshot. Store failures are logged.
func (m *Manager) persist(ctx context.Context, task *cqrs.AsyncTaskData) {
	m.metrics.RecordTaskTransition(task.Verb, string(task.Status))
	if m.tasks == nil {
		return
	}
	if err := m.tasks.UpdateTask(ctx, task); err != nil {
		m.logger.WithContext(ctx).With("task_id", task.TaskID, "status", task.Status).Errorx(err)
	}
}

func ptr[T any](v T) *T {
	return &v
}
