package taskstore

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/code19m/errx"
	"github.com/uptrace/bun"

	"github.com/rise-and-shine/svcore/cqrs"
	"github.com/rise-and-shine/svcore/observability/logger"
	"github.com/rise-and-shine/svcore/pg"
)

var _ Store = (*PgStore)(nil)

// PgConfig tunes the write retries of PgStore.
type PgConfig struct {
	RetryAttempts uint          `yaml:"retry_attempts" default:"3"     validate:"min=1"`
	RetryDelay    time.Duration `yaml:"retry_delay"    default:"100ms"`
}

// taskModel is the async_tasks row. Filterable fields are stored as columns,
// the whole snapshot as jsonb.
type taskModel struct {
	bun.BaseModel `bun:"table:async_tasks,alias:t"`

	TaskID        string              `bun:"task_id,pk"`
	Verb          string              `bun:"verb,notnull"`
	CorrelationID string              `bun:"correlation_id"`
	Domain        string              `bun:"domain"`
	Status        cqrs.Status         `bun:"status,notnull"`
	SubmitAt      time.Time           `bun:"submit_at,notnull"`
	StartedAt     *time.Time          `bun:"started_at"`
	CompletedAt   *time.Time          `bun:"completed_at"`
	Data          *cqrs.AsyncTaskData `bun:"data,type:jsonb,notnull"`

	pg.Timestamps
}

func toModel(task *cqrs.AsyncTaskData) *taskModel {
	return &taskModel{
		TaskID:        task.TaskID,
		Verb:          task.Verb,
		CorrelationID: task.CorrelationID,
		Domain:        task.Domain,
		Status:        task.Status,
		SubmitAt:      task.SubmitAt,
		StartedAt:     task.StartedAt,
		CompletedAt:   task.CompletedAt,
		Data:          task.Clone(),
	}
}

func (m *taskModel) toTask() *cqrs.AsyncTaskData {
	task := &cqrs.AsyncTaskData{}
	if m.Data != nil {
		task = m.Data.Clone()
	}
	task.TaskID = m.TaskID
	task.Status = m.Status
	task.SubmitAt = m.SubmitAt
	task.StartedAt = m.StartedAt
	task.CompletedAt = m.CompletedAt
	return task
}

// PgStore keeps tasks in the async_tasks table.
type PgStore struct {
	db     bun.IDB
	cfg    PgConfig
	logger logger.Logger
}

// NewPgStore creates a store on db. Call Migrate once before use.
func NewPgStore(db bun.IDB, cfg PgConfig) *PgStore {
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 1
	}
	return &PgStore{
		db:     db,
		cfg:    cfg,
		logger: logger.Named("taskstore"),
	}
}

// Migrate creates the async_tasks table and its indexes if they do not exist.
func (s *PgStore) Migrate(ctx context.Context) error {
	_, err := s.db.NewCreateTable().Model((*taskModel)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return errx.Wrap(err)
	}

	_, err = s.db.NewCreateIndex().
		Model((*taskModel)(nil)).
		Index("async_tasks_status_idx").
		Column("status").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return errx.Wrap(err)
	}

	_, err = s.db.NewCreateIndex().
		Model((*taskModel)(nil)).
		Index("async_tasks_correlation_id_idx").
		Column("correlation_id").
		IfNotExists().
		Exec(ctx)
	return errx.Wrap(err)
}

func (s *PgStore) RegisterTask(ctx context.Context, task *cqrs.AsyncTaskData) error {
	return s.upsert(ctx, task)
}

func (s *PgStore) UpdateTask(ctx context.Context, task *cqrs.AsyncTaskData) error {
	return s.upsert(ctx, task)
}

func (s *PgStore) upsert(ctx context.Context, task *cqrs.AsyncTaskData) error {
	if task == nil || task.TaskID == "" {
		return errx.New("[taskstore]: task has no id", errx.WithCode(CodeInvalidTask), errx.WithType(errx.T_Validation))
	}

	model := toModel(task)
	q := s.db.NewInsert().
		Model(model).
		On("CONFLICT (task_id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("started_at = EXCLUDED.started_at").
		Set("completed_at = EXCLUDED.completed_at").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at")

	return s.withRetry(ctx, task.TaskID, func() error {
		_, err := q.Exec(ctx)
		return pg.WrapQueryError(err, q, "")
	})
}

func (s *PgStore) GetTask(ctx context.Context, taskID string) (*cqrs.AsyncTaskData, error) {
	var model taskModel
	q := s.db.NewSelect().Model(&model).Where("task_id = ?", taskID)

	err := s.withRetry(ctx, taskID, func() error {
		err := q.Scan(ctx)
		if pg.IsNotFound(err) {
			return retry.Unrecoverable(pg.WrapQueryError(err, q, CodeTaskNotFound))
		}
		return pg.WrapQueryError(err, q, "")
	})
	if err != nil {
		return nil, err
	}
	return model.toTask(), nil
}

func (s *PgStore) withRetry(ctx context.Context, taskID string, fn func() error) error {
	err := retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(s.cfg.RetryAttempts),
		retry.Delay(s.cfg.RetryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
		retry.OnRetry(func(n uint, err error) {
			s.logger.WithContext(ctx).
				With("task_id", taskID, "attempt", n+1, "max_attempts", s.cfg.RetryAttempts).
				Warnx(err)
		}),
	)
	return errx.Wrap(err)
}
