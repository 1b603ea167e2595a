package manager

import (
	"context"
	"net/http"

	"github.com/code19m/errx"
	"github.com/google/uuid"

	"github.com/rise-and-shine/svcore/cqrs"
	"github.com/rise-and-shine/svcore/cqrs/handler"
	"github.com/rise-and-shine/svcore/reqctx"
	"github.com/rise-and-shine/svcore/schema"
)

// Run executes desc with data in the context rc.
//
// Input is validated first and a bad request error is returned before the
// handler runs when any problem is found. Sync actions run in place and emit
// their outcome event according to the event mode. Async actions are pushed
// on the task channel and answered with a Pending acknowledgement. Handler
// failures are returned unwrapped from their CommandRuntimeError.
func (m *Manager) Run(
	ctx context.Context,
	desc *handler.Descriptor,
	data *cqrs.RequestData,
	rc *reqctx.Context,
) (resp *cqrs.Response, err error) {
	defer func() {
		err = cqrs.UnwrapRuntimeError(err)
	}()

	if data == nil {
		data = rc.Data()
	}
	bind(desc, data)
	rc.Tracker().TrackAction(data.Verb)

	h, err := m.instance(desc, rc)
	if err != nil {
		return nil, err
	}

	params, verrs := m.validate(ctx, desc, h, data)
	if len(verrs) > 0 {
		return nil, cqrs.NewBadRequest(verrs)
	}

	switch {
	case desc.Kind == handler.KindQuery:
		return m.runQuery(ctx, desc, h, rc, params)
	case desc.Definition.Async:
		return m.submitAsync(ctx, data, rc)
	default:
		return m.runSync(ctx, desc, h, data, rc, params)
	}
}

// bind fills data with the canonical names of desc.
func bind(desc *handler.Descriptor, data *cqrs.RequestData) {
	if desc.Definition.Schema != "" {
		data.Schema = desc.Definition.Schema
	}
	if desc.Domain != "" && data.Domain == "" {
		data.Domain = desc.Domain
	}
	data.Action = desc.Action()
	data.ComputeVerb()
}

// validate coerces params against the input schema and collects every
// validation problem. It returns the params the handler receives.
func (m *Manager) validate(
	ctx context.Context,
	desc *handler.Descriptor,
	h handler.Handler,
	data *cqrs.RequestData,
) (any, []cqrs.ValidationError) {
	params := data.Params
	inputSchema := desc.Definition.InputSchema
	if inputSchema == "" || inputSchema == schema.None {
		return params, nil
	}

	skip := desc.SkipValidation()
	var errs []cqrs.ValidationError

	if s := m.schema(inputSchema); s != nil {
		data.InputSchema = s.Name()

		coerced, err := s.Coerce(params)
		switch {
		case err != nil && !skip:
			return params, []cqrs.ValidationError{{Message: "Binding error : " + err.Error()}}
		case err == nil:
			params = coerced
		}

		if !skip {
			errs = s.Validate(ctx, params)
		}
	}

	if !skip && len(errs) == 0 {
		if v, ok := h.(handler.InputValidator); ok {
			errs = v.Validate(ctx, inputSchema, params, data.Action)
		}
	}

	return params, errs
}

// coerce converts params to the input schema of desc without validating them.
// The raw params are kept when there is no schema or coercion fails.
func (m *Manager) coerce(desc *handler.Descriptor, params any) any {
	inputSchema := desc.Definition.InputSchema
	if inputSchema == "" || inputSchema == schema.None {
		return params
	}
	s := m.schema(inputSchema)
	if s == nil {
		return params
	}
	coerced, err := s.Coerce(params)
	if err != nil {
		return params
	}
	return coerced
}

func (m *Manager) schema(name string) schema.Schema {
	if m.domain == nil || name == "" {
		return nil
	}
	s, err := m.domain.Schema(name)
	if err != nil {
		return nil
	}
	return s
}

func (m *Manager) runQuery(
	ctx context.Context,
	desc *handler.Descriptor,
	h handler.Handler,
	rc *reqctx.Context,
	params any,
) (*cqrs.Response, error) {
	result, err := m.wrap(desc, h).Handle(ctx, rc, params)
	if err != nil {
		return nil, err
	}
	return m.toResponse(desc, result), nil
}

func (m *Manager) runSync(
	ctx context.Context,
	desc *handler.Descriptor,
	h handler.Handler,
	data *cqrs.RequestData,
	rc *reqctx.Context,
	params any,
) (*cqrs.Response, error) {
	result, err := m.wrap(desc, h).Handle(ctx, rc, params)
	if err != nil {
		return nil, err
	}

	resp := m.toResponse(desc, result)

	mode := desc.EventMode(false)
	if mode == cqrs.EventModeAlways || (mode == cqrs.EventModeSuccessOnly && statusCode(resp) == http.StatusOK) {
		m.publish(ctx, desc, rc, m.newEvent(desc, data, rc, cqrs.StatusSuccess, result, nil))
	}
	m.flushCustomEvents(ctx, desc, data, rc)

	return resp, nil
}

// toResponse returns a transport response as is and wraps any other result,
// redacted, in an envelope.
func (m *Manager) toResponse(desc *handler.Descriptor, result any) *cqrs.Response {
	if resp, ok := result.(*cqrs.Response); ok && resp != nil {
		return resp
	}
	return cqrs.NewResponse(cqrs.Envelope{Value: m.redact(desc, result)})
}

func statusCode(resp *cqrs.Response) int {
	if resp.StatusCode == 0 {
		return http.StatusOK
	}
	return resp.StatusCode
}

// submitAsync records a Pending task, pushes it on the task channel and
// acknowledges it without waiting for the handler.
func (m *Manager) submitAsync(ctx context.Context, data *cqrs.RequestData, rc *reqctx.Context) (*cqrs.Response, error) {
	snapshot := rc.RequestDataObject()
	if data != rc.Data() {
		snapshot = *data
		snapshot.Body = nil
	}

	task := &cqrs.AsyncTaskData{
		RequestData: snapshot,
		TaskID:      uuid.NewString(),
		Status:      cqrs.StatusPending,
		SubmitAt:    m.now(),
	}
	if u := rc.User(); u != nil {
		user := *u
		task.UserContext = &user
	}

	// registered before the push so a fast consumer cannot be overwritten by the Pending snapshot
	if m.tasks != nil {
		if err := m.tasks.RegisterTask(ctx, task); err != nil {
			return nil, errx.Wrap(err, errx.WithDetails(errx.D{"task_id": task.TaskID}))
		}
	}
	if err := m.bus.PushTask(ctx, task); err != nil {
		return nil, errx.Wrap(err, errx.WithDetails(errx.D{"task_id": task.TaskID}))
	}
	m.metrics.RecordTaskTransition(task.Verb, string(cqrs.StatusPending))

	return cqrs.NewResponse(cqrs.AsyncAck{
		Meta: cqrs.AsyncAckMeta{TaskID: task.TaskID, Status: cqrs.StatusPending},
	}), nil
}
