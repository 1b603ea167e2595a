package schema

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/code19m/errx"
	"github.com/creasty/defaults"
	"github.com/samber/lo"

	"github.com/rise-and-shine/svcore/cqrs"
	"github.com/rise-and-shine/svcore/mask"
	"github.com/rise-and-shine/svcore/val"
)

// StructSchema is a Schema backed by the Go struct T.
//
// Params are coerced through JSON into *T, `default` tags are applied,
// `validate` tags are checked and `mask:"true"` fields are redacted.
type StructSchema[T any] struct {
	name string
}

// Struct returns a StructSchema named name.
func Struct[T any](name string) *StructSchema[T] {
	return &StructSchema[T]{name: name}
}

func (s *StructSchema[T]) Name() string {
	return s.name
}

func (s *StructSchema[T]) Coerce(params any) (any, error) {
	if typed, ok := params.(*T); ok {
		return typed, nil
	}
	if typed, ok := params.(T); ok {
		return &typed, nil
	}

	out := new(T)
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, errx.Wrap(err)
		}
		if err = json.Unmarshal(raw, out); err != nil {
			return nil, errx.Wrap(err, errx.WithType(errx.T_Validation))
		}
	}

	if reflect.TypeFor[T]().Kind() == reflect.Struct {
		if err := defaults.Set(out); err != nil {
			return nil, errx.Wrap(err)
		}
	}
	return out, nil
}

func (s *StructSchema[T]) Validate(_ context.Context, params any) []cqrs.ValidationError {
	fieldErrs := val.Struct(params)
	if len(fieldErrs) == 0 {
		return nil
	}
	return lo.Map(fieldErrs, func(fe val.FieldError, _ int) cqrs.ValidationError {
		return cqrs.ValidationError{Field: fe.Field, Message: fe.Message}
	})
}

// Redact hides the `mask:"true"` fields of T whatever form value takes:
// a T, a *T, a map keyed by the json names of T or another struct.
func (s *StructSchema[T]) Redact(value any) any {
	return mask.RedactAs(value, reflect.TypeFor[T]())
}
