// Package schema describes the named data contracts handlers accept.
//
// A Schema coerces raw params into its typed shape, validates the result and
// redacts sensitive fields before values leave the process. Schemas are
// grouped per Domain and looked up by name.
package schema

import (
	"context"
	"sync"

	"github.com/code19m/errx"

	"github.com/rise-and-shine/svcore/cqrs"
)

// None marks a handler that accepts params without a schema.
const None = "none"

const (
	CodeSchemaNotFound  = "SCHEMA_NOT_FOUND"
	CodeDuplicateSchema = "DUPLICATE_SCHEMA"
)

// Schema is a named data contract.
type Schema interface {
	Name() string

	// Coerce converts raw params into the schema type.
	Coerce(params any) (any, error)

	// Validate checks coerced params and returns every problem found.
	Validate(ctx context.Context, params any) []cqrs.ValidationError

	// Redact returns a copy of value safe to publish.
	Redact(value any) any
}

// Domain is a named group of schemas.
type Domain struct {
	name string

	mu      sync.RWMutex
	schemas map[string]Schema
}

func NewDomain(name string) *Domain {
	return &Domain{name: name, schemas: make(map[string]Schema)}
}

func (d *Domain) Name() string {
	return d.name
}

// Register adds schemas to the domain. Names must be unique.
func (d *Domain) Register(schemas ...Schema) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, s := range schemas {
		if _, ok := d.schemas[s.Name()]; ok {
			return errx.New("[schema]: schema already registered",
				errx.WithCode(CodeDuplicateSchema),
				errx.WithDetails(errx.D{"domain": d.name, "schema": s.Name()}),
			)
		}
		d.schemas[s.Name()] = s
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (d *Domain) MustRegister(schemas ...Schema) *Domain {
	if err := d.Register(schemas...); err != nil {
		panic(err)
	}
	return d
}

// Schema returns the schema registered under name.
func (d *Domain) Schema(name string) (Schema, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.schemas[name]
	if !ok {
		return nil, errx.New("[schema]: schema not found",
			errx.WithCode(CodeSchemaNotFound),
			errx.WithType(errx.T_NotFound),
			errx.WithDetails(errx.D{"domain": d.name, "schema": name}),
		)
	}
	return s, nil
}
