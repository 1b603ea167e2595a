package pg_test

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/code19m/errx"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/svcore/pg"
)

type panickingQuery struct{}

func (panickingQuery) String() string { panic("query not built") }

type staticQuery string

func (q staticQuery) String() string { return string(q) }

func TestWrapQueryError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		query    interface{ String() string }
		code     string
		wantType errx.Type
	}{
		{name: "not found", err: sql.ErrNoRows, query: staticQuery(`SELECT "id"`), wantType: errx.T_NotFound},
		{
			name:     "conflict",
			err:      &pgconn.PgError{Code: "23505", ConstraintName: "tasks_pkey"},
			query:    panickingQuery{},
			code:     "TASK_CONFLICT",
			wantType: errx.T_Conflict,
		},
		{name: "other", err: errors.New("boom"), wantType: errx.T_Internal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Act
			err := pg.WrapQueryError(tc.err, tc.query, tc.code)

			// Assert
			require.Error(t, err)
			e := errx.AsErrorX(err)
			assert.Equal(t, tc.wantType, e.Type())
			if tc.code != "" {
				assert.Equal(t, tc.code, e.Code())
			}
		})
	}
}

func TestWrapQueryErrorNil(t *testing.T) {
	assert.NoError(t, pg.WrapQueryError(nil, nil, ""))
}

func TestIsConflict(t *testing.T) {
	assert.True(t, pg.IsConflict(&pgconn.PgError{Code: "23505"}))
	assert.False(t, pg.IsConflict(errors.New("x")))
	assert.True(t, pg.IsNotFound(sql.ErrNoRows))
}
