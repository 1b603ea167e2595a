package pg

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/code19m/errx"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error code for unique constraint violations.
const pgConflictCode = "23505"

// IsConflict checks if the error is a PostgreSQL unique constraint violation.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgConflictCode
	}
	return false
}

// IsNotFound checks if the error indicates that no rows were found.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// WrapQueryError wraps err with the query text and PostgreSQL diagnostics.
// Missing rows become T_NotFound and unique violations become T_Conflict.
func WrapQueryError(err error, query fmt.Stringer, code string) error {
	if err == nil {
		return nil
	}

	errType := errx.T_Internal
	switch {
	case IsNotFound(err):
		errType = errx.T_NotFound
	case IsConflict(err):
		errType = errx.T_Conflict
	}

	details := errx.WithDetails(errorDetails(err, query))
	if code == "" {
		return errx.Wrap(err, errx.WithType(errType), details)
	}
	return errx.Wrap(err, errx.WithType(errType), errx.WithCode(code), details)
}

func errorDetails(err error, query fmt.Stringer) errx.D {
	details := make(errx.D)
	if queryStr := safeQueryString(query); queryStr != "" {
		details["query"] = strings.ReplaceAll(queryStr, `"`, ``)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return details
	}

	details["pg.code"] = pgErr.Code
	details["pg.message"] = pgErr.Message
	details["pg.detail"] = pgErr.Detail
	details["pg.table"] = pgErr.TableName
	details["pg.constraint"] = pgErr.ConstraintName

	return details
}

// safeQueryString returns query.String(), or an empty string when query is nil
// or String panics (bun queries do so before they are fully built).
func safeQueryString(query fmt.Stringer) (s string) {
	defer func() {
		if recover() != nil {
			s = ""
		}
	}()

	if query == nil {
		return ""
	}
	return query.String()
}
