// Package pg provides PostgreSQL connections shared by the task store and the
// durable task channel.
//
// A single pgx pool backs both the bun ORM and the database/sql handle used by
// watermill-sql. Query logging and OpenTelemetry hooks are attached to bun,
// and bundebug prints every query in verbose mode.
package pg

import (
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/extra/bunotel"

	"github.com/rise-and-shine/svcore/observability/logger"
)

// StdDB exposes pool through database/sql.
func StdDB(pool *pgxpool.Pool) *sql.DB {
	return stdlib.OpenDBFromPool(pool)
}

// NewBunDB wraps pool with the bun ORM.
func NewBunDB(pool *pgxpool.Pool, cfg Config) *bun.DB {
	db := bun.NewDB(StdDB(pool), pgdialect.New())

	db.AddQueryHook(NewQueryLogHook(
		logger.Named("pg"),
		WithEnabled(cfg.Debug),
		WithSlowQueryThreshold(cfg.SlowQueryThreshold),
	))
	db.AddQueryHook(bunotel.NewQueryHook(bunotel.WithDBName(cfg.Database)))
	if cfg.Verbose {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	return db
}
