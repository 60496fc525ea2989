package users

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// pgUniqueViolation は PostgreSQL の unique_violation エラーコードです。
const pgUniqueViolation = "23505"

// Dialect は SQL 方言ごとの差分をまとめたものです。
type Dialect struct {
	Name              string
	GooseDialect      string
	MigrationsDir     string
	NumberedParams    bool
	IsUniqueViolation func(error) bool
}

var (
	Postgres = Dialect{
		Name:              "postgres",
		GooseDialect:      "postgres",
		MigrationsDir:     "migrations/postgres",
		NumberedParams:    true,
		IsUniqueViolation: isPostgresUniqueViolation,
	}
	SQLite = Dialect{
		Name:              "sqlite",
		GooseDialect:      "sqlite3",
		MigrationsDir:     "migrations/sqlite",
		IsUniqueViolation: isSQLiteUniqueViolation,
	}
)

func isPostgresUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func isSQLiteUniqueViolation(err error) bool {
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return false
	}
	switch liteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	default:
		return false
	}
}
