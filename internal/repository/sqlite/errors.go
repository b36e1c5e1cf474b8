package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"nodegraph/internal/apperr"
)

// classify maps a driver or database/sql error onto the apperr taxonomy.
// Errors that already carry a type pass through unchanged.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled):
		// the caller went away; the store itself is fine
		return apperr.NewInternal(fmt.Sprintf("%s: request canceled", op)).WithCause(err)
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, driver.ErrBadConn):
		return apperr.NewStoreUnavailable(fmt.Sprintf("%s: store unreachable", op)).WithCause(err)
	case strings.Contains(err.Error(), "database is closed"):
		return apperr.NewStoreUnavailable(fmt.Sprintf("%s: store closed", op)).WithCause(err)
	}

	var sqliteErr *moderncsqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_CONSTRAINT:
			return apperr.NewConstraint(fmt.Sprintf("%s: %s", op, constraintMessage(err))).WithCause(err)
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_CANTOPEN,
			sqlite3.SQLITE_IOERR, sqlite3.SQLITE_FULL, sqlite3.SQLITE_NOTADB:
			return apperr.NewStoreUnavailable(fmt.Sprintf("%s: store unavailable", op)).WithCause(err)
		}
	}

	if strings.Contains(err.Error(), "no such table") {
		return apperr.NewSchema(op, "schema not initialized").WithCause(err)
	}

	return apperr.NewInternal(fmt.Sprintf("%s failed", op)).WithCause(err)
}

// constraintMessage picks a readable summary for a constraint failure
func constraintMessage(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "FOREIGN KEY"):
		return "referenced node does not exist"
	case strings.Contains(msg, "UNIQUE"), strings.Contains(msg, "PRIMARY KEY"):
		return "duplicate key"
	case strings.Contains(msg, "NOT NULL"):
		return "required column is null"
	default:
		return "constraint violated"
	}
}
