package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Business-level failure taxonomy. Callers match with errors.Is; anything
// else is a backend failure and propagates wrapped.
var (
	// ErrNotFound: the entity is absent or not owned by the caller. The two
	// cases are deliberately indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrConflict: a collection with that name already exists for the owner.
	ErrConflict = errors.New("already exists")
)

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505). This is the authoritative Conflict signal for
// racing creates; the name pre-check is only a fast path.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isUndefinedTable reports whether err is SQLSTATE 42P01 (relation does not
// exist). Read paths treat an uninitialized store as empty.
func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}
