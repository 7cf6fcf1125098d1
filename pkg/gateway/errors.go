package gateway

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Class categorizes a mapped database error for pkg/fsops to turn into a
// POSIX errno without re-inspecting pgconn internals.
type Class int

const (
	ClassUnknown Class = iota
	ClassNotFound
	ClassAlreadyExists
	ClassCheckViolation
	ClassInvalidArgument
	ClassNoSpace
	ClassConflict
	ClassConnection
)

// Error wraps a mapped database failure with a stable Class and the
// original error for logging/errors.Is/errors.As.
type Error struct {
	Class Class
	Op    string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// MapError translates a raw pgx/pgconn error into a *Error with a Class
// pkg/fsops and pkg/inodestore can switch on. Mirrors dittofs's
// mapPgError/mapPgErrorCode (pkg/store/metadata/postgres/errors.go), ported
// to this repo's Class vocabulary instead of its StoreError codes.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NoSuchRow
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &Error{Class: classifyPgError(pgErr), Op: pgErr.Code, Err: err}
	}
	return &Error{Class: ClassUnknown, Op: "db", Err: err}
}

func classifyPgError(pgErr *pgconn.PgError) Class {
	switch pgErr.Code {
	case "23505": // unique_violation
		return ClassAlreadyExists
	case "23503": // foreign_key_violation
		return ClassNotFound
	case "23514": // check_constraint_violation
		if strings.Contains(strings.ToLower(pgErr.Message), "non_empty") {
			return ClassCheckViolation
		}
		return ClassInvalidArgument
	case "23502": // not_null_violation
		return ClassInvalidArgument
	case "40001", "40P01": // serialization_failure, deadlock_detected
		return ClassConflict
	case "53100", "53200": // disk_full, out_of_memory
		return ClassNoSpace
	case "57014": // query_canceled
		return ClassConflict
	case "08000", "08003", "08006": // connection errors
		return ClassConnection
	default:
		return ClassUnknown
	}
}
