package gateway

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	t.Run("NilIsNil", func(t *testing.T) {
		assert.NoError(t, MapError(nil))
	})

	t.Run("UniqueViolationIsAlreadyExists", func(t *testing.T) {
		err := MapError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})
		var gerr *Error
		assert.True(t, errors.As(err, &gerr))
		assert.Equal(t, ClassAlreadyExists, gerr.Class)
	})

	t.Run("ForeignKeyViolationIsNotFound", func(t *testing.T) {
		err := MapError(&pgconn.PgError{Code: "23503", Message: "fk violation"})
		var gerr *Error
		assert.True(t, errors.As(err, &gerr))
		assert.Equal(t, ClassNotFound, gerr.Class)
	})

	t.Run("CheckViolationNonEmptyIsCheckViolation", func(t *testing.T) {
		err := MapError(&pgconn.PgError{Code: "23514", Message: "violates check constraint \"non_empty_dir\""})
		var gerr *Error
		assert.True(t, errors.As(err, &gerr))
		assert.Equal(t, ClassCheckViolation, gerr.Class)
	})

	t.Run("CheckViolationOtherIsInvalidArgument", func(t *testing.T) {
		err := MapError(&pgconn.PgError{Code: "23514", Message: "violates check constraint \"mode_valid\""})
		var gerr *Error
		assert.True(t, errors.As(err, &gerr))
		assert.Equal(t, ClassInvalidArgument, gerr.Class)
	})

	t.Run("NotNullViolationIsInvalidArgument", func(t *testing.T) {
		err := MapError(&pgconn.PgError{Code: "23502"})
		var gerr *Error
		assert.True(t, errors.As(err, &gerr))
		assert.Equal(t, ClassInvalidArgument, gerr.Class)
	})

	t.Run("SerializationFailureIsConflict", func(t *testing.T) {
		err := MapError(&pgconn.PgError{Code: "40001"})
		var gerr *Error
		assert.True(t, errors.As(err, &gerr))
		assert.Equal(t, ClassConflict, gerr.Class)
	})

	t.Run("DeadlockIsConflict", func(t *testing.T) {
		err := MapError(&pgconn.PgError{Code: "40P01"})
		var gerr *Error
		assert.True(t, errors.As(err, &gerr))
		assert.Equal(t, ClassConflict, gerr.Class)
	})

	t.Run("DiskFullIsNoSpace", func(t *testing.T) {
		err := MapError(&pgconn.PgError{Code: "53100"})
		var gerr *Error
		assert.True(t, errors.As(err, &gerr))
		assert.Equal(t, ClassNoSpace, gerr.Class)
	})

	t.Run("ConnectionErrorIsConnection", func(t *testing.T) {
		err := MapError(&pgconn.PgError{Code: "08006"})
		var gerr *Error
		assert.True(t, errors.As(err, &gerr))
		assert.Equal(t, ClassConnection, gerr.Class)
	})

	t.Run("UnknownCodeIsUnknown", func(t *testing.T) {
		err := MapError(&pgconn.PgError{Code: "99999"})
		var gerr *Error
		assert.True(t, errors.As(err, &gerr))
		assert.Equal(t, ClassUnknown, gerr.Class)
	})

	t.Run("PlainErrorIsUnknown", func(t *testing.T) {
		err := MapError(errors.New("boom"))
		var gerr *Error
		assert.True(t, errors.As(err, &gerr))
		assert.Equal(t, ClassUnknown, gerr.Class)
	})
}
