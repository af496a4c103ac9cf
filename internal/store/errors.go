package store

import (
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Store errors
var (
	// ErrBackend matches every failure reaching or executing against Postgres
	ErrBackend = errors.New("backend error")
	// ErrNotSupported is returned by operations the store refuses to perform
	ErrNotSupported = errors.New("operation not supported")
)

const uniqueViolation = "23505"

// BackendError wraps a database failure. errors.Is(err, ErrBackend) holds for
// every BackendError.
type BackendError struct {
	Msg string
	Err error
}

func (e *BackendError) Error() string {
	return e.Msg + ": " + e.Err.Error()
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func (e *BackendError) Is(target error) bool {
	return target == ErrBackend
}

func backend(err error, msg string) error {
	return &BackendError{Msg: msg, Err: err}
}

// isDuplicate reports whether err is a unique violation, translated by GORM
// or raw from the driver
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
