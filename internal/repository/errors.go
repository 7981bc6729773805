package repository

import (
	"errors"

	"github.com/lib/pq"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

var (
	// ErrDuplicateFingerprint reports a resource whose content hash is already stored.
	ErrDuplicateFingerprint = errors.New("duplicate resource fingerprint")
	// ErrDuplicateEmail reports a registration for an email already in use.
	ErrDuplicateEmail = errors.New("duplicate user email")
	// ErrUnknownRequest reports a resource linked to a wishlist request that does not exist.
	ErrUnknownRequest = errors.New("unknown resource request")
)

func isUniqueViolation(err error, constraint string) bool {
	return isPQError(err, pgUniqueViolation, constraint)
}

func isForeignKeyViolation(err error, constraint string) bool {
	return isPQError(err, pgForeignKeyViolation, constraint)
}

func isPQError(err error, code pq.ErrorCode, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != code {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

func normalisePage(page, pageSize int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize, (page - 1) * pageSize
}
