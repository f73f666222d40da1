package service

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"

	appErrors "github.com/noah-isme/academic-engine/pkg/errors"
)

// pgUniqueViolation is the SQLSTATE raised by unique constraints.
const pgUniqueViolation = "23505"

func errorCode(err error) string {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func wrapInternal(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
