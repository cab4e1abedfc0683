package services

import (
	"errors"

	"gorm.io/gorm"

	"natours-api/internal/core/domain"
)

// notFoundOr maps a missing record to notFound and anything else to an
// internal error
func notFoundOr(err error, notFound *domain.AppError, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return domain.NewInternal(msg, err)
}
