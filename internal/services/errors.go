package services

import (
	"errors"

	"github.com/anonto42/meta-v/backend/internal/apperr"
	"github.com/anonto42/meta-v/backend/internal/repositories"
)

// storeErr translates a repository error into the error taxonomy. what
// names the entity, e.g. "post".
func storeErr(err error, what string) error {
	var ae *apperr.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ae):
		return err
	case errors.Is(err, repositories.ErrNotFound):
		return apperr.NotFound(what + " not found")
	case errors.Is(err, repositories.ErrDuplicate):
		return apperr.Conflict(what + " already exists")
	case errors.Is(err, repositories.ErrConflict):
		return apperr.Conflict(what + " changed concurrently")
	default:
		return apperr.Internal("failed to access "+what, err)
	}
}
