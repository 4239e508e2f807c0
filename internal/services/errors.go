package services

import (
	"errors"

	"todo-tracker/internal/repositories"
)

// ErrTaskNotFound is returned for ids that are unknown or cannot be parsed.
var ErrTaskNotFound = repositories.ErrTaskNotFound

// ValidationError reports bad caller input. Nothing is persisted when one is
// returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
