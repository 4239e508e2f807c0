package repositories

import (
	"context"
	"errors"

	"todo-tracker/internal/models"

	"github.com/gofrs/uuid"
)

var ErrTaskNotFound = errors.New("task not found")

// ListQuery selects one page of tasks. Page and Limit are expected to be
// positive; callers normalise user input before building a query.
type ListQuery struct {
	Page   int
	Limit  int
	Search string
}

func (q ListQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// TaskStore is the persistence contract for tasks. Implementations sort lists
// by creation time, newest first, and report the filtered total alongside
// each page.
type TaskStore interface {
	Create(ctx context.Context, task *models.Task) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	List(ctx context.Context, query ListQuery) ([]models.Task, int64, error)
	Count(ctx context.Context, search string) (int64, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id uuid.UUID) error
	Health(ctx context.Context) error
}
