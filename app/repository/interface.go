package repository

import (
	"context"
	"errors"

	"todo-go/app/models"
)

// ErrNotFound is returned when no task has the requested id.
var ErrNotFound = errors.New("task not found")

// TaskRepository persists tasks. Implementations must be safe for concurrent
// use and release any connection or session before returning.
type TaskRepository interface {
	List(ctx context.Context) ([]models.Task, error)
	GetByID(ctx context.Context, id int64) (*models.Task, error)
	// Create stores task, assigning its ID. CreatedAt is kept if set.
	Create(ctx context.Context, task *models.Task) error
	// Update applies patch and returns the stored result.
	Update(ctx context.Context, id int64, patch models.TaskPatch) (*models.Task, error)
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
	Close() error
}
