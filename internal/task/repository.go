package task

import (
	"context"
	"errors"
)

// ErrTaskNotFound is returned when a task cannot be found by ID.
var ErrTaskNotFound = errors.New("task not found")

// Repository defines the interface for the in-flight task registry.
// It acts as a port in the hexagonal architecture pattern.
type Repository interface {
	// Save stores a task, replacing any task with the same ID.
	Save(ctx context.Context, task *Task) error

	// FindByID retrieves a task by its unique identifier.
	// Returns ErrTaskNotFound if the task does not exist.
	FindByID(ctx context.Context, id string) (*Task, error)

	// List returns all tasks.
	List(ctx context.Context) ([]*Task, error)

	// Delete removes a task.
	// Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id string) error
}
