// Package task provides the Task aggregate tracking one clip request from
// acceptance to a terminal state, the in-memory registry of in-flight
// tasks, and the dispatch service that runs them synchronously or in the
// background with webhook delivery.
package task

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/maauso/clipper-api/internal/task/id"
)

// Status represents the current state of a Task.
type Status string

const (
	// StatusAccepted indicates the request was validated and registered.
	StatusAccepted Status = "ACCEPTED"
	// StatusRunning indicates the clip pipeline is executing.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates every clip was produced and delivered.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates processing or delivery failed.
	StatusFailed Status = "FAILED"
)

// Mode is how a task's results reach the caller.
type Mode string

const (
	// ModeSync returns results in the HTTP response.
	ModeSync Mode = "sync"
	// ModeWebhook acknowledges immediately and POSTs results to a webhook.
	ModeWebhook Mode = "webhook"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusAccepted:  {StatusRunning, StatusFailed},
	StatusRunning:   {StatusCompleted, StatusFailed},
	StatusCompleted: {},
	StatusFailed:    {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// Task represents one clip processing request.
type Task struct {
	mu sync.RWMutex

	// ID is the short random identifier returned to the caller.
	ID string
	// Mode selects synchronous or webhook delivery.
	Mode Mode
	// WebhookURL is the delivery target in ModeWebhook.
	WebhookURL string
	// Status is the current task state.
	Status Status
	// Windows is the number of requested timestamp windows.
	Windows int
	// Clips is the number of clips produced.
	Clips int
	// Error contains the failure message if the task failed.
	Error string
	// CreatedAt is when the task was accepted.
	CreatedAt time.Time
	// UpdatedAt is when the task was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when the task reached a terminal state.
	CompletedAt time.Time
}

// New creates a Task with a generated ID in ACCEPTED state. A non-empty
// webhookURL selects ModeWebhook.
func New(webhookURL string, windows int) *Task {
	return NewWithID(id.Generate(), webhookURL, windows)
}

// NewWithID creates a Task with the specified ID in ACCEPTED state.
// Useful for testing or when the ID is generated elsewhere.
func NewWithID(taskID, webhookURL string, windows int) *Task {
	now := time.Now()
	mode := ModeSync
	if webhookURL != "" {
		mode = ModeWebhook
	}
	return &Task{
		ID:         taskID,
		Mode:       mode,
		WebhookURL: webhookURL,
		Status:     StatusAccepted,
		Windows:    windows,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// TransitionTo attempts to change the task status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (t *Task) TransitionTo(status Status) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !canTransition(t.Status, status) {
		return ErrInvalidTransition
	}

	t.Status = status
	t.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		t.StartedAt = t.UpdatedAt
	case StatusCompleted, StatusFailed:
		t.CompletedAt = t.UpdatedAt
	}

	return nil
}

// Start transitions the task from ACCEPTED to RUNNING.
func (t *Task) Start() error {
	return t.TransitionTo(StatusRunning)
}

// Complete records the produced clip count and transitions to COMPLETED.
func (t *Task) Complete(clips int) error {
	if err := t.TransitionTo(StatusCompleted); err != nil {
		return err
	}
	t.mu.Lock()
	t.Clips = clips
	t.mu.Unlock()
	return nil
}

// Fail transitions the task to FAILED state with an error message.
func (t *Task) Fail(errMsg string) error {
	if err := t.TransitionTo(StatusFailed); err != nil {
		return err
	}
	t.mu.Lock()
	t.Error = errMsg
	t.mu.Unlock()
	return nil
}

// GetStatus returns the current task status (thread-safe).
func (t *Task) GetStatus() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status
}

// IsTerminal returns true if the task is in a terminal state.
func (t *Task) IsTerminal() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// Elapsed returns how long the task has been, or was, running.
func (t *Task) Elapsed() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	switch {
	case t.StartedAt.IsZero():
		return 0
	case t.CompletedAt.IsZero():
		return time.Since(t.StartedAt)
	default:
		return t.CompletedAt.Sub(t.StartedAt)
	}
}

// Clone creates a copy of the task for safe reads.
func (t *Task) Clone() *Task {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return &Task{
		ID:          t.ID,
		Mode:        t.Mode,
		WebhookURL:  t.WebhookURL,
		Status:      t.Status,
		Windows:     t.Windows,
		Clips:       t.Clips,
		Error:       t.Error,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
	}
}
