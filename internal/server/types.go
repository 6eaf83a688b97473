// Package server provides the HTTP transport of the clip service.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/clipper-api/internal/clip"
)

// ProcessForm is the parsed multipart form of POST /process.
type ProcessForm struct {
	// Format is a format key ("shorts") or display name ("Shorts (9:16)").
	// Empty selects the default format.
	Format string `validate:"max=64"`
	// Timestamps is the decoded "timestamps" JSON list.
	Timestamps []clip.Window `validate:"required,min=1"`
	// VideoVolume scales the original audio.
	VideoVolume float64 `validate:"gte=0,lte=10"`
	// MusicVolume scales the background music.
	MusicVolume float64 `validate:"gte=0,lte=10"`
	// LoopMusic repeats short background music.
	LoopMusic bool
	// ExportAudio writes each clip's original audio to its own file.
	ExportAudio bool
	// MusicURL is downloaded when no background_music file is uploaded.
	MusicURL string `validate:"omitempty,http_url"`
	// WebhookURL switches to background processing with webhook delivery.
	WebhookURL string `validate:"omitempty,http_url"`
	// CustomWidth and CustomHeight are required by the custom format.
	CustomWidth  int `validate:"omitempty,min=2,max=7680"`
	CustomHeight int `validate:"omitempty,min=2,max=7680"`
}

// TaskResponse is the HTTP response for GET /tasks/{id}.
type TaskResponse struct {
	TaskID    string    `json:"task_id"`
	Status    string    `json:"status"`
	Mode      string    `json:"mode"`
	Windows   int       `json:"windows"`
	Clips     int       `json:"clips"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	StartedAt time.Time `json:"started_at,omitzero"`
}

// TaskListResponse is the HTTP response for GET /tasks.
type TaskListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
