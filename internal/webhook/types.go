// Package webhook delivers task outcomes to caller supplied URLs.
package webhook

// Status values reported in a Payload.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Payload is the JSON body POSTed to a webhook when a task finishes.
// AudioURLs is index-aligned with ClipsURLs; a nil entry marks a clip
// without exported audio.
type Payload struct {
	Status          string    `json:"status"`
	TaskID          string    `json:"task_id"`
	ClipsURLs       []string  `json:"clips_urls,omitempty"`
	AudioURLs       []*string `json:"audio_urls,omitempty"`
	ArchiveURL      string    `json:"archive_url,omitempty"`
	ArchiveFilename string    `json:"archive_filename,omitempty"`
	Error           string    `json:"error,omitempty"`
}

// Completed builds the success payload for a task.
func Completed(taskID string, clips []string, audio []*string) Payload {
	return Payload{
		Status:    StatusCompleted,
		TaskID:    taskID,
		ClipsURLs: clips,
		AudioURLs: audio,
	}
}

// Failed builds the error payload for a task. message is sent as is and
// must not carry server internals.
func Failed(taskID, message string) Payload {
	if message == "" {
		message = "unknown error"
	}
	return Payload{Status: StatusError, TaskID: taskID, Error: message}
}
