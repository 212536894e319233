package domain

import (
	"time"
)

type ProcessingStatus string

const (
	StatusPending      ProcessingStatus = "Pending"
	StatusTranscribing ProcessingStatus = "Transcribing"
	StatusTranscribed  ProcessingStatus = "Transcribed"
	StatusAnalyzing    ProcessingStatus = "Analyzing"
	StatusCompleted    ProcessingStatus = "Completed"
	StatusFailed       ProcessingStatus = "Failed"
)

// Valid reports whether the status is one of the closed set of
// pipeline states. No other value is ever persisted.
func (s ProcessingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusTranscribing, StatusTranscribed,
		StatusAnalyzing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the pipeline cannot leave this status.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition enforces the pipeline state machine:
// Pending -> Transcribing -> Transcribed -> Analyzing -> Completed,
// with Failed reachable from any non-terminal state.
func CanTransition(from, to ProcessingStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if to == StatusFailed {
		return !from.Terminal()
	}
	switch from {
	case StatusPending:
		return to == StatusTranscribing
	case StatusTranscribing:
		return to == StatusTranscribed
	case StatusTranscribed:
		return to == StatusAnalyzing
	case StatusAnalyzing:
		return to == StatusCompleted
	}
	return false
}

// Conversation is the aggregate root of the processing pipeline: one
// recorded session and everything derived from it.
type Conversation struct {
	ID                    string
	UserID                string
	Title                 string
	AudioFileRef          string
	AudioFormat           string
	AudioDurationSeconds  int
	TranscriptionText     string
	TranscriptionLanguage string
	Summary               string
	ProcessingStatus      ProcessingStatus
	ProcessingError       string
	RecordedAt            time.Time
	ProcessedAt           *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
	IsDeleted             bool

	// Populated only by detail queries.
	Appointments []ExtractedAppointment
	Tasks        []ExtractedTask
	Notes        []ExtractedNote
}
