package domain

import (
	"strings"
	"time"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "Low"
	PriorityMedium TaskPriority = "Medium"
	PriorityHigh   TaskPriority = "High"
	PriorityUrgent TaskPriority = "Urgent"
)

// ParseTaskPriority maps a free-form priority string to the closed
// enum, ignoring case and defaulting to Medium.
func ParseTaskPriority(value string) TaskPriority {
	for _, priority := range []TaskPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent} {
		if strings.EqualFold(value, string(priority)) {
			return priority
		}
	}
	return PriorityMedium
}

type NoteType string

const (
	NoteGeneral   NoteType = "General"
	NoteMedical   NoteType = "Medical"
	NoteFinancial NoteType = "Financial"
	NotePersonal  NoteType = "Personal"
)

// ParseNoteType maps a free-form note type string to the closed enum,
// ignoring case and defaulting to General.
func ParseNoteType(value string) NoteType {
	for _, noteType := range []NoteType{NoteGeneral, NoteMedical, NoteFinancial, NotePersonal} {
		if strings.EqualFold(value, string(noteType)) {
			return noteType
		}
	}
	return NoteGeneral
}

// ExtractedAppointment is a calendar candidate produced by the
// extraction stage, owned exclusively by its conversation.
type ExtractedAppointment struct {
	ID                string
	ConversationID    string
	Title             string
	Description       string
	Location          string
	AppointmentAt     time.Time
	DurationMinutes   int
	IsAllDay          bool
	AttendeeNames     string
	ConfidenceScore   float64
	IsConfirmed       bool
	IsAddedToCalendar bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ExtractedTask is a to-do candidate produced by the extraction stage.
type ExtractedTask struct {
	ID              string
	ConversationID  string
	Title           string
	Description     string
	DueDate         *time.Time
	Priority        TaskPriority
	Category        string
	IsCompleted     bool
	CompletedAt     *time.Time
	ConfidenceScore float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ExtractedNote is a free-form note candidate produced by the
// extraction stage.
type ExtractedNote struct {
	ID              string
	ConversationID  string
	NoteType        NoteType
	Title           string
	Content         string
	Category        string
	Tags            string
	ConfidenceScore float64
	IsPinned        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
