package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/remindhealth/journal-api/internal/domain"
	"github.com/remindhealth/journal-api/internal/http/middleware"
	"github.com/remindhealth/journal-api/internal/repository"
	"github.com/remindhealth/journal-api/internal/service"
)

var errInvalidPayload = errors.New("invalid payload")

type API struct {
	conversations *service.ConversationsService
}

func NewAPI(conversations *service.ConversationsService) *API {
	return &API{conversations: conversations}
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	payload := errorPayload{RequestID: middleware.GetRequestID(r.Context())}
	payload.Error.Code = code
	payload.Error.Message = message
	writeJSON(w, statusCode, payload)
}

// writeServiceError maps service and repository errors onto status
// codes so every handler reports failures the same way.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "conversation not found")
	case errors.Is(err, service.ErrEmptyAudio), errors.Is(err, service.ErrMissingUser), errors.Is(err, errInvalidPayload):
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, service.ErrNotEditable), errors.Is(err, service.ErrNotContinuable):
		writeError(w, r, http.StatusConflict, "invalid_state", err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal_error", "request failed")
	}
}

func decodeJSON(r *http.Request, value any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(value); err != nil {
		return errInvalidPayload
	}
	return nil
}

type conversationResponse struct {
	ID                    string  `json:"id"`
	Title                 string  `json:"title"`
	AudioFormat           string  `json:"audio_format"`
	AudioDurationSeconds  int     `json:"audio_duration_seconds"`
	TranscriptionText     string  `json:"transcription_text,omitempty"`
	TranscriptionLanguage string  `json:"transcription_language,omitempty"`
	Summary               string  `json:"summary,omitempty"`
	ProcessingStatus      string  `json:"processing_status"`
	ProcessingError       string  `json:"processing_error,omitempty"`
	RecordedAt            string  `json:"recorded_at"`
	ProcessedAt           *string `json:"processed_at,omitempty"`
	CreatedAt             string  `json:"created_at"`
	UpdatedAt             string  `json:"updated_at"`

	Appointments []appointmentResponse `json:"appointments,omitempty"`
	Tasks        []taskResponse        `json:"tasks,omitempty"`
	Notes        []noteResponse        `json:"notes,omitempty"`
}

type appointmentResponse struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Description     string  `json:"description,omitempty"`
	Location        string  `json:"location,omitempty"`
	AppointmentAt   string  `json:"appointment_at"`
	DurationMinutes int     `json:"duration_minutes,omitempty"`
	IsAllDay        bool    `json:"is_all_day"`
	AttendeeNames   string  `json:"attendee_names,omitempty"`
	ConfidenceScore float64 `json:"confidence_score"`
}

type taskResponse struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Description     string  `json:"description,omitempty"`
	DueDate         *string `json:"due_date,omitempty"`
	Priority        string  `json:"priority"`
	Category        string  `json:"category,omitempty"`
	IsCompleted     bool    `json:"is_completed"`
	ConfidenceScore float64 `json:"confidence_score"`
}

type noteResponse struct {
	ID              string  `json:"id"`
	NoteType        string  `json:"note_type"`
	Title           string  `json:"title"`
	Content         string  `json:"content"`
	Category        string  `json:"category,omitempty"`
	Tags            string  `json:"tags,omitempty"`
	IsPinned        bool    `json:"is_pinned"`
	ConfidenceScore float64 `json:"confidence_score"`
}

func toConversationResponse(conversation *domain.Conversation) conversationResponse {
	response := conversationResponse{
		ID:                    conversation.ID,
		Title:                 conversation.Title,
		AudioFormat:           conversation.AudioFormat,
		AudioDurationSeconds:  conversation.AudioDurationSeconds,
		TranscriptionText:     conversation.TranscriptionText,
		TranscriptionLanguage: conversation.TranscriptionLanguage,
		Summary:               conversation.Summary,
		ProcessingStatus:      string(conversation.ProcessingStatus),
		ProcessingError:       conversation.ProcessingError,
		RecordedAt:            conversation.RecordedAt.Format(time.RFC3339),
		CreatedAt:             conversation.CreatedAt.Format(time.RFC3339),
		UpdatedAt:             conversation.UpdatedAt.Format(time.RFC3339),
	}
	if conversation.ProcessedAt != nil {
		formatted := conversation.ProcessedAt.Format(time.RFC3339)
		response.ProcessedAt = &formatted
	}

	for _, appointment := range conversation.Appointments {
		response.Appointments = append(response.Appointments, appointmentResponse{
			ID:              appointment.ID,
			Title:           appointment.Title,
			Description:     appointment.Description,
			Location:        appointment.Location,
			AppointmentAt:   appointment.AppointmentAt.Format(time.RFC3339),
			DurationMinutes: appointment.DurationMinutes,
			IsAllDay:        appointment.IsAllDay,
			AttendeeNames:   appointment.AttendeeNames,
			ConfidenceScore: appointment.ConfidenceScore,
		})
	}
	for _, task := range conversation.Tasks {
		item := taskResponse{
			ID:              task.ID,
			Title:           task.Title,
			Description:     task.Description,
			Priority:        string(task.Priority),
			Category:        task.Category,
			IsCompleted:     task.IsCompleted,
			ConfidenceScore: task.ConfidenceScore,
		}
		if task.DueDate != nil {
			formatted := task.DueDate.Format(time.RFC3339)
			item.DueDate = &formatted
		}
		response.Tasks = append(response.Tasks, item)
	}
	for _, note := range conversation.Notes {
		response.Notes = append(response.Notes, noteResponse{
			ID:              note.ID,
			NoteType:        string(note.NoteType),
			Title:           note.Title,
			Content:         note.Content,
			Category:        note.Category,
			Tags:            note.Tags,
			IsPinned:        note.IsPinned,
			ConfidenceScore: note.ConfidenceScore,
		})
	}
	return response
}
