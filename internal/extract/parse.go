package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/remindhealth/journal-api/internal/domain"
)

// Wire types for the model's JSON answer. encoding/json matches field
// names case-insensitively, which covers the loosely-cased keys the
// models produce.
type wirePayload struct {
	Summary                string            `json:"summary"`
	CorrectedTranscription string            `json:"correctedTranscription"`
	Appointments           []wireAppointment `json:"appointments"`
	Tasks                  []wireTask        `json:"tasks"`
	Notes                  []wireNote        `json:"notes"`
}

type wireAppointment struct {
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	Location            string   `json:"location"`
	DateTime            string   `json:"dateTime"`
	AppointmentDateTime string   `json:"appointmentDateTime"`
	DurationMinutes     int      `json:"durationMinutes"`
	IsAllDay            bool     `json:"isAllDay"`
	AttendeeNames       string   `json:"attendeeNames"`
	ConfidenceScore     *float64 `json:"confidenceScore"`
}

type wireTask struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	DueDate         string   `json:"dueDate"`
	Priority        string   `json:"priority"`
	Category        string   `json:"category"`
	ConfidenceScore *float64 `json:"confidenceScore"`
}

type wireNote struct {
	NoteType        string   `json:"noteType"`
	Title           string   `json:"title"`
	Content         string   `json:"content"`
	Category        string   `json:"category"`
	Tags            string   `json:"tags"`
	IsPinned        bool     `json:"isPinned"`
	ConfidenceScore *float64 `json:"confidenceScore"`
}

// parseModelResponse turns raw model output into a Result. Any decode
// problem yields a degraded result instead of an error.
func parseModelResponse(text string, now time.Time) Result {
	raw, err := extractJSON(text)
	if err != nil {
		return Degraded(fmt.Sprintf("Fehler beim Parsen der KI-Antwort: %v", err))
	}

	var payload wirePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Degraded(fmt.Sprintf("Fehler beim Parsen der KI-Antwort: %v", err))
	}

	result := Result{
		Summary:             strings.TrimSpace(payload.Summary),
		CorrectedTranscript: strings.TrimSpace(payload.CorrectedTranscription),
	}

	for _, item := range payload.Appointments {
		appointmentAt, ok := parseModelDateTime(firstNonEmpty(item.DateTime, item.AppointmentDateTime))
		if !ok {
			// An appointment without a usable date cannot land on a calendar.
			continue
		}
		result.Appointments = append(result.Appointments, domain.ExtractedAppointment{
			ID:              uuid.NewString(),
			Title:           firstNonEmpty(strings.TrimSpace(item.Title), "Unbenannter Termin"),
			Description:     strings.TrimSpace(item.Description),
			Location:        strings.TrimSpace(item.Location),
			AppointmentAt:   appointmentAt,
			DurationMinutes: item.DurationMinutes,
			IsAllDay:        item.IsAllDay,
			AttendeeNames:   strings.TrimSpace(item.AttendeeNames),
			ConfidenceScore: clampConfidence(item.ConfidenceScore),
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	for _, item := range payload.Tasks {
		task := domain.ExtractedTask{
			ID:              uuid.NewString(),
			Title:           firstNonEmpty(strings.TrimSpace(item.Title), "Unbenannte Aufgabe"),
			Description:     strings.TrimSpace(item.Description),
			Priority:        domain.ParseTaskPriority(strings.TrimSpace(item.Priority)),
			Category:        strings.TrimSpace(item.Category),
			ConfidenceScore: clampConfidence(item.ConfidenceScore),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if dueDate, ok := parseModelDateTime(item.DueDate); ok {
			task.DueDate = &dueDate
		}
		result.Tasks = append(result.Tasks, task)
	}

	for _, item := range payload.Notes {
		content := strings.TrimSpace(item.Content)
		if content == "" {
			continue
		}
		result.Notes = append(result.Notes, domain.ExtractedNote{
			ID:              uuid.NewString(),
			NoteType:        domain.ParseNoteType(strings.TrimSpace(item.NoteType)),
			Title:           firstNonEmpty(strings.TrimSpace(item.Title), "Notiz"),
			Content:         content,
			Category:        strings.TrimSpace(item.Category),
			Tags:            strings.TrimSpace(item.Tags),
			ConfidenceScore: clampConfidence(item.ConfidenceScore),
			IsPinned:        item.IsPinned,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	return result
}

// Degraded builds an empty-but-valid result describing a failure, so a
// broken backend still lets the conversation reach a terminal state.
func Degraded(summary string) Result {
	return Result{Summary: summary, Degraded: true}
}

// extractJSON unwraps a JSON object from raw model text, stripping
// markdown code fences and leading/trailing prose.
func extractJSON(text string) ([]byte, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, errors.New("empty model output")
	}

	if strings.HasPrefix(trimmed, "```") {
		trimmed = stripCodeFence(trimmed)
	}

	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
		return []byte(trimmed), nil
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		candidate := trimmed[start : end+1]
		if err := json.Unmarshal([]byte(candidate), &decoded); err == nil {
			return []byte(candidate), nil
		}
	}

	return nil, errors.New("model output is not valid JSON")
}

func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimPrefix(trimmed, "json")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseModelDateTime normalizes a model-produced timestamp to UTC.
// Zone-less values are interpreted in the process-local zone, matching
// how the prompt asks the model to resolve relative dates.
func parseModelDateTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed.UTC(), true
	}
	for _, layout := range dateTimeLayouts[1:] {
		if parsed, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

func clampConfidence(value *float64) float64 {
	if value == nil {
		return 0
	}
	if *value < 0 {
		return 0
	}
	if *value > 1 {
		return 1
	}
	return *value
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
