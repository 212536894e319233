package extract

import (
	"strings"
	"testing"
	"time"
)

func TestParseModelResponseStripsCodeFence(t *testing.T) {
	now := time.Date(2025, 11, 18, 12, 0, 0, 0, time.UTC)
	text := "```json\n" + `{
		"summary": "Arzttermin besprochen",
		"appointments": [
			{"title":"Nachkontrolle","dateTime":"2025-12-30T10:00:00Z","durationMinutes":30,"confidenceScore":0.95}
		],
		"tasks": [
			{"title":"Rezept abholen","priority":"High","confidenceScore":0.9}
		],
		"notes": [
			{"noteType":"Medical","title":"Blutdruck","content":"Blutdruck leicht erhöht","tags":"blutdruck"}
		]
	}` + "\n```"

	result := parseModelResponse(text, now)
	if result.Degraded {
		t.Fatalf("fenced JSON must parse, got degraded result: %q", result.Summary)
	}
	if result.Summary != "Arzttermin besprochen" {
		t.Fatalf("unexpected summary: %q", result.Summary)
	}
	if len(result.Appointments) != 1 || len(result.Tasks) != 1 || len(result.Notes) != 1 {
		t.Fatalf("unexpected child counts: %d/%d/%d", len(result.Appointments), len(result.Tasks), len(result.Notes))
	}

	appointment := result.Appointments[0]
	if appointment.ID == "" {
		t.Fatalf("appointment must get an id")
	}
	if !appointment.AppointmentAt.Equal(time.Date(2025, 12, 30, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected appointment time: %v", appointment.AppointmentAt)
	}
	if appointment.ConfidenceScore != 0.95 {
		t.Fatalf("unexpected confidence: %v", appointment.ConfidenceScore)
	}
	if !appointment.CreatedAt.Equal(now) {
		t.Fatalf("children must be stamped with the provided time")
	}
}

func TestParseModelResponseInvalidJSONDegrades(t *testing.T) {
	result := parseModelResponse("ich bin leider kein JSON", time.Now().UTC())
	if !result.Degraded {
		t.Fatalf("invalid JSON must yield a degraded result")
	}
	if !strings.Contains(result.Summary, "Fehler beim Parsen") {
		t.Fatalf("degraded summary must explain the failure, got %q", result.Summary)
	}
	if len(result.Appointments)+len(result.Tasks)+len(result.Notes) != 0 {
		t.Fatalf("degraded result must have zero children")
	}
}

func TestParseModelResponseToleratesSurroundingProse(t *testing.T) {
	text := `Hier ist das Ergebnis: {"summary":"ok","tasks":[{"title":"Anrufen"}]} Viel Erfolg!`
	result := parseModelResponse(text, time.Now().UTC())
	if result.Degraded {
		t.Fatalf("JSON embedded in prose must parse, got %q", result.Summary)
	}
	if len(result.Tasks) != 1 || result.Tasks[0].Title != "Anrufen" {
		t.Fatalf("unexpected tasks: %+v", result.Tasks)
	}
}

func TestParseModelResponseSkipsAppointmentWithoutDate(t *testing.T) {
	text := `{"summary":"ok","appointments":[{"title":"Irgendwann mal"},{"title":"Konkret","dateTime":"2025-12-01T09:00:00Z"}]}`
	result := parseModelResponse(text, time.Now().UTC())
	if len(result.Appointments) != 1 {
		t.Fatalf("dateless appointments must be skipped, got %d", len(result.Appointments))
	}
	if result.Appointments[0].Title != "Konkret" {
		t.Fatalf("wrong appointment survived: %q", result.Appointments[0].Title)
	}
}

func TestParseModelResponseEnumAndConfidenceDefaults(t *testing.T) {
	text := `{
		"summary":"ok",
		"tasks":[
			{"title":"A","priority":"Dringendst","confidenceScore":1.7},
			{"title":"B","priority":"urgent"}
		],
		"notes":[
			{"title":"N","content":"Inhalt","noteType":"Sonstiges","confidenceScore":-0.3}
		]
	}`
	result := parseModelResponse(text, time.Now().UTC())
	if result.Tasks[0].Priority != "Medium" {
		t.Fatalf("unknown priority must default to Medium, got %q", result.Tasks[0].Priority)
	}
	if result.Tasks[0].ConfidenceScore != 1 {
		t.Fatalf("confidence must clamp to 1, got %v", result.Tasks[0].ConfidenceScore)
	}
	if result.Tasks[1].Priority != "Urgent" {
		t.Fatalf("priority matching must ignore case, got %q", result.Tasks[1].Priority)
	}
	if result.Tasks[1].ConfidenceScore != 0 {
		t.Fatalf("missing confidence must default to 0, got %v", result.Tasks[1].ConfidenceScore)
	}
	if result.Notes[0].NoteType != "General" {
		t.Fatalf("unknown note type must default to General, got %q", result.Notes[0].NoteType)
	}
	if result.Notes[0].ConfidenceScore != 0 {
		t.Fatalf("confidence must clamp to 0, got %v", result.Notes[0].ConfidenceScore)
	}
}

func TestParseModelResponseNormalizesZonelessDates(t *testing.T) {
	text := `{"summary":"ok","appointments":[{"title":"T","dateTime":"2025-12-01T09:00:00"}]}`
	result := parseModelResponse(text, time.Now().UTC())
	if len(result.Appointments) != 1 {
		t.Fatalf("expected one appointment")
	}
	got := result.Appointments[0].AppointmentAt
	if got.Location() != time.UTC {
		t.Fatalf("stored times must be UTC, got %v", got.Location())
	}
	want := time.Date(2025, 12, 1, 9, 0, 0, 0, time.Local).UTC()
	if !got.Equal(want) {
		t.Fatalf("zone-less time must be read as local, got %v want %v", got, want)
	}
}

func TestParseModelResponseDropsEmptyNotes(t *testing.T) {
	text := `{"summary":"ok","notes":[{"title":"leer","content":"   "},{"content":"etwas"}]}`
	result := parseModelResponse(text, time.Now().UTC())
	if len(result.Notes) != 1 {
		t.Fatalf("notes without content must be dropped, got %d", len(result.Notes))
	}
	if result.Notes[0].Title != "Notiz" {
		t.Fatalf("untitled note must get the default title, got %q", result.Notes[0].Title)
	}
}
