package extract

import (
	"fmt"
	"time"
)

// buildExtractionPrompt embeds today's date so the model resolves
// relative expressions ("in 6 Wochen", "morgen") itself.
func buildExtractionPrompt(transcript string, now time.Time) string {
	return fmt.Sprintf(`Du bist ein KI-Assistent für die Extraktion strukturierter Informationen aus Gesprächstranskripten.

Analysiere den folgenden Text sorgfältig und extrahiere:
1. **Termine/Appointments**: Zeitpunkte für Treffen, Arztbesuche, Meetings etc.
2. **Aufgaben/Tasks**: To-dos, Erinnerungen, Dinge die erledigt werden müssen
3. **Wichtige Notizen**: Medizinische Informationen, Entscheidungen, wichtige Fakten
4. **Zusammenfassung**: Eine kurze Zusammenfassung des Gesprächs

TRANSKRIPT:
%s

Antworte NUR mit einem gültigen JSON-Objekt in folgendem Format (keine zusätzlichen Texte):

{
  "summary": "Kurze Zusammenfassung des Gesprächs",
  "correctedTranscription": null,
  "appointments": [
    {
      "title": "Titel des Termins",
      "description": "Beschreibung (optional)",
      "location": "Ort (optional)",
      "dateTime": "2025-11-20T10:00:00",
      "durationMinutes": 30,
      "isAllDay": false,
      "attendeeNames": "Namen der Teilnehmer (optional)",
      "confidenceScore": 0.95
    }
  ],
  "tasks": [
    {
      "title": "Aufgabe",
      "description": "Details (optional)",
      "dueDate": "2025-11-22T00:00:00",
      "priority": "Medium",
      "category": "Gesundheit",
      "confidenceScore": 0.90
    }
  ],
  "notes": [
    {
      "noteType": "Medical",
      "title": "Titel der Notiz",
      "content": "Inhalt der Notiz",
      "category": "Gesundheit",
      "tags": "blutdruck,medikation",
      "confidenceScore": 0.95
    }
  ]
}

WICHTIG:
- Verwende ISO 8601 Format für Datumswerte
- Priority kann sein: Low, Medium, High, Urgent
- NoteType kann sein: General, Medical, Financial, Personal
- Wenn keine Informationen gefunden werden, gib leere Arrays zurück
- ConfidenceScore ist eine Zahl zwischen 0 und 1
- Achte auf deutsche Zeitangaben wie "in 6 Wochen", "nächste Woche", "morgen" etc.
- Berechne relative Daten basierend auf dem heutigen Datum: %s
- Für Termine ohne Uhrzeit: 09:00 Uhr annehmen
- Extrahiere ALLE genannten Termine, Aufgaben und wichtigen Informationen`,
		transcript, now.Format("2006-01-02"))
}

// buildCorrectionPrompt asks the model to clean up recognition errors
// without changing the content, used by the local-LLM backend before
// extraction.
func buildCorrectionPrompt(transcript string) string {
	return fmt.Sprintf(`Du bist ein KI-Assistent zur Korrektur von Transkriptionsfehlern.

Die folgende Transkription wurde automatisch erstellt und enthält Fehler aufgrund von Spracherkennung.
Korrigiere den Text, OHNE den Inhalt oder die Bedeutung zu ändern.

WICHTIGE REGELN:
1. Korrigiere nur offensichtliche Fehler
2. Verbessere die Grammatik und Rechtschreibung
3. Füge KEINE neuen Informationen hinzu
4. Lösche KEINE Informationen
5. Behalte alle Zahlen, Daten, Namen und spezifischen Details bei

ORIGINAL TRANSKRIPTION:
%s

Antworte NUR mit dem korrigierten Text, ohne zusätzliche Kommentare oder Erklärungen.

KORRIGIERTER TEXT:`, transcript)
}
