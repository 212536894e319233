package extract

import (
	"context"

	"github.com/remindhealth/journal-api/internal/domain"
)

// Result is the structured outcome of one extraction run. A run that
// cannot produce structured data still yields a valid Result whose
// Summary explains what went wrong (a degraded result), so the pipeline
// always reaches a terminal state.
type Result struct {
	Summary             string
	CorrectedTranscript string
	Appointments        []domain.ExtractedAppointment
	Tasks               []domain.ExtractedTask
	Notes               []domain.ExtractedNote
	Degraded            bool
}

// Extractor converts a free-text transcript into appointment, task and
// note candidates plus a summary.
type Extractor interface {
	Extract(ctx context.Context, transcript string) (Result, error)
}
