package transcribe

import (
	"context"
	"io"
)

// Word is one recognized word with timestamps in seconds.
type Word struct {
	Text       string
	Start      float64
	End        float64
	Confidence float64
}

// Result is the outcome of one speech-to-text run.
type Result struct {
	Text            string
	Language        string
	DurationSeconds float64
	Confidence      float64
	Words           []Word
}

// Transcriber converts an audio stream into timestamped text. Backends
// surface every failure (network, remote error status, missing model)
// as a single returned error and perform no retries of their own.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader) (Result, error)
}
