package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type AssemblyAIConfig struct {
	APIKey       string
	BaseURL      string
	LanguageCode string
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// AssemblyAITranscriber submits audio to the hosted AssemblyAI API:
// upload the bytes, create a transcript job, then poll until the job
// reaches a terminal status.
type AssemblyAITranscriber struct {
	client       *resty.Client
	languageCode string
	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewAssemblyAITranscriber(cfg AssemblyAIConfig) *AssemblyAITranscriber {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.assemblyai.com/v2"
	}
	if strings.TrimSpace(cfg.LanguageCode) == "" {
		cfg.LanguageCode = "de"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10 * time.Minute
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Authorization", strings.TrimSpace(cfg.APIKey)).
		SetTimeout(60 * time.Second)

	return &AssemblyAITranscriber{
		client:       client,
		languageCode: cfg.LanguageCode,
		pollInterval: cfg.PollInterval,
		pollTimeout:  cfg.PollTimeout,
	}
}

type assemblyAIUploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type assemblyAITranscript struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	Text          string  `json:"text"`
	LanguageCode  string  `json:"language_code"`
	AudioDuration float64 `json:"audio_duration"`
	Confidence    float64 `json:"confidence"`
	Error         string  `json:"error"`
	Words         []struct {
		Text       string  `json:"text"`
		Start      float64 `json:"start"`
		End        float64 `json:"end"`
		Confidence float64 `json:"confidence"`
	} `json:"words"`
}

func (t *AssemblyAITranscriber) Transcribe(ctx context.Context, audio io.Reader) (Result, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return Result{}, fmt.Errorf("read audio stream: %w", err)
	}
	if len(data) == 0 {
		return Result{}, errors.New("audio stream is empty")
	}

	uploadURL, err := t.upload(ctx, data)
	if err != nil {
		return Result{}, err
	}

	transcriptID, err := t.submit(ctx, uploadURL)
	if err != nil {
		return Result{}, err
	}

	return t.poll(ctx, transcriptID)
}

func (t *AssemblyAITranscriber) upload(ctx context.Context, data []byte) (string, error) {
	var uploaded assemblyAIUploadResponse
	response, err := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(data).
		SetResult(&uploaded).
		Post("/upload")
	if err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}
	if response.IsError() {
		return "", fmt.Errorf("upload audio: status %d: %s", response.StatusCode(), truncate(response.String()))
	}
	if uploaded.UploadURL == "" {
		return "", errors.New("upload response without upload_url")
	}
	return uploaded.UploadURL, nil
}

func (t *AssemblyAITranscriber) submit(ctx context.Context, audioURL string) (string, error) {
	var created assemblyAITranscript
	response, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"audio_url":     audioURL,
			"language_code": t.languageCode,
			"punctuate":     true,
			"format_text":   true,
		}).
		SetResult(&created).
		Post("/transcript")
	if err != nil {
		return "", fmt.Errorf("submit transcript: %w", err)
	}
	if response.IsError() {
		return "", fmt.Errorf("submit transcript: status %d: %s", response.StatusCode(), truncate(response.String()))
	}
	if created.ID == "" {
		return "", errors.New("transcript response without id")
	}
	return created.ID, nil
}

func (t *AssemblyAITranscriber) poll(ctx context.Context, transcriptID string) (Result, error) {
	deadline := time.Now().Add(t.pollTimeout)
	for {
		var transcript assemblyAITranscript
		response, err := t.client.R().
			SetContext(ctx).
			SetResult(&transcript).
			Get("/transcript/" + transcriptID)
		if err != nil {
			return Result{}, fmt.Errorf("poll transcript: %w", err)
		}
		if response.IsError() {
			return Result{}, fmt.Errorf("poll transcript: status %d: %s", response.StatusCode(), truncate(response.String()))
		}

		switch transcript.Status {
		case "completed":
			return mapTranscript(transcript), nil
		case "error":
			return Result{}, fmt.Errorf("transcription failed: %s", transcript.Error)
		}

		if time.Now().After(deadline) {
			return Result{}, fmt.Errorf("transcript %s not finished before timeout", transcriptID)
		}
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(t.pollInterval):
		}
	}
}

func mapTranscript(transcript assemblyAITranscript) Result {
	result := Result{
		Text:            strings.TrimSpace(transcript.Text),
		Language:        transcript.LanguageCode,
		DurationSeconds: transcript.AudioDuration,
		Confidence:      transcript.Confidence,
	}
	for _, word := range transcript.Words {
		result.Words = append(result.Words, Word{
			Text:       word.Text,
			Start:      word.Start / 1000.0,
			End:        word.End / 1000.0,
			Confidence: word.Confidence,
		})
	}
	return result
}

func truncate(message string) string {
	message = strings.TrimSpace(message)
	if len(message) > 700 {
		return message[:700]
	}
	return message
}
