package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type WhisperConfig struct {
	// ModelPath is where the ggml model file lives or gets downloaded to.
	// Defaults to ~/.whisper/ggml-base.bin.
	ModelPath string
	// ModelURL, when set, is fetched once if the model file is missing.
	ModelURL string
	Binary   string
	Language string
}

// WhisperTranscriber runs a local whisper.cpp binary against a fixed
// acoustic model. The model file is ensured once per transcriber handle
// and a handle-scoped mutex serializes runs, since the local model
// cannot process two recordings at a time.
type WhisperTranscriber struct {
	modelPath string
	modelURL  string
	binary    string
	language  string

	mu         sync.Mutex
	modelReady bool

	httpClient *http.Client
	// runCommand is swapped in tests to avoid spawning a real process.
	runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func NewWhisperTranscriber(cfg WhisperConfig) *WhisperTranscriber {
	if strings.TrimSpace(cfg.ModelPath) == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		cfg.ModelPath = filepath.Join(home, ".whisper", "ggml-base.bin")
	}
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = "whisper-cli"
	}
	if strings.TrimSpace(cfg.Language) == "" {
		cfg.Language = "de"
	}

	return &WhisperTranscriber{
		modelPath:  cfg.ModelPath,
		modelURL:   cfg.ModelURL,
		binary:     cfg.Binary,
		language:   cfg.Language,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
		runCommand: runProcess,
	}
}

type whisperOutput struct {
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func (t *WhisperTranscriber) Transcribe(ctx context.Context, audio io.Reader) (Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ensureModel(ctx); err != nil {
		return Result{}, err
	}

	audioPath, cleanup, err := spoolToTempFile(audio)
	if err != nil {
		return Result{}, err
	}
	defer cleanup()

	output, err := t.runCommand(ctx, t.binary,
		"-m", t.modelPath,
		"-l", t.language,
		"-f", audioPath,
		"--output-json",
	)
	if err != nil {
		return Result{}, fmt.Errorf("run whisper: %w", err)
	}

	var parsed whisperOutput
	if err := json.Unmarshal(output, &parsed); err != nil {
		return Result{}, fmt.Errorf("parse whisper output: %w", err)
	}

	fragments := make([]string, 0, len(parsed.Segments))
	words := make([]Word, 0, len(parsed.Segments))
	for _, segment := range parsed.Segments {
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		fragments = append(fragments, text)
		words = append(words, Word{Text: text, Start: segment.Start, End: segment.End})
	}

	language := parsed.Language
	if language == "" {
		language = t.language
	}

	return Result{
		Text:            strings.Join(fragments, " "),
		Language:        language,
		DurationSeconds: parsed.Duration,
		// whisper.cpp does not report an overall confidence; use a fixed
		// conservative value like the hosted backend's lower bound.
		Confidence: 0.85,
		Words:      words,
	}, nil
}

// ensureModel downloads the model file once when a URL is configured;
// without a URL a missing model is a hard error.
func (t *WhisperTranscriber) ensureModel(ctx context.Context) error {
	if t.modelReady {
		return nil
	}
	if _, err := os.Stat(t.modelPath); err == nil {
		t.modelReady = true
		return nil
	}
	if t.modelURL == "" {
		return fmt.Errorf("whisper model not found at %s", t.modelPath)
	}

	if err := os.MkdirAll(filepath.Dir(t.modelPath), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, t.modelURL, nil)
	if err != nil {
		return fmt.Errorf("create model request: %w", err)
	}
	response, err := t.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("download whisper model: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("download whisper model: status %d", response.StatusCode)
	}

	// Download to a temp name first so a partial file never passes the
	// existence check on the next run.
	partial := t.modelPath + ".partial"
	file, err := os.Create(partial)
	if err != nil {
		return fmt.Errorf("create model file: %w", err)
	}
	if _, err := io.Copy(file, response.Body); err != nil {
		file.Close()
		os.Remove(partial)
		return fmt.Errorf("write model file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(partial)
		return fmt.Errorf("close model file: %w", err)
	}
	if err := os.Rename(partial, t.modelPath); err != nil {
		return fmt.Errorf("finalize model file: %w", err)
	}

	t.modelReady = true
	return nil
}

func spoolToTempFile(audio io.Reader) (string, func(), error) {
	file, err := os.CreateTemp("", "journal-audio-*")
	if err != nil {
		return "", nil, fmt.Errorf("create temp audio file: %w", err)
	}
	if _, err := io.Copy(file, audio); err != nil {
		file.Close()
		os.Remove(file.Name())
		return "", nil, fmt.Errorf("spool audio: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return "", nil, fmt.Errorf("close temp audio file: %w", err)
	}
	return file.Name(), func() { os.Remove(file.Name()) }, nil
}

func runProcess(ctx context.Context, name string, args ...string) ([]byte, error) {
	output, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s: %s", name, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, err
	}
	return output, nil
}
