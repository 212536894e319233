package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// OllamaConfig configures the local-LLM extraction backend.
type OllamaConfig struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger
}

// OllamaExtractor runs extraction against a local Ollama instance in
// two passes: first the transcript is cleaned up of recognition errors,
// then the corrected text goes through the extraction prompt. Local
// models are far more sensitive to noisy input than hosted ones, so the
// correction pass pays for itself.
type OllamaExtractor struct {
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	logger     *log.Logger
	now        func() time.Time
}

func NewOllamaExtractor(config OllamaConfig) *OllamaExtractor {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if strings.TrimSpace(config.Model) == "" {
		config.Model = "llama3.2"
	}
	if config.Timeout <= 0 {
		config.Timeout = 120 * time.Second
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	if config.Logger == nil {
		config.Logger = log.New(io.Discard, "", 0)
	}

	return &OllamaExtractor{
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		model:      config.Model,
		timeout:    config.Timeout,
		httpClient: config.HTTPClient,
		logger:     config.Logger,
		now:        time.Now,
	}
}

func (e *OllamaExtractor) Extract(ctx context.Context, transcript string) (Result, error) {
	if strings.TrimSpace(transcript) == "" {
		return Degraded("Kein Transkript vorhanden."), nil
	}

	corrected := transcript
	if text, err := e.generate(ctx, buildCorrectionPrompt(transcript)); err != nil {
		// A failed correction pass is not fatal, extraction can still
		// work on the raw transcript.
		e.logger.Printf("ollama correction pass failed, using raw transcript: %v", err)
	} else if strings.TrimSpace(text) != "" {
		corrected = strings.TrimSpace(text)
	}

	answer, err := e.generate(ctx, buildExtractionPrompt(corrected, e.now()))
	if err != nil {
		e.logger.Printf("ollama extraction failed: %v", err)
		return Degraded(fmt.Sprintf("KI-Analyse fehlgeschlagen: %v", err)), nil
	}

	result := parseModelResponse(answer, e.now().UTC())
	if result.CorrectedTranscript == "" && corrected != transcript {
		result.CorrectedTranscript = corrected
	}
	return result, nil
}

func (e *OllamaExtractor) generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":  e.model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": 0.2,
			"top_p":       0.9,
			"num_predict": 2000,
		},
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal ollama payload: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	httpRequest, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, e.baseURL+"/api/generate", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("create ollama request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")

	httpResponse, err := e.httpClient.Do(httpRequest)
	if err != nil {
		return "", fmt.Errorf("ollama transport error: %w", err)
	}
	defer httpResponse.Body.Close()

	body, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return "", fmt.Errorf("read ollama body: %w", err)
	}

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		message := strings.TrimSpace(string(body))
		if len(message) > 700 {
			message = message[:700]
		}
		return "", fmt.Errorf("ollama status %d: %s", httpResponse.StatusCode, message)
	}

	var raw struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	return raw.Response, nil
}
