package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// GeminiConfig configures the hosted Gemini extraction backend.
type GeminiConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	// RetryBaseDelay is the first backoff step; each further attempt
	// doubles it. Tests shrink it to keep runs fast.
	RetryBaseDelay time.Duration
	HTTPClient     *http.Client
	Logger         *log.Logger
}

// GeminiExtractor extracts structured items through the Gemini
// generateContent API. Newer model names only exist on the v1beta API
// surface, so a failed v1 call is retried once against v1beta before
// counting as a failed attempt.
type GeminiExtractor struct {
	apiKey         string
	baseURL        string
	model          string
	timeout        time.Duration
	maxRetries     int
	retryBaseDelay time.Duration
	httpClient     *http.Client
	logger         *log.Logger
	now            func() time.Time
}

func NewGeminiExtractor(config GeminiConfig) *GeminiExtractor {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if strings.TrimSpace(config.Model) == "" {
		config.Model = "gemini-2.5-flash"
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = 2 * time.Second
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	if config.Logger == nil {
		config.Logger = log.New(io.Discard, "", 0)
	}

	return &GeminiExtractor{
		apiKey:         strings.TrimSpace(config.APIKey),
		baseURL:        strings.TrimSuffix(config.BaseURL, "/"),
		model:          config.Model,
		timeout:        config.Timeout,
		maxRetries:     config.MaxRetries,
		retryBaseDelay: config.RetryBaseDelay,
		httpClient:     config.HTTPClient,
		logger:         config.Logger,
		now:            time.Now,
	}
}

// Extract runs the extraction prompt against Gemini. Overload answers
// (429 and 5xx) are retried with exponential backoff; everything else
// fails fast. When all attempts are spent the conversation still gets a
// degraded result rather than an error, so it can reach a terminal
// state.
func (e *GeminiExtractor) Extract(ctx context.Context, transcript string) (Result, error) {
	if strings.TrimSpace(transcript) == "" {
		return Degraded("Kein Transkript vorhanden."), nil
	}
	if e.apiKey == "" {
		return Degraded("Gemini API-Schlüssel nicht konfiguriert."), nil
	}

	prompt := buildExtractionPrompt(transcript, e.now())

	var lastErr error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		text, err := e.generateContent(ctx, prompt)
		if err == nil {
			return parseModelResponse(text, e.now().UTC()), nil
		}
		lastErr = err

		if !isOverloadError(err) || attempt == e.maxRetries {
			break
		}

		backoff := e.retryBaseDelay * time.Duration(1<<(attempt-1))
		e.logger.Printf("gemini overloaded (attempt %d/%d), retrying in %s: %v", attempt, e.maxRetries, backoff, err)
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(backoff):
		}
	}

	e.logger.Printf("gemini extraction failed: %v", lastErr)
	return Degraded(fmt.Sprintf("KI-Analyse fehlgeschlagen: %v", lastErr)), nil
}

func (e *GeminiExtractor) generateContent(ctx context.Context, prompt string) (string, error) {
	text, err := e.callAPI(ctx, "v1", prompt)
	if err == nil {
		return text, nil
	}
	if isOverloadError(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "", err
	}

	// The model may only be served on the beta surface.
	betaText, betaErr := e.callAPI(ctx, "v1beta", prompt)
	if betaErr == nil {
		return betaText, nil
	}
	e.logger.Printf("gemini v1beta fallback also failed: %v", betaErr)
	return "", fmt.Errorf("%w (v1beta: %v)", err, betaErr)
}

func (e *GeminiExtractor) callAPI(ctx context.Context, apiVersion, prompt string) (string, error) {
	payload := map[string]any{
		"contents": []map[string]any{
			{
				"parts": []map[string]any{
					{"text": prompt},
				},
			},
		},
		"generationConfig": map[string]any{
			"temperature":     0.2,
			"topK":            40,
			"topP":            0.95,
			"maxOutputTokens": 8192,
		},
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal gemini payload: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/%s/models/%s:generateContent?key=%s", e.baseURL, apiVersion, e.model, e.apiKey)
	httpRequest, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("create gemini request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")

	httpResponse, err := e.httpClient.Do(httpRequest)
	if err != nil {
		return "", fmt.Errorf("gemini transport error: %w", err)
	}
	defer httpResponse.Body.Close()

	body, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return "", fmt.Errorf("read gemini body: %w", err)
	}

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		message := strings.TrimSpace(string(body))
		if len(message) > 700 {
			message = message[:700]
		}
		return "", &geminiHTTPError{StatusCode: httpResponse.StatusCode, Message: message}
	}

	var raw geminiResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}

	if len(raw.Candidates) == 0 || len(raw.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini response without candidates")
	}
	text := strings.TrimSpace(raw.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", errors.New("gemini response without text")
	}
	return text, nil
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type geminiHTTPError struct {
	StatusCode int
	Message    string
}

func (e *geminiHTTPError) Error() string {
	return fmt.Sprintf("gemini status %d: %s", e.StatusCode, e.Message)
}

func isOverloadError(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *geminiHTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	return false
}
