package config

import (
	"os"
	"strconv"
	"strings"
)

// Config centralizes runtime settings for the API and the pipeline worker.
type Config struct {
	Port string

	AuthToken string

	DatabaseURL string

	AudioStorageDir string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisStream   string
	RedisDLQ      string
	RedisGroup    string
	RedisConsumer string

	TranscriptionBackend string
	AssemblyAIAPIKey     string
	AssemblyAIBaseURL    string
	AssemblyAILanguage   string
	AssemblyAIPollMS     int
	WhisperModelPath     string
	WhisperBinary        string
	WhisperModelURL      string
	WhisperLanguage      string

	ExtractionBackend string
	GeminiAPIKey      string
	GeminiBaseURL     string
	GeminiModel       string
	GeminiMaxRetries  int
	OllamaBaseURL     string
	OllamaModel       string
	OpenAIAPIKey      string
	OpenAIModel       string

	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins []string

	WorkerEnabled bool
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		AuthToken: getEnv("API_AUTH_TOKEN", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		AudioStorageDir: getEnv("AUDIO_STORAGE_DIR", "data/audio"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisStream:   getEnv("REDIS_STREAM", "journal_stages"),
		RedisDLQ:      getEnv("REDIS_DLQ_STREAM", "journal_stages_dlq"),
		RedisGroup:    getEnv("REDIS_GROUP", "journal_workers"),
		RedisConsumer: getEnv("REDIS_CONSUMER", "api-1"),

		TranscriptionBackend: getEnv("TRANSCRIPTION_BACKEND", "assemblyai"),
		AssemblyAIAPIKey:     getEnv("ASSEMBLYAI_API_KEY", ""),
		AssemblyAIBaseURL:    getEnv("ASSEMBLYAI_BASE_URL", "https://api.assemblyai.com/v2"),
		AssemblyAILanguage:   getEnv("ASSEMBLYAI_LANGUAGE", "de"),
		AssemblyAIPollMS:     getEnvInt("ASSEMBLYAI_POLL_MS", 3000),
		WhisperModelPath:     getEnv("WHISPER_MODEL_PATH", ""),
		WhisperBinary:        getEnv("WHISPER_BINARY", "whisper-cli"),
		WhisperModelURL:      getEnv("WHISPER_MODEL_URL", ""),
		WhisperLanguage:      getEnv("WHISPER_LANGUAGE", "de"),

		ExtractionBackend: getEnv("EXTRACTION_BACKEND", "gemini"),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL:     getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiMaxRetries:  getEnvInt("GEMINI_MAX_RETRIES", 3),
		OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:       getEnv("OLLAMA_MODEL", "llama3.2"),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 40),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),

		WorkerEnabled: getEnvBool("WORKER_ENABLED", true),
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	items := make([]string, 0, 4)
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
