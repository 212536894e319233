package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/remindhealth/journal-api/internal/config"
	"github.com/remindhealth/journal-api/internal/extract"
	httpserver "github.com/remindhealth/journal-api/internal/http"
	"github.com/remindhealth/journal-api/internal/http/handlers"
	"github.com/remindhealth/journal-api/internal/pipeline"
	"github.com/remindhealth/journal-api/internal/queue"
	"github.com/remindhealth/journal-api/internal/repository"
	"github.com/remindhealth/journal-api/internal/service"
	"github.com/remindhealth/journal-api/internal/storage"
	"github.com/remindhealth/journal-api/internal/transcribe"
)

func main() {
	logger := log.New(os.Stdout, "[journal-api] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, repoCloser := setupRepository(ctx, cfg, logger)
	defer repoCloser()

	audioStore, err := storage.NewFSAudioStore(cfg.AudioStorageDir)
	if err != nil {
		logger.Fatalf("audio storage unavailable: %v", err)
	}

	producer, consumer, queueCloser := setupQueue(ctx, cfg, logger)
	defer queueCloser()

	conversations := service.NewConversationsService(repo, audioStore, producer, logger)
	api := handlers.NewAPI(conversations)

	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		AuthToken:      cfg.AuthToken,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	if cfg.WorkerEnabled {
		processor := pipeline.NewProcessor(
			consumer,
			repo,
			audioStore,
			setupTranscriber(cfg, logger),
			setupExtractor(cfg, logger),
			logger,
		)
		go processor.Start(ctx)
		logger.Printf("pipeline worker enabled and started")
	} else {
		logger.Printf("pipeline worker disabled by configuration")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Printf("api listening on :%s", cfg.Port)
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

func setupRepository(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (repository.ConversationsRepository, func()) {
	if cfg.DatabaseURL == "" {
		logger.Printf("DATABASE_URL not configured, using in-memory repository")
		return repository.NewMemoryConversationsRepository(), func() {}
	}

	pgRepo, err := repository.NewPostgresConversationsRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Printf("failed to initialize postgres repository, fallback to memory: %v", err)
		return repository.NewMemoryConversationsRepository(), func() {}
	}
	logger.Printf("postgres repository initialized")
	return pgRepo, func() {
		pgRepo.Close()
	}
}

func setupQueue(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (queue.Producer, queue.Consumer, func()) {
	if cfg.RedisAddr == "" {
		logger.Printf("REDIS_ADDR not configured, using local queue fallback")
		local := queue.NewLocalQueue(512, 3, logger)
		return local, local, func() {}
	}

	streams, err := queue.NewStreamsQueue(ctx, queue.StreamsConfig{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		Stream:      cfg.RedisStream,
		DLQStream:   cfg.RedisDLQ,
		Group:       cfg.RedisGroup,
		Consumer:    cfg.RedisConsumer,
		MaxAttempts: 3,
	})
	if err != nil {
		logger.Printf("failed to initialize redis streams queue, fallback to local: %v", err)
		local := queue.NewLocalQueue(512, 3, logger)
		return local, local, func() {}
	}
	logger.Printf("redis streams queue initialized")
	return streams, streams, func() {
		_ = streams.Close()
	}
}

func setupTranscriber(cfg config.Config, logger *log.Logger) transcribe.Transcriber {
	switch cfg.TranscriptionBackend {
	case "whisper":
		logger.Printf("transcription backend: local whisper model=%s", cfg.WhisperModelPath)
		return transcribe.NewWhisperTranscriber(transcribe.WhisperConfig{
			Binary:    cfg.WhisperBinary,
			ModelPath: cfg.WhisperModelPath,
			ModelURL:  cfg.WhisperModelURL,
			Language:  cfg.WhisperLanguage,
		})
	default:
		logger.Printf("transcription backend: assemblyai")
		return transcribe.NewAssemblyAITranscriber(transcribe.AssemblyAIConfig{
			APIKey:       cfg.AssemblyAIAPIKey,
			BaseURL:      cfg.AssemblyAIBaseURL,
			LanguageCode: cfg.AssemblyAILanguage,
			PollInterval: time.Duration(cfg.AssemblyAIPollMS) * time.Millisecond,
		})
	}
}

func setupExtractor(cfg config.Config, logger *log.Logger) extract.Extractor {
	switch cfg.ExtractionBackend {
	case "ollama":
		logger.Printf("extraction backend: ollama model=%s", cfg.OllamaModel)
		return extract.NewOllamaExtractor(extract.OllamaConfig{
			BaseURL: cfg.OllamaBaseURL,
			Model:   cfg.OllamaModel,
			Logger:  logger,
		})
	case "openai":
		logger.Printf("extraction backend: openai model=%s", cfg.OpenAIModel)
		return extract.NewOpenAIExtractor(extract.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
			Logger: logger,
		})
	default:
		logger.Printf("extraction backend: gemini model=%s", cfg.GeminiModel)
		return extract.NewGeminiExtractor(extract.GeminiConfig{
			APIKey:     cfg.GeminiAPIKey,
			BaseURL:    cfg.GeminiBaseURL,
			Model:      cfg.GeminiModel,
			MaxRetries: cfg.GeminiMaxRetries,
			Logger:     logger,
		})
	}
}
