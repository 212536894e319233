package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/remindhealth/journal-api/internal/domain"
	"github.com/remindhealth/journal-api/internal/queue"
	"github.com/remindhealth/journal-api/internal/repository"
	"github.com/remindhealth/journal-api/internal/storage"
)

var (
	ErrEmptyAudio     = errors.New("audio data is empty")
	ErrMissingUser    = errors.New("user id is required")
	ErrNotEditable    = errors.New("transcript can only be edited while awaiting review")
	ErrNotContinuable = errors.New("conversation is not awaiting review")
)

// ConversationsService owns the write side of the journal pipeline:
// ingesting recordings, the transcript review checkpoint and the
// hand-off into the detached processing stages.
type ConversationsService struct {
	repo     repository.ConversationsRepository
	audio    storage.AudioStore
	producer queue.Producer
	logger   *log.Logger
	now      func() time.Time
}

func NewConversationsService(
	repo repository.ConversationsRepository,
	audio storage.AudioStore,
	producer queue.Producer,
	logger *log.Logger,
) *ConversationsService {
	return &ConversationsService{
		repo:     repo,
		audio:    audio,
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateConversationWithAudio persists the recording and its metadata
// row, then schedules the transcription stage. The audio blob is saved
// before the row is created so a stored conversation always resolves to
// playable audio; a failed save leaves nothing behind.
func (s *ConversationsService) CreateConversationWithAudio(
	ctx context.Context,
	userID string,
	audioData []byte,
	audioFormat string,
	note string,
) (*domain.Conversation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingUser
	}
	if len(audioData) == 0 {
		return nil, ErrEmptyAudio
	}
	if strings.TrimSpace(audioFormat) == "" {
		audioFormat = "webm"
	}

	now := s.now().UTC()
	title := strings.TrimSpace(note)
	if title == "" {
		title = "Gespräch vom " + now.Format("02.01.2006 15:04")
	}
	conversation := &domain.Conversation{
		ID:                   uuid.NewString(),
		UserID:               userID,
		Title:                title,
		AudioFormat:          audioFormat,
		AudioDurationSeconds: estimateDurationSeconds(len(audioData)),
		ProcessingStatus:     domain.StatusPending,
		RecordedAt:           now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	ref, err := s.audio.Save(ctx, conversation.ID, audioFormat, audioData)
	if err != nil {
		return nil, fmt.Errorf("save audio: %w", err)
	}
	conversation.AudioFileRef = ref

	if err := s.repo.Create(ctx, conversation); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	if err := s.enqueueStage(ctx, domain.StageTranscribe, conversation.ID, userID); err != nil {
		if failErr := s.repo.SetFailed(ctx, conversation.ID, "Verarbeitung konnte nicht gestartet werden."); failErr != nil {
			s.logger.Printf("mark conversation failed after enqueue error conversation_id=%s: %v", conversation.ID, failErr)
		}
		return nil, fmt.Errorf("enqueue transcription: %w", err)
	}

	s.logger.Printf("conversation ingested conversation_id=%s user_id=%s duration=%ds", conversation.ID, userID, conversation.AudioDurationSeconds)
	return conversation, nil
}

// GetConversation returns the conversation without extracted children.
// A conversation owned by another user reads as not found.
func (s *ConversationsService) GetConversation(ctx context.Context, userID, id string) (*domain.Conversation, error) {
	conversation, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if conversation.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return conversation, nil
}

// GetConversationWithDetails returns the conversation including its
// extracted appointments, tasks and notes.
func (s *ConversationsService) GetConversationWithDetails(ctx context.Context, userID, id string) (*domain.Conversation, error) {
	conversation, err := s.repo.GetWithDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	if conversation.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return conversation, nil
}

func (s *ConversationsService) ListRecentConversations(ctx context.Context, userID string, limit int) ([]domain.Conversation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingUser
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.ListRecent(ctx, userID, limit)
}

// UpdateTranscriptionTextOnly stores an edited transcript without
// touching the processing status. Edits are only accepted at the review
// checkpoint, between transcription and extraction.
func (s *ConversationsService) UpdateTranscriptionTextOnly(ctx context.Context, userID, id, text string) (*domain.Conversation, error) {
	conversation, err := s.GetConversation(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if conversation.ProcessingStatus != domain.StatusTranscribed {
		return nil, ErrNotEditable
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("transcript text is required")
	}

	if err := s.repo.SetTranscriptionText(ctx, id, text); err != nil {
		return nil, fmt.Errorf("update transcript: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// ContinueProcessingFromTranscription resumes the pipeline after the
// review checkpoint by scheduling the extraction stage. The status
// stays Transcribed until a worker picks the stage up.
func (s *ConversationsService) ContinueProcessingFromTranscription(ctx context.Context, userID, id string) error {
	conversation, err := s.GetConversation(ctx, userID, id)
	if err != nil {
		return err
	}
	if conversation.ProcessingStatus != domain.StatusTranscribed {
		return ErrNotContinuable
	}
	if strings.TrimSpace(conversation.TranscriptionText) == "" {
		return errors.New("conversation has no transcript")
	}

	if err := s.enqueueStage(ctx, domain.StageExtract, id, userID); err != nil {
		return fmt.Errorf("enqueue extraction: %w", err)
	}
	s.logger.Printf("extraction scheduled conversation_id=%s", id)
	return nil
}

// DeleteConversation soft-deletes the conversation. Any in-flight stage
// for it finds the row gone and drops its message without effect.
func (s *ConversationsService) DeleteConversation(ctx context.Context, userID, id string) error {
	if _, err := s.GetConversation(ctx, userID, id); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, id)
}

func (s *ConversationsService) enqueueStage(ctx context.Context, stage domain.StageKind, conversationID, userID string) error {
	return s.producer.Enqueue(ctx, domain.StageMessage{
		Stage:          stage,
		ConversationID: conversationID,
		UserID:         userID,
		Attempt:        0,
		RequestedAt:    s.now().UTC(),
	})
}

// estimateDurationSeconds derives a rough duration from the raw byte
// count at an assumed 16 kB/s, floored at one second. The transcription
// backend later reports the real value.
func estimateDurationSeconds(byteCount int) int {
	seconds := byteCount / 16000
	if seconds < 1 {
		return 1
	}
	return seconds
}
