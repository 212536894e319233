package service

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/remindhealth/journal-api/internal/domain"
	"github.com/remindhealth/journal-api/internal/queue"
	"github.com/remindhealth/journal-api/internal/repository"
	"github.com/remindhealth/journal-api/internal/storage"
)

type recordingProducer struct {
	messages []domain.StageMessage
	fail     bool
}

func (p *recordingProducer) Enqueue(_ context.Context, message domain.StageMessage) error {
	if p.fail {
		return errors.New("queue unavailable")
	}
	p.messages = append(p.messages, message)
	return nil
}

func newTestService(t *testing.T) (*ConversationsService, *repository.MemoryConversationsRepository, *storage.MemoryAudioStore, *recordingProducer) {
	t.Helper()
	repo := repository.NewMemoryConversationsRepository()
	audio := storage.NewMemoryAudioStore()
	producer := &recordingProducer{}
	svc := NewConversationsService(repo, audio, producer, log.New(io.Discard, "", 0))
	return svc, repo, audio, producer
}

func TestCreateConversationWithAudio(t *testing.T) {
	svc, _, audio, producer := newTestService(t)

	conversation, err := svc.CreateConversationWithAudio(context.Background(), "user-1", make([]byte, 32000), "webm", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if conversation.ProcessingStatus != domain.StatusPending {
		t.Fatalf("new conversation must be Pending, got %s", conversation.ProcessingStatus)
	}
	if conversation.AudioDurationSeconds != 2 {
		t.Fatalf("32000 bytes must estimate to 2s, got %d", conversation.AudioDurationSeconds)
	}
	if !strings.HasPrefix(conversation.Title, "Gespräch vom ") {
		t.Fatalf("unexpected default title: %q", conversation.Title)
	}
	if conversation.AudioFileRef != conversation.ID+".webm" {
		t.Fatalf("unexpected audio ref: %q", conversation.AudioFileRef)
	}
	if stream, err := audio.Open(context.Background(), conversation.AudioFileRef); err != nil {
		t.Fatalf("stored audio must be readable: %v", err)
	} else {
		_ = stream.Close()
	}

	if len(producer.messages) != 1 {
		t.Fatalf("expected exactly one stage message, got %d", len(producer.messages))
	}
	message := producer.messages[0]
	if message.Stage != domain.StageTranscribe || message.ConversationID != conversation.ID || message.UserID != "user-1" {
		t.Fatalf("unexpected stage message: %+v", message)
	}
}

func TestCreateConversationWithAudioUsesNoteAsTitle(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	conversation, err := svc.CreateConversationWithAudio(context.Background(), "user-1", []byte("x"), "webm", "  Arztbesuch  ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if conversation.Title != "Arztbesuch" {
		t.Fatalf("note must become the title, got %q", conversation.Title)
	}
	if conversation.AudioDurationSeconds != 1 {
		t.Fatalf("duration estimate must floor at 1s, got %d", conversation.AudioDurationSeconds)
	}
}

func TestCreateConversationWithAudioRejectsBadInput(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	if _, err := svc.CreateConversationWithAudio(context.Background(), "", []byte("x"), "webm", ""); !errors.Is(err, ErrMissingUser) {
		t.Fatalf("expected ErrMissingUser, got %v", err)
	}
	if _, err := svc.CreateConversationWithAudio(context.Background(), "user-1", nil, "webm", ""); !errors.Is(err, ErrEmptyAudio) {
		t.Fatalf("expected ErrEmptyAudio, got %v", err)
	}
}

func TestCreateConversationWithAudioFailedSaveLeavesNoRow(t *testing.T) {
	svc, repo, audio, producer := newTestService(t)
	audio.FailSaves = true

	if _, err := svc.CreateConversationWithAudio(context.Background(), "user-1", []byte("x"), "webm", ""); err == nil {
		t.Fatalf("expected save failure to surface")
	}
	if list, _ := repo.ListRecent(context.Background(), "user-1", 10); len(list) != 0 {
		t.Fatalf("a failed audio save must not leave a row, got %d", len(list))
	}
	if len(producer.messages) != 0 {
		t.Fatalf("a failed ingest must not enqueue a stage")
	}
}

func TestCreateConversationWithAudioEnqueueFailureMarksRowFailed(t *testing.T) {
	svc, repo, _, producer := newTestService(t)
	producer.fail = true

	_, err := svc.CreateConversationWithAudio(context.Background(), "user-1", []byte("x"), "webm", "")
	if err == nil {
		t.Fatalf("expected enqueue failure to surface")
	}

	list, err := repo.ListRecent(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("row must survive an enqueue failure, got %d", len(list))
	}
	if list[0].ProcessingStatus != domain.StatusFailed {
		t.Fatalf("row must be marked Failed, got %s", list[0].ProcessingStatus)
	}
}

func TestGetConversationHidesForeignRows(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	conversation, err := svc.CreateConversationWithAudio(context.Background(), "user-1", []byte("x"), "webm", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.GetConversation(context.Background(), "user-2", conversation.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("foreign rows must read as not found, got %v", err)
	}
}

func TestUpdateTranscriptionTextOnly(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	conversation, err := svc.CreateConversationWithAudio(context.Background(), "user-1", []byte("x"), "webm", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.UpdateTranscriptionTextOnly(context.Background(), "user-1", conversation.ID, "edit"); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("editing before transcription must fail, got %v", err)
	}

	advanceToTranscribed(t, repo, conversation.ID)

	updated, err := svc.UpdateTranscriptionTextOnly(context.Background(), "user-1", conversation.ID, "korrigierter Text")
	if err != nil {
		t.Fatalf("update transcript: %v", err)
	}
	if updated.TranscriptionText != "korrigierter Text" {
		t.Fatalf("unexpected transcript: %q", updated.TranscriptionText)
	}
	if updated.ProcessingStatus != domain.StatusTranscribed {
		t.Fatalf("editing must not change the status, got %s", updated.ProcessingStatus)
	}
}

func TestContinueProcessingFromTranscription(t *testing.T) {
	svc, repo, _, producer := newTestService(t)
	conversation, err := svc.CreateConversationWithAudio(context.Background(), "user-1", []byte("x"), "webm", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.ContinueProcessingFromTranscription(context.Background(), "user-1", conversation.ID); !errors.Is(err, ErrNotContinuable) {
		t.Fatalf("continuing before review must fail, got %v", err)
	}

	advanceToTranscribed(t, repo, conversation.ID)
	producer.messages = nil

	if err := svc.ContinueProcessingFromTranscription(context.Background(), "user-1", conversation.ID); err != nil {
		t.Fatalf("continue: %v", err)
	}
	if len(producer.messages) != 1 || producer.messages[0].Stage != domain.StageExtract {
		t.Fatalf("expected one extract stage message, got %+v", producer.messages)
	}

	// The status is still Transcribed until a worker picks it up.
	current, err := svc.GetConversation(context.Background(), "user-1", conversation.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if current.ProcessingStatus != domain.StatusTranscribed {
		t.Fatalf("scheduling must not change the status, got %s", current.ProcessingStatus)
	}
}

func TestDeleteConversation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	conversation, err := svc.CreateConversationWithAudio(context.Background(), "user-1", []byte("x"), "webm", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.DeleteConversation(context.Background(), "user-1", conversation.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetConversation(context.Background(), "user-1", conversation.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("deleted conversations must read as not found, got %v", err)
	}
}

func advanceToTranscribed(t *testing.T, repo repository.ConversationsRepository, id string) {
	t.Helper()
	ctx := context.Background()
	if err := repo.SetStatus(ctx, id, domain.StatusTranscribing); err != nil {
		t.Fatalf("set transcribing: %v", err)
	}
	if err := repo.SetTranscription(ctx, id, "Original Transkript", "de"); err != nil {
		t.Fatalf("set transcription: %v", err)
	}
}

var _ queue.Producer = (*recordingProducer)(nil)
