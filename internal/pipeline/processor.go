package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/remindhealth/journal-api/internal/domain"
	"github.com/remindhealth/journal-api/internal/extract"
	"github.com/remindhealth/journal-api/internal/queue"
	"github.com/remindhealth/journal-api/internal/repository"
	"github.com/remindhealth/journal-api/internal/storage"
	"github.com/remindhealth/journal-api/internal/transcribe"
)

var errConversationBusy = errors.New("conversation has a stage in flight")

// Processor consumes stage messages and drives conversations through
// the pipeline. Adapter failures end the conversation in Failed and
// consume the message; infrastructure failures propagate so the queue
// redelivers.
type Processor struct {
	consumer    queue.Consumer
	repo        repository.ConversationsRepository
	audio       storage.AudioStore
	transcriber transcribe.Transcriber
	extractor   extract.Extractor
	guard       *conversationGuard
	logger      *log.Logger
	now         func() time.Time
}

func NewProcessor(
	consumer queue.Consumer,
	repo repository.ConversationsRepository,
	audio storage.AudioStore,
	transcriber transcribe.Transcriber,
	extractor extract.Extractor,
	logger *log.Logger,
) *Processor {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Processor{
		consumer:    consumer,
		repo:        repo,
		audio:       audio,
		transcriber: transcriber,
		extractor:   extractor,
		guard:       newConversationGuard(),
		logger:      logger,
		now:         time.Now,
	}
}

func (p *Processor) Start(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := p.consumer.Consume(ctx, p.ProcessMessage)
		if err == nil || ctx.Err() != nil {
			return
		}
		p.logger.Printf("pipeline consume loop error: %v", err)

		timer := time.NewTimer(2 * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// ProcessMessage executes one stage. A nil return consumes the message;
// an error hands it back to the queue for redelivery.
func (p *Processor) ProcessMessage(ctx context.Context, message domain.StageMessage) error {
	if !p.guard.tryAcquire(message.ConversationID) {
		return fmt.Errorf("%w: %s", errConversationBusy, message.ConversationID)
	}
	defer p.guard.release(message.ConversationID)

	switch message.Stage {
	case domain.StageTranscribe:
		return p.runTranscription(ctx, message)
	case domain.StageExtract:
		return p.runExtraction(ctx, message)
	default:
		p.logger.Printf("dropping message with unknown stage %q conversation_id=%s", message.Stage, message.ConversationID)
		return nil
	}
}

func (p *Processor) runTranscription(ctx context.Context, message domain.StageMessage) error {
	conversation, err := p.repo.Get(ctx, message.ConversationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Deleted while queued; nothing to do.
			return nil
		}
		return fmt.Errorf("load conversation %s: %w", message.ConversationID, err)
	}
	if conversation.ProcessingStatus.Terminal() {
		p.logger.Printf("skipping transcription for terminal conversation_id=%s status=%s", conversation.ID, conversation.ProcessingStatus)
		return nil
	}

	if err := p.repo.SetStatus(ctx, conversation.ID, domain.StatusTranscribing); err != nil {
		return fmt.Errorf("mark transcribing: %w", err)
	}

	stream, err := p.audio.Open(ctx, conversation.AudioFileRef)
	if err != nil {
		return p.failConversation(ctx, conversation.ID, fmt.Errorf("open audio: %w", err))
	}
	defer stream.Close()

	result, err := p.transcriber.Transcribe(ctx, stream)
	if err != nil {
		return p.failConversation(ctx, conversation.ID, fmt.Errorf("transcription: %w", err))
	}

	if err := p.repo.SetTranscription(ctx, conversation.ID, result.Text, result.Language); err != nil {
		return fmt.Errorf("store transcription: %w", err)
	}

	p.logger.Printf("transcription done conversation_id=%s language=%s chars=%d", conversation.ID, result.Language, len(result.Text))
	return nil
}

func (p *Processor) runExtraction(ctx context.Context, message domain.StageMessage) error {
	conversation, err := p.repo.Get(ctx, message.ConversationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load conversation %s: %w", message.ConversationID, err)
	}
	if conversation.ProcessingStatus.Terminal() {
		p.logger.Printf("skipping extraction for terminal conversation_id=%s status=%s", conversation.ID, conversation.ProcessingStatus)
		return nil
	}
	if conversation.TranscriptionText == "" {
		p.logger.Printf("dropping extraction without transcript conversation_id=%s", conversation.ID)
		return nil
	}

	if err := p.repo.SetStatus(ctx, conversation.ID, domain.StatusAnalyzing); err != nil {
		return fmt.Errorf("mark analyzing: %w", err)
	}

	result, err := p.extractor.Extract(ctx, conversation.TranscriptionText)
	if err != nil {
		return p.failConversation(ctx, conversation.ID, fmt.Errorf("extraction: %w", err))
	}

	if err := p.repo.SetCompleted(ctx, conversation.ID, repository.CompletionUpdate{
		Summary:             result.Summary,
		CorrectedTranscript: result.CorrectedTranscript,
		ProcessedAt:         p.now().UTC(),
		Appointments:        result.Appointments,
		Tasks:               result.Tasks,
		Notes:               result.Notes,
	}); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	p.logger.Printf(
		"extraction done conversation_id=%s degraded=%t appointments=%d tasks=%d notes=%d",
		conversation.ID, result.Degraded, len(result.Appointments), len(result.Tasks), len(result.Notes),
	)
	return nil
}

// failConversation records a terminal failure and consumes the message.
// Redelivering a deterministic adapter failure would only fail again.
func (p *Processor) failConversation(ctx context.Context, id string, cause error) error {
	p.logger.Printf("stage failed conversation_id=%s: %v", id, cause)
	if err := p.repo.SetFailed(ctx, id, cause.Error()); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}
