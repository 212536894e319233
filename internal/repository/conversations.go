package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/remindhealth/journal-api/internal/domain"
)

var ErrNotFound = errors.New("resource not found")

// CompletionUpdate carries everything a finished extraction persists.
// Implementations apply it atomically so a conversation can never read
// Completed while its extracted children are missing.
type CompletionUpdate struct {
	Summary             string
	CorrectedTranscript string
	ProcessedAt         time.Time
	Appointments        []domain.ExtractedAppointment
	Tasks               []domain.ExtractedTask
	Notes               []domain.ExtractedNote
}

// ConversationsRepository abstracts conversation persistence. Patch-style
// setters update single fields in place so a detached pipeline stage can
// record progress without re-loading the full aggregate.
type ConversationsRepository interface {
	Create(ctx context.Context, conversation *domain.Conversation) error
	Get(ctx context.Context, id string) (*domain.Conversation, error)
	GetWithDetails(ctx context.Context, id string) (*domain.Conversation, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]domain.Conversation, error)

	SetStatus(ctx context.Context, id string, status domain.ProcessingStatus) error
	SetFailed(ctx context.Context, id string, message string) error
	SetTranscription(ctx context.Context, id string, text, language string) error
	SetTranscriptionText(ctx context.Context, id string, text string) error
	SetCompleted(ctx context.Context, id string, update CompletionUpdate) error

	SoftDelete(ctx context.Context, id string) error
}

// MemoryConversationsRepository stores conversations in memory for local
// development and tests.
type MemoryConversationsRepository struct {
	mu            sync.RWMutex
	conversations map[string]*domain.Conversation
	appointments  map[string][]domain.ExtractedAppointment
	tasks         map[string][]domain.ExtractedTask
	notes         map[string][]domain.ExtractedNote
}

func NewMemoryConversationsRepository() *MemoryConversationsRepository {
	return &MemoryConversationsRepository{
		conversations: make(map[string]*domain.Conversation),
		appointments:  make(map[string][]domain.ExtractedAppointment),
		tasks:         make(map[string][]domain.ExtractedTask),
		notes:         make(map[string][]domain.ExtractedNote),
	}
}

func (r *MemoryConversationsRepository) Create(_ context.Context, conversation *domain.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *conversation
	r.conversations[conversation.ID] = &clone
	return nil
}

func (r *MemoryConversationsRepository) Get(_ context.Context, id string) (*domain.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(id)
}

func (r *MemoryConversationsRepository) GetWithDetails(_ context.Context, id string) (*domain.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conversation, err := r.snapshot(id)
	if err != nil {
		return nil, err
	}
	conversation.Appointments = append([]domain.ExtractedAppointment(nil), r.appointments[id]...)
	conversation.Tasks = append([]domain.ExtractedTask(nil), r.tasks[id]...)
	conversation.Notes = append([]domain.ExtractedNote(nil), r.notes[id]...)
	return conversation, nil
}

func (r *MemoryConversationsRepository) ListRecent(_ context.Context, userID string, limit int) ([]domain.Conversation, error) {
	if limit <= 0 {
		limit = 10
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]domain.Conversation, 0)
	for _, conversation := range r.conversations {
		if conversation.IsDeleted || conversation.UserID != userID {
			continue
		}
		items = append(items, *conversation)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].RecordedAt.After(items[j].RecordedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *MemoryConversationsRepository) SetStatus(_ context.Context, id string, status domain.ProcessingStatus) error {
	return r.patch(id, func(c *domain.Conversation) {
		c.ProcessingStatus = status
	})
}

func (r *MemoryConversationsRepository) SetFailed(_ context.Context, id string, message string) error {
	return r.patch(id, func(c *domain.Conversation) {
		c.ProcessingStatus = domain.StatusFailed
		c.ProcessingError = message
	})
}

func (r *MemoryConversationsRepository) SetTranscription(_ context.Context, id string, text, language string) error {
	return r.patch(id, func(c *domain.Conversation) {
		c.TranscriptionText = text
		c.TranscriptionLanguage = language
		c.ProcessingStatus = domain.StatusTranscribed
	})
}

func (r *MemoryConversationsRepository) SetTranscriptionText(_ context.Context, id string, text string) error {
	return r.patch(id, func(c *domain.Conversation) {
		c.TranscriptionText = text
	})
}

// SetCompleted writes the completion fields and the extracted children
// under one lock, so readers see either the pre-completion state or the
// full result.
func (r *MemoryConversationsRepository) SetCompleted(_ context.Context, id string, update CompletionUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conversation, ok := r.conversations[id]
	if !ok {
		return ErrNotFound
	}

	conversation.Summary = update.Summary
	conversation.ProcessingStatus = domain.StatusCompleted
	processedAt := update.ProcessedAt
	conversation.ProcessedAt = &processedAt
	if update.CorrectedTranscript != "" {
		conversation.TranscriptionText = update.CorrectedTranscript
	}
	conversation.UpdatedAt = time.Now().UTC()

	for _, appointment := range update.Appointments {
		appointment.ConversationID = id
		r.appointments[id] = append(r.appointments[id], appointment)
	}
	for _, task := range update.Tasks {
		task.ConversationID = id
		r.tasks[id] = append(r.tasks[id], task)
	}
	for _, note := range update.Notes {
		note.ConversationID = id
		r.notes[id] = append(r.notes[id], note)
	}
	return nil
}

func (r *MemoryConversationsRepository) SoftDelete(_ context.Context, id string) error {
	return r.patch(id, func(c *domain.Conversation) {
		c.IsDeleted = true
	})
}

func (r *MemoryConversationsRepository) snapshot(id string) (*domain.Conversation, error) {
	conversation, ok := r.conversations[id]
	if !ok || conversation.IsDeleted {
		return nil, ErrNotFound
	}
	clone := *conversation
	return &clone, nil
}

func (r *MemoryConversationsRepository) patch(id string, apply func(*domain.Conversation)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conversation, ok := r.conversations[id]
	if !ok {
		return ErrNotFound
	}
	apply(conversation)
	conversation.UpdatedAt = time.Now().UTC()
	return nil
}
