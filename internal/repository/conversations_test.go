package repository

import (
	"context"
	"testing"
	"time"

	"github.com/remindhealth/journal-api/internal/domain"
)

func newConversation(id, userID string) *domain.Conversation {
	now := time.Now().UTC()
	return &domain.Conversation{
		ID:               id,
		UserID:           userID,
		Title:            "Gespräch",
		AudioFileRef:     id + ".webm",
		AudioFormat:      "webm",
		ProcessingStatus: domain.StatusPending,
		RecordedAt:       now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestMemoryRepositoryGetExcludesDeleted(t *testing.T) {
	repo := NewMemoryConversationsRepository()
	ctx := context.Background()

	if err := repo.Create(ctx, newConversation("c1", "u1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Get(ctx, "c1"); err != nil {
		t.Fatalf("get: %v", err)
	}

	if err := repo.SoftDelete(ctx, "c1"); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, err := repo.Get(ctx, "c1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after soft delete, got %v", err)
	}
}

func TestMemoryRepositoryPatchUpdatesTimestamp(t *testing.T) {
	repo := NewMemoryConversationsRepository()
	ctx := context.Background()

	conversation := newConversation("c1", "u1")
	conversation.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	if err := repo.Create(ctx, conversation); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.SetStatus(ctx, "c1", domain.StatusTranscribing); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, err := repo.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ProcessingStatus != domain.StatusTranscribing {
		t.Fatalf("expected Transcribing, got %s", got.ProcessingStatus)
	}
	if !got.UpdatedAt.After(conversation.UpdatedAt) {
		t.Fatalf("expected UpdatedAt to advance on patch")
	}
}

func TestMemoryRepositorySetTranscriptionTextIsContentIdempotent(t *testing.T) {
	repo := NewMemoryConversationsRepository()
	ctx := context.Background()
	if err := repo.Create(ctx, newConversation("c1", "u1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.SetTranscriptionText(ctx, "c1", "Termin am Montag"); err != nil {
		t.Fatalf("first update: %v", err)
	}
	first, _ := repo.Get(ctx, "c1")

	if err := repo.SetTranscriptionText(ctx, "c1", "Termin am Montag"); err != nil {
		t.Fatalf("second update: %v", err)
	}
	second, _ := repo.Get(ctx, "c1")

	if second.TranscriptionText != first.TranscriptionText {
		t.Fatalf("content changed across idempotent updates")
	}
	if second.UpdatedAt.Before(first.UpdatedAt) {
		t.Fatalf("second update must still bump UpdatedAt")
	}
}

func TestMemoryRepositorySetCompletedWritesChildrenWithStatus(t *testing.T) {
	repo := NewMemoryConversationsRepository()
	ctx := context.Background()
	if err := repo.Create(ctx, newConversation("c1", "u1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, newConversation("c2", "u1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	processedAt := time.Now().UTC()
	err := repo.SetCompleted(ctx, "c1", CompletionUpdate{
		Summary:     "Arzttermin vereinbart",
		ProcessedAt: processedAt,
		Appointments: []domain.ExtractedAppointment{
			{ID: "a1", Title: "Arzttermin"},
			{ID: "a2", Title: "Nachkontrolle"},
		},
		Tasks: []domain.ExtractedTask{{ID: "t1", Title: "Rezept abholen"}},
		Notes: []domain.ExtractedNote{{ID: "n1", Title: "Blutdruck", Content: "120/80"}},
	})
	if err != nil {
		t.Fatalf("set completed: %v", err)
	}

	withDetails, err := repo.GetWithDetails(ctx, "c1")
	if err != nil {
		t.Fatalf("get with details: %v", err)
	}
	if withDetails.ProcessingStatus != domain.StatusCompleted {
		t.Fatalf("expected Completed, got %s", withDetails.ProcessingStatus)
	}
	total := len(withDetails.Appointments) + len(withDetails.Tasks) + len(withDetails.Notes)
	if total != 4 {
		t.Fatalf("expected 4 children, got %d", total)
	}
	for _, appointment := range withDetails.Appointments {
		if appointment.ConversationID != "c1" {
			t.Fatalf("appointment tagged with wrong conversation: %s", appointment.ConversationID)
		}
	}

	other, err := repo.GetWithDetails(ctx, "c2")
	if err != nil {
		t.Fatalf("get other: %v", err)
	}
	if other.ProcessingStatus != domain.StatusPending {
		t.Fatalf("completion leaked onto other conversation: %s", other.ProcessingStatus)
	}
	if len(other.Appointments)+len(other.Tasks)+len(other.Notes) != 0 {
		t.Fatalf("children leaked across conversations")
	}
}

func TestMemoryRepositorySetCompletedUnknownConversation(t *testing.T) {
	repo := NewMemoryConversationsRepository()
	err := repo.SetCompleted(context.Background(), "missing", CompletionUpdate{Summary: "s", ProcessedAt: time.Now().UTC()})
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepositoryListRecentOrdersAndFilters(t *testing.T) {
	repo := NewMemoryConversationsRepository()
	ctx := context.Background()

	older := newConversation("c1", "u1")
	older.RecordedAt = time.Now().UTC().Add(-2 * time.Hour)
	newer := newConversation("c2", "u1")
	foreign := newConversation("c3", "u2")

	for _, c := range []*domain.Conversation{older, newer, foreign} {
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	items, err := repo.ListRecent(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 conversations for u1, got %d", len(items))
	}
	if items[0].ID != "c2" {
		t.Fatalf("expected newest first, got %s", items[0].ID)
	}
}
