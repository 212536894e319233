package queue

import (
	"context"
	"errors"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/remindhealth/journal-api/internal/domain"
)

func TestLocalQueueDeliversInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewLocalQueue(16, 3, log.New(io.Discard, "", 0))
	received := make(chan domain.StageMessage, 2)
	go func() {
		_ = q.Consume(ctx, func(_ context.Context, message domain.StageMessage) error {
			received <- message
			return nil
		})
	}()

	first := domain.StageMessage{Stage: domain.StageTranscribe, ConversationID: "c1", RequestedAt: time.Now().UTC()}
	second := domain.StageMessage{Stage: domain.StageExtract, ConversationID: "c1", RequestedAt: time.Now().UTC()}
	if err := q.Enqueue(ctx, first); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, second); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	for _, want := range []domain.StageKind{domain.StageTranscribe, domain.StageExtract} {
		select {
		case got := <-received:
			if got.Stage != want {
				t.Fatalf("expected stage %s, got %s", want, got.Stage)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for stage %s", want)
		}
	}
}

func TestLocalQueueMovesExhaustedMessagesToDLQ(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewLocalQueue(16, 2, log.New(io.Discard, "", 0))
	var calls int32
	go func() {
		_ = q.Consume(ctx, func(_ context.Context, _ domain.StageMessage) error {
			atomic.AddInt32(&calls, 1)
			return errors.New("handler failure")
		})
	}()

	message := domain.StageMessage{Stage: domain.StageTranscribe, ConversationID: "c1", RequestedAt: time.Now().UTC()}
	if err := q.Enqueue(ctx, message); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for q.DLQSize() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("message never reached DLQ, calls=%d", atomic.LoadInt32(&calls))
		}
		time.Sleep(20 * time.Millisecond)
	}
	if got := atomic.LoadInt32(&calls); got < 2 {
		t.Fatalf("expected at least 2 delivery attempts, got %d", got)
	}
}

func TestLocalQueueEnqueueRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := NewLocalQueue(1, 3, nil)
	// Fill the buffer so the second enqueue must block on the context.
	_ = q.Enqueue(context.Background(), domain.StageMessage{ConversationID: "c1"})
	if err := q.Enqueue(ctx, domain.StageMessage{ConversationID: "c2"}); err == nil {
		t.Fatalf("expected context error")
	}
}
