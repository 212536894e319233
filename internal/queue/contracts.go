package queue

import (
	"context"

	"github.com/remindhealth/journal-api/internal/domain"
)

// Producer schedules pipeline stages onto a queue backend.
type Producer interface {
	Enqueue(ctx context.Context, message domain.StageMessage) error
}

// Consumer receives scheduled stages and executes a handler for each.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, domain.StageMessage) error) error
}
