package pipeline

import "sync"

// conversationGuard serializes pipeline stages per conversation within
// this process. Two workers of the same instance never run stages for
// the same conversation concurrently; a busy conversation bounces the
// message back to the queue for redelivery.
type conversationGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newConversationGuard() *conversationGuard {
	return &conversationGuard{active: make(map[string]struct{})}
}

func (g *conversationGuard) tryAcquire(conversationID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[conversationID]; busy {
		return false
	}
	g.active[conversationID] = struct{}{}
	return true
}

func (g *conversationGuard) release(conversationID string) {
	g.mu.Lock()
	delete(g.active, conversationID)
	g.mu.Unlock()
}
