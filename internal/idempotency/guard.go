package idempotency

import (
	"context"
	"sync"
	"time"

	"booking-service/internal/apperror"
)

// Guard remembers payment tokens. CheckAndRecord reports whether token was
// seen before and records it if not; the check and the record are atomic.
type Guard interface {
	CheckAndRecord(ctx context.Context, token string) (seen bool, err error)
}

// MemoryGuard keeps tokens in process memory. History is lost on restart and
// not shared between replicas.
type MemoryGuard struct {
	mu      sync.Mutex
	tokens  map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
	pruneAt int // prune expired tokens once the map reaches this size
}

const minPruneAt = 1024

// NewMemoryGuard creates an in-memory guard. A ttl of zero keeps tokens forever.
func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	return &MemoryGuard{
		tokens:  make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
		pruneAt: minPruneAt,
	}
}

func (g *MemoryGuard) CheckAndRecord(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, apperror.New(apperror.KindInvalidRequest, "idempotency key is required")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if recorded, ok := g.tokens[token]; ok {
		if g.ttl <= 0 || now.Sub(recorded) < g.ttl {
			return true, nil
		}
	}

	g.tokens[token] = now
	if g.ttl > 0 && len(g.tokens) >= g.pruneAt {
		g.prune(now)
	}
	return false, nil
}

// prune drops expired tokens and doubles the threshold past the live set so
// pruning stays amortized O(1) per write.
func (g *MemoryGuard) prune(now time.Time) {
	for token, recorded := range g.tokens {
		if now.Sub(recorded) >= g.ttl {
			delete(g.tokens, token)
		}
	}
	g.pruneAt = 2 * len(g.tokens)
	if g.pruneAt < minPruneAt {
		g.pruneAt = minPruneAt
	}
}

// Len returns the number of recorded tokens, including expired ones not yet pruned
func (g *MemoryGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tokens)
}
