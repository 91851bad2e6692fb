// Package authgate tracks users who clicked a restricted control and must
// answer with the shared manager key before the action runs.
package authgate

import (
	"crypto/subtle"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTTL is how long a user has to send the key.
const DefaultTTL = 60 * time.Second

type grant struct {
	action string
	timer  *time.Timer
}

// Gate maps user ids to the action waiting for authentication.
type Gate struct {
	mu     sync.Mutex
	grants map[string]*grant
	ttl    time.Duration
	logger *zap.Logger
	closed bool
}

// New creates a gate. A non-positive ttl falls back to DefaultTTL.
func New(ttl time.Duration, logger *zap.Logger) *Gate {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		grants: make(map[string]*grant),
		ttl:    ttl,
		logger: logger.With(zap.String("component", "authgate")),
	}
}

// TTL returns the expiry applied to each Begin.
func (g *Gate) TTL() time.Duration {
	return g.ttl
}

// Begin records that userID must authenticate before action runs. A later
// Begin for the same user replaces the action; the expiry of the earlier
// call never removes the newer one.
func (g *Gate) Begin(userID, action string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}

	if old, ok := g.grants[userID]; ok {
		old.timer.Stop()
	}
	gr := &grant{action: action}
	gr.timer = time.AfterFunc(g.ttl, func() { g.expire(userID, gr) })
	g.grants[userID] = gr
}

func (g *Gate) expire(userID string, gr *grant) {
	g.mu.Lock()
	defer g.mu.Unlock()

	current, ok := g.grants[userID]
	if !ok || current != gr || current.action != gr.action {
		return
	}
	delete(g.grants, userID)
	g.logger.Info("authentication window expired",
		zap.String("user_id", userID),
		zap.String("action", gr.action))
}

// Pending reports the action waiting for userID without consuming it.
func (g *Gate) Pending(userID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	gr, ok := g.grants[userID]
	if !ok {
		return "", false
	}
	return gr.action, true
}

// Consume removes and returns the action waiting for userID.
func (g *Gate) Consume(userID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	gr, ok := g.grants[userID]
	if !ok {
		return "", false
	}
	gr.timer.Stop()
	delete(g.grants, userID)
	return gr.action, true
}

// Check compares the trimmed input with secret in constant time.
// An empty secret never matches.
func Check(input, secret string) bool {
	if secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(input)), []byte(secret)) == 1
}

// Close stops all expiry timers and forgets every pending action.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for id, gr := range g.grants {
		gr.timer.Stop()
		delete(g.grants, id)
	}
	g.closed = true
}
