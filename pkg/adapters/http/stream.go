package http

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/guidance/internal/logging"
	"github.com/aretw0/guidance/pkg/domain"
)

// StreamManager fans engine events out to SSE subscribers, per session.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan domain.Event]struct{}
	logger      *slog.Logger
}

// NewStreamManager creates an empty StreamManager.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan domain.Event]struct{}),
		logger:      logging.NewNop(),
	}
}

// SetLogger replaces the logger used for dropped-event warnings.
func (sm *StreamManager) SetLogger(logger *slog.Logger) {
	if logger != nil {
		sm.logger = logger
	}
}

// Subscribe registers a channel for the session's events.
// The returned func unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(sessionID string) (<-chan domain.Event, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan domain.Event, 16)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan domain.Event]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[sessionID]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(sm.subscribers, sessionID)
				}
			}
			close(ch)
		})
	}
}

// Broadcast delivers e to the subscribers of its session.
// Slow subscribers lose events instead of blocking the engine.
func (sm *StreamManager) Broadcast(e domain.Event) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[e.SessionID] {
		select {
		case ch <- e:
		default:
			sm.logger.Warn("SSE: client buffer full, dropping event", "session_id", e.SessionID, "type", e.Type)
		}
	}
}

// Subscribers returns the number of live subscriptions for the session.
func (sm *StreamManager) Subscribers(sessionID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[sessionID])
}

// Hooks returns lifecycle hooks that broadcast every engine event.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	forward := func(_ context.Context, e *domain.Event) {
		sm.Broadcast(*e)
	}
	return domain.LifecycleHooks{
		OnStart:      forward,
		OnTransition: forward,
		OnRetry:      forward,
		OnEscalation: forward,
		OnTerminal:   forward,
		OnCancel:     forward,
		OnEvict:      forward,
	}
}
