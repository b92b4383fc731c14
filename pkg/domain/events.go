package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventSessionStarted EventType = "session_started"
	EventTransition     EventType = "transition"
	EventRetry          EventType = "retry"
	EventEscalation     EventType = "escalation"
	EventTerminal       EventType = "terminal"
	EventCancelled      EventType = "cancelled"
	EventEvicted        EventType = "evicted"
)

// Event describes one engine-level occurrence for observability.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Variant   Variant   `json:"variant"`
	From      StateID   `json:"from,omitempty"`
	To        StateID   `json:"to,omitempty"`
	Status    Status    `json:"status,omitempty"`

	// Diff holds the session changes produced by the call, when any.
	Diff *SessionDiff `json:"diff,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
// Hooks run synchronously inside the session lock and must not block.
type LifecycleHooks struct {
	OnStart      func(context.Context, *Event)
	OnTransition func(context.Context, *Event)
	OnRetry      func(context.Context, *Event)
	OnEscalation func(context.Context, *Event)
	OnTerminal   func(context.Context, *Event)
	OnCancel     func(context.Context, *Event)
	OnEvict      func(context.Context, *Event)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStart:      chain(h.OnStart, other.OnStart),
		OnTransition: chain(h.OnTransition, other.OnTransition),
		OnRetry:      chain(h.OnRetry, other.OnRetry),
		OnEscalation: chain(h.OnEscalation, other.OnEscalation),
		OnTerminal:   chain(h.OnTerminal, other.OnTerminal),
		OnCancel:     chain(h.OnCancel, other.OnCancel),
		OnEvict:      chain(h.OnEvict, other.OnEvict),
	}
}

func chain(a, b func(context.Context, *Event)) func(context.Context, *Event) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e *Event) {
		a(ctx, e)
		b(ctx, e)
	}
}
