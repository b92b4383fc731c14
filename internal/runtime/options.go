package runtime

import (
	"log/slog"
	"time"

	"github.com/aretw0/guidance/pkg/domain"
	"github.com/aretw0/guidance/pkg/escalation"
	"github.com/aretw0/guidance/pkg/ports"
)

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithResolver sets the collaborator that interprets free text.
func WithResolver(r ports.Resolver) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.resolver = r
		}
	}
}

// WithArchiver sets the collaborator invoked when a session reaches a terminal state.
func WithArchiver(a ports.Archiver) EngineOption {
	return func(e *Engine) {
		e.archiver = a
	}
}

// WithPolicy sets the escalation policy handed to transition functions.
func WithPolicy(p escalation.Policy) EngineOption {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the time source. Mostly useful in tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides how session IDs are minted.
func WithIDGenerator(gen func() string) EngineOption {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}
