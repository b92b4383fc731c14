package guidance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/guidance/internal/logging"
	"github.com/aretw0/guidance/internal/runtime"
	"github.com/aretw0/guidance/pkg/adapters/memory"
	"github.com/aretw0/guidance/pkg/domain"
	"github.com/aretw0/guidance/pkg/escalation"
	"github.com/aretw0/guidance/pkg/ports"
	"github.com/aretw0/guidance/pkg/registry"
	"github.com/aretw0/guidance/pkg/session"
	"github.com/aretw0/guidance/pkg/workflows"
)

// Engine is the high-level entry point of the library.
// It wraps the internal runtime and the session manager behind a small API.
type Engine struct {
	runtime  *runtime.Engine
	sessions *session.Manager

	store    ports.SessionStore
	registry *registry.Registry
	locker   ports.DistributedLocker
	lockTTL  time.Duration
	resolver ports.Resolver
	archiver ports.Archiver
	policy   escalation.Policy
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	clock    func() time.Time
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore sets the session store (default: in-memory).
func WithStore(store ports.SessionStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker enables distributed per-session locking across replicas.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = locker
		e.lockTTL = ttl
	}
}

// WithRegistry replaces the built-in workflows.
func WithRegistry(reg *registry.Registry) Option {
	return func(e *Engine) {
		e.registry = reg
	}
}

// WithResolver sets the free-text resolver (default: substring matcher).
func WithResolver(r ports.Resolver) Option {
	return func(e *Engine) {
		e.resolver = r
	}
}

// WithArchiver sets the archive that receives terminal sessions.
func WithArchiver(a ports.Archiver) Option {
	return func(e *Engine) {
		e.archiver = a
	}
}

// WithPolicy sets the escalation policy.
func WithPolicy(p escalation.Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides the engine time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.clock = now
	}
}

// New initializes an Engine with the built-in pizza and triage workflows.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{
		policy: escalation.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.store == nil {
		eng.store = memory.NewStore()
	}
	if eng.registry == nil {
		eng.registry = workflows.Default()
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if len(eng.registry.Variants()) == 0 {
		return nil, fmt.Errorf("no workflows registered")
	}

	managerOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(eng.locker), session.WithLockTTL(eng.lockTTL))
	}
	eng.sessions = session.NewManager(eng.store, managerOpts...)

	eng.runtime = runtime.NewEngine(eng.registry, eng.sessions,
		runtime.WithResolver(eng.resolver),
		runtime.WithArchiver(eng.archiver),
		runtime.WithPolicy(eng.policy),
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
		runtime.WithClock(eng.clock),
	)
	return eng, nil
}

// Start creates a new session for the variant and returns the first instruction.
func (e *Engine) Start(ctx context.Context, variant domain.Variant) (*domain.Instruction, error) {
	return e.runtime.Start(ctx, variant)
}

// Continue submits input for the session and returns the next instruction.
func (e *Engine) Continue(ctx context.Context, sessionID string, in domain.Input) (*domain.Instruction, error) {
	return e.runtime.Continue(ctx, sessionID, in)
}

// Cancel deletes a session.
func (e *Engine) Cancel(ctx context.Context, sessionID string) error {
	return e.runtime.Cancel(ctx, sessionID)
}

// Inspect returns a read-only snapshot of the session.
func (e *Engine) Inspect(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	return e.runtime.Inspect(ctx, sessionID)
}

// Sweep evicts sessions idle for longer than maxIdle.
func (e *Engine) Sweep(ctx context.Context, maxIdle time.Duration) ([]string, error) {
	return e.runtime.Sweep(ctx, maxIdle)
}

// List returns the IDs of all live sessions.
func (e *Engine) List(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Variants lists the workflows that can be started.
func (e *Engine) Variants() []domain.Variant {
	return e.runtime.Variants()
}

// Janitor returns a background sweeper bound to this engine.
func (e *Engine) Janitor(interval, maxIdle time.Duration) *session.Janitor {
	return session.NewJanitor(e, interval, maxIdle, e.logger)
}
