package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/guidance/internal/logging"
	"github.com/aretw0/guidance/pkg/adapters/matcher"
	"github.com/aretw0/guidance/pkg/domain"
	"github.com/aretw0/guidance/pkg/escalation"
	"github.com/aretw0/guidance/pkg/ports"
	"github.com/aretw0/guidance/pkg/registry"
	"github.com/aretw0/guidance/pkg/session"
	"github.com/aretw0/guidance/pkg/workflow"
)

// Engine is the guide: it owns session progression for every registered workflow.
type Engine struct {
	registry *registry.Registry
	sessions *session.Manager

	resolver ports.Resolver
	archiver ports.Archiver
	policy   escalation.Policy
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// NewEngine creates an engine over the given workflows and session manager.
func NewEngine(reg *registry.Registry, sessions *session.Manager, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: reg,
		sessions: sessions,
		resolver: matcher.New(),
		policy:   escalation.DefaultPolicy(),
		logger:   logging.NewNop(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start creates a session positioned at the variant's initial state and
// returns the first instruction.
func (e *Engine) Start(ctx context.Context, variant domain.Variant) (*domain.Instruction, error) {
	table, err := e.registry.Get(variant)
	if err != nil {
		return nil, err
	}
	spec, err := table.Spec(table.Initial)
	if err != nil {
		return nil, e.invariant(err)
	}

	now := e.now()
	s := domain.NewSession(e.newID(), variant, table.Initial, now)
	s.Record(domain.StepSessionStarted, now, map[string]any{
		"session_id": s.ID,
		"variant":    string(variant),
	})

	if err := e.sessions.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	e.logger.Debug("session started", "session_id", s.ID, "variant", variant, "state", s.State)
	e.emit(ctx, e.hooks.OnStart, &domain.Event{
		Type:   domain.EventSessionStarted,
		To:     s.State,
		Status: domain.StatusInProgress,
		Diff:   domain.Diff(nil, s),
	}, s)

	return e.render(spec, s), nil
}

// Continue feeds caller input to the session's current state and returns the
// next instruction. Every call that reaches a transition function advances
// the session at most once and appends exactly one audit entry.
func (e *Engine) Continue(ctx context.Context, sessionID string, in domain.Input) (*domain.Instruction, error) {
	var inst *domain.Instruction
	err := e.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		inst, err = e.step(ctx, sessionID, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// step runs under the session lock.
func (e *Engine) step(ctx context.Context, sessionID string, in domain.Input) (*domain.Instruction, error) {
	store := e.sessions.Store()

	current, err := store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	table, err := e.registry.Get(current.Variant)
	if err != nil {
		return nil, e.invariant(fmt.Errorf("%w: session %s has variant %s: %v", domain.ErrInvariant, sessionID, current.Variant, err))
	}
	spec, err := table.Spec(current.State)
	if err != nil {
		return nil, e.invariant(err)
	}
	if spec.Kind == workflow.Terminal {
		return nil, fmt.Errorf("%w: session %s is in %s", domain.ErrSessionTerminated, sessionID, current.State)
	}

	now := e.now()
	next := current.Clone()
	env := workflow.Env{Resolver: e.resolver, Policy: e.policy, Now: now}

	out, err := spec.Handle(ctx, env, next, in)
	if err != nil {
		return nil, fmt.Errorf("transition from %s failed: %w", current.State, err)
	}
	// Escalation and severity never go back, whatever the handler did.
	next.Escalated = next.Escalated || current.Escalated
	if next.Severity < current.Severity {
		next.Severity = current.Severity
	}

	switch out.Action {
	case workflow.ActionStay:
		return e.stay(ctx, spec, current, next, out, now)
	case workflow.ActionAdvance:
		return e.advance(ctx, table, spec, current, next, out, now)
	case workflow.ActionCancel:
		return e.cancelled(ctx, current, next, out, now)
	}
	return nil, e.invariant(fmt.Errorf("%w: unknown outcome %v from %s", domain.ErrInvariant, out.Action, current.State))
}

func (e *Engine) stay(ctx context.Context, spec workflow.StateSpec, current, next *domain.Session, out workflow.Outcome, now time.Time) (*domain.Instruction, error) {
	// A stay never moves the session, whatever the handler did to State.
	next.State = current.State
	next.Record(stepOr(out.Step, domain.StepRetry), now, out.Data)
	next.UpdatedAt = now

	if err := e.sessions.Store().Save(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to save session %s: %w", next.ID, err)
	}

	e.logger.Warn("input rejected, staying in state",
		"session_id", next.ID,
		"state", next.State,
		"reason", out.Reason,
	)
	e.emit(ctx, e.hooks.OnRetry, &domain.Event{
		Type:   domain.EventRetry,
		From:   current.State,
		To:     next.State,
		Status: domain.StatusInProgress,
		Diff:   domain.Diff(current, next),
	}, next)
	if !current.Escalated && next.Escalated {
		e.emitEscalation(ctx, current, next)
	}

	inst := e.render(spec, next)
	inst.StayInState = true
	if out.Message != "" {
		inst.Prompt = out.Message
	}
	if out.Guidance != "" {
		inst.Guidance = out.Guidance
	}
	if len(out.Options) > 0 {
		inst.Options = append([]string(nil), out.Options...)
	}
	if out.Reason != nil {
		if inst.Data == nil {
			inst.Data = make(map[string]any)
		}
		inst.Data["retry_reason"] = out.Reason.Error()
	}
	return inst, nil
}

func (e *Engine) advance(ctx context.Context, table *workflow.Table, spec workflow.StateSpec, current, next *domain.Session, out workflow.Outcome, now time.Time) (*domain.Instruction, error) {
	if !spec.Allows(out.Next) {
		return nil, e.invariant(&domain.InvalidTransitionError{Variant: table.Variant, From: current.State, To: out.Next})
	}

	target := out.Next
	// Once escalated, a session can never leave a collect state by the normal path.
	if next.Escalated && spec.Kind == workflow.Collect && table.Escalation != "" {
		target = table.Escalation
	}
	targetSpec, err := table.Spec(target)
	if err != nil {
		return nil, e.invariant(err)
	}

	next.Record(stepOr(out.Step, "state_completed"), now, out.Data)
	next.State = target
	next.UpdatedAt = now

	terminal := targetSpec.Kind == workflow.Terminal
	if terminal && e.archiver != nil {
		recordID, err := e.archiver.Archive(ctx, next.Clone())
		if err != nil {
			return nil, fmt.Errorf("failed to archive session %s: %w", next.ID, err)
		}
		next.Archived = true
		next.RecordID = recordID
	}

	if err := e.sessions.Store().Save(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to save session %s: %w", next.ID, err)
	}

	inst := e.render(targetSpec, next)

	e.logger.Debug("session advanced",
		"session_id", next.ID,
		"from", current.State,
		"to", next.State,
		"forced", target != out.Next,
	)
	e.emit(ctx, e.hooks.OnTransition, &domain.Event{
		Type:   domain.EventTransition,
		From:   current.State,
		To:     next.State,
		Status: inst.Status,
		Diff:   domain.Diff(current, next),
	}, next)
	if !current.Escalated && next.Escalated {
		e.emitEscalation(ctx, current, next)
	}
	if terminal {
		e.logger.Info("session reached terminal state",
			"session_id", next.ID,
			"state", next.State,
			"status", inst.Status,
			"record_id", next.RecordID,
		)
		e.emit(ctx, e.hooks.OnTerminal, &domain.Event{
			Type:   domain.EventTerminal,
			From:   current.State,
			To:     next.State,
			Status: inst.Status,
		}, next)
	}
	return inst, nil
}

func (e *Engine) cancelled(ctx context.Context, current, next *domain.Session, out workflow.Outcome, now time.Time) (*domain.Instruction, error) {
	next.Record(stepOr(out.Step, domain.StepCancelled), now, out.Data)

	if err := e.sessions.Store().Delete(ctx, next.ID); err != nil {
		return nil, fmt.Errorf("failed to delete session %s: %w", next.ID, err)
	}

	e.logger.Info("session cancelled by workflow", "session_id", next.ID, "state", current.State)
	e.emit(ctx, e.hooks.OnCancel, &domain.Event{
		Type:   domain.EventCancelled,
		From:   current.State,
		Status: domain.StatusCancelled,
		Diff:   domain.Diff(current, next),
	}, next)

	return &domain.Instruction{
		Status:     domain.StatusCancelled,
		SessionID:  next.ID,
		State:      current.State,
		Task:       "respond",
		Message:    out.Message,
		Guidance:   "Tell the user the session was cancelled.",
		AuditTrail: trail(next),
	}, nil
}

// Cancel deletes a session. Cancelling an archived terminal session is a no-op.
func (e *Engine) Cancel(ctx context.Context, sessionID string) error {
	return e.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		store := e.sessions.Store()

		s, err := store.Load(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to load session %s: %w", sessionID, err)
		}

		if s.Archived && e.isTerminal(s) {
			e.logger.Debug("cancel ignored for archived session", "session_id", sessionID, "state", s.State)
			return nil
		}

		if err := store.Delete(ctx, sessionID); err != nil {
			return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
		}

		e.logger.Info("session cancelled", "session_id", sessionID, "state", s.State)
		e.emit(ctx, e.hooks.OnCancel, &domain.Event{
			Type:   domain.EventCancelled,
			From:   s.State,
			Status: domain.StatusCancelled,
		}, s)
		return nil
	})
}

// Inspect returns a read-only deep copy of the session.
func (e *Engine) Inspect(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	s, err := e.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	return &domain.Snapshot{Session: s.Clone(), Terminal: e.isTerminal(s)}, nil
}

// Sweep evicts every session idle for longer than maxIdle.
func (e *Engine) Sweep(ctx context.Context, maxIdle time.Duration) ([]string, error) {
	if maxIdle <= 0 {
		return nil, fmt.Errorf("sweep requires a positive idle threshold, got %s", maxIdle)
	}

	removed, err := e.sessions.Expire(ctx, e.now().Add(-maxIdle))
	if err != nil {
		return nil, fmt.Errorf("failed to expire sessions: %w", err)
	}

	for _, id := range removed {
		e.emit(ctx, e.hooks.OnEvict, &domain.Event{Type: domain.EventEvicted}, &domain.Session{ID: id})
	}
	if len(removed) > 0 {
		e.logger.Info("swept idle sessions", "count", len(removed), "max_idle", maxIdle)
	}
	return removed, nil
}

// Variants lists the workflows the engine can start.
func (e *Engine) Variants() []domain.Variant {
	return e.registry.Variants()
}

func (e *Engine) isTerminal(s *domain.Session) bool {
	table, err := e.registry.Get(s.Variant)
	if err != nil {
		return false
	}
	return table.IsTerminal(s.State)
}

// render builds the instruction for the session's current state.
// Escalation and terminal instructions carry the full audit trail.
func (e *Engine) render(spec workflow.StateSpec, s *domain.Session) *domain.Instruction {
	inst := spec.Prompt(s.Clone())
	if inst == nil {
		inst = &domain.Instruction{Status: domain.StatusInProgress}
	}
	inst.SessionID = s.ID
	inst.State = s.State
	if inst.Status == "" {
		inst.Status = domain.StatusInProgress
	}
	if spec.Kind != workflow.Collect {
		inst.AuditTrail = trail(s)
	}
	return inst
}

func (e *Engine) emitEscalation(ctx context.Context, current, next *domain.Session) {
	e.logger.Warn("session escalated", "session_id", next.ID, "state", current.State, "severity", next.Severity)
	e.emit(ctx, e.hooks.OnEscalation, &domain.Event{
		Type: domain.EventEscalation,
		From: current.State,
		To:   next.State,
	}, next)
}

func (e *Engine) emit(ctx context.Context, hook func(context.Context, *domain.Event), ev *domain.Event, s *domain.Session) {
	if hook == nil {
		return
	}
	ev.Timestamp = e.now()
	ev.SessionID = s.ID
	ev.Variant = s.Variant
	hook(ctx, ev)
}

// invariant logs an internal breach at error level and returns it unchanged.
func (e *Engine) invariant(err error) error {
	if errors.Is(err, domain.ErrInvariant) {
		e.logger.Error("engine invariant violated", "err", err)
	}
	return err
}

func trail(s *domain.Session) []domain.AuditEntry {
	return s.Clone().Audit
}

func stepOr(step, fallback string) string {
	if step == "" {
		return fallback
	}
	return step
}
