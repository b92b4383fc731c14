package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/guidance/pkg/domain"
)

// LogHooks returns lifecycle hooks that log every event.
// Retries and escalations log at warn, everything else at info.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	info := logEvent(logger, slog.LevelInfo)
	warn := logEvent(logger, slog.LevelWarn)
	return domain.LifecycleHooks{
		OnStart:      info,
		OnTransition: info,
		OnRetry:      warn,
		OnEscalation: warn,
		OnTerminal:   info,
		OnCancel:     info,
		OnEvict:      info,
	}
}

func logEvent(logger *slog.Logger, level slog.Level) func(context.Context, *domain.Event) {
	return func(ctx context.Context, e *domain.Event) {
		attrs := []slog.Attr{
			slog.String("session_id", e.SessionID),
		}
		if e.Variant != "" {
			attrs = append(attrs, slog.String("variant", string(e.Variant)))
		}
		if e.From != "" {
			attrs = append(attrs, slog.String("from", string(e.From)))
		}
		if e.To != "" {
			attrs = append(attrs, slog.String("to", string(e.To)))
		}
		if e.Status != "" {
			attrs = append(attrs, slog.String("status", string(e.Status)))
		}
		logger.LogAttrs(ctx, level, string(e.Type), attrs...)
	}
}
