package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess         ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure         ActivityEventType = "auth.login.failure"
	ActivityEventLogout               ActivityEventType = "auth.logout"
	ActivityEventImpersonationStart   ActivityEventType = "auth.impersonation.start"
	ActivityEventImpersonationEnd     ActivityEventType = "auth.impersonation.end"
	ActivityEventImpersonationFailure ActivityEventType = "auth.impersonation.failure"
)

// ActorRef identifies who performed an action.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType   ActivityEventType
	Actor       ActorRef
	UserID      string
	WorkspaceID string
	Metadata    map[string]any
	OccurredAt  time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// recordActivity sends an event to the sink. Sink errors are logged and
// never fail the calling flow.
func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil && logger != nil {
		logger.Warn("activity sink record error", "event", string(event.EventType), "error", err)
	}
}

func actorFromSession(s *Session) ActorRef {
	if s == nil {
		return ActorRef{Type: "unknown"}
	}
	if s.Impersonation != nil {
		return ActorRef{ID: s.Impersonation.AdminID, Type: "platform_admin"}
	}
	if s.IsPlatformAdmin() {
		return ActorRef{ID: s.UserID, Type: "platform_admin"}
	}
	return ActorRef{ID: s.UserID, Type: "member"}
}
