package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Impersonator lets platform admins assume a workspace member identity and
// return to their own session.
type Impersonator struct {
	store     *SessionStore
	directory MemberDirectory
	activity  ActivitySink
	logger    Logger
	now       func() time.Time
}

// ImpersonatorOption customizes an Impersonator.
type ImpersonatorOption func(*Impersonator)

// WithImpersonationActivitySink sets the sink for start/end events.
func WithImpersonationActivitySink(sink ActivitySink) ImpersonatorOption {
	return func(i *Impersonator) {
		i.activity = normalizeActivitySink(sink)
	}
}

func WithImpersonationLogger(logger Logger) ImpersonatorOption {
	return func(i *Impersonator) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithImpersonationClock overrides the clock used to stamp StartedAt.
func WithImpersonationClock(now func() time.Time) ImpersonatorOption {
	return func(i *Impersonator) {
		if now != nil {
			i.now = now
		}
	}
}

// NewImpersonator returns an Impersonator issuing tokens through store.
func NewImpersonator(store *SessionStore, directory MemberDirectory, opts ...ImpersonatorOption) *Impersonator {
	i := &Impersonator{
		store:     store,
		directory: directory,
		activity:  noopActivitySink{},
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	i.logger = normalizeLogger(i.logger, "auth.impersonation")
	return i
}

// Start issues a session for the target member carrying the admin as
// provenance. An empty memberID selects the workspace owner.
func (i *Impersonator) Start(ctx context.Context, admin *Session, workspaceID, memberID string) (string, *Session, error) {
	if err := RequirePlatformAdmin(admin); err != nil {
		i.failure(ctx, admin, workspaceID, memberID, err)
		return "", nil, err
	}

	ws, err := i.directory.FindWorkspace(ctx, workspaceID)
	if err != nil {
		i.failure(ctx, admin, workspaceID, memberID, err)
		return "", nil, err
	}

	if !ws.Active {
		err = withSource(ErrInactiveAccount, nil, map[string]any{"workspace_id": workspaceID})
		i.failure(ctx, admin, workspaceID, memberID, err)
		return "", nil, err
	}

	var member *WorkspaceMember
	if memberID == "" {
		member, err = i.directory.FindWorkspaceOwner(ctx, workspaceID)
	} else {
		member, err = i.directory.FindMember(ctx, workspaceID, memberID)
	}
	if err != nil {
		i.failure(ctx, admin, workspaceID, memberID, err)
		return "", nil, err
	}

	if !member.Active {
		err = withSource(ErrInactiveAccount, nil, map[string]any{"member_id": member.ID.String()})
		i.failure(ctx, admin, workspaceID, memberID, err)
		return "", nil, err
	}

	session := SessionForMember(ws, member)
	session.Impersonation = &Impersonation{
		AdminID:   admin.UserID,
		AdminName: admin.UserName,
		StartedAt: i.now().UTC().Truncate(time.Second),
	}

	token, err := i.store.Create(session)
	if err != nil {
		i.failure(ctx, admin, workspaceID, memberID, err)
		return "", nil, err
	}

	i.logger.Info("impersonation started",
		"admin_id", admin.UserID,
		"workspace_id", session.Workspace.ID,
		"member_id", session.Workspace.MemberID,
	)

	recordActivity(ctx, i.activity, i.logger, ActivityEvent{
		EventType:   ActivityEventImpersonationStart,
		Actor:       actorFromSession(admin),
		UserID:      session.UserID,
		WorkspaceID: session.Workspace.ID,
		Metadata: map[string]any{
			"role": string(session.Role),
		},
		OccurredAt: i.now(),
	})

	return token, session, nil
}

// End drops the impersonation overlay, issuing a fresh token for the
// original admin and revoking the token of current.
func (i *Impersonator) End(ctx context.Context, current *Session) (string, *Session, error) {
	if current == nil {
		return "", nil, ErrUnauthorized
	}

	if current.Impersonation == nil {
		return "", nil, ErrNotImpersonating
	}

	admin := NewPlatformSession(current.Impersonation.AdminID, current.Impersonation.AdminName)

	token, err := i.store.Create(admin)
	if err != nil {
		return "", nil, err
	}

	if _, err := i.store.Revoke(ctx, current); err != nil {
		return "", nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke impersonation token")
	}

	i.logger.Info("impersonation ended",
		"admin_id", admin.UserID,
		"workspace_id", current.WorkspaceID(),
		"duration", i.now().Sub(current.Impersonation.StartedAt).String(),
	)

	recordActivity(ctx, i.activity, i.logger, ActivityEvent{
		EventType:   ActivityEventImpersonationEnd,
		Actor:       actorFromSession(current),
		UserID:      current.UserID,
		WorkspaceID: current.WorkspaceID(),
		OccurredAt:  i.now(),
	})

	return token, admin, nil
}

func (i *Impersonator) failure(ctx context.Context, admin *Session, workspaceID, memberID string, err error) {
	i.logger.Warn("impersonation rejected",
		"workspace_id", workspaceID,
		"member_id", memberID,
		"error", err,
	)

	recordActivity(ctx, i.activity, i.logger, ActivityEvent{
		EventType:   ActivityEventImpersonationFailure,
		Actor:       actorFromSession(admin),
		UserID:      memberID,
		WorkspaceID: workspaceID,
		Metadata: map[string]any{
			"error": err.Error(),
		},
		OccurredAt: i.now(),
	})
}
