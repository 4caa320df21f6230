package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
)

// MaxLoginAttempts is the maximun number of failed attempts an account gets
// inside CoolDownPeriod.
var MaxLoginAttempts = 5

// CoolDownPeriod is the window failed attempts are counted in.
var CoolDownPeriod = 24 * time.Hour

// IdentityProvider verifies credentials for both login flows and builds the
// resulting session.
type IdentityProvider struct {
	store    CredentialStore
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

type IdentityProviderOption func(*IdentityProvider)

func WithIdentityActivitySink(sink ActivitySink) IdentityProviderOption {
	return func(p *IdentityProvider) {
		p.activity = normalizeActivitySink(sink)
	}
}

func WithIdentityLogger(logger Logger) IdentityProviderOption {
	return func(p *IdentityProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithIdentityClock(now func() time.Time) IdentityProviderOption {
	return func(p *IdentityProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// NewIdentityProvider will create a new IdentityProvider
func NewIdentityProvider(store CredentialStore, opts ...IdentityProviderOption) *IdentityProvider {
	p := &IdentityProvider{
		store:    store,
		activity: noopActivitySink{},
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	p.logger = normalizeLogger(p.logger, "auth.identity")
	return p
}

// VerifyWorkspaceMember checks a member login and returns its workspace
// session. Unknown emails and wrong passwords both yield
// ErrInvalidCredentials.
func (p *IdentityProvider) VerifyWorkspaceMember(ctx context.Context, email, password string) (*Session, error) {
	member, err := p.store.FindMemberByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			p.failure(ctx, "member", email, "", ErrInvalidCredentials)
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve member during verification")
	}

	if !member.Active {
		p.failure(ctx, "member", email, member.WorkspaceID.String(), ErrInactiveAccount)
		return nil, ErrInactiveAccount
	}

	ws, err := p.store.FindWorkspace(ctx, member.WorkspaceID.String())
	if err != nil {
		if IsNotFound(err) {
			p.failure(ctx, "member", email, member.WorkspaceID.String(), ErrInvalidCredentials)
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve workspace during verification")
	}

	if !ws.Active {
		p.failure(ctx, "member", email, ws.ID.String(), ErrInactiveAccount)
		return nil, ErrInactiveAccount
	}

	if p.coolingDown(member.LoginAttempts, member.LoginAttemptAt) {
		p.failure(ctx, "member", email, ws.ID.String(), ErrTooManyLoginAttempts)
		return nil, ErrTooManyLoginAttempts
	}

	if err := ComparePasswordAndHash(password, member.PasswordHash); err != nil {
		if err2 := p.store.TrackMemberLogin(ctx, member, false); err2 != nil {
			return nil, errors.Wrap(err2, errors.CategoryInternal, "failed to track login attempt")
		}
		p.failure(ctx, "member", email, ws.ID.String(), err)
		return nil, ErrInvalidCredentials
	}

	if err := p.store.TrackMemberLogin(ctx, member, true); err != nil {
		p.logger.Error("failed to track successful login", "error", err)
	}

	session := SessionForMember(ws, member)
	if err := session.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "member record does not form a valid session")
	}

	recordActivity(ctx, p.activity, p.logger, ActivityEvent{
		EventType:   ActivityEventLoginSuccess,
		Actor:       actorFromSession(session),
		UserID:      session.UserID,
		WorkspaceID: session.Workspace.ID,
		Metadata:    map[string]any{"role": string(session.Role)},
		OccurredAt:  p.now(),
	})

	return session, nil
}

// VerifyPlatformAdmin checks an admin login and returns a platform session.
func (p *IdentityProvider) VerifyPlatformAdmin(ctx context.Context, email, password string) (*Session, error) {
	admin, err := p.store.FindPlatformAdminByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			p.failure(ctx, "platform_admin", email, "", ErrInvalidCredentials)
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve platform admin during verification")
	}

	if !admin.Active {
		p.failure(ctx, "platform_admin", email, "", ErrInactiveAccount)
		return nil, ErrInactiveAccount
	}

	if p.coolingDown(admin.LoginAttempts, admin.LoginAttemptAt) {
		p.failure(ctx, "platform_admin", email, "", ErrTooManyLoginAttempts)
		return nil, ErrTooManyLoginAttempts
	}

	if err := ComparePasswordAndHash(password, admin.PasswordHash); err != nil {
		if err2 := p.store.TrackAdminLogin(ctx, admin, false); err2 != nil {
			return nil, errors.Wrap(err2, errors.CategoryInternal, "failed to track login attempt")
		}
		p.failure(ctx, "platform_admin", email, "", err)
		return nil, ErrInvalidCredentials
	}

	if err := p.store.TrackAdminLogin(ctx, admin, true); err != nil {
		p.logger.Error("failed to track successful login", "error", err)
	}

	session := SessionForAdmin(admin)

	recordActivity(ctx, p.activity, p.logger, ActivityEvent{
		EventType:  ActivityEventLoginSuccess,
		Actor:      actorFromSession(session),
		UserID:     session.UserID,
		OccurredAt: p.now(),
	})

	return session, nil
}

// coolingDown is true while failed attempts inside CoolDownPeriod exceed
// MaxLoginAttempts. Attempts older than the window are ignored.
func (p *IdentityProvider) coolingDown(attempts int, lastAttempt *time.Time) bool {
	if lastAttempt == nil {
		return false
	}
	if p.now().Sub(*lastAttempt) >= CoolDownPeriod {
		return false
	}
	return attempts >= MaxLoginAttempts
}

func (p *IdentityProvider) failure(ctx context.Context, actorType, email, workspaceID string, err error) {
	p.logger.Info("login rejected", "actor_type", actorType, "workspace_id", workspaceID, "error", err)

	recordActivity(ctx, p.activity, p.logger, ActivityEvent{
		EventType:   ActivityEventLoginFailure,
		Actor:       ActorRef{Type: actorType},
		WorkspaceID: workspaceID,
		Metadata: map[string]any{
			"email": normalizeEmail(email),
		},
		OccurredAt: p.now(),
	})
}
