package auth

import (
	"context"
	"time"
)

// ResolveState tells apart a missing credential from a rejected one.
type ResolveState int

const (
	// StateAbsent means no credential was presented.
	StateAbsent ResolveState = iota
	// StateVerified means the credential produced a session.
	StateVerified
	// StateInvalid means a credential was presented and rejected.
	StateInvalid
)

func (s ResolveState) String() string {
	switch s {
	case StateVerified:
		return "verified"
	case StateInvalid:
		return "invalid"
	default:
		return "absent"
	}
}

var _ SessionResolver = (*SessionStore)(nil)

// SessionStore materializes sessions from tokens and issues new ones.
type SessionStore struct {
	tokens      TokenService
	directory   MemberDirectory
	revocations RevocationStore
	logger      Logger
}

// SessionStoreOption customizes a SessionStore.
type SessionStoreOption func(*SessionStore)

// WithMemberDirectory enables live re-derivation of impersonated sessions.
// Without a directory impersonated tokens are rejected.
func WithMemberDirectory(directory MemberDirectory) SessionStoreOption {
	return func(s *SessionStore) {
		s.directory = directory
	}
}

// WithRevocationStore enables token revocation on logout.
func WithRevocationStore(store RevocationStore) SessionStoreOption {
	return func(s *SessionStore) {
		s.revocations = normalizeRevocationStore(store)
	}
}

func WithSessionLogger(logger Logger) SessionStoreOption {
	return func(s *SessionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSessionStore returns a SessionStore over the given TokenService.
func NewSessionStore(tokens TokenService, opts ...SessionStoreOption) *SessionStore {
	s := &SessionStore{
		tokens:      tokens,
		revocations: noopRevocationStore{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = normalizeLogger(s.logger, "auth.session")
	return s
}

// Resolve returns the session for token, or nil when there is none. Only
// transport errors of the backing stores are returned.
func (s *SessionStore) Resolve(ctx context.Context, token string) (*Session, error) {
	session, _, err := s.Inspect(ctx, token)
	return session, err
}

// Inspect is Resolve plus the state of the credential.
func (s *SessionStore) Inspect(ctx context.Context, token string) (*Session, ResolveState, error) {
	if token == "" {
		return nil, StateAbsent, nil
	}

	session, err := s.tokens.Verify(token)
	if err != nil {
		s.logger.Debug("session token rejected", "error", err)
		return nil, StateInvalid, nil
	}

	revoked, err := s.revocations.IsRevoked(ctx, session.Token.ID)
	if err != nil {
		return nil, StateAbsent, err
	}
	if revoked {
		s.logger.Debug("session token revoked", "jti", session.Token.ID)
		return nil, StateInvalid, nil
	}

	if session.Impersonation != nil {
		ok, err := s.refreshImpersonated(ctx, session)
		if err != nil {
			return nil, StateAbsent, err
		}
		if !ok {
			return nil, StateInvalid, nil
		}
	}

	return session, StateVerified, nil
}

// refreshImpersonated reads role, name and flags of the assumed member and
// the state of its workspace from the directory. The token only identifies
// the member.
func (s *SessionStore) refreshImpersonated(ctx context.Context, session *Session) (bool, error) {
	if s.directory == nil {
		s.logger.Warn("impersonated session rejected, no member directory configured",
			"admin_id", session.Impersonation.AdminID,
		)
		return false, nil
	}

	member, err := s.directory.FindMember(ctx, session.Workspace.ID, session.Workspace.MemberID)
	if err != nil {
		if IsNotFound(err) {
			s.logger.Info("impersonated member no longer exists",
				"workspace_id", session.Workspace.ID,
				"member_id", session.Workspace.MemberID,
			)
			return false, nil
		}
		return false, err
	}

	if !member.Active || !member.Role.IsWorkspaceRole() {
		return false, nil
	}

	ws, err := s.directory.FindWorkspace(ctx, session.Workspace.ID)
	if err != nil {
		if IsNotFound(err) {
			s.logger.Info("impersonated workspace no longer exists", "workspace_id", session.Workspace.ID)
			return false, nil
		}
		return false, err
	}

	if !ws.Active {
		s.logger.Info("impersonated workspace is inactive", "workspace_id", session.Workspace.ID)
		return false, nil
	}

	session.Workspace.Name = ws.Name
	session.UserName = member.Nome
	session.Role = member.Role
	session.Workspace.Permissions = member.Permissions()
	session.Workspace.FamilyResponsibleID = member.FamilyResponsibleID

	if err := session.Validate(); err != nil {
		s.logger.Warn("impersonated member does not form a valid session", "error", err)
		return false, nil
	}

	return true, nil
}

// Create signs a new token for session.
func (s *SessionStore) Create(session *Session) (string, error) {
	return s.tokens.Sign(session)
}

// TTL is the lifetime of issued tokens.
func (s *SessionStore) TTL() time.Duration {
	return s.tokens.TTL()
}

// Revoke invalidates the token a session was decoded from. It reports true
// only when this call performed the revocation.
func (s *SessionStore) Revoke(ctx context.Context, session *Session) (bool, error) {
	if session == nil || session.Token.ID == "" {
		return false, nil
	}
	return s.revocations.Revoke(ctx, session.Token.ID, session.Token.ExpiresAt)
}

// Delete revokes token if it is valid. Absent or invalid tokens are not an
// error.
func (s *SessionStore) Delete(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	session, err := s.tokens.Verify(token)
	if err != nil {
		return false, nil
	}
	return s.Revoke(ctx, session)
}
