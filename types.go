package auth

import (
	"context"
)

// Logger is the structured logger used across the package. Arguments after
// the message are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds auth options
type Config interface {
	GetEnvironment() string
	GetSigningKey() string
	GetSigningKeyID() string
	// GetPreviousSigningKeys returns retired keys, by key id, that are still
	// accepted for verification.
	GetPreviousSigningKeys() map[string]string
	// GetTokenExpiration is the token lifetime in hours, zero disables expiry.
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
	GetCookieName() string
	GetCookieSecure() bool
	GetContextKey() string
	GetLoginRoute() string
	GetRedirectParam() string
	GetAPIPrefix() string
	GetPublicPaths() []string
	GetPublicPrefixes() []string
}

// SessionResolver materializes a Session from a raw token.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*Session, error)
}

// MemberDirectory exposes the workspace records the session layer reads.
// Flags are never written through this interface.
type MemberDirectory interface {
	FindWorkspace(ctx context.Context, workspaceID string) (*Workspace, error)
	FindMember(ctx context.Context, workspaceID, memberID string) (*WorkspaceMember, error)
	FindWorkspaceOwner(ctx context.Context, workspaceID string) (*WorkspaceMember, error)
}

// CredentialStore is used by the login flows to verify credentials and
// track attempts.
type CredentialStore interface {
	FindWorkspace(ctx context.Context, workspaceID string) (*Workspace, error)
	FindMemberByEmail(ctx context.Context, email string) (*WorkspaceMember, error)
	FindPlatformAdminByEmail(ctx context.Context, email string) (*PlatformAdmin, error)
	TrackMemberLogin(ctx context.Context, member *WorkspaceMember, success bool) error
	TrackAdminLogin(ctx context.Context, admin *PlatformAdmin, success bool) error
}
