package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the wire form of a Session inside a signed token.
type SessionClaims struct {
	jwt.RegisteredClaims
	WorkspaceID         *string             `json:"workspace_id"`
	WorkspaceName       string              `json:"workspace_name,omitempty"`
	UsuarioNome         string              `json:"usuario_nome"`
	UserRole            string              `json:"user_role"`
	IsPlatformAdmin     bool                `json:"is_platform_admin"`
	MemberID            string              `json:"member_id,omitempty"`
	Member              PermissionSet       `json:"member,omitempty"`
	FamilyResponsibleID string              `json:"family_responsible_id,omitempty"`
	Impersonation       *ImpersonationClaim `json:"imp,omitempty"`
}

// ImpersonationClaim is the provenance marker of an impersonated session.
type ImpersonationClaim struct {
	AdminID   string `json:"admin_id"`
	AdminName string `json:"admin_name"`
	StartedAt int64  `json:"started_at"`
}

// UserID returns the principal id
func (c *SessionClaims) UserID() string {
	return c.RegisteredClaims.Subject
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *SessionClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// claimsFromSession builds the token claims. Impersonated sessions do not
// carry member flags: those are read from the member record on each request.
func claimsFromSession(s *Session) *SessionClaims {
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: s.UserID,
		},
		UsuarioNome:     s.UserName,
		UserRole:        string(s.Role),
		IsPlatformAdmin: s.IsPlatformAdmin(),
	}

	if s.Workspace != nil {
		id := s.Workspace.ID
		claims.WorkspaceID = &id
		claims.WorkspaceName = s.Workspace.Name
		claims.MemberID = s.Workspace.MemberID
		claims.FamilyResponsibleID = s.Workspace.FamilyResponsibleID
		if s.Impersonation == nil {
			claims.Member = s.Workspace.Permissions.Clone()
			if claims.Member == nil {
				claims.Member = PermissionSet{}
			}
		}
	}

	if s.Impersonation != nil {
		claims.Impersonation = &ImpersonationClaim{
			AdminID:   s.Impersonation.AdminID,
			AdminName: s.Impersonation.AdminName,
			StartedAt: s.Impersonation.StartedAt.Unix(),
		}
	}

	return claims
}

// session converts decoded claims into a Session, enforcing the session
// invariants. Any violation means the token is not trusted.
func (c *SessionClaims) session() (*Session, error) {
	role, ok := ParseRole(c.UserRole)
	if !ok {
		return nil, fmt.Errorf("unknown role %q", c.UserRole)
	}

	if c.IsPlatformAdmin != (role == RolePlatformAdmin) {
		return nil, fmt.Errorf("is_platform_admin does not match role %s", role)
	}

	s := &Session{
		UserID:   c.UserID(),
		UserName: c.UsuarioNome,
		Role:     role,
		Token: TokenInfo{
			ID:        c.RegisteredClaims.ID,
			IssuedAt:  c.IssuedAt(),
			ExpiresAt: c.Expires(),
		},
	}

	if c.WorkspaceID != nil {
		s.Workspace = &WorkspaceScope{
			ID:                  *c.WorkspaceID,
			Name:                c.WorkspaceName,
			MemberID:            c.MemberID,
			Permissions:         c.Member.Clone(),
			FamilyResponsibleID: c.FamilyResponsibleID,
		}
		if s.Workspace.Permissions == nil {
			s.Workspace.Permissions = PermissionSet{}
		}
	}

	if c.Impersonation != nil {
		s.Impersonation = &Impersonation{
			AdminID:   c.Impersonation.AdminID,
			AdminName: c.Impersonation.AdminName,
			StartedAt: time.Unix(c.Impersonation.StartedAt, 0).UTC(),
		}
		if s.Workspace != nil {
			// flags of an impersonated session are never taken from the token
			s.Workspace.Permissions = PermissionSet{}
		}
		if s.Workspace == nil || s.Workspace.MemberID == "" {
			return nil, fmt.Errorf("impersonation requires a target member")
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}
