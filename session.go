package auth

import (
	"fmt"
	"time"
)

// Session is the authenticated principal. A session is either a platform
// principal (Workspace == nil) or a workspace principal, never both.
type Session struct {
	UserID        string          `json:"user_id"`
	UserName      string          `json:"usuario_nome"`
	Role          Role            `json:"user_role"`
	Workspace     *WorkspaceScope `json:"workspace,omitempty"`
	Impersonation *Impersonation  `json:"impersonation,omitempty"`
	Token         TokenInfo       `json:"-"`
}

// WorkspaceScope carries the tenant scoped part of a session.
type WorkspaceScope struct {
	ID                  string        `json:"workspace_id"`
	Name                string        `json:"workspace_name"`
	MemberID            string        `json:"member_id,omitempty"`
	Permissions         PermissionSet `json:"member"`
	FamilyResponsibleID string        `json:"family_responsible_id,omitempty"`
}

// Impersonation records the real admin behind an assumed identity.
type Impersonation struct {
	AdminID   string    `json:"admin_id"`
	AdminName string    `json:"admin_name"`
	StartedAt time.Time `json:"started_at"`
}

// TokenInfo is filled when a session is decoded from a token.
type TokenInfo struct {
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// NewPlatformSession builds a platform admin session.
func NewPlatformSession(adminID, name string) *Session {
	return &Session{
		UserID:   adminID,
		UserName: name,
		Role:     RolePlatformAdmin,
	}
}

// IsPlatformAdmin is true for platform principals only. Impersonating
// sessions are workspace principals and return false.
func (s *Session) IsPlatformAdmin() bool {
	return s != nil && s.Role == RolePlatformAdmin && s.Workspace == nil
}

// IsImpersonating reports whether an admin assumed this identity.
func (s *Session) IsImpersonating() bool {
	return s != nil && s.Impersonation != nil
}

// WorkspaceID returns the tenant id or empty for platform principals.
func (s *Session) WorkspaceID() string {
	if s == nil || s.Workspace == nil {
		return ""
	}
	return s.Workspace.ID
}

// Permissions returns the member flags, nil for platform principals.
func (s *Session) Permissions() PermissionSet {
	if s == nil || s.Workspace == nil {
		return nil
	}
	return s.Workspace.Permissions
}

// Validate enforces the platform XOR workspace invariant.
func (s *Session) Validate() error {
	if s == nil {
		return fmt.Errorf("session is nil")
	}

	if !s.Role.IsValid() {
		return fmt.Errorf("unknown role %q", s.Role)
	}

	if s.UserID == "" {
		return fmt.Errorf("session has no user id")
	}

	if s.Role == RolePlatformAdmin {
		if s.Workspace != nil {
			return fmt.Errorf("platform admin session can not be workspace scoped")
		}
		if s.Impersonation != nil {
			return fmt.Errorf("platform admin session can not carry impersonation")
		}
		return nil
	}

	if s.Workspace == nil || s.Workspace.ID == "" {
		return fmt.Errorf("role %s requires a workspace", s.Role)
	}

	if s.Role == RoleFamily && s.Workspace.FamilyResponsibleID == "" {
		return fmt.Errorf("family session requires family_responsible_id")
	}

	if s.Impersonation != nil && s.Impersonation.AdminID == "" {
		return fmt.Errorf("impersonation without admin id")
	}

	return nil
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Workspace != nil {
		ws := *s.Workspace
		ws.Permissions = s.Workspace.Permissions.Clone()
		out.Workspace = &ws
	}
	if s.Impersonation != nil {
		imp := *s.Impersonation
		out.Impersonation = &imp
	}
	return &out
}

func (s Session) String() string {
	ws := "<platform>"
	if s.Workspace != nil {
		ws = s.Workspace.ID
	}
	imp := ""
	if s.Impersonation != nil {
		imp = " impersonated_by=" + s.Impersonation.AdminID
	}
	return fmt.Sprintf("user=%s role=%s workspace=%s%s", s.UserID, s.Role, ws, imp)
}
