package auth

// RequireAuth passes for any session that is workspace scoped or belongs to
// a platform admin.
func RequireAuth(s *Session) error {
	if s == nil {
		return ErrUnauthorized
	}
	if s.IsPlatformAdmin() {
		return nil
	}
	if s.Workspace != nil && s.Workspace.ID != "" {
		return nil
	}
	return ErrUnauthorized
}

// RequirePermission passes when the session may use the permission. Platform
// admins bypass flag checks. Members need the flag set to true; unknown
// permissions and missing sessions are Forbidden.
func RequirePermission(s *Session, p Permission) error {
	if s == nil {
		return withSource(ErrForbidden, nil, map[string]any{"permission": string(p)})
	}

	if s.IsPlatformAdmin() {
		return nil
	}

	if s.Workspace == nil || s.Workspace.ID == "" || !s.Workspace.Permissions.Has(p) {
		return withSource(ErrForbidden, nil, map[string]any{"permission": string(p)})
	}

	return nil
}

// RequireRole passes when the session role is one of roles.
func RequireRole(s *Session, roles ...Role) error {
	if err := RequireAuth(s); err != nil {
		return err
	}
	for _, r := range roles {
		if s.Role == r {
			return nil
		}
	}
	return withSource(ErrForbidden, nil, map[string]any{"role": string(s.Role)})
}

// RequireWorkspace passes when the session belongs to workspaceID. Platform
// admins can reach every workspace.
func RequireWorkspace(s *Session, workspaceID string) error {
	if err := RequireAuth(s); err != nil {
		return err
	}
	if s.IsPlatformAdmin() {
		return nil
	}
	if workspaceID == "" || s.Workspace.ID != workspaceID {
		return withSource(ErrForbidden, nil, map[string]any{"workspace_id": workspaceID})
	}
	return nil
}

// RequirePlatformAdmin passes for platform principals only.
func RequirePlatformAdmin(s *Session) error {
	if err := RequireAuth(s); err != nil {
		return err
	}
	if !s.IsPlatformAdmin() {
		return ErrForbidden
	}
	return nil
}

// Allowed is the boolean form of RequirePermission.
func Allowed(s *Session, p Permission) bool {
	return RequirePermission(s, p) == nil
}
