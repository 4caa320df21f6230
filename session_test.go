package auth_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-omnisfera"
)

func TestSession_Validate(t *testing.T) {
	tests := []struct {
		name    string
		session func() *auth.Session
		wantErr bool
	}{
		{
			name:    "platform admin",
			session: func() *auth.Session { return auth.NewPlatformSession(uuid.NewString(), "Admin") },
		},
		{
			name: "workspace member",
			session: func() *auth.Session {
				return memberSession(auth.RoleMaster, auth.PermissionSet{})
			},
		},
		{
			name: "family with responsible",
			session: func() *auth.Session {
				return memberSession(auth.RoleFamily, auth.PermissionSet{})
			},
		},
		{
			name: "family without responsible",
			session: func() *auth.Session {
				s := memberSession(auth.RoleFamily, auth.PermissionSet{})
				s.Workspace.FamilyResponsibleID = ""
				return s
			},
			wantErr: true,
		},
		{
			name: "platform admin inside a workspace",
			session: func() *auth.Session {
				s := auth.NewPlatformSession(uuid.NewString(), "Admin")
				s.Workspace = &auth.WorkspaceScope{ID: uuid.NewString()}
				return s
			},
			wantErr: true,
		},
		{
			name: "platform admin impersonating itself",
			session: func() *auth.Session {
				s := auth.NewPlatformSession(uuid.NewString(), "Admin")
				s.Impersonation = &auth.Impersonation{AdminID: s.UserID}
				return s
			},
			wantErr: true,
		},
		{
			name: "member without workspace",
			session: func() *auth.Session {
				return &auth.Session{UserID: uuid.NewString(), Role: auth.RoleProfessor}
			},
			wantErr: true,
		},
		{
			name: "unknown role",
			session: func() *auth.Session {
				return memberSession(auth.Role("diretor"), auth.PermissionSet{})
			},
			wantErr: true,
		},
		{
			name: "missing user id",
			session: func() *auth.Session {
				s := memberSession(auth.RoleProfessor, auth.PermissionSet{})
				s.UserID = ""
				return s
			},
			wantErr: true,
		},
		{
			name: "impersonation without admin id",
			session: func() *auth.Session {
				s := memberSession(auth.RoleProfessor, auth.PermissionSet{})
				s.Impersonation = &auth.Impersonation{}
				return s
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.session().Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	var nilSession *auth.Session
	assert.Error(t, nilSession.Validate())
}

func TestSession_Clone(t *testing.T) {
	s := memberSession(auth.RoleMaster, auth.PermissionSet{auth.CanPEI: true})
	s.Impersonation = &auth.Impersonation{AdminID: uuid.NewString(), StartedAt: time.Now()}

	c := s.Clone()
	require.Equal(t, s, c)

	c.Workspace.Permissions[auth.CanPEI] = false
	c.Impersonation.AdminID = "other"

	assert.True(t, s.Workspace.Permissions[auth.CanPEI])
	assert.NotEqual(t, "other", s.Impersonation.AdminID)

	var nilSession *auth.Session
	assert.Nil(t, nilSession.Clone())
}

func TestSession_Accessors(t *testing.T) {
	admin := auth.NewPlatformSession("admin-1", "Admin")
	assert.True(t, admin.IsPlatformAdmin())
	assert.False(t, admin.IsImpersonating())
	assert.Empty(t, admin.WorkspaceID())
	assert.Nil(t, admin.Permissions())

	member := memberSession(auth.RoleProfessor, auth.PermissionSet{auth.CanHub: true})
	assert.False(t, member.IsPlatformAdmin())
	assert.Equal(t, member.Workspace.ID, member.WorkspaceID())
	assert.True(t, member.Permissions().Has(auth.CanHub))
	assert.Contains(t, member.String(), member.Workspace.ID)
}

func TestPermissionSet_UnmarshalJSON(t *testing.T) {
	var ps auth.PermissionSet
	err := json.Unmarshal([]byte(`{
		"can_pei": true,
		"can_hub": false,
		"can_config": "true",
		"can_everything": true
	}`), &ps)
	require.NoError(t, err)

	assert.Equal(t, auth.PermissionSet{auth.CanPEI: true, auth.CanHub: false}, ps)
	assert.True(t, ps.Has(auth.CanPEI))
	assert.False(t, ps.Has(auth.CanConfig))
	assert.False(t, ps.Has(auth.Permission("can_everything")))
	assert.Equal(t, []auth.Permission{auth.CanPEI}, ps.Granted())
}

func TestParsePermissionAndRole(t *testing.T) {
	p, ok := auth.ParsePermission("can_avaliacao")
	assert.True(t, ok)
	assert.Equal(t, auth.CanAvaliacao, p)

	_, ok = auth.ParsePermission("can_admin")
	assert.False(t, ok)

	assert.Len(t, auth.AllPermissions(), 9)

	r, ok := auth.ParseRole("coordenador")
	assert.True(t, ok)
	assert.Equal(t, auth.RoleCoordenador, r)
	assert.True(t, r.IsWorkspaceRole())
	assert.False(t, auth.RolePlatformAdmin.IsWorkspaceRole())

	_, ok = auth.ParseRole("root")
	assert.False(t, ok)
}
