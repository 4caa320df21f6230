package auth_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-omnisfera"
)

func TestMembers_Lookups(t *testing.T) {
	ctx := context.Background()
	fx := seedFixture(t, setupDB(t))

	ws, err := fx.members.FindWorkspace(ctx, fx.workspace.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Escola Estadual", ws.Name)
	assert.True(t, ws.Active)

	member, err := fx.members.FindMember(ctx, fx.workspace.ID.String(), fx.professor.ID.String())
	require.NoError(t, err)
	assert.Equal(t, auth.RoleProfessor, member.Role)
	assert.Equal(t, auth.PermissionSet{
		auth.CanEstudantes: true,
		auth.CanPEI:        false,
		auth.CanPAEE:       false,
		auth.CanPGI:        false,
		auth.CanHub:        false,
		auth.CanDiario:     false,
		auth.CanAvaliacao:  false,
		auth.CanGestao:     false,
		auth.CanConfig:     false,
	}, member.Permissions())

	owner, err := fx.members.FindWorkspaceOwner(ctx, fx.workspace.ID.String())
	require.NoError(t, err)
	assert.Equal(t, fx.master.ID, owner.ID)

	byEmail, err := fx.members.FindMemberByEmail(ctx, "  JOAO@escola.test ")
	require.NoError(t, err)
	assert.Equal(t, fx.professor.ID, byEmail.ID)

	admin, err := fx.members.FindPlatformAdminByEmail(ctx, "Admin@Omnisfera.test")
	require.NoError(t, err)
	assert.Equal(t, fx.admin.ID, admin.ID)
}

func TestMembers_NotFound(t *testing.T) {
	ctx := context.Background()
	fx := seedFixture(t, setupDB(t))

	_, err := fx.members.FindWorkspace(ctx, uuid.NewString())
	assert.True(t, auth.IsNotFound(err), "got %v", err)

	_, err = fx.members.FindWorkspace(ctx, "not-a-uuid")
	assert.True(t, auth.IsNotFound(err), "got %v", err)

	// member exists but belongs to another workspace
	_, err = fx.members.FindMember(ctx, uuid.NewString(), fx.professor.ID.String())
	assert.True(t, auth.IsNotFound(err), "got %v", err)

	_, err = fx.members.FindMemberByEmail(ctx, "nobody@escola.test")
	assert.True(t, auth.IsNotFound(err), "got %v", err)

	_, err = fx.members.FindPlatformAdminByEmail(ctx, "nobody@omnisfera.test")
	assert.True(t, auth.IsNotFound(err), "got %v", err)
}

func TestMembers_OwnerSkipsInactiveMasters(t *testing.T) {
	ctx := context.Background()
	fx := seedFixture(t, setupDB(t))

	require.NoError(t, fx.members.SetMemberActive(ctx, fx.master.ID, false))

	_, err := fx.members.FindWorkspaceOwner(ctx, fx.workspace.ID.String())
	assert.True(t, auth.IsNotFound(err), "got %v", err)
}

func TestMembers_UpdatePermissions(t *testing.T) {
	ctx := context.Background()
	fx := seedFixture(t, setupDB(t))

	perms := auth.PermissionSet{auth.CanDiario: true, auth.CanGestao: true}
	perms[auth.Permission("can_root")] = true

	err := fx.members.UpdateMemberPermissions(ctx, fx.professor.ID, perms)
	require.NoError(t, err)

	member, err := fx.members.FindMember(ctx, fx.workspace.ID.String(), fx.professor.ID.String())
	require.NoError(t, err)
	assert.Equal(t, []auth.Permission{auth.CanDiario, auth.CanGestao}, member.Permissions().Granted())
	assert.Equal(t, "Professor Joao", member.Nome)
}

func TestMembers_CreateMemberRejectsPlatformRole(t *testing.T) {
	ctx := context.Background()
	fx := seedFixture(t, setupDB(t))

	_, err := fx.members.CreateMember(ctx, &auth.WorkspaceMember{
		WorkspaceID: fx.workspace.ID,
		Nome:        "Intruso",
		Email:       "intruso@escola.test",
		Role:        auth.RolePlatformAdmin,
		Active:      true,
	})
	assert.Error(t, err)
}

func TestMembers_TrackLogin(t *testing.T) {
	ctx := context.Background()
	fx := seedFixture(t, setupDB(t))

	require.NoError(t, fx.members.TrackMemberLogin(ctx, fx.professor, false))
	require.NoError(t, fx.members.TrackMemberLogin(ctx, fx.professor, false))

	stored, err := fx.members.FindMemberByEmail(ctx, fx.professor.Email)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.LoginAttempts)
	assert.NotNil(t, stored.LoginAttemptAt)

	require.NoError(t, fx.members.TrackMemberLogin(ctx, stored, true))

	stored, err = fx.members.FindMemberByEmail(ctx, fx.professor.Email)
	require.NoError(t, err)
	assert.Zero(t, stored.LoginAttempts)
	assert.Nil(t, stored.LoginAttemptAt)
	assert.NotNil(t, stored.LoggedInAt)

	require.NoError(t, fx.members.TrackAdminLogin(ctx, fx.admin, false))
	admin, err := fx.members.FindPlatformAdminByEmail(ctx, fx.admin.Email)
	require.NoError(t, err)
	assert.Equal(t, 1, admin.LoginAttempts)
}

func TestSessionForMember(t *testing.T) {
	fx := seedFixture(t, setupDB(t))

	s := auth.SessionForMember(fx.workspace, fx.master)
	require.NoError(t, s.Validate())
	assert.Equal(t, fx.master.ID.String(), s.UserID)
	assert.Equal(t, fx.workspace.ID.String(), s.Workspace.ID)
	assert.Equal(t, fx.master.ID.String(), s.Workspace.MemberID)
	assert.True(t, s.Workspace.Permissions.Has(auth.CanConfig))

	admin := auth.SessionForAdmin(fx.admin)
	assert.True(t, admin.IsPlatformAdmin())
	assert.Equal(t, "Admin Global", admin.UserName)
}
