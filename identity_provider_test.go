package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-omnisfera"
)

func newIdentity(t *testing.T, now func() time.Time) (*auth.IdentityProvider, *fixture, *recordedEvents) {
	t.Helper()
	fx := seedFixture(t, setupDB(t))
	events := &recordedEvents{}
	opts := []auth.IdentityProviderOption{
		auth.WithIdentityLogger(auth.NopLogger()),
		auth.WithIdentityActivitySink(events.sink()),
	}
	if now != nil {
		opts = append(opts, auth.WithIdentityClock(now))
	}
	return auth.NewIdentityProvider(fx.members, opts...), fx, events
}

func TestIdentityProvider_VerifyWorkspaceMember(t *testing.T) {
	ctx := context.Background()
	identity, fx, events := newIdentity(t, nil)

	session, err := identity.VerifyWorkspaceMember(ctx, "  JOAO@escola.test ", fx.password)
	require.NoError(t, err)

	assert.Equal(t, fx.professor.ID.String(), session.UserID)
	assert.Equal(t, "Professor Joao", session.UserName)
	assert.Equal(t, auth.RoleProfessor, session.Role)
	assert.Equal(t, fx.workspace.ID.String(), session.WorkspaceID())
	assert.Equal(t, "Escola Estadual", session.Workspace.Name)
	assert.True(t, session.Workspace.Permissions.Has(auth.CanEstudantes))
	assert.False(t, session.Workspace.Permissions.Has(auth.CanPEI))
	assert.Nil(t, session.Impersonation)

	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventLoginSuccess}, events.types())
}

func TestIdentityProvider_RejectsWorkspaceMember(t *testing.T) {
	ctx := context.Background()
	identity, fx, _ := newIdentity(t, nil)

	t.Run("wrong password", func(t *testing.T) {
		_, err := identity.VerifyWorkspaceMember(ctx, "ana@escola.test", "nope")
		assert.True(t, auth.IsInvalidCredentials(err))

		member, err := fx.members.FindMemberByEmail(ctx, "ana@escola.test")
		require.NoError(t, err)
		assert.Equal(t, 1, member.LoginAttempts)
		assert.NotNil(t, member.LoginAttemptAt)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := identity.VerifyWorkspaceMember(ctx, "ghost@escola.test", fx.password)
		assert.True(t, auth.IsInvalidCredentials(err))
	})

	t.Run("admin email is not a member", func(t *testing.T) {
		_, err := identity.VerifyWorkspaceMember(ctx, "admin@omnisfera.test", fx.password)
		assert.True(t, auth.IsInvalidCredentials(err))
	})

	t.Run("inactive member", func(t *testing.T) {
		require.NoError(t, fx.members.SetMemberActive(ctx, fx.professor.ID, false))
		_, err := identity.VerifyWorkspaceMember(ctx, "joao@escola.test", fx.password)
		assert.True(t, auth.IsInactiveAccount(err))
	})
}

func TestIdentityProvider_SuccessResetsAttempts(t *testing.T) {
	ctx := context.Background()
	identity, fx, _ := newIdentity(t, nil)

	_, err := identity.VerifyWorkspaceMember(ctx, "ana@escola.test", "nope")
	require.Error(t, err)

	_, err = identity.VerifyWorkspaceMember(ctx, "ana@escola.test", fx.password)
	require.NoError(t, err)

	member, err := fx.members.FindMemberByEmail(ctx, "ana@escola.test")
	require.NoError(t, err)
	assert.Zero(t, member.LoginAttempts)
	assert.Nil(t, member.LoginAttemptAt)
	assert.NotNil(t, member.LoggedInAt)
}

func TestIdentityProvider_CoolDown(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	identity, fx, _ := newIdentity(t, func() time.Time { return now })

	for i := 0; i < auth.MaxLoginAttempts; i++ {
		_, err := identity.VerifyWorkspaceMember(ctx, "ana@escola.test", "nope")
		require.True(t, auth.IsInvalidCredentials(err), "attempt %d", i+1)
	}

	_, err := identity.VerifyWorkspaceMember(ctx, "ana@escola.test", fx.password)
	assert.True(t, auth.IsTooManyLoginAttempts(err))

	now = now.Add(auth.CoolDownPeriod + time.Minute)

	session, err := identity.VerifyWorkspaceMember(ctx, "ana@escola.test", fx.password)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleMaster, session.Role)
}

func TestIdentityProvider_VerifyPlatformAdmin(t *testing.T) {
	ctx := context.Background()
	identity, fx, events := newIdentity(t, nil)

	session, err := identity.VerifyPlatformAdmin(ctx, "admin@omnisfera.test", fx.password)
	require.NoError(t, err)
	assert.True(t, session.IsPlatformAdmin())
	assert.Nil(t, session.Workspace)
	assert.Equal(t, fx.admin.ID.String(), session.UserID)

	_, err = identity.VerifyPlatformAdmin(ctx, "admin@omnisfera.test", "nope")
	assert.True(t, auth.IsInvalidCredentials(err))

	_, err = identity.VerifyPlatformAdmin(ctx, "ana@escola.test", fx.password)
	assert.True(t, auth.IsInvalidCredentials(err), "members can not use the admin login")

	assert.Equal(t, []auth.ActivityEventType{
		auth.ActivityEventLoginSuccess,
		auth.ActivityEventLoginFailure,
		auth.ActivityEventLoginFailure,
	}, events.types())
}
