package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-omnisfera"
)

func newStore(t *testing.T, opts ...auth.SessionStoreOption) *auth.SessionStore {
	t.Helper()
	opts = append([]auth.SessionStoreOption{auth.WithSessionLogger(auth.NopLogger())}, opts...)
	return auth.NewSessionStore(newTokenService(t, testOptions()), opts...)
}

func TestSessionStore_Inspect(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	session, state, err := store.Inspect(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Equal(t, auth.StateAbsent, state)

	session, state, err = store.Inspect(ctx, "garbage")
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Equal(t, auth.StateInvalid, state)

	original := memberSession(auth.RoleProfessor, auth.PermissionSet{auth.CanPEI: true})
	token, err := store.Create(original)
	require.NoError(t, err)

	session, state, err = store.Inspect(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, auth.StateVerified, state)
	assert.Equal(t, original, stripToken(session))

	resolved, err := store.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, original, stripToken(resolved))
}

func TestSessionStore_ForeignTokenResolvesToNothing(t *testing.T) {
	other := testOptions()
	other.SigningKey = "another-secret-with-at-least-32-bytes"
	foreign, err := newTokenService(t, other).Sign(memberSession(auth.RoleMaster, auth.PermissionSet{}))
	require.NoError(t, err)

	session, err := newStore(t).Resolve(context.Background(), foreign)
	assert.NoError(t, err)
	assert.Nil(t, session)
}

func TestSessionStore_Revocation(t *testing.T) {
	ctx := context.Background()

	t.Run("revoked token is invalid", func(t *testing.T) {
		revocations := new(MockRevocationStore)
		store := newStore(t, auth.WithRevocationStore(revocations))

		token, err := store.Create(memberSession(auth.RoleMaster, auth.PermissionSet{}))
		require.NoError(t, err)

		revocations.On("IsRevoked", mock.Anything, mock.AnythingOfType("string")).Return(true, nil).Once()

		session, state, err := store.Inspect(ctx, token)
		require.NoError(t, err)
		assert.Nil(t, session)
		assert.Equal(t, auth.StateInvalid, state)
		revocations.AssertExpectations(t)
	})

	t.Run("store failure is returned", func(t *testing.T) {
		revocations := new(MockRevocationStore)
		store := newStore(t, auth.WithRevocationStore(revocations))

		token, err := store.Create(memberSession(auth.RoleMaster, auth.PermissionSet{}))
		require.NoError(t, err)

		revocations.On("IsRevoked", mock.Anything, mock.Anything).Return(false, errors.New("connection refused"))

		session, err := store.Resolve(ctx, token)
		assert.Error(t, err)
		assert.Nil(t, session)
	})
}

func TestSessionStore_Delete(t *testing.T) {
	ctx := context.Background()
	revocations := new(MockRevocationStore)
	store := newStore(t, auth.WithRevocationStore(revocations))

	token, err := store.Create(memberSession(auth.RoleMaster, auth.PermissionSet{}))
	require.NoError(t, err)

	revocations.On("IsRevoked", mock.Anything, mock.Anything).Return(false, nil)

	issued, err := store.Resolve(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, issued)

	revocations.On("Revoke", mock.Anything, issued.Token.ID, mock.AnythingOfType("time.Time")).Return(true, nil).Once()

	deleted, err := store.Delete(ctx, token)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.Delete(ctx, "")
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = store.Delete(ctx, "garbage")
	require.NoError(t, err)
	assert.False(t, deleted)

	revocations.AssertNumberOfCalls(t, "Revoke", 1)
}

func TestSessionStore_DeleteWithoutRevocationStore(t *testing.T) {
	store := newStore(t)

	token, err := store.Create(memberSession(auth.RoleMaster, auth.PermissionSet{}))
	require.NoError(t, err)

	deleted, err := store.Delete(context.Background(), token)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestSessionStore_RedisRevocation(t *testing.T) {
	ctx := context.Background()
	redisStore, _ := newRedisStore(t)
	store := newStore(t, auth.WithRevocationStore(redisStore))

	token, err := store.Create(memberSession(auth.RoleProfessor, auth.PermissionSet{}))
	require.NoError(t, err)

	deleted, err := store.Delete(ctx, token)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.Delete(ctx, token)
	require.NoError(t, err)
	assert.False(t, deleted, "delete is idempotent")

	session, state, err := store.Inspect(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Equal(t, auth.StateInvalid, state)
}

func impersonatedSession(fx *fixture, member *auth.WorkspaceMember) *auth.Session {
	s := auth.SessionForMember(fx.workspace, member)
	s.Impersonation = &auth.Impersonation{
		AdminID:   fx.admin.ID.String(),
		AdminName: fx.admin.Nome,
		StartedAt: time.Now().UTC().Truncate(time.Second),
	}
	return s
}

func TestSessionStore_ImpersonatedFlagsAreLive(t *testing.T) {
	ctx := context.Background()
	fx := seedFixture(t, setupDB(t))
	store := newStore(t, auth.WithMemberDirectory(fx.members))

	token, err := store.Create(impersonatedSession(fx, fx.professor))
	require.NoError(t, err)

	session, err := store.Resolve(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.True(t, session.IsImpersonating())
	assert.True(t, auth.Allowed(session, auth.CanEstudantes))
	assert.False(t, auth.Allowed(session, auth.CanPEI))

	require.NoError(t, fx.members.UpdateMemberPermissions(ctx, fx.professor.ID, auth.PermissionSet{auth.CanPEI: true}))

	session, err = store.Resolve(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.False(t, auth.Allowed(session, auth.CanEstudantes))
	assert.True(t, auth.Allowed(session, auth.CanPEI))

	require.NoError(t, fx.members.SetMemberActive(ctx, fx.professor.ID, false))

	session, state, err := store.Inspect(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Equal(t, auth.StateInvalid, state)
}

func TestSessionStore_ImpersonatedWorkspaceIsLive(t *testing.T) {
	ctx := context.Background()
	fx := seedFixture(t, setupDB(t))
	store := newStore(t, auth.WithMemberDirectory(fx.members))

	token, err := store.Create(impersonatedSession(fx, fx.professor))
	require.NoError(t, err)

	require.NoError(t, fx.members.RenameWorkspace(ctx, fx.workspace.ID, "Escola Municipal"))

	session, err := store.Resolve(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "Escola Municipal", session.Workspace.Name)

	require.NoError(t, fx.members.SetWorkspaceActive(ctx, fx.workspace.ID, false))

	session, state, err := store.Inspect(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Equal(t, auth.StateInvalid, state)
}

func TestSessionStore_ImpersonationNeedsDirectory(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	s := memberSession(auth.RoleProfessor, auth.PermissionSet{})
	s.Impersonation = &auth.Impersonation{AdminID: uuid.NewString(), AdminName: "Admin"}

	token, err := store.Create(s)
	require.NoError(t, err)

	session, state, err := store.Inspect(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Equal(t, auth.StateInvalid, state)
}

func TestSessionStore_ImpersonatedMemberGone(t *testing.T) {
	ctx := context.Background()
	directory := new(MockDirectory)
	store := newStore(t, auth.WithMemberDirectory(directory))

	s := memberSession(auth.RoleProfessor, auth.PermissionSet{})
	s.Impersonation = &auth.Impersonation{AdminID: uuid.NewString(), AdminName: "Admin"}

	token, err := store.Create(s)
	require.NoError(t, err)

	directory.On("FindMember", mock.Anything, s.Workspace.ID, s.Workspace.MemberID).
		Return(nil, auth.ErrMemberNotFound).Once()

	session, state, err := store.Inspect(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Equal(t, auth.StateInvalid, state)

	directory.On("FindMember", mock.Anything, s.Workspace.ID, s.Workspace.MemberID).
		Return(nil, errors.New("database is locked")).Once()

	_, _, err = store.Inspect(ctx, token)
	assert.Error(t, err)

	member := &auth.WorkspaceMember{Nome: "Professor", Role: auth.RoleProfessor, Active: true}
	directory.On("FindMember", mock.Anything, s.Workspace.ID, s.Workspace.MemberID).
		Return(member, nil).Once()
	directory.On("FindWorkspace", mock.Anything, s.Workspace.ID).
		Return(nil, auth.ErrWorkspaceNotFound).Once()

	session, state, err = store.Inspect(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Equal(t, auth.StateInvalid, state)
	directory.AssertExpectations(t)
}
