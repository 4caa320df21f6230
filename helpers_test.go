package auth_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/goliatone/go-omnisfera"
)

const testSecret = "test-secret-with-at-least-32-bytes!!"

func testOptions() *auth.Options {
	opts := auth.DefaultOptions()
	opts.SigningKey = testSecret
	return opts
}

func newTokenService(t *testing.T, opts *auth.Options, extra ...auth.TokenServiceOption) *auth.TokenServiceImpl {
	t.Helper()
	extra = append([]auth.TokenServiceOption{auth.WithTokenLogger(auth.NopLogger())}, extra...)
	ts, err := auth.NewTokenService(opts, extra...)
	require.NoError(t, err)
	return ts
}

func memberSession(role auth.Role, perms auth.PermissionSet) *auth.Session {
	s := &auth.Session{
		UserID:   uuid.NewString(),
		UserName: "Maria Silva",
		Role:     role,
		Workspace: &auth.WorkspaceScope{
			ID:          uuid.NewString(),
			Name:        "Escola Estadual",
			MemberID:    uuid.NewString(),
			Permissions: perms,
		},
	}
	if role == auth.RoleFamily {
		s.Workspace.FamilyResponsibleID = uuid.NewString()
	}
	return s
}

func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, auth.Migrate(context.Background(), db))
	return db
}

type fixture struct {
	members   *auth.Members
	workspace *auth.Workspace
	master    *auth.WorkspaceMember
	professor *auth.WorkspaceMember
	admin     *auth.PlatformAdmin
	password  string
}

// seedFixture creates one active workspace with a master, a professor
// holding only can_estudantes and a platform admin. All share one password.
func seedFixture(t *testing.T, db *bun.DB) *fixture {
	t.Helper()
	ctx := context.Background()

	password := "senha-segura-123"
	hash, err := auth.HashPasswordWithCost(password, 4)
	require.NoError(t, err)

	members := auth.NewMembersRepository(db)

	ws, err := members.CreateWorkspace(ctx, &auth.Workspace{Name: "Escola Estadual", Active: true})
	require.NoError(t, err)

	master := (&auth.WorkspaceMember{
		WorkspaceID:  ws.ID,
		Nome:         "Diretora Ana",
		Email:        "ana@escola.test",
		PasswordHash: hash,
		Role:         auth.RoleMaster,
		Active:       true,
	}).SetPermissions(auth.PermissionSet{
		auth.CanEstudantes: true,
		auth.CanPEI:        true,
		auth.CanConfig:     true,
	})
	_, err = members.CreateMember(ctx, master)
	require.NoError(t, err)

	professor := (&auth.WorkspaceMember{
		WorkspaceID:  ws.ID,
		Nome:         "Professor Joao",
		Email:        "joao@escola.test",
		PasswordHash: hash,
		Role:         auth.RoleProfessor,
		Active:       true,
	}).SetPermissions(auth.PermissionSet{auth.CanEstudantes: true})
	_, err = members.CreateMember(ctx, professor)
	require.NoError(t, err)

	admin, err := members.CreatePlatformAdmin(ctx, &auth.PlatformAdmin{
		Nome:         "Admin Global",
		Email:        "admin@omnisfera.test",
		PasswordHash: hash,
		Active:       true,
	})
	require.NoError(t, err)

	return &fixture{
		members:   members,
		workspace: ws,
		master:    master,
		professor: professor,
		admin:     admin,
		password:  password,
	}
}

// MockRevocationStore implements auth.RevocationStore
type MockRevocationStore struct {
	mock.Mock
}

func (m *MockRevocationStore) Revoke(ctx context.Context, tokenID string, until time.Time) (bool, error) {
	args := m.Called(ctx, tokenID, until)
	return args.Bool(0), args.Error(1)
}

func (m *MockRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}

// MockDirectory implements auth.MemberDirectory
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) FindWorkspace(ctx context.Context, workspaceID string) (*auth.Workspace, error) {
	args := m.Called(ctx, workspaceID)
	ws, _ := args.Get(0).(*auth.Workspace)
	return ws, args.Error(1)
}

func (m *MockDirectory) FindMember(ctx context.Context, workspaceID, memberID string) (*auth.WorkspaceMember, error) {
	args := m.Called(ctx, workspaceID, memberID)
	member, _ := args.Get(0).(*auth.WorkspaceMember)
	return member, args.Error(1)
}

func (m *MockDirectory) FindWorkspaceOwner(ctx context.Context, workspaceID string) (*auth.WorkspaceMember, error) {
	args := m.Called(ctx, workspaceID)
	member, _ := args.Get(0).(*auth.WorkspaceMember)
	return member, args.Error(1)
}

func stripToken(s *auth.Session) *auth.Session {
	out := s.Clone()
	out.Token = auth.TokenInfo{}
	return out
}
