package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var (
	_ MemberDirectory = (*Members)(nil)
	_ CredentialStore = (*Members)(nil)
)

// Members is the bun backed store for workspaces, their members and
// platform admins.
type Members struct {
	db         bun.IDB
	workspaces repository.Repository[*Workspace]
	now        func() time.Time
}

// NewMembersRepository returns a Members store over db.
func NewMembersRepository(db *bun.DB) *Members {
	return &Members{
		db:         db,
		workspaces: newWorkspacesRepository(db),
		now:        time.Now,
	}
}

func newWorkspacesRepository(db *bun.DB) repository.Repository[*Workspace] {
	return repository.NewRepository[*Workspace](db, repository.ModelHandlers[*Workspace]{
		NewRecord: func() *Workspace { return &Workspace{} },
		GetID: func(ws *Workspace) uuid.UUID {
			if ws == nil {
				return uuid.Nil
			}
			return ws.ID
		},
		SetID: func(ws *Workspace, id uuid.UUID) {
			if ws != nil {
				ws.ID = id
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
	})
}

// Migrate creates the tables used by the session layer.
func Migrate(ctx context.Context, db bun.IDB) error {
	models := []any{
		(*Workspace)(nil),
		(*WorkspaceMember)(nil),
		(*PlatformAdmin)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create table")
		}
	}

	return nil
}

func (r *Members) FindWorkspace(ctx context.Context, workspaceID string) (*Workspace, error) {
	meta := map[string]any{"workspace_id": workspaceID}

	id, err := uuid.Parse(strings.TrimSpace(workspaceID))
	if err != nil {
		return nil, withSource(ErrWorkspaceNotFound, err, meta)
	}

	record, err := r.workspaces.GetByID(ctx, id.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, withSource(ErrWorkspaceNotFound, err, meta)
		}
		return nil, notFoundOr(err, ErrWorkspaceNotFound, "failed to load workspace", meta)
	}

	return record, nil
}

func (r *Members) FindMember(ctx context.Context, workspaceID, memberID string) (*WorkspaceMember, error) {
	meta := map[string]any{"workspace_id": workspaceID, "member_id": memberID}

	wsID, err := uuid.Parse(strings.TrimSpace(workspaceID))
	if err != nil {
		return nil, withSource(ErrMemberNotFound, err, meta)
	}

	id, err := uuid.Parse(strings.TrimSpace(memberID))
	if err != nil {
		return nil, withSource(ErrMemberNotFound, err, meta)
	}

	record := &WorkspaceMember{}
	err = r.db.NewSelect().
		Model(record).
		Where("wm.id = ?", id).
		Where("wm.workspace_id = ?", wsID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err, ErrMemberNotFound, "failed to load workspace member", meta)
	}

	return record, nil
}

// FindWorkspaceOwner returns the oldest active master of the workspace.
func (r *Members) FindWorkspaceOwner(ctx context.Context, workspaceID string) (*WorkspaceMember, error) {
	meta := map[string]any{"workspace_id": workspaceID, "role": RoleMaster}

	wsID, err := uuid.Parse(strings.TrimSpace(workspaceID))
	if err != nil {
		return nil, withSource(ErrMemberNotFound, err, meta)
	}

	record := &WorkspaceMember{}
	err = r.db.NewSelect().
		Model(record).
		Where("wm.workspace_id = ?", wsID).
		Where("wm.user_role = ?", RoleMaster).
		Where("wm.active = ?", true).
		OrderExpr("wm.created_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err, ErrMemberNotFound, "failed to load workspace owner", meta)
	}

	return record, nil
}

func (r *Members) FindMemberByEmail(ctx context.Context, email string) (*WorkspaceMember, error) {
	record := &WorkspaceMember{}
	err := r.db.NewSelect().
		Model(record).
		Where("wm.email = ?", normalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err, ErrMemberNotFound, "failed to load workspace member", nil)
	}
	return record, nil
}

func (r *Members) FindPlatformAdminByEmail(ctx context.Context, email string) (*PlatformAdmin, error) {
	record := &PlatformAdmin{}
	err := r.db.NewSelect().
		Model(record).
		Where("pa.email = ?", normalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err, ErrPlatformAdminNotFound, "failed to load platform admin", nil)
	}
	return record, nil
}

func (r *Members) CreateWorkspace(ctx context.Context, record *Workspace) (*Workspace, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	created, err := r.workspaces.CreateTx(ctx, r.db, record)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "could not create workspace")
	}
	return created, nil
}

func (r *Members) CreateMember(ctx context.Context, record *WorkspaceMember) (*WorkspaceMember, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.Email = normalizeEmail(record.Email)
	if !record.Role.IsWorkspaceRole() {
		return nil, goerrors.New("member role must be a workspace role", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"role": record.Role})
	}
	if _, err := r.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "could not create workspace member")
	}
	return record, nil
}

func (r *Members) CreatePlatformAdmin(ctx context.Context, record *PlatformAdmin) (*PlatformAdmin, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.Email = normalizeEmail(record.Email)
	if _, err := r.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "could not create platform admin")
	}
	return record, nil
}

// UpdateMemberPermissions replaces the stored flags of a member.
func (r *Members) UpdateMemberPermissions(ctx context.Context, memberID uuid.UUID, ps PermissionSet) error {
	record := (&WorkspaceMember{ID: memberID}).SetPermissions(ps)
	now := r.now()
	record.UpdatedAt = &now

	_, err := r.db.NewUpdate().
		Model(record).
		Column(
			"can_estudantes", "can_pei", "can_paee", "can_pgi", "can_hub",
			"can_diario", "can_avaliacao", "can_gestao", "can_config", "updated_at",
		).
		WherePK().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update member permissions")
	}
	return nil
}

// SetMemberActive activates or deactivates a member.
func (r *Members) SetMemberActive(ctx context.Context, memberID uuid.UUID, active bool) error {
	_, err := r.db.NewUpdate().
		Model((*WorkspaceMember)(nil)).
		Set("active = ?", active).
		Set("updated_at = ?", r.now()).
		Where("id = ?", memberID).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update member status")
	}
	return nil
}

// SetWorkspaceActive activates or deactivates a workspace. Impersonated
// sessions into an inactive workspace stop resolving.
func (r *Members) SetWorkspaceActive(ctx context.Context, workspaceID uuid.UUID, active bool) error {
	_, err := r.db.NewUpdate().
		Model((*Workspace)(nil)).
		Set("active = ?", active).
		Set("updated_at = ?", r.now()).
		Where("id = ?", workspaceID).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update workspace status")
	}
	return nil
}

func (r *Members) RenameWorkspace(ctx context.Context, workspaceID uuid.UUID, name string) error {
	_, err := r.db.NewUpdate().
		Model((*Workspace)(nil)).
		Set("name = ?", strings.TrimSpace(name)).
		Set("updated_at = ?", r.now()).
		Where("id = ?", workspaceID).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to rename workspace")
	}
	return nil
}

func (r *Members) TrackMemberLogin(ctx context.Context, member *WorkspaceMember, success bool) error {
	now := r.now()
	q := r.db.NewUpdate().Model((*WorkspaceMember)(nil)).Where("id = ?", member.ID)
	if success {
		q = q.Set("login_attempts = 0").Set("login_attempt_at = NULL").Set("loggedin_at = ?", now)
		member.LoginAttempts = 0
		member.LoginAttemptAt = nil
		member.LoggedInAt = &now
	} else {
		q = q.Set("login_attempts = login_attempts + 1").Set("login_attempt_at = ?", now)
		member.LoginAttempts++
		member.LoginAttemptAt = &now
	}

	if _, err := q.Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to track member login")
	}
	return nil
}

func (r *Members) TrackAdminLogin(ctx context.Context, admin *PlatformAdmin, success bool) error {
	now := r.now()
	q := r.db.NewUpdate().Model((*PlatformAdmin)(nil)).Where("id = ?", admin.ID)
	if success {
		q = q.Set("login_attempts = 0").Set("login_attempt_at = NULL").Set("loggedin_at = ?", now)
		admin.LoginAttempts = 0
		admin.LoginAttemptAt = nil
		admin.LoggedInAt = &now
	} else {
		q = q.Set("login_attempts = login_attempts + 1").Set("login_attempt_at = ?", now)
		admin.LoginAttempts++
		admin.LoginAttemptAt = &now
	}

	if _, err := q.Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to track admin login")
	}
	return nil
}

func notFoundOr(err error, notFound *goerrors.Error, msg string, meta map[string]any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return withSource(notFound, err, meta)
	}
	wrapped := goerrors.Wrap(err, goerrors.CategoryInternal, msg)
	if len(meta) > 0 {
		wrapped = wrapped.WithMetadata(meta)
	}
	return wrapped
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
