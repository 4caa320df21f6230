package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Workspace is a tenant (school).
type Workspace struct {
	bun.BaseModel `bun:"table:workspaces,alias:ws"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Name          string     `bun:"name,notnull" json:"name"`
	Active        bool       `bun:"active,notnull" json:"active"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// WorkspaceMember is a user inside a workspace. Each permission flag is a
// column.
type WorkspaceMember struct {
	bun.BaseModel       `bun:"table:workspace_members,alias:wm"`
	ID                  uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	WorkspaceID         uuid.UUID  `bun:"workspace_id,notnull,type:uuid" json:"workspace_id"`
	Nome                string     `bun:"nome,notnull" json:"nome"`
	Email               string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash        string     `bun:"password_hash" json:"-"`
	Role                Role       `bun:"user_role,notnull" json:"user_role"`
	Active              bool       `bun:"active,notnull" json:"active"`
	FamilyResponsibleID string     `bun:"family_responsible_id,nullzero" json:"family_responsible_id,omitempty"`
	CanEstudantes       bool       `bun:"can_estudantes,notnull" json:"can_estudantes"`
	CanPEI              bool       `bun:"can_pei,notnull" json:"can_pei"`
	CanPAEE             bool       `bun:"can_paee,notnull" json:"can_paee"`
	CanPGI              bool       `bun:"can_pgi,notnull" json:"can_pgi"`
	CanHub              bool       `bun:"can_hub,notnull" json:"can_hub"`
	CanDiario           bool       `bun:"can_diario,notnull" json:"can_diario"`
	CanAvaliacao        bool       `bun:"can_avaliacao,notnull" json:"can_avaliacao"`
	CanGestao           bool       `bun:"can_gestao,notnull" json:"can_gestao"`
	CanConfig           bool       `bun:"can_config,notnull" json:"can_config"`
	LoginAttempts       int        `bun:"login_attempts,notnull" json:"login_attempts,omitempty"`
	LoginAttemptAt      *time.Time `bun:"login_attempt_at,nullzero" json:"login_attempt_at,omitempty"`
	LoggedInAt          *time.Time `bun:"loggedin_at,nullzero" json:"loggedin_at,omitempty"`
	CreatedAt           *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt           *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Permissions returns the stored flags as a PermissionSet.
func (m *WorkspaceMember) Permissions() PermissionSet {
	if m == nil {
		return PermissionSet{}
	}
	return PermissionSet{
		CanEstudantes: m.CanEstudantes,
		CanPEI:        m.CanPEI,
		CanPAEE:       m.CanPAEE,
		CanPGI:        m.CanPGI,
		CanHub:        m.CanHub,
		CanDiario:     m.CanDiario,
		CanAvaliacao:  m.CanAvaliacao,
		CanGestao:     m.CanGestao,
		CanConfig:     m.CanConfig,
	}
}

// SetPermissions copies a PermissionSet onto the flag columns. Missing
// entries are stored as false.
func (m *WorkspaceMember) SetPermissions(ps PermissionSet) *WorkspaceMember {
	m.CanEstudantes = ps.Has(CanEstudantes)
	m.CanPEI = ps.Has(CanPEI)
	m.CanPAEE = ps.Has(CanPAEE)
	m.CanPGI = ps.Has(CanPGI)
	m.CanHub = ps.Has(CanHub)
	m.CanDiario = ps.Has(CanDiario)
	m.CanAvaliacao = ps.Has(CanAvaliacao)
	m.CanGestao = ps.Has(CanGestao)
	m.CanConfig = ps.Has(CanConfig)
	return m
}

// PlatformAdmin is a superuser outside any workspace.
type PlatformAdmin struct {
	bun.BaseModel  `bun:"table:platform_admins,alias:pa"`
	ID             uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Nome           string     `bun:"nome,notnull" json:"nome"`
	Email          string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash   string     `bun:"password_hash" json:"-"`
	Active         bool       `bun:"active,notnull" json:"active"`
	LoginAttempts  int        `bun:"login_attempts,notnull" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at,nullzero" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time `bun:"loggedin_at,nullzero" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// SessionForMember builds the workspace session of a member.
func SessionForMember(ws *Workspace, member *WorkspaceMember) *Session {
	return &Session{
		UserID:   member.ID.String(),
		UserName: member.Nome,
		Role:     member.Role,
		Workspace: &WorkspaceScope{
			ID:                  member.WorkspaceID.String(),
			Name:                ws.Name,
			MemberID:            member.ID.String(),
			Permissions:         member.Permissions(),
			FamilyResponsibleID: member.FamilyResponsibleID,
		},
	}
}

// SessionForAdmin builds the platform session of an admin.
func SessionForAdmin(admin *PlatformAdmin) *Session {
	return NewPlatformSession(admin.ID.String(), admin.Nome)
}
