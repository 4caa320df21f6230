package auth

import (
	"encoding/json"
	"sort"
)

// Permission is a named capability a workspace member may hold.
type Permission string

const (
	CanEstudantes Permission = "can_estudantes"
	CanPEI        Permission = "can_pei"
	CanPAEE       Permission = "can_paee"
	CanPGI        Permission = "can_pgi"
	CanHub        Permission = "can_hub"
	CanDiario     Permission = "can_diario"
	CanAvaliacao  Permission = "can_avaliacao"
	CanGestao     Permission = "can_gestao"
	CanConfig     Permission = "can_config"
)

var allPermissions = []Permission{
	CanEstudantes,
	CanPEI,
	CanPAEE,
	CanPGI,
	CanHub,
	CanDiario,
	CanAvaliacao,
	CanGestao,
	CanConfig,
}

// AllPermissions returns every known permission.
func AllPermissions() []Permission {
	out := make([]Permission, len(allPermissions))
	copy(out, allPermissions)
	return out
}

func (p Permission) IsValid() bool {
	for _, known := range allPermissions {
		if p == known {
			return true
		}
	}
	return false
}

func (p Permission) String() string {
	return string(p)
}

// ParsePermission maps a flag name to a Permission, rejecting unknown names.
func ParsePermission(name string) (Permission, bool) {
	p := Permission(name)
	return p, p.IsValid()
}

// PermissionSet maps permissions to their granted state.
type PermissionSet map[Permission]bool

// Has is true only for known permissions explicitly set to true.
func (ps PermissionSet) Has(p Permission) bool {
	if ps == nil || !p.IsValid() {
		return false
	}
	return ps[p]
}

// Granted lists the permissions set to true, sorted by name.
func (ps PermissionSet) Granted() []Permission {
	out := make([]Permission, 0, len(ps))
	for p, ok := range ps {
		if ok && p.IsValid() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (ps PermissionSet) Clone() PermissionSet {
	if ps == nil {
		return nil
	}
	out := make(PermissionSet, len(ps))
	for k, v := range ps {
		out[k] = v
	}
	return out
}

// UnmarshalJSON keeps known flags holding a JSON boolean. Unknown names and
// non boolean values are dropped so they can never grant anything.
func (ps *PermissionSet) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw == nil {
		*ps = nil
		return nil
	}

	out := make(PermissionSet, len(raw))
	for name, val := range raw {
		p, ok := ParsePermission(name)
		if !ok {
			continue
		}
		if b, isBool := val.(bool); isBool {
			out[p] = b
		}
	}
	*ps = out
	return nil
}
