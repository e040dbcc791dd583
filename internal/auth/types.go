package auth

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of privilege levels. Adding a role requires touching
// every switch over this type; the compiler surfaces the spots.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleUser       Role = "user"
	RoleViewer     Role = "viewer"
)

// Roles lists every valid role, most privileged first.
var Roles = []Role{RoleSuperAdmin, RoleAdmin, RoleManager, RoleUser, RoleViewer}

// ParseRole normalizes and validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(strings.ToLower(s)))
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleManager, RoleUser, RoleViewer:
		return r, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
	}
}

// Identity is an authenticated user record. Identities are deactivated, never
// hard-deleted.
type Identity struct {
	ID                 string    `json:"id"`
	Email              string    `json:"email"`
	Name               string    `json:"name"`
	Organization       string    `json:"organization"`
	Role               Role      `json:"role"`
	Active             bool      `json:"active"`
	Permissions        []string  `json:"permissions"`
	HomePartition      string    `json:"home_partition,omitempty"`
	AssignedPartitions []string  `json:"assigned_partitions,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// HasPermission reports whether the identity carries the named capability flag.
func (i *Identity) HasPermission(perm string) bool {
	for _, p := range i.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// ResetToken is a single-use, time-bounded credential-recovery artifact.
type ResetToken struct {
	ID         string
	IdentityID string
	Token      string
	ExpiresAt  time.Time
	Used       bool
	CreatedAt  time.Time
}

// NormalizeEmail lower-cases and trims an email address. All store lookups go
// through this so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
