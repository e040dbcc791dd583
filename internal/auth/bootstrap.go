package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// AccountKind names a privileged account ensured at startup.
type AccountKind string

const (
	AccountPlatformAdmin AccountKind = "platform-admin"
	AccountSuperAdmin    AccountKind = "super-admin"
)

type bootstrapProfile struct {
	email        string
	name         string
	organization string
	password     string
	role         Role
}

// Well-known privileged accounts. Initial passwords are meant to be rotated
// immediately after first login.
var bootstrapProfiles = map[AccountKind]bootstrapProfile{
	AccountPlatformAdmin: {
		email:        "admin@tallyhq.org",
		name:         "Platform Admin",
		organization: "platform",
		password:     "ChangeMe-Admin-1",
		role:         RoleAdmin,
	},
	AccountSuperAdmin: {
		email:        "superadmin@tallyhq.org",
		name:         "Super Admin",
		organization: "platform",
		password:     "ChangeMe-Super-1",
		role:         RoleSuperAdmin,
	},
}

// EnsurePrivilegedAccount idempotently guarantees the privileged account of
// the given kind exists with its canonical role and permission set. Missing
// accounts are created with the known initial password; existing accounts get
// the canonical permission set re-applied (self-healing against drift) with no
// other fields touched. Safe to invoke on every process start.
func (s *Service) EnsurePrivilegedAccount(ctx context.Context, kind AccountKind) (*Identity, error) {
	prof, ok := bootstrapProfiles[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown account kind %q", ErrInvalidInput, kind)
	}

	existing, err := s.store.FindIdentityByEmail(ctx, prof.email)
	switch {
	case err == nil:
		perms := DefaultPermissions(prof.role)
		if err := s.store.SetRolePermissions(ctx, existing.ID, prof.role, perms); err != nil {
			return nil, err
		}
		existing.Role = prof.role
		existing.Permissions = perms
		s.log.Info("privileged account permissions re-applied",
			zap.String("kind", string(kind)), zap.String("identity_id", existing.ID))
		return existing, nil
	case errors.Is(err, ErrNotFound):
		identity, err := s.Register(ctx, RegisterInput{
			Email:        prof.email,
			Password:     prof.password,
			Name:         prof.name,
			Organization: prof.organization,
			Role:         prof.role,
		})
		if err != nil {
			if errors.Is(err, ErrConflict) {
				// Lost a concurrent bootstrap race; converge on the winner.
				return s.EnsurePrivilegedAccount(ctx, kind)
			}
			return nil, err
		}
		s.log.Info("privileged account created",
			zap.String("kind", string(kind)), zap.String("identity_id", identity.ID))
		return identity, nil
	default:
		return nil, err
	}
}
