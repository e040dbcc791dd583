package auth

import "context"

// Store describes the central persistence operations required by the auth
// subsystem. It is the single source of truth: callers never cache credential
// or identity records locally.
type Store interface {
	// CreateIdentity persists a new identity plus its password digest.
	// Fails with ErrConflict when the email is already registered.
	CreateIdentity(ctx context.Context, identity *Identity, passwordHash string) error
	FindIdentity(ctx context.Context, id string) (*Identity, error)
	FindIdentityByEmail(ctx context.Context, email string) (*Identity, error)
	// CredentialByEmail returns the identity together with its password
	// digest. The digest never leaves the auth package.
	CredentialByEmail(ctx context.Context, email string) (*Identity, string, error)
	UpdatePassword(ctx context.Context, identityID, passwordHash string) error
	// SetRolePermissions persists a role and its derived permission set
	// without touching other fields.
	SetRolePermissions(ctx context.Context, identityID string, role Role, permissions []string) error
	SetActive(ctx context.Context, identityID string, active bool) error

	CreateResetToken(ctx context.Context, tok *ResetToken) error
	FindResetToken(ctx context.Context, token string) (*ResetToken, error)
	MarkResetTokenUsed(ctx context.Context, token string) error
}
