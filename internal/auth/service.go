package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"tallyhq.org/internal/ids"
)

// Notifier hands a freshly issued reset token to an external delivery
// collaborator. Message formatting and retries live outside this core.
type Notifier interface {
	DeliverResetToken(ctx context.Context, identity *Identity, token string) error
}

// NopNotifier discards reset tokens. Used when no delivery channel is wired.
type NopNotifier struct{}

func (NopNotifier) DeliverResetToken(context.Context, *Identity, string) error { return nil }

// Service provides credential verification, token issuance and account
// lifecycle operations over the central store.
type Service struct {
	store    Store
	tokens   *TokenService
	notifier Notifier
	now      func() time.Time
	log      *zap.Logger
	resetTTL time.Duration
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (test use).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithNotifier wires the reset-token delivery collaborator.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithResetTTL overrides the reset-token lifetime.
func WithResetTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.resetTTL = ttl
		}
	}
}

// NewService constructs the auth service.
func NewService(store Store, tokens *TokenService, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token service is required")
	}
	s := &Service{
		store:    store,
		tokens:   tokens,
		notifier: NopNotifier{},
		now:      time.Now,
		log:      zap.NewNop(),
		resetTTL: resetTokenTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RegisterInput carries the signup profile.
type RegisterInput struct {
	Email        string
	Password     string
	Name         string
	Organization string
	Role         Role
}

// Register creates a new identity with the default permission set for its
// role. Duplicate emails (case-insensitive) fail with ErrConflict.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Identity, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Password) == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	role := in.Role
	if role == "" {
		role = RoleUser
	}
	role, err := ParseRole(string(role))
	if err != nil {
		return nil, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	identity := &Identity{
		ID:           ids.New(),
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		Organization: strings.TrimSpace(in.Organization),
		Role:         role,
		Active:       true,
		Permissions:  DefaultPermissions(role),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateIdentity(ctx, identity, hash); err != nil {
		return nil, err
	}
	s.log.Info("identity registered", zap.String("identity_id", identity.ID), zap.String("role", string(role)))
	return identity, nil
}

// Verify checks email/password credentials. Unknown email, digest mismatch
// and deactivated identities all fail with ErrUnauthenticated so the caller
// cannot tell which case occurred. Infrastructure failures propagate as-is.
func (s *Service) Verify(ctx context.Context, email, password string) (*Identity, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrUnauthenticated
	}
	identity, hash, err := s.store.CredentialByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if !identity.Active {
		return nil, ErrUnauthenticated
	}
	if err := VerifyPassword(hash, password); err != nil {
		return nil, ErrUnauthenticated
	}
	return identity, nil
}

// LoginResult is the outcome of a successful credential login.
type LoginResult struct {
	Token     string
	TokenType string
	ExpiresAt time.Time
	Identity  *Identity
}

// Login verifies credentials and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	identity, err := s.Verify(ctx, email, password)
	if err != nil {
		return LoginResult{}, err
	}
	token, expiresAt, err := s.tokens.Issue(identity)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{
		Token:     token,
		TokenType: "bearer",
		ExpiresAt: expiresAt,
		Identity:  identity,
	}, nil
}

// CurrentIdentity resolves a bearer token to a fresh identity record.
// Token failures keep their ErrTokenInvalid/ErrTokenExpired kinds; a valid
// token whose subject no longer resolves to an active identity fails with
// ErrUnauthenticated.
func (s *Service) CurrentIdentity(ctx context.Context, token string) (*Identity, error) {
	subject, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	identity, err := s.store.FindIdentityByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if !identity.Active {
		return nil, ErrUnauthenticated
	}
	return identity, nil
}

// RefreshPermissions re-derives the canonical permission set for the
// identity's current role and persists it. Permission sets are not refreshed
// automatically on role change; this is the explicit re-derive contract.
func (s *Service) RefreshPermissions(ctx context.Context, identityID string) (*Identity, error) {
	identity, err := s.store.FindIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}
	perms := DefaultPermissions(identity.Role)
	if err := s.store.SetRolePermissions(ctx, identity.ID, identity.Role, perms); err != nil {
		return nil, err
	}
	identity.Permissions = perms
	return identity, nil
}

// ChangeRole assigns a new role together with its canonical permission set.
func (s *Service) ChangeRole(ctx context.Context, identityID string, role Role) (*Identity, error) {
	role, err := ParseRole(string(role))
	if err != nil {
		return nil, err
	}
	identity, err := s.store.FindIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}
	perms := DefaultPermissions(role)
	if err := s.store.SetRolePermissions(ctx, identity.ID, role, perms); err != nil {
		return nil, err
	}
	identity.Role = role
	identity.Permissions = perms
	return identity, nil
}

// Deactivate disables an identity. Identities are never hard-deleted.
func (s *Service) Deactivate(ctx context.Context, identityID string) error {
	return s.store.SetActive(ctx, identityID, false)
}
