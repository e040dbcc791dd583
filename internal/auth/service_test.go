package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeStore is an in-memory Store for service-level tests.
type fakeStore struct {
	mu         sync.Mutex
	identities map[string]*Identity
	byEmail    map[string]string
	hashes     map[string]string
	resets     map[string]*ResetToken
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		identities: make(map[string]*Identity),
		byEmail:    make(map[string]string),
		hashes:     make(map[string]string),
		resets:     make(map[string]*ResetToken),
	}
}

func cloneIdentity(src *Identity) *Identity {
	cp := *src
	cp.Permissions = append([]string(nil), src.Permissions...)
	cp.AssignedPartitions = append([]string(nil), src.AssignedPartitions...)
	return &cp
}

func (f *fakeStore) CreateIdentity(_ context.Context, identity *Identity, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	email := NormalizeEmail(identity.Email)
	if _, ok := f.byEmail[email]; ok {
		return ErrConflict
	}
	f.identities[identity.ID] = cloneIdentity(identity)
	f.byEmail[email] = identity.ID
	f.hashes[identity.ID] = passwordHash
	return nil
}

func (f *fakeStore) FindIdentity(_ context.Context, id string) (*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity, ok := f.identities[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneIdentity(identity), nil
}

func (f *fakeStore) FindIdentityByEmail(_ context.Context, email string) (*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneIdentity(f.identities[id]), nil
}

func (f *fakeStore) CredentialByEmail(_ context.Context, email string) (*Identity, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, "", ErrNotFound
	}
	return cloneIdentity(f.identities[id]), f.hashes[id], nil
}

func (f *fakeStore) UpdatePassword(_ context.Context, identityID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.identities[identityID]; !ok {
		return ErrNotFound
	}
	f.hashes[identityID] = passwordHash
	return nil
}

func (f *fakeStore) SetRolePermissions(_ context.Context, identityID string, role Role, permissions []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity, ok := f.identities[identityID]
	if !ok {
		return ErrNotFound
	}
	identity.Role = role
	identity.Permissions = append([]string(nil), permissions...)
	return nil
}

func (f *fakeStore) SetActive(_ context.Context, identityID string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity, ok := f.identities[identityID]
	if !ok {
		return ErrNotFound
	}
	identity.Active = active
	return nil
}

func (f *fakeStore) CreateResetToken(_ context.Context, tok *ResetToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *tok
	f.resets[tok.Token] = &cp
	return nil
}

func (f *fakeStore) FindResetToken(_ context.Context, token string) (*ResetToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.resets[token]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeStore) MarkResetTokenUsed(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.resets[token]
	if !ok {
		return ErrNotFound
	}
	rec.Used = true
	return nil
}

func newTestService(t *testing.T, store Store, opts ...Option) *Service {
	t.Helper()
	tokens, err := NewTokenService("test-secret")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	svc, err := NewService(store, tokens, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestRegisterDefaults(t *testing.T) {
	svc := newTestService(t, newFakeStore())

	identity, err := svc.Register(context.Background(), RegisterInput{
		Email:        "  Alice@Example.COM ",
		Password:     "s3cret-pass",
		Name:         "Alice",
		Organization: "AcmeCo",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if identity.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %q", identity.Email)
	}
	if identity.Role != RoleUser {
		t.Fatalf("expected default role user, got %s", identity.Role)
	}
	if !identity.Active {
		t.Fatal("expected new identity to be active")
	}
	if len(identity.Permissions) != len(DefaultPermissions(RoleUser)) {
		t.Fatalf("unexpected permission set: %v", identity.Permissions)
	}
	if identity.ID == "" {
		t.Fatal("expected generated id")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "bob@example.com", Password: "pw-one-1"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := svc.Register(ctx, RegisterInput{Email: "BOB@example.com", Password: "pw-two-2"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	ctx := context.Background()

	cases := []RegisterInput{
		{Email: "", Password: "pw"},
		{Email: "not-an-email", Password: "pw"},
		{Email: "x@example.com", Password: "   "},
		{Email: "x@example.com", Password: "pw", Role: Role("owner")},
	}
	for _, in := range cases {
		if _, err := svc.Register(ctx, in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("input %+v: expected ErrInvalidInput, got %v", in, err)
		}
	}
}

func TestLoginAndCurrentIdentity(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "carol@example.com", Password: "hunter22"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	res, err := svc.Login(ctx, "Carol@Example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token == "" || res.TokenType != "bearer" {
		t.Fatalf("unexpected login result: %+v", res)
	}
	if !res.ExpiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", res.ExpiresAt)
	}

	identity, err := svc.CurrentIdentity(ctx, res.Token)
	if err != nil {
		t.Fatalf("CurrentIdentity: %v", err)
	}
	if identity.Email != "carol@example.com" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestVerifyFailuresAreIndistinguishable(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	identity, err := svc.Register(ctx, RegisterInput{Email: "dave@example.com", Password: "right-pass"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Verify(ctx, "nobody@example.com", "right-pass"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("unknown email: expected ErrUnauthenticated, got %v", err)
	}
	if _, err := svc.Verify(ctx, "dave@example.com", "wrong-pass"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("wrong password: expected ErrUnauthenticated, got %v", err)
	}

	if err := svc.Deactivate(ctx, identity.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if _, err := svc.Verify(ctx, "dave@example.com", "right-pass"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("inactive: expected ErrUnauthenticated, got %v", err)
	}
}

func TestCurrentIdentityTokenErrors(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	tokens, err := NewTokenService("test-secret", WithTokenClock(clock), WithTokenTTL(10*time.Minute))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	store := newFakeStore()
	svc, err := NewService(store, tokens)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "erin@example.com", Password: "pass-word"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	res, err := svc.Login(ctx, "erin@example.com", "pass-word")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := svc.CurrentIdentity(ctx, "not-a-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("garbage token: expected ErrTokenInvalid, got %v", err)
	}

	now = now.Add(11 * time.Minute)
	if _, err := svc.CurrentIdentity(ctx, res.Token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expired token: expected ErrTokenExpired, got %v", err)
	}
}

func TestCurrentIdentitySubjectGone(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	identity, err := svc.Register(ctx, RegisterInput{Email: "frank@example.com", Password: "pass-word"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	res, err := svc.Login(ctx, "frank@example.com", "pass-word")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := svc.Deactivate(ctx, identity.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if _, err := svc.CurrentIdentity(ctx, res.Token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("deactivated subject: expected ErrUnauthenticated, got %v", err)
	}
}

func TestChangeRoleAndRefreshPermissions(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	identity, err := svc.Register(ctx, RegisterInput{Email: "gina@example.com", Password: "pass-word"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	updated, err := svc.ChangeRole(ctx, identity.ID, RoleManager)
	if err != nil {
		t.Fatalf("ChangeRole: %v", err)
	}
	if updated.Role != RoleManager {
		t.Fatalf("expected manager role, got %s", updated.Role)
	}
	if !updated.HasPermission(PermAccountManage) {
		t.Fatalf("manager missing account.manage: %v", updated.Permissions)
	}

	if _, err := svc.ChangeRole(ctx, identity.ID, Role("owner")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown role: expected ErrInvalidInput, got %v", err)
	}

	// Simulate drift and re-derive.
	if err := store.SetRolePermissions(ctx, identity.ID, RoleManager, []string{PermDashboardView}); err != nil {
		t.Fatalf("SetRolePermissions: %v", err)
	}
	refreshed, err := svc.RefreshPermissions(ctx, identity.ID)
	if err != nil {
		t.Fatalf("RefreshPermissions: %v", err)
	}
	if len(refreshed.Permissions) != len(DefaultPermissions(RoleManager)) {
		t.Fatalf("permissions not re-derived: %v", refreshed.Permissions)
	}
}
