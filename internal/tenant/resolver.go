package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"tallyhq.org/internal/obs"
)

var (
	// ErrNoTenantAssigned signals a valid identity with no partition mapping.
	// Recoverable: callers treat it as "pre-provisioning", not a failure.
	ErrNoTenantAssigned = errors.New("tenant: no tenant assigned")

	ErrNotFound     = errors.New("tenant: not found")
	ErrInvalidInput = errors.New("tenant: invalid input")
)

// Handle references an initialized tenant partition. All downstream business
// queries go through the handle's schema.
type Handle struct {
	Key string
	DB  *sql.DB
}

// Schema returns the Postgres schema name backing the partition.
func (h *Handle) Schema() string { return h.Key }

// Provisioner initializes a partition's schema. Implementations must be
// at-least-once idempotent: re-running must neither fail nor duplicate
// constraints, and concurrent initializers must converge on one metadata
// record.
type Provisioner interface {
	Provision(ctx context.Context, key string) error
}

// PartitionInfo describes a provisioned partition's metadata record.
type PartitionInfo struct {
	Name          string
	SchemaVersion int
	InitializedAt time.Time
}

// MappingStore persists the central identity→partition mapping. It is the
// single source of truth; resolvers never cache mappings.
type MappingStore interface {
	// Upsert assigns a partition to an email, last-write-wins. A prior
	// different assignment is overwritten silently.
	Upsert(ctx context.Context, email, partitionKey string) error
	// Find returns the partition key mapped to the email, or ErrNotFound.
	Find(ctx context.Context, email string) (string, error)
	// ListPartitions returns metadata for partitions whose name carries the
	// namespace prefix.
	ListPartitions(ctx context.Context, prefix string) ([]PartitionInfo, error)
}

// Resolver maps organizations and identities to isolated tenant partitions,
// provisioning lazily on first access. Handles are cached for the process
// lifetime; the cache is append-only, unbounded and safe under concurrent
// insertion.
type Resolver struct {
	db       *sql.DB
	prov     Provisioner
	mappings MappingStore
	log      *zap.Logger

	mu      sync.RWMutex
	handles map[string]*Handle
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger attaches a structured logger.
func WithResolverLogger(log *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// NewResolver constructs a Resolver.
func NewResolver(db *sql.DB, prov Provisioner, mappings MappingStore, opts ...ResolverOption) (*Resolver, error) {
	if prov == nil {
		return nil, errors.New("tenant: provisioner is required")
	}
	if mappings == nil {
		return nil, errors.New("tenant: mapping store is required")
	}
	r := &Resolver{
		db:       db,
		prov:     prov,
		mappings: mappings,
		log:      zap.NewNop(),
		handles:  make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve returns the partition handle for an organization, creating and
// initializing the partition on first access. Safe under concurrent
// first-access for the same organization: initialization is an idempotent
// upsert, so simultaneous callers converge on one initialized partition.
func (r *Resolver) Resolve(ctx context.Context, organizationID string) (*Handle, error) {
	if strings.TrimSpace(organizationID) == "" {
		return nil, fmt.Errorf("%w: organization id is required", ErrInvalidInput)
	}
	key := PartitionKey(organizationID)

	r.mu.RLock()
	h, ok := r.handles[key]
	r.mu.RUnlock()
	if ok {
		return h, nil
	}

	// Provision outside the lock; losing a race is harmless because the
	// initialization converges rather than conflicts.
	if err := r.prov.Provision(ctx, key); err != nil {
		return nil, fmt.Errorf("provision partition %s: %w", key, err)
	}
	obs.ObservePartitionProvisioned()
	r.log.Info("tenant partition resolved", zap.String("partition", key))

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.handles[key]; ok {
		return existing, nil
	}
	h = &Handle{Key: key, DB: r.db}
	r.handles[key] = h
	return h, nil
}

// ResolveForIdentity looks up the identity's partition mapping and returns the
// handle. Fails with ErrNoTenantAssigned when no mapping exists. This path
// never provisions a partition; creation happens only through the
// organization-keyed Resolve.
func (r *Resolver) ResolveForIdentity(ctx context.Context, email string) (*Handle, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	key, err := r.mappings.Find(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNoTenantAssigned
		}
		return nil, err
	}

	r.mu.RLock()
	h, ok := r.handles[key]
	r.mu.RUnlock()
	if ok {
		return h, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.handles[key]; ok {
		return existing, nil
	}
	h = &Handle{Key: key, DB: r.db}
	r.handles[key] = h
	return h, nil
}

// Assign upserts the identity→partition mapping, deriving the partition key
// from the organization id. Idempotent, last-write-wins; a prior different
// assignment is overwritten without conflict detection.
func (r *Resolver) Assign(ctx context.Context, email, organizationID string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || strings.TrimSpace(organizationID) == "" {
		return fmt.Errorf("%w: email and organization id are required", ErrInvalidInput)
	}
	return r.mappings.Upsert(ctx, email, PartitionKey(organizationID))
}

// ListProvisioned returns metadata for every provisioned partition, found by
// scanning the namespace prefix. Diagnostics surface.
func (r *Resolver) ListProvisioned(ctx context.Context) ([]PartitionInfo, error) {
	return r.mappings.ListPartitions(ctx, Namespace)
}

// CachedKeys returns the partition keys currently held in the handle cache.
func (r *Resolver) CachedKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.handles))
	for k := range r.handles {
		keys = append(keys, k)
	}
	return keys
}
