package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"go.uber.org/zap"

	"tallyhq.org/internal/audit"
	"tallyhq.org/internal/auth"
	"tallyhq.org/internal/obs"
	"tallyhq.org/internal/tenant"
)

// AuthService is the slice of the auth core the HTTP layer consumes.
type AuthService interface {
	Login(ctx context.Context, email, password string) (auth.LoginResult, error)
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Identity, error)
	CurrentIdentity(ctx context.Context, token string) (*auth.Identity, error)
	RequestReset(ctx context.Context, email string) (string, error)
	CompleteReset(ctx context.Context, token, newPassword string) error
}

// TenantService is the slice of the tenant resolver the HTTP layer consumes.
type TenantService interface {
	Resolve(ctx context.Context, organizationID string) (*tenant.Handle, error)
	ResolveForIdentity(ctx context.Context, email string) (*tenant.Handle, error)
	Assign(ctx context.Context, email, organizationID string) error
	ListProvisioned(ctx context.Context) ([]tenant.PartitionInfo, error)
}

// ReadyProbe pings the central database for the readiness endpoint.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps bundles everything the HTTP layer needs. Explicit injection, no
// ambient globals.
type Deps struct {
	Auth       AuthService
	Tenants    TenantService
	ReadyProbe ReadyProbe
	Audit      *audit.Log
	Log        *zap.Logger
	Version    string

	RateLimitPerSecond int
	RateLimitBurst     int
	MaxBodyBytes       int64
}

// API is the HTTP transport layer over the auth and tenant cores.
type API struct {
	mux        *http.ServeMux
	auth       AuthService
	tenants    TenantService
	readyProbe ReadyProbe
	audit      *audit.Log
	log        *zap.Logger
	version    string

	ratePerSecond int
	rateBurst     int
	maxBodyBytes  int64
}

// New wires routes and returns the API.
func New(deps Deps) *API {
	a := &API{
		mux:           http.NewServeMux(),
		auth:          deps.Auth,
		tenants:       deps.Tenants,
		readyProbe:    deps.ReadyProbe,
		audit:         deps.Audit,
		log:           deps.Log,
		version:       deps.Version,
		ratePerSecond: deps.RateLimitPerSecond,
		rateBurst:     deps.RateLimitBurst,
		maxBodyBytes:  deps.MaxBodyBytes,
	}
	if a.log == nil {
		a.log = zap.NewNop()
	}
	if a.audit == nil {
		a.audit = audit.New(a.log)
	}
	if a.ratePerSecond <= 0 {
		a.ratePerSecond = 25
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 50
	}
	if a.maxBodyBytes <= 0 {
		a.maxBodyBytes = 1 << 20
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("/v1/auth/me", a.handleMe)
	a.mux.HandleFunc("/v1/auth/password-reset/request", a.handleResetRequest)
	a.mux.HandleFunc("/v1/auth/password-reset/confirm", a.handleResetConfirm)

	a.mux.HandleFunc("/v1/tenants/current", a.handleTenantCurrent)
	a.mux.HandleFunc("/v1/tenants/assign", a.handleTenantAssign)
	a.mux.HandleFunc("/v1/tenants", a.handleTenantList)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

func (a *API) observeLogin(_ *http.Request, outcome string) {
	obs.ObserveLogin(outcome)
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = RateLimit(h, a.rateBurst, a.ratePerSecond)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = Logging(a.log)(h)
	return obs.Instrument(h)
}
