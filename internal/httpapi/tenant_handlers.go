package httpapi

import (
	"context"
	"net/http"

	"tallyhq.org/internal/auth"
	"tallyhq.org/internal/tenant"
)

type tenantResponse struct {
	Partition string `json:"partition"`
}

func (a *API) handleTenantCurrent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return
	}

	handle, err := a.tenants.ResolveForIdentity(r.Context(), identity.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tenantResponse{Partition: handle.Key})
}

type assignRequest struct {
	Email          string `json:"email"`
	OrganizationID string `json:"organization_id"`
}

// handleTenantAssign provisions the organization's partition and maps the
// identity to it. Requires user management rights.
func (a *API) handleTenantAssign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if err := requirePermission(r.Context(), auth.PermUserManage); err != nil {
		writeServiceError(w, err)
		return
	}
	var req assignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	handle, err := a.tenants.Resolve(r.Context(), req.OrganizationID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := a.tenants.Assign(r.Context(), req.Email, req.OrganizationID); err != nil {
		writeServiceError(w, err)
		return
	}
	_ = a.audit.Event(r.Context(), "tenant.assigned", map[string]any{
		"email":     req.Email,
		"partition": handle.Key,
	})
	writeJSON(w, http.StatusOK, tenantResponse{Partition: handle.Key})
}

type partitionListResponse struct {
	Partitions []tenant.PartitionInfo `json:"partitions"`
}

// handleTenantList is the diagnostics surface: every provisioned partition
// found by scanning the namespace prefix.
func (a *API) handleTenantList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if err := requirePermission(r.Context(), auth.PermSettingManage); err != nil {
		writeServiceError(w, err)
		return
	}

	infos, err := a.tenants.ListProvisioned(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, partitionListResponse{Partitions: infos})
}

func requirePermission(ctx context.Context, perm string) error {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return auth.ErrUnauthenticated
	}
	if !identity.HasPermission(perm) {
		return auth.ErrForbidden
	}
	return nil
}
