package httpapi

import (
	"errors"
	"net/http"
	"time"

	"tallyhq.org/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string         `json:"token"`
	TokenType string         `json:"token_type"`
	ExpiresAt time.Time      `json:"expires_at"`
	Identity  *auth.Identity `json:"identity"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	result, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			a.observeLogin(r, "unauthenticated")
		} else {
			a.observeLogin(r, "error")
		}
		writeServiceError(w, err)
		return
	}
	a.observeLogin(r, "ok")
	_ = a.audit.Event(r.Context(), "auth.login", map[string]any{
		"identity_id": result.Identity.ID,
		"expires_at":  result.ExpiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     result.Token,
		TokenType: result.TokenType,
		ExpiresAt: result.ExpiresAt,
		Identity:  result.Identity,
	})
}

type registerRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	Organization string `json:"organization"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	identity, err := a.auth.Register(r.Context(), auth.RegisterInput{
		Email:        req.Email,
		Password:     req.Password,
		Name:         req.Name,
		Organization: req.Organization,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = a.audit.Event(r.Context(), "auth.register", map[string]any{
		"identity_id": identity.ID,
	})
	writeJSON(w, http.StatusCreated, identity)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

type resetRequestBody struct {
	Email string `json:"email"`
}

func (a *API) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req resetRequestBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	// Always answer 202: the response must not reveal whether the email is
	// registered. The token travels only through the notifier collaborator.
	if _, err := a.auth.RequestReset(r.Context(), req.Email); err != nil && !errors.Is(err, auth.ErrNotFound) {
		writeServiceError(w, err)
		return
	}
	_ = a.audit.Event(r.Context(), "auth.reset.requested", nil)
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

type resetConfirmBody struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (a *API) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req resetConfirmBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	if err := a.auth.CompleteReset(r.Context(), req.Token, req.NewPassword); err != nil {
		writeServiceError(w, err)
		return
	}
	_ = a.audit.Event(r.Context(), "auth.reset.completed", nil)
	w.WriteHeader(http.StatusNoContent)
}
