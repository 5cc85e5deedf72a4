package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"go-auth-webhook/internal/middleware"
	"go-auth-webhook/internal/model"
	"go-auth-webhook/internal/token"
)

type authService interface {
	Login(ctx context.Context, req model.LoginRequest) (model.TokenResponse, error)
	Signup(ctx context.Context, req model.SignupRequest) (model.TokenResponse, error)
	Authorize(ctx context.Context, creds model.Credentials) (model.Decision, error)
	CurrentUser(ctx context.Context, creds model.Credentials) (model.UserProfile, error)
	KeySet() token.JWKS
}

type AuthHandler struct {
	service authService
}

func NewAuthHandler(service authService) *AuthHandler {
	return &AuthHandler{service: service}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeBody(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.service.Login(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var payload model.SignupRequest
	if err := decodeBody(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.service.Signup(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Webhook is called by the data layer with the client's headers. It answers
// with the claims to apply or the anonymous role.
func (h *AuthHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	decision, err := h.service.Authorize(r.Context(), middleware.CredentialsFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

func (h *AuthHandler) JWKS(w http.ResponseWriter, r *http.Request) {
	body, err := json.MarshalIndent(h.service.KeySet(), "", "  ")
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(append(body, '\n'))
}
