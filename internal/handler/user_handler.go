package handler

import (
	"net/http"

	"go-auth-webhook/internal/middleware"
)

type UserHandler struct {
	service authService
}

func NewUserHandler(service authService) *UserHandler {
	return &UserHandler{service: service}
}

// Me returns the profile of the bearer token's owner.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.CurrentUser(r.Context(), middleware.CredentialsFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}
