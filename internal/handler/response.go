package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go-auth-webhook/internal/model"
	"go-auth-webhook/pkg/apierror"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	var fieldErrs model.ValidationErrors
	if errors.As(err, &fieldErrs) {
		items := make([]model.ErrorItem, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			items = append(items, model.ErrorItem{Type: apierror.TypeInvalidField, Message: fe.Message})
		}
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Errors: items})
		return
	}

	apiErr := classify(err)
	if apiErr.HTTPStatus >= http.StatusInternalServerError {
		slog.Error("request failed", "type", apiErr.Type, "error", err.Error())
	}

	writeJSON(w, apiErr.HTTPStatus, model.ErrorResponse{Errors: []model.ErrorItem{{
		Type:    apiErr.Type,
		Message: apiErr.Message,
		Code:    apiErr.Code,
	}}})
}

// classify maps a flow error onto what the client sees. Login failures are
// wrapped in ErrInvalidCredentials and must be matched before the token and
// user errors they may carry.
func classify(err error) *apierror.APIError {
	var apiErr *apierror.APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, model.ErrInvalidCredentials):
		return apierror.New(apierror.TypeAuthenticationFailed, "Invalid username or password", http.StatusBadRequest)
	case errors.Is(err, model.ErrTokenExpired):
		return apierror.New(apierror.TypeTokenExpired, "Token has expired", http.StatusUnauthorized)
	case errors.Is(err, model.ErrMalformedToken):
		return apierror.New(apierror.TypeMalformedToken, "Malformed token", http.StatusUnauthorized)
	case errors.Is(err, model.ErrInvalidToken):
		return apierror.New(apierror.TypeInvalidToken, "Invalid token", http.StatusUnauthorized)
	case errors.Is(err, model.ErrUserNotFound):
		return apierror.New(apierror.TypeUserNotFound, "User not found", http.StatusUnauthorized)
	case errors.Is(err, model.ErrUserInactive):
		return apierror.New(apierror.TypeUserInactive, "User is inactive", http.StatusUnauthorized)
	case errors.Is(err, model.ErrCrypto):
		return apierror.Internal(apierror.TypeCryptoError, "E_CRYPTO", http.StatusInternalServerError)
	default:
		return apierror.Internal(apierror.TypeDBError, "E_STORE", http.StatusInternalServerError)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	defer r.Body.Close()

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return apierror.New(apierror.TypeInvalidField, "Invalid JSON body", http.StatusBadRequest)
	}
	return nil
}
