package middleware

import (
	"encoding/json"
	"net/http"

	"go-auth-webhook/internal/model"
	"go-auth-webhook/pkg/apierror"
)

func writeAPIError(w http.ResponseWriter, apiErr *apierror.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(model.ErrorResponse{Errors: []model.ErrorItem{{
		Type:    apiErr.Type,
		Message: apiErr.Message,
		Code:    apiErr.Code,
	}}})
}

func errorBodyString(apiErr *apierror.APIError) string {
	body, err := json.Marshal(model.ErrorResponse{Errors: []model.ErrorItem{{
		Type:    apiErr.Type,
		Message: apiErr.Message,
		Code:    apiErr.Code,
	}}})
	if err != nil {
		return ""
	}
	return string(body)
}
