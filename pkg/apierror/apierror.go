package apierror

import "fmt"

// Error types reported to clients in the "type" field.
const (
	TypeInvalidField         = "InvalidField"
	TypeAuthenticationFailed = "AuthenticationFailed"
	TypeInvalidToken         = "InvalidToken"
	TypeTokenExpired         = "TokenExpired"
	TypeMalformedToken       = "MalformedToken"
	TypeUserNotFound         = "UserNotFound"
	TypeUserInactive         = "UserInactive"
	TypeCryptoError          = "CryptoError"
	TypeDBError              = "DBError"
	TypeInternal             = "InternalError"
	TypeTimeout              = "RequestTimeout"
)

type APIError struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
	HTTPStatus int    `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Code)
	}

	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func New(typ string, message string, status int) *APIError {
	return &APIError{Type: typ, Message: message, HTTPStatus: status}
}

// Internal builds an error whose message is safe to show to clients while
// code identifies the failing subsystem.
func Internal(typ string, code string, status int) *APIError {
	return &APIError{Type: typ, Message: "Internal server error", Code: code, HTTPStatus: status}
}
