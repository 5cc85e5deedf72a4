package middleware

import (
	"net/http"
	"time"

	"go-auth-webhook/pkg/apierror"
)

func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	message := errorBodyString(apierror.New(apierror.TypeTimeout, "Request timed out", http.StatusServiceUnavailable))

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, message)
	}
}
