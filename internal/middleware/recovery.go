package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"go-auth-webhook/pkg/apierror"
)

func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}
				slog.Error("panic recovered", "error", fmt.Sprintf("%v", recovered), "path", r.URL.Path, "stack", string(debug.Stack()))
				writeAPIError(w, apierror.Internal(apierror.TypeInternal, "E_PANIC", http.StatusInternalServerError))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
