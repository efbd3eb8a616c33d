package errors

import (
	"net/http"
)

// RecoveryMiddleware converts panics into RFC 7807 responses. It sits
// after the logging middleware so the recovered 500 still shows up in
// the request log.
func RecoveryMiddleware(handler *ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// net/http aborts responses with this sentinel;
				// swallowing it would break that mechanism.
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				handler.HandlePanic(w, r, rec)
			}()
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}
