package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
)

// ErrUnauthorized is returned when the cron bearer secret is missing or wrong.
var ErrUnauthorized = errors.New("middleware: unauthorized")

// CheckCronSecret compares the request's bearer token with secret in
// constant time. An empty secret never authorizes.
func CheckCronSecret(r *http.Request, secret string) error {
	if secret == "" {
		return ErrUnauthorized
	}
	token, ok := bearerToken(r)
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// CronSecret protects the scheduled-job endpoints invoked by the external trigger.
func CronSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := CheckCronSecret(r, secret); err != nil {
				writeUnauthorized(w, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
