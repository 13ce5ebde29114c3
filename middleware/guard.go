package middleware

import (
	"context"
	"net/http"
	"strings"

	goIdentity "github.com/MrEthical07/goIdentity"
)

type identityKey struct{}

// IdentityFromContext returns the identity stored by Guard.
func IdentityFromContext(ctx context.Context) (goIdentity.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(goIdentity.Identity)
	return id, ok
}

// Guard rejects requests without a valid bearer credential and stores the
// verified identity in the request context. Verification is stateless, so
// Guard keeps working while the cache is down.
func Guard(engine *goIdentity.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearer, ok := parseAuthorization(r.Header.Get("Authorization"))
			if !ok || engine == nil {
				challenge(w)
				return
			}
			id, err := engine.ParseBearer(bearer)
			if err != nil {
				challenge(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
		})
	}
}

// parseAuthorization accepts "Bearer <token>" with a case-insensitive
// scheme.
func parseAuthorization(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="goidentity"`)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}
