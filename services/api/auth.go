package api

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"medrecords/services/identity"
)

var (
	errUnauthenticated = errors.New("authentication required")
	errForbidden       = errors.New("not permitted")
)

type principalKey struct{}

func withPrincipal(ctx context.Context, p identity.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFrom(ctx context.Context) (identity.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(identity.Principal)
	return p, ok
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// authenticate verifies the bearer session token and places the Principal on the
// request context.
func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, errUnauthenticated)
			return
		}

		ctx, cancel := withTimeout(r.Context())
		p, err := a.identity.Authenticate(ctx, token)
		cancel()
		if err != nil {
			a.fail(w, r, err)
			return
		}

		zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("role", p.Role).Str("subject_id", p.SubjectID.String())
		})
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
	})
}

// requireRole admits principals holding one of roles.
func requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := principalFrom(r.Context())
			if !ok {
				respondError(w, http.StatusUnauthorized, errUnauthenticated)
				return
			}
			if !slices.Contains(roles, p.Role) {
				respondError(w, http.StatusForbidden, errForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func sessionMeta(r *http.Request) identity.SessionMeta {
	return identity.SessionMeta{UserAgent: r.UserAgent(), IPAddress: r.RemoteAddr}
}
