package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/Togather-Foundation/registration/internal/api/problem"
	"github.com/Togather-Foundation/registration/internal/auth"
)

const adminClaimsKey contextKey = "adminClaims"

// TokenVerifier validates admin bearer tokens. auth.AdminGate satisfies it.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// AdminAuth requires a bearer token issued by the admin unlock endpoint.
func AdminAuth(verifier TokenVerifier, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				problem.Write(w, r, http.StatusServiceUnavailable, problem.TypeUnavailable, "Admin console disabled", auth.ErrAdminDisabled, env)
				return
			}

			token, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Missing token", err, env)
				return
			}

			claims, err := verifier.Verify(token)
			if errors.Is(err, auth.ErrAdminDisabled) {
				problem.Write(w, r, http.StatusServiceUnavailable, problem.TypeUnavailable, "Admin console disabled", err, env)
				return
			}
			if err != nil {
				problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Invalid token", err, env)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithAdminClaims(r.Context(), claims)))
		})
	}
}

func ContextWithAdminClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, adminClaimsKey, claims)
}

func AdminClaims(r *http.Request) *auth.Claims {
	if r == nil {
		return nil
	}
	if claims, ok := r.Context().Value(adminClaimsKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}
