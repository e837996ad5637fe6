package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Middleware returns HTTP middleware that validates JWT access tokens and
// installs the resulting principal into the request context.
func Middleware(tokenSvc *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := extractBearerToken(r)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, err.Error())
				return
			}

			authn, err := tokenSvc.ValidateToken(token)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			// Reject refresh tokens on non-refresh endpoints
			if authn.TokenType != "access" {
				writeAuthError(w, http.StatusUnauthorized, "access token required")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthentication(r.Context(), authn)))
		})
	}
}

// MiddlewareWithDevMode returns auth middleware that also accepts "Bearer dev"
// in dev mode, installing the given principal.
func MiddlewareWithDevMode(tokenSvc *TokenService, devAuthn *Authentication) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := extractBearerToken(r)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, err.Error())
				return
			}

			if token == "dev" && devAuthn != nil {
				next.ServeHTTP(w, r.WithContext(WithAuthentication(r.Context(), devAuthn)))
				return
			}

			authn, err := tokenSvc.ValidateToken(token)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			if authn.TokenType != "access" {
				writeAuthError(w, http.StatusUnauthorized, "access token required")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthentication(r.Context(), authn)))
		})
	}
}

func extractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("invalid authorization header format")
	}

	return parts[1], nil
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
