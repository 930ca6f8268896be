package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

// ClaimsKey is the context key under which AuthMiddleware stores *Claims
const ClaimsKey contextKey = "claims"

const (
	bearerPrefix = "Bearer "
	maxTokenLen  = 8192

	// tokens closer than this to expiry get the X-Token-Expires-* headers
	expiryWarning = time.Hour
)

// ErrorResponse is the JSON body of every auth failure
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// authError is a rejected request: the message and code sent with a 401
type authError struct {
	code    string
	message string
}

// WithClaims returns a copy of ctx carrying claims
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// ClaimsFromContext returns the claims set by AuthMiddleware, or nil
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(ClaimsKey).(*Claims)
	return claims
}

// UserIDFromContext returns the token subject, or 0 for anonymous requests
func UserIDFromContext(ctx context.Context) int64 {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.UserID
	}
	return 0
}

func writeAuthError(w http.ResponseWriter, status int, e authError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: e.message, Code: e.code}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// bearerToken pulls the raw token out of the Authorization header
func bearerToken(header string) (string, *authError) {
	switch {
	case header == "":
		return "", &authError{"MISSING_AUTH_HEADER", "Authorization header required"}
	case !strings.HasPrefix(header, bearerPrefix):
		return "", &authError{"INVALID_AUTH_FORMAT", "Invalid authorization header format. Expected: Bearer <token>"}
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	switch {
	case token == "":
		return "", &authError{"MISSING_TOKEN", "Token is required"}
	case len(token) > maxTokenLen:
		return "", &authError{"INVALID_TOKEN_FORMAT", "Invalid token format: token size exceeds maximum allowed"}
	case strings.Count(token, ".") != 2:
		return "", &authError{"INVALID_TOKEN_FORMAT", "Invalid token format: invalid JWT token format"}
	}
	return token, nil
}

// classify maps a jwt validation error to the code reported to the client
func classify(err error) authError {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return authError{"TOKEN_EXPIRED", "Token has expired"}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return authError{"INVALID_SIGNATURE", "Token signature is invalid"}
	case errors.Is(err, jwt.ErrTokenMalformed):
		return authError{"MALFORMED_TOKEN", "Token is malformed"}
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return authError{"INVALID_TOKEN_SCOPE", "Token was issued for another service"}
	default:
		return authError{"INVALID_TOKEN", "Invalid or expired token"}
	}
}

// AuthMiddleware requires a valid bearer token on every request it wraps and
// stores the claims in the request context. Mount it on the protected route
// group only; health and metrics routes stay outside.
func AuthMiddleware(jwtManager *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, aerr := bearerToken(r.Header.Get("Authorization"))
			if aerr != nil {
				writeAuthError(w, http.StatusUnauthorized, *aerr)
				return
			}

			claims, err := jwtManager.ValidateToken(token)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, classify(err))
				return
			}
			if claims.UserID <= 0 {
				writeAuthError(w, http.StatusUnauthorized, authError{"INVALID_USER_ID", "Invalid user ID in token"})
				return
			}
			if len(claims.Roles) == 0 {
				writeAuthError(w, http.StatusUnauthorized, authError{"NO_ROLES", "No roles assigned to user"})
				return
			}

			if claims.IsExpiringSoon(expiryWarning) {
				expiresAt := claims.ExpiresAt.Time
				w.Header().Set("X-Token-Expires-At", expiresAt.Format(time.RFC3339))
				w.Header().Set("X-Token-Expires-In", time.Until(expiresAt).Round(time.Second).String())
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// MustRole lets a request through when its claims hold any of roles
func MustRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				writeAuthError(w, http.StatusUnauthorized, authError{"AUTHENTICATION_REQUIRED", "Authentication required"})
				return
			}
			if !claims.HasRole(roles...) {
				writeAuthError(w, http.StatusForbidden, authError{"INSUFFICIENT_PERMISSIONS", "Insufficient permissions"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
