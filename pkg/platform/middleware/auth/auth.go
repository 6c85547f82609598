package auth

import (
	"log/slog"
	"net/http"
	"strings"

	id "credreg/pkg/domain"
	dErrors "credreg/pkg/domain-errors"
	"credreg/pkg/platform/httputil"
	"credreg/pkg/requestcontext"
)

// PrincipalHeader names the acting principal when header trust is enabled.
const PrincipalHeader = "X-Principal"

// JWTValidator defines the interface for validating access tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims is the subset of token claims the middleware needs.
type JWTClaims struct {
	Principal id.Principal
	JTI       string
}

// Options configures RequireActor.
type Options struct {
	// TrustPrincipalHeader accepts X-Principal when no bearer token is sent.
	TrustPrincipalHeader bool
}

// RequireActor authenticates the caller and stores the principal in the
// request context. The engine trusts whatever principal is placed there.
func RequireActor(validator JWTValidator, opts Options, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && validator != nil {
				claims, err := validator.ValidateToken(strings.TrimSpace(token))
				if err != nil {
					logger.WarnContext(ctx, "unauthorized access - invalid token",
						"error", err,
						"request_id", requestcontext.RequestID(ctx),
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "Invalid or expired token"))
					return
				}
				ctx = requestcontext.WithActor(ctx, claims.Principal)
				ctx = requestcontext.WithTokenID(ctx, claims.JTI)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if raw := r.Header.Get(PrincipalHeader); raw != "" && opts.TrustPrincipalHeader {
				p, err := id.ParsePrincipal(raw)
				if err != nil {
					httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "Invalid X-Principal header"))
					return
				}
				next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, p)))
				return
			}

			logger.WarnContext(ctx, "unauthorized access - missing token",
				"request_id", requestcontext.RequestID(ctx),
			)
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "Missing or invalid Authorization header"))
		})
	}
}
