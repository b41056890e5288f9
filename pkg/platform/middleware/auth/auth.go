package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "warish/pkg/domain"
	dErrors "warish/pkg/domain-errors"
	"warish/pkg/platform/httputil"
	request "warish/pkg/platform/middleware/request"
	"warish/pkg/requestcontext"
)

// TokenValidator validates a bearer token and returns the staff identity it carries.
type TokenValidator interface {
	ValidateToken(tokenString string) (*StaffClaims, error)
}

// StaffClaims is the identity the auth collaborator vouches for.
type StaffClaims struct {
	StaffID string
	Name    string
}

// GetStaffID retrieves the authenticated staff member from the context.
func GetStaffID(ctx context.Context) id.StaffID {
	return requestcontext.StaffID(ctx)
}

// RequireStaff rejects requests without a valid bearer token and stores the
// staff id in the request context.
func RequireStaff(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}
			staffID := id.StaffID(claims.StaffID)
			if staffID.IsEmpty() {
				logger.WarnContext(ctx, "unauthorized access - token without subject",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithStaffID(ctx, staffID)))
		})
	}
}
