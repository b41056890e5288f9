package testutil

import (
	"context"
	"net/http"
	"time"

	id "warish/pkg/domain"
	"warish/pkg/requestcontext"
)

// WithStaff adds a staff id to the request context.
// This simulates what the auth middleware does for authenticated requests.
// Blank ids are ignored so tests can model anonymous citizen requests.
func WithStaff(req *http.Request, staffID string) *http.Request {
	if id.StaffID(staffID).IsEmpty() {
		return req
	}
	return req.WithContext(requestcontext.WithStaffID(req.Context(), id.StaffID(staffID)))
}

// WithTime pins the request-scoped clock.
func WithTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// StaffContext returns a background context acting as staffID at now.
func StaffContext(staffID string, now time.Time) context.Context {
	ctx := requestcontext.WithStaffID(context.Background(), id.StaffID(staffID))
	return requestcontext.WithTime(ctx, now)
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
