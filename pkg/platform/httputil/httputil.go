// Package httputil writes the JSON envelope shared by every endpoint:
//
//	{"success": true, "data": ...}
//	{"success": false, "error": {"kind": "...", "message": "..."}}
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "warish/pkg/domain-errors"
)

const maxJSONBodyBytes = 1 << 20

// Envelope is the response body of every JSON endpoint.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Kind    string            `json:"kind"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Validatable is implemented by request DTOs decoded with DecodeAndPrepare.
type Validatable interface {
	Validate() error
}

// WriteJSON writes v as-is with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData writes a success envelope around data.
func WriteData(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, Envelope{Success: true, Data: data})
}

// WriteError writes a failure envelope. Coded errors keep their message and
// details; anything else is reported as a bare internal error.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := &ErrorBody{Kind: string(code), Message: "internal error"}
	if de, ok := dErrors.As(err); ok && code != dErrors.CodeInternal {
		body.Message = de.Message
		body.Details = de.Details
	}
	WriteJSON(w, StatusFor(code), Envelope{Success: false, Error: body})
}

// StatusFor maps an error code to an HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeInvalidTransition, dErrors.CodeAssignmentLocked,
		dErrors.CodeNotReviewable, dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeDepthExceeded, dErrors.CodeCorruptHierarchy:
		return http.StatusUnprocessableEntity
	case dErrors.CodeStorageFailure:
		return http.StatusBadGateway
	case dErrors.CodeStorageTimeout, dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// DecodeAndPrepare decodes a JSON body into T and validates it. On failure it
// writes the error response and returns ok=false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	req := PT(new(T))
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		msg := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		logger.WarnContext(ctx, "failed to decode request",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, msg))
		return nil, false
	}
	if err := req.Validate(); err != nil {
		logger.InfoContext(ctx, "request validation failed",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, err)
		return nil, false
	}
	return (*T)(req), true
}
