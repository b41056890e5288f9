package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	dErrors "warish/pkg/domain-errors"
)

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return env
}

func TestWriteError(t *testing.T) {
	t.Run("internal error omits message", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, errors.New("pq: connection refused"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
		env := decodeEnvelope(t, w)
		if env.Success || env.Error == nil {
			t.Fatalf("expected failure envelope, got %+v", env)
		}
		if env.Error.Kind != "internal" || env.Error.Message != "internal error" {
			t.Fatalf("expected generic internal error, got %+v", env.Error)
		}
	})

	t.Run("guard violation carries state details", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInvalidTransition, "cannot approve").
			WithDetail("current_state", "submitted"))

		if w.Code != http.StatusConflict {
			t.Fatalf("expected status %d, got %d", http.StatusConflict, w.Code)
		}
		env := decodeEnvelope(t, w)
		if env.Error.Kind != "invalid_transition" {
			t.Fatalf("expected kind invalid_transition, got %q", env.Error.Kind)
		}
		if env.Error.Details["current_state"] != "submitted" {
			t.Fatalf("expected current_state detail, got %v", env.Error.Details)
		}
	})

	t.Run("validation maps to bad request", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeValidation, "memo date is required"))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
		if msg := decodeEnvelope(t, w).Error.Message; msg != "memo date is required" {
			t.Fatalf("unexpected message %q", msg)
		}
	})
}

func TestWriteData(t *testing.T) {
	w := httptest.NewRecorder()
	WriteData(w, http.StatusCreated, map[string]string{"ack_code": "WAR-2025-ABCDEFGH"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, w.Code)
	}
	env := decodeEnvelope(t, w)
	if !env.Success || env.Error != nil {
		t.Fatalf("expected success envelope, got %+v", env)
	}
}
