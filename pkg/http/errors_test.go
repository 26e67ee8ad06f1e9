package http

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestWriteRateLimited(t *testing.T) {
	w := httptest.NewRecorder()

	WriteRateLimited(w, 1800)

	if w.Code != 429 {
		t.Errorf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1800" {
		t.Errorf("Retry-After = %q, want 1800", got)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if resp.Error != "rate_limit_exceeded" {
		t.Errorf("error code = %q, want rate_limit_exceeded", resp.Error)
	}
}

func TestWriteRateLimitedNoRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()

	WriteRateLimited(w, 0)

	if got := w.Header().Get("Retry-After"); got != "" {
		t.Errorf("Retry-After should be absent, got %q", got)
	}
}

func TestWriteErrorWithDetails(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorWithDetails(w, 400, "bad_request", "password rejected",
		[]string{"must contain at least one digit"})

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if len(resp.Details) != 1 {
		t.Errorf("details = %v, want one entry", resp.Details)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}
