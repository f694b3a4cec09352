package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	redisad "talok/internal/adapters/redis"
	"talok/internal/domain"
	"talok/internal/wizard"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.NewValidationError(), http.StatusBadRequest},
		{fmt.Errorf("x: %w", domain.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w %q", wizard.ErrUnknownKey, "pool"), http.StatusBadRequest},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("lease: %w", domain.ErrForbidden), http.StatusForbidden},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrInvalidTransition, http.StatusConflict},
		{domain.ErrConflict, http.StatusConflict},
		{wizard.ErrSubmitted, http.StatusConflict},
		{fmt.Errorf("%w: have 5, got 3", redisad.ErrStaleRevision), http.StatusConflict},
		{fmt.Errorf("query: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := statusOf(c.err); got != c.want {
			t.Errorf("statusOf(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestRemoteIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	if got := remoteIP(r); got != "10.0.0.1" {
		t.Fatalf("remote addr: %s", got)
	}
	r.Header.Set("X-Real-IP", "192.0.2.7")
	if got := remoteIP(r); got != "192.0.2.7" {
		t.Fatalf("x-real-ip: %s", got)
	}
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := remoteIP(r); got != "203.0.113.9" {
		t.Fatalf("x-forwarded-for: %s", got)
	}
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for h, want := range map[string]string{
		"":             "",
		"Basic abc":    "",
		"Bearer abc":   "abc",
		"bearer  xyz ": "xyz",
		"Bearer":       "",
	} {
		r.Header.Set("Authorization", h)
		if got := bearerToken(r); got != want {
			t.Errorf("bearerToken(%q) = %q, want %q", h, got, want)
		}
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("pq: password authentication failed"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d", rec.Code)
	}
	if got := rec.Body.String(); got != "{\"error\":\"internal error\"}\n" {
		t.Fatalf("body %q", got)
	}
}

func TestTimeout(t *testing.T) {
	stall := Timeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	rec := httptest.NewRecorder()
	stall.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status %d, want 504", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type %q", ct)
	}
	if got := rec.Body.String(); got != "{\"error\":\"request timed out\"}\n" {
		t.Fatalf("body %q", got)
	}

	fast := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Deadline(); !ok {
			t.Errorf("handler context has no deadline")
		}
		writeJSON(w, http.StatusCreated, map[string]string{"ok": "yes"})
	}))
	rec = httptest.NewRecorder()
	fast.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/fast", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d, want 201", rec.Code)
	}

	// a handler that already answered keeps its response
	late := Timeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		writeError(w, fmt.Errorf("query: %w", r.Context().Err()))
	}))
	rec = httptest.NewRecorder()
	late.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/late", nil))
	if rec.Code != http.StatusGatewayTimeout || !strings.Contains(rec.Body.String(), "database timeout") {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}
