package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	handler := RateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/payroll/periods", nil)
		req.RemoteAddr = "10.0.0.1:4321"
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payroll/periods", nil)
	req.RemoteAddr = "10.0.0.1:4321"
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestRateLimitKeysByClientIP(t *testing.T) {
	handler := RateLimit(1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRequest(http.MethodGet, "/api/v1/payroll/periods", nil)
	first.RemoteAddr = "10.0.0.1:4321"
	second := httptest.NewRequest(http.MethodGet, "/api/v1/payroll/periods", nil)
	second.RemoteAddr = "10.0.0.2:4321"

	for _, req := range []*http.Request{first, second} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected separate buckets per client, got %d", rec.Code)
		}
	}
}

func TestLedgerMutationRateLimitScope(t *testing.T) {
	cases := []struct {
		method string
		path   string
		want   bool
	}{
		{http.MethodPost, "/api/v1/payroll/periods/sch-1-20240216-20240315/post", true},
		{http.MethodPost, "/api/v1/payroll/periods/sch-1-20240216-20240315/repost", true},
		{http.MethodPost, "/api/v1/payroll/periods/sch-1-20240216-20240315/approve", true},
		{http.MethodPost, "/api/v1/payroll/periods/sch-1-20240216-20240315/override", true},
		{http.MethodGet, "/api/v1/payroll/periods/sch-1-20240216-20240315/post", false},
		{http.MethodPost, "/api/v1/payroll/periods", false},
		{http.MethodPost, "/api/v1/payroll/schedules", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		if got := isLedgerMutation(req); got != tc.want {
			t.Errorf("%s %s: got %v, want %v", tc.method, tc.path, got, tc.want)
		}
	}
}

func TestLedgerMutationRateLimitOnlyThrottlesScopedPaths(t *testing.T) {
	handler := LedgerMutationRateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Limit is baseLimit/2 = 1 per window for mutation paths.
	post := func(path string) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = "10.0.0.9:4321"
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := post("/api/v1/payroll/periods/p-1/post"); code != http.StatusOK {
		t.Fatalf("first mutation: expected 200, got %d", code)
	}
	if code := post("/api/v1/payroll/periods/p-1/post"); code != http.StatusTooManyRequests {
		t.Fatalf("second mutation: expected 429, got %d", code)
	}
	if code := post("/api/v1/payroll/schedules"); code != http.StatusOK {
		t.Fatalf("unscoped path should not be throttled, got %d", code)
	}
}
