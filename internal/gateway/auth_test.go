package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/applymytech/openElara/internal/security"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func TestAuthMiddleware_Credentials(t *testing.T) {
	t.Parallel()

	cfg := AuthConfig{BearerToken: "secret-token", BasicUser: "admin", BasicPass: "pass123"}

	tests := []struct {
		name    string
		prepare func(r *http.Request)
		want    int
	}{
		{"valid bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer secret-token") }, http.StatusOK},
		{"wrong bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"lowercase scheme", func(r *http.Request) { r.Header.Set("Authorization", "bearer secret-token") }, http.StatusUnauthorized},
		{"valid basic", func(r *http.Request) { r.SetBasicAuth("admin", "pass123") }, http.StatusOK},
		{"wrong basic", func(r *http.Request) { r.SetBasicAuth("admin", "wrong") }, http.StatusUnauthorized},
		{"missing header", func(*http.Request) {}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			handler := authMiddleware(cfg, nil, nil)(okHandler())
			req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
			tt.prepare(req)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestAuthMiddleware_AuditsOutcome(t *testing.T) {
	t.Parallel()

	var events []security.AuditEvent
	audit := security.NewAuditLogger(security.AuditLoggerConfig{
		OnEvent: func(e security.AuditEvent) { events = append(events, e) },
	})
	handler := authMiddleware(AuthConfig{BearerToken: "tok"}, audit, nil)(okHandler())

	good := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	good.Header.Set("Authorization", "Bearer tok")
	handler.ServeHTTP(httptest.NewRecorder(), good)

	bad := httptest.NewRequest(http.MethodPost, "/v1/chat/turns", nil)
	handler.ServeHTTP(httptest.NewRecorder(), bad)

	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Type != security.EventAuthSuccess || events[0].Detail != "bearer" {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Type != security.EventAuthFailure {
		t.Errorf("second event type = %q", events[1].Type)
	}
	if events[1].Metadata["path"] != "/v1/chat/turns" || events[1].Metadata["method"] != http.MethodPost {
		t.Errorf("second event metadata = %v", events[1].Metadata)
	}
}

func TestAuthMiddleware_RateLimited(t *testing.T) {
	t.Parallel()

	limiter := security.NewRateLimiter(security.RateLimitConfig{AuthPerMin: 2})
	handler := authMiddleware(AuthConfig{BearerToken: "tok"}, nil, limiter)(okHandler())

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
		req.Header.Set("Authorization", "Bearer tok")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d: status = %d, want %d", i, codes[i], want[i])
		}
	}
}

func TestMutationLimit(t *testing.T) {
	t.Parallel()

	limiter := security.NewRateLimiter(security.RateLimitConfig{MutationsPerMin: 1})
	var limited int
	audit := security.NewAuditLogger(security.AuditLoggerConfig{
		OnEvent: func(e security.AuditEvent) {
			if e.Type == security.EventRateLimit && e.Detail == security.BucketMutation {
				limited++
			}
		},
	})
	handler := mutationLimit(audit, limiter)(okHandler())

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/v1/chat/turns", nil))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/v1/chat/turns", nil))

	if first.Code != http.StatusOK {
		t.Errorf("first status = %d", first.Code)
	}
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", second.Code)
	}
	if limited != 1 {
		t.Errorf("rate limit events = %d, want 1", limited)
	}
}

func TestAuthConfig_IsConfigured(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  AuthConfig
		want bool
	}{
		{"empty", AuthConfig{}, false},
		{"bearer only", AuthConfig{BearerToken: "tok"}, true},
		{"basic complete", AuthConfig{BasicUser: "u", BasicPass: "p"}, true},
		{"basic partial user", AuthConfig{BasicUser: "u"}, false},
		{"basic partial pass", AuthConfig{BasicPass: "p"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.cfg.IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}
