package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/warnman/internal/metrics"
	"github.com/hitoshi/warnman/internal/middleware"
	"github.com/hitoshi/warnman/internal/model"
	"github.com/prometheus/client_golang/prometheus"
)

type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error {
	return m.err
}

func newTestRouter(t *testing.T, svc WarnServiceInterface, pinger Pinger) http.Handler {
	t.Helper()

	reg := prometheus.NewRegistry()
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		CORSAllowedOrigin: "*",
		RateLimiter:       rl,
		Metrics:           metrics.NewCollector(reg),
		WarnService:       svc,
		Pinger:            pinger,
		Gatherer:          reg,
	})
}

func TestNewRouter_RoutesWarnEndpoints(t *testing.T) {
	svc := &mockWarnService{
		createFn: func(ctx context.Context, identifiers []string, reason string) (*model.WarnRecord, error) {
			return &model.WarnRecord{ID: 1, WarnID: "AAAAAAAA", Data: model.NewGroupedIdentifiers(), WarningReason: reason}, nil
		},
		searchFn: func(ctx context.Context, keyword string) ([]*model.WarnRecord, error) {
			return []*model.WarnRecord{}, nil
		},
		deleteFn: func(ctx context.Context, warnID string) (string, error) {
			return "ok", nil
		},
	}
	router := newTestRouter(t, svc, &mockPinger{})

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodPost, "/add-identifiers", `{"warning_reason":"x"}`, http.StatusCreated},
		{http.MethodGet, "/search-warns?keyword=ab", "", http.StatusOK},
		{http.MethodDelete, "/delete-warn/AAAAAAAA", "", http.StatusOK},
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/unknown", "", http.StatusNotFound},
		{http.MethodGet, "/add-identifiers", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		var body io.Reader
		if tt.body != "" {
			body = strings.NewReader(tt.body)
		}
		req := httptest.NewRequest(tt.method, tt.path, body)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != tt.want {
			t.Errorf("%s %s status = %d, want %d", tt.method, tt.path, w.Code, tt.want)
		}
	}
}

func TestNewRouter_EmptyWarnID_Returns400(t *testing.T) {
	svc := &mockWarnService{
		deleteFn: func(ctx context.Context, warnID string) (string, error) {
			if strings.TrimSpace(warnID) == "" {
				return "", model.NewWarnIDRequiredError()
			}
			return "ok", nil
		},
	}
	router := newTestRouter(t, svc, &mockPinger{})

	for _, path := range []string{"/delete-warn/", "/delete-warn/%20%20"} {
		req := httptest.NewRequest(http.MethodDelete, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("DELETE %s status = %d, want %d", path, w.Code, http.StatusBadRequest)
		}
	}
}

func TestNewRouter_HealthUnavailable(t *testing.T) {
	router := newTestRouter(t, &mockWarnService{}, &mockPinger{err: errors.New("database is closed")})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if !strings.Contains(w.Body.String(), `"status":"unavailable"`) {
		t.Errorf("body = %s, want unavailable status", w.Body.String())
	}
}

func TestNewRouter_AppliesSecurityAndCORSHeaders(t *testing.T) {
	router := newTestRouter(t, &mockWarnService{}, &mockPinger{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "*")
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want %q", got, "nosniff")
	}
}

func TestNewRouter_RecordsHTTPStatusMetrics(t *testing.T) {
	svc := &mockWarnService{
		searchFn: func(ctx context.Context, keyword string) ([]*model.WarnRecord, error) {
			return nil, model.NewKeywordTooShortError()
		},
	}
	router := newTestRouter(t, svc, &mockPinger{})

	req := httptest.NewRequest(http.MethodGet, "/search-warns?keyword=x", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), `warnman_http_status_total{status_code="400"} 1`) {
		t.Errorf("metrics do not contain the 400 response:\n%s", w.Body.String())
	}
}

func TestNewRouter_PanicInServiceReturns500(t *testing.T) {
	svc := &mockWarnService{
		searchFn: func(ctx context.Context, keyword string) ([]*model.WarnRecord, error) {
			panic("nil map write")
		},
	}
	router := newTestRouter(t, svc, &mockPinger{})

	req := httptest.NewRequest(http.MethodGet, "/search-warns?keyword=ab", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
