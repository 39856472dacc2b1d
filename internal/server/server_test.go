package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/natours/api/config"
	"github.com/natours/api/internal/auth"
	"github.com/natours/api/internal/handlers"
	"github.com/natours/api/internal/mailer"
	"github.com/natours/api/internal/services"
)

// noUsers satisfies auth.UserStore for routes that never reach it.
type noUsers struct{ auth.UserStore }

func testRouter(t *testing.T, cfg config.Config) http.Handler {
	t.Helper()
	access, err := auth.New(auth.Config{Secret: []byte("test-secret")}, noUsers{}, auth.BcryptHasher{Cost: 4})
	require.NoError(t, err)
	return NewRouter(cfg, handlers.Deps{
		Access:  access,
		Tours:   services.NewTourService(nil),
		Users:   services.NewUserService(nil, access, nil),
		Reviews: services.NewReviewService(nil),
	})
}

func testConfig() config.Config {
	return config.Config{
		HTTP: config.HTTPConfig{
			RateLimitRequests:  2,
			RateLimitWindow:    time.Hour,
			CORSAllowedOrigins: []string{"https://natours.dev"},
		},
	}
}

func TestRouterHealthAndMetrics(t *testing.T) {
	router := testRouter(t, testConfig())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "natours_http_requests_total")
}

func TestRouterNotFound(t *testing.T) {
	router := testRouter(t, testConfig())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"fail"`)
}

func TestRouterRateLimitsAPI(t *testing.T) {
	router := testRouter(t, testConfig())

	var codes []int
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/nowhere", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	require.Equal(t, []int{http.StatusNotFound, http.StatusNotFound, http.StatusTooManyRequests}, codes)

	// Outside /api the limiter does not apply.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "203.0.113.7:5555"
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterCORS(t *testing.T) {
	router := testRouter(t, testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/tours", nil)
	req.Header.Set("Origin", "https://natours.dev")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, "https://natours.dev", rec.Header().Get("Access-Control-Allow-Origin"))
	require.True(t, strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch))
}

func TestNewMailSender(t *testing.T) {
	sender, err := newMailSender(config.Config{}, nil)
	require.NoError(t, err)
	require.IsType(t, mailer.LogSender{}, sender)

	cfg := config.Config{SMTP: config.SMTPConfig{Host: "smtp.mailtrap.io", Port: 2525, From: "Natours <hello@natours.io>"}}
	sender, err = newMailSender(cfg, nil)
	require.NoError(t, err)
	require.IsType(t, &mailer.SMTPSender{}, sender)

	cfg.SMTP.From = "not an address"
	_, err = newMailSender(cfg, nil)
	require.Error(t, err)
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := New(t.Context(), config.Config{})
	require.ErrorContains(t, err, "JWT_SECRET")
}
