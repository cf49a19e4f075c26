package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/registration/internal/auth"
	"github.com/Togather-Foundation/registration/internal/config"
	"github.com/Togather-Foundation/registration/internal/domain/registrations"
	"github.com/Togather-Foundation/registration/internal/domain/settings"
	"github.com/Togather-Foundation/registration/internal/intake"
	"github.com/Togather-Foundation/registration/internal/standings"
)

func TestMethodMux(t *testing.T) {
	getHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("GET response"))
	})
	postHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("POST response"))
	})

	mux := methodMux(map[string]http.Handler{
		http.MethodGet:  getHandler,
		http.MethodPost: postHandler,
	})

	tests := []struct {
		name         string
		method       string
		expectStatus int
		expectBody   string
		expectAllow  string
	}{
		{name: "GET allowed", method: http.MethodGet, expectStatus: http.StatusOK, expectBody: "GET response"},
		{name: "POST allowed", method: http.MethodPost, expectStatus: http.StatusCreated, expectBody: "POST response"},
		{name: "PUT not allowed", method: http.MethodPut, expectStatus: http.StatusMethodNotAllowed, expectAllow: "GET, POST"},
		{name: "OPTIONS not allowed", method: http.MethodOptions, expectStatus: http.StatusMethodNotAllowed, expectAllow: "GET, POST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(tt.method, "/test", nil))

			assert.Equal(t, tt.expectStatus, w.Code)
			if tt.expectBody != "" {
				assert.Equal(t, tt.expectBody, w.Body.String())
			}
			if tt.expectAllow != "" {
				assert.Equal(t, tt.expectAllow, w.Header().Get("Allow"))
			}
		})
	}
}

func TestAllowedMethods(t *testing.T) {
	noop := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	assert.Equal(t, "GET", allowedMethods(map[string]http.Handler{http.MethodGet: noop}))
	assert.Equal(t, "DELETE, GET, POST, PUT", allowedMethods(map[string]http.Handler{
		http.MethodPut:    noop,
		http.MethodGet:    noop,
		http.MethodDelete: noop,
		http.MethodPost:   noop,
	}))
	assert.Equal(t, "", allowedMethods(map[string]http.Handler{}))
}

type stubIntake struct{}

func (stubIntake) Submit(_ context.Context, in registrations.Input) (intake.Result, error) {
	if strings.TrimSpace(in.Name) == "" {
		return intake.Result{}, &registrations.ValidationError{Fields: map[string]string{"nome": "is required"}}
	}
	return intake.Result{Steps: []intake.StepResult{
		{Name: intake.StepNotify, Policy: intake.Mandatory, Status: intake.StatusSkipped},
	}}, nil
}

func newTestRouter(t *testing.T) (http.Handler, *settings.Service) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Environment = "test"
	cfg.RateLimit = config.RateLimitConfig{}
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"https://corridaparaoeverest.com.br"}}

	logger := zerolog.Nop()
	settingsSvc := settings.NewService(settings.NewMemoryRepository(), nil, logger)
	gate := auth.NewAdminGate("everest2026", auth.NewJWTManager("test-secret", time.Hour, "registration"))

	router := NewRouter(cfg, logger, Services{
		Intake:     stubIntake{},
		RosterView: standings.NewRosterView(nil, nil, logger),
		Ranking:    standings.NewRankingView(settingsSvc, nil, nil, logger),
		Settings:   settingsSvc,
		Gate:       gate,
		Build:      BuildInfo{Version: "1.2.3"},
		Components: map[string]bool{"email": false, "roster": false},
	})
	return router, settingsSvc
}

func unlock(t *testing.T, router http.Handler) string {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/admin/unlock", strings.NewReader(`{"password":"everest2026"}`)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body.Token
}

func TestRouterRelayPreflight(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, path := range []string{"/api/send-registration-email", "/api/append-athlete"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", "https://elsewhere.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Empty(t, w.Body.String())
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "authorization, x-client-info, apikey, content-type", w.Header().Get("Access-Control-Allow-Headers"))
	}
}

func TestRouterRelayWithoutBackends(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/send-registration-email", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"RESEND_API_KEY não configurada"}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/append-athlete", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.JSONEq(t, `{"error":"Method not allowed"}`, w.Body.String())
}

func TestRouterPublicEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/roster", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"source":"none","entries":[]}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ranking", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"visible":false,"masculino":[],"feminino":[]}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/v1/roster", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "GET", w.Header().Get("Allow"))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/registrations", strings.NewReader(`{"nome":""}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/registrations", strings.NewReader(`{"nome":"Ana"}`)))
	assert.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/version", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"1.2.3"`)
}

func TestRouterCORSAllowList(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/registrations", nil)
	req.Header.Set("Origin", "https://corridaparaoeverest.com.br")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://corridaparaoeverest.com.br", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterAdmin(t *testing.T) {
	router, settingsSvc := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/registrations", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/admin/unlock", strings.NewReader(`{"password":"wrong"}`)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := unlock(t, router)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/registrations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, "no store configured")

	req = httptest.NewRequest(http.MethodPut, "/api/v1/admin/settings/final_corrida", strings.NewReader(`{"value":true}`))
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"saved"`)

	value, err := settingsSvc.Get(context.Background(), settings.ResultsFinal)
	require.NoError(t, err)
	assert.True(t, value)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ranking", nil))
	assert.JSONEq(t, `{"visible":true,"source":"none","masculino":[],"feminino":[]}`, w.Body.String())
}

func TestRouterOps(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "registration_http_requests_total")
}
