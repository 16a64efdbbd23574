package controllers

import (
	"CareChain/handlers"
	"CareChain/middlewares"
	"CareChain/utils"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHealthz(t *testing.T) {
	router := gin.New()
	healthy := true
	SetupRootRoute(router, map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
		"redis": func(context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("connection refused")
		},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	healthy = false
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

// Role gates reject requests before they reach the handlers, so nil services
// are never called here.
func TestRegisterRoutes_RoleGates(t *testing.T) {
	tokens, err := utils.NewTokenMaker("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	log := zap.NewNop()

	router := gin.New()
	NewAppointmentController(
		handlers.NewAppointmentHandler(nil, log),
		handlers.NewWorkItemHandler(nil, log),
		middlewares.TokenAuthMiddleware(tokens, log),
	).RegisterRoutes(router)

	cases := []struct {
		method, path, role string
	}{
		{http.MethodPost, "/api/appointments", "doctor"},
		{http.MethodGet, "/api/appointments", "patient"},
		{http.MethodPost, "/api/appointments/a1/approve", "patient"},
		{http.MethodPost, "/api/appointments/a1/cancel", "doctor"},
		{http.MethodPost, "/api/appointments/a1/payment", "doctor"},
		{http.MethodGet, "/api/doctors/d1/schedule", "patient"},
		{http.MethodGet, "/api/patients/p1/appointments", "technician"},
		{http.MethodGet, "/api/work-items", "doctor"},
		{http.MethodPost, "/api/work-items/w1/report", "admin"},
	}
	for _, tc := range cases {
		token, err := tokens.Generate("u1", tc.role, time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code, "%s %s as %s", tc.method, tc.path, tc.role)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/work-items", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
