package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/noah-isme/notebook-tracker-api/internal/handler"
	"github.com/noah-isme/notebook-tracker-api/pkg/config"
)

func TestRouterProtectsAPIRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Env: config.EnvDevelopment, APIPrefix: "/api/v1"}
	r := newRouter(cfg, zap.NewNop(), routerDeps{
		auth:          handler.NewAuthHandler(nil),
		students:      handler.NewStudentHandler(nil),
		cycles:        handler.NewCycleHandler(nil),
		analytics:     handler.NewAnalyticsHandler(nil),
		notifications: handler.NewNotificationHandler(nil),
		exports:       handler.NewExportHandler(nil),
		auditTrail:    handler.NewAuditHandler(nil),
		health:        handler.NewMetricsHandler(nil, nil),
	})

	cases := []struct {
		method, path string
		code         int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/ready", http.StatusOK},
		{http.MethodGet, "/api/v1/classes/c1/defaulters", http.StatusUnauthorized},
		{http.MethodPatch, "/api/v1/cycles/cy1/students/st1/status", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/cycles/active", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/submissions/r1/notify", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/audit", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, tc.code, rec.Code, tc.path)
	}
}
