package logger

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/rootle-api/pkg/config"
	"github.com/noah-isme/rootle-api/pkg/middleware/requestid"
)

func observedRouter(t *testing.T) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)

	router := gin.New()
	router.Use(requestid.Middleware(), GinMiddleware(zap.New(core)))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/resources/:id", func(c *gin.Context) {
		c.Set(UserIDKey, "stu-1")
		c.Status(http.StatusOK)
	})
	router.GET("/api/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("pq: connection refused"))
		c.Status(http.StatusInternalServerError)
	})
	return router, logs
}

func TestGinMiddlewareLogsRouteTemplateAndUser(t *testing.T) {
	router, logs := observedRouter(t)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/resources/abc", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "/api/resources/:id", fields["route"])
	assert.Equal(t, "/api/resources/abc", fields["path"])
	assert.Equal(t, "stu-1", fields["user_id"])
	assert.NotEmpty(t, fields["request_id"])
}

func TestGinMiddlewareLevels(t *testing.T) {
	router, logs := observedRouter(t)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/boom", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/missing", nil))

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Contains(t, entries[1].ContextMap()["errors"], "connection refused")
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "unmatched", entries[2].ContextMap()["route"])
}

func TestNewFallsBackToInfoOnUnknownLevel(t *testing.T) {
	l, err := New(&config.Config{Env: "development", Log: config.LogConfig{Level: "loud"}})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}
