package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func findEntry(t *testing.T, logs []observer.LoggedEntry, msg string) observer.LoggedEntry {
	t.Helper()
	for _, entry := range logs {
		if entry.Message == msg {
			return entry
		}
	}
	require.Failf(t, "log entry not found", "message %q", msg)
	return observer.LoggedEntry{}
}

func newTestRouter(l *zap.Logger, pre ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(pre...)
	router.Use(GinMiddleware(l))
	return router
}

func TestGinMiddleware_LogsRequest(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	router := newTestRouter(zap.New(core), func(c *gin.Context) {
		c.Set(GinRequestIDKey, "req-123")
		c.Next()
	})
	router.GET("/api/v1/loans/:id", func(c *gin.Context) {
		c.Set(GinOperatorKey, "ops.priya")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/loans/loan-1?view=full", nil)
	req.Header.Set("User-Agent", "collections-cli/1.0")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	entry := findEntry(t, recorded.All(), "HTTP Request")
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, "req-123", fields["request_id"])
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/api/v1/loans/loan-1", fields["path"])
	assert.Equal(t, "/api/v1/loans/:id", fields["route"])
	assert.Equal(t, "view=full", fields["query"])
	assert.Equal(t, "ops.priya", fields["operator"])
	assert.Equal(t, "loan-1", fields["loan_id"])
	assert.Equal(t, "collections-cli/1.0", fields["user_agent"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
}

func TestGinMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  zapcore.Level
	}{
		{http.StatusCreated, zapcore.InfoLevel},
		{http.StatusConflict, zapcore.WarnLevel},
		{http.StatusUnprocessableEntity, zapcore.WarnLevel},
		{http.StatusInternalServerError, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			core, recorded := observer.New(zapcore.DebugLevel)
			router := newTestRouter(zap.New(core))
			router.POST("/x", func(c *gin.Context) {
				c.Status(tt.status)
			})

			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/x", nil))
			assert.Equal(t, tt.level, findEntry(t, recorded.All(), "HTTP Request").Level)
		})
	}
}

func TestGinMiddleware_ErrorsAndRequestLogger(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	router := newTestRouter(zap.New(core))
	router.GET("/x", func(c *gin.Context) {
		assert.Same(t, GetGinLogger(c), FromContext(c.Request.Context()))
		_ = c.Error(assert.AnError)
		c.Status(http.StatusBadRequest)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	entry := findEntry(t, recorded.All(), "HTTP Request")
	assert.Equal(t, []any{assert.AnError.Error()}, entry.ContextMap()["errors"])
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.ErrorLevel)

	router := gin.New()
	router.Use(Recovery(zap.New(core)))
	router.GET("/panic", func(c *gin.Context) {
		panic("ledger exploded")
	})

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, "Panic recovered", logs[0].Message)
	assert.Equal(t, "ledger exploded", logs[0].ContextMap()["error"])
}

func TestGetGinLogger_NotSet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	l := GetGinLogger(c)
	require.NotNil(t, l)
	assert.NotPanics(t, func() { l.Info("discarded") })
}
