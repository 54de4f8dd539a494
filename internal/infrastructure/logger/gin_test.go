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

func newLoggedRouter(level zapcore.Level) (*gin.Engine, *observer.ObservedLogs) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(level)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Request-ID"); id != "" {
			c.Set("request_id", id)
		}
		c.Next()
	})
	router.Use(GinMiddleware(zap.New(core)))
	return router, recorded
}

func requestEntry(t *testing.T, recorded *observer.ObservedLogs) observer.LoggedEntry {
	t.Helper()
	entries := recorded.FilterMessage("HTTP Request").All()
	require.Len(t, entries, 1)
	return entries[0]
}

func TestGinMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  zapcore.Level
	}{
		{http.StatusOK, zapcore.InfoLevel},
		{http.StatusNotFound, zapcore.WarnLevel},
		{http.StatusConflict, zapcore.WarnLevel},
		{http.StatusBadGateway, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			router, recorded := newLoggedRouter(zapcore.DebugLevel)
			router.GET("/api/v1/orders/:id", func(c *gin.Context) {
				c.Status(tt.status)
			})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders/42", nil))

			entry := requestEntry(t, recorded)
			assert.Equal(t, tt.level, entry.Level)
			assert.Equal(t, int64(tt.status), entry.ContextMap()["status"])
		})
	}
}

func TestGinMiddleware_Fields(t *testing.T) {
	router, recorded := newLoggedRouter(zapcore.InfoLevel)
	router.POST("/webhooks/:partner", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"accepted": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/jahez", nil)
	req.Header.Set("X-Request-ID", "req-123")
	req.Header.Set("User-Agent", "Jahez-Webhooks/2.0")
	router.ServeHTTP(httptest.NewRecorder(), req)

	fields := requestEntry(t, recorded).ContextMap()
	assert.Equal(t, "req-123", fields["request_id"])
	assert.Equal(t, "jahez", fields["partner"])
	assert.Equal(t, "/webhooks/:partner", fields["route"])
	assert.Equal(t, "/webhooks/jahez", fields["path"])
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "Jahez-Webhooks/2.0", fields["user_agent"])
	assert.Contains(t, fields, "latency")
	assert.Contains(t, fields, "client_ip")
	assert.Contains(t, fields, "body_size")
}

func TestGinMiddleware_RedactsTokenQuery(t *testing.T) {
	router, recorded := newLoggedRouter(zapcore.InfoLevel)
	router.GET("/api/v1/orders/stream", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.ServeHTTP(httptest.NewRecorder(),
		httptest.NewRequest(http.MethodGet, "/api/v1/orders/stream?token=eyJhbGciOi.secret&status=pending", nil))

	query, ok := requestEntry(t, recorded).ContextMap()["query"].(string)
	require.True(t, ok)
	assert.NotContains(t, query, "eyJhbGciOi")
	assert.Contains(t, query, "token=REDACTED")
	assert.Contains(t, query, "status=pending")
}

func TestRedactQuery(t *testing.T) {
	assert.Equal(t, "", redactQuery(""))
	assert.Equal(t, "page=1&status=pending", redactQuery("page=1&status=pending"))
	assert.Equal(t, "access_token=REDACTED", redactQuery("access_token=abc"))
	assert.Equal(t, "[unparseable]", redactQuery("a=%zz"))
}

func TestGinMiddleware_PropagatesLoggerToContext(t *testing.T) {
	router, recorded := newLoggedRouter(zapcore.InfoLevel)
	router.GET("/api/v1/restaurant/status", func(c *gin.Context) {
		assert.Equal(t, "req-ctx", GetRequestID(c.Request.Context()))
		FromContext(c.Request.Context()).Info("from context")
		GetGinLogger(c).Info("from gin")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/restaurant/status", nil)
	req.Header.Set("X-Request-ID", "req-ctx")
	router.ServeHTTP(httptest.NewRecorder(), req)

	for _, msg := range []string{"from context", "from gin"} {
		entries := recorded.FilterMessage(msg).All()
		require.Len(t, entries, 1, msg)
		assert.Equal(t, "req-ctx", entries[0].ContextMap()["request_id"])
	}
}

func TestGetGinLogger_NotSet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	l := GetGinLogger(c)
	require.NotNil(t, l)
	assert.NotPanics(t, func() { l.Info("noop") })
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.ErrorLevel)

	router := gin.New()
	router.Use(Recovery(zap.New(core)))
	router.GET("/panic", func(c *gin.Context) {
		panic("adapter exploded")
	})

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"error":{"code":"ERR_INTERNAL","message":"Internal server error"}}`, w.Body.String())
	entries := recorded.FilterMessage("Panic recovered").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "adapter exploded", entries[0].ContextMap()["error"])
}

func TestGinMiddleware_ScopesContextForServices(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.InfoLevel)
	service, serviceLogs := observer.New(zapcore.InfoLevel)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		// request id already stored by an earlier middleware
		ctx, _ := WithRequestID(c.Request.Context(), zap.NewNop(), "req-early")
		c.Set("request_id", "req-early")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	router.Use(GinMiddleware(zap.New(core)))
	router.POST("/webhooks/:partner", func(c *gin.Context) {
		ctx := c.Request.Context()
		assert.Equal(t, "keeta", GetPartner(ctx))
		L(ctx, zap.New(service)).Info("ingested")
		c.Status(http.StatusOK)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/webhooks/keeta", nil))

	access := requestEntry(t, recorded).ContextMap()
	assert.Equal(t, "req-early", access["request_id"])
	assert.Equal(t, "keeta", access["partner"])

	require.Equal(t, 1, serviceLogs.Len())
	fields := serviceLogs.All()[0].ContextMap()
	assert.Equal(t, "req-early", fields["request_id"])
	assert.Equal(t, "keeta", fields["partner"])
}
