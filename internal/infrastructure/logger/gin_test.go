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

func init() {
	gin.SetMode(gin.TestMode)
}

func newObservedRouter(t *testing.T, setRequestID bool) (*gin.Engine, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	r := gin.New()
	if setRequestID {
		r.Use(func(c *gin.Context) {
			c.Set("request_id", "req-abc")
			c.Next()
		})
	}
	r.Use(GinMiddleware(log), Recovery(log))
	return r, logs
}

func TestGinMiddleware_LogsByStatus(t *testing.T) {
	r, logs := newObservedRouter(t, true)
	r.GET("/api/v1/positions", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/movements/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.POST("/api/v1/allocations", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/v1/positions?warehouse_id=wh-1", nil),
		httptest.NewRequest(http.MethodGet, "/api/v1/movements/missing", nil),
		httptest.NewRequest(http.MethodPost, "/api/v1/allocations", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	entries := logs.FilterMessage("HTTP request").All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)

	first := entries[0].ContextMap()
	assert.Equal(t, "req-abc", first["request_id"])
	assert.Equal(t, "GET", first["method"])
	assert.Equal(t, "/api/v1/positions", first["path"])
	assert.Equal(t, "warehouse_id=wh-1", first["query"])
	assert.EqualValues(t, http.StatusOK, first["status"])
}

func TestGinMiddleware_PropagatesRequestContext(t *testing.T) {
	r, logs := newObservedRouter(t, true)
	r.POST("/api/v1/transfers/:id/approve", func(c *gin.Context) {
		ctx := c.Request.Context()
		assert.Equal(t, "req-abc", GetRequestID(ctx))
		assert.Equal(t, "manager-1", GetActorID(ctx))
		assert.Same(t, GetGinLogger(c), FromContext(ctx))
		L(ctx).Info("Approving transfer")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transfers/t-1/approve", nil)
	req.Header.Set(ActorHeader, "manager-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("Approving transfer").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "manager-1", entries[0].ContextMap()["actor_id"])
}

func TestGinMiddleware_WithoutRequestID(t *testing.T) {
	r, logs := newObservedRouter(t, false)
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	entries := logs.FilterMessage("HTTP request").All()
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].ContextMap(), "request_id")
}

func TestRecovery_RespondsWithEnvelope(t *testing.T) {
	r, logs := newObservedRouter(t, true)
	r.GET("/boom", func(c *gin.Context) { panic("ledger corrupted") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"error":{"code":"ERR_INTERNAL","message":"internal server error","request_id":"req-abc"}}`, w.Body.String())

	panics := logs.FilterMessage("Panic recovered").All()
	require.Len(t, panics, 1)
	assert.Equal(t, "ledger corrupted", panics[0].ContextMap()["panic"])
}

func TestGetGinLogger_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.NotNil(t, GetGinLogger(c))
}
