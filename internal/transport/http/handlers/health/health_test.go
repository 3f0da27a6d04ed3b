package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalcore/internal/config"
)

// Ready touches *database.SqliteDB and *database.RedisDB directly rather
// than through an interface, so exercising it here would require a live
// SQLite file and a live Redis server; it's covered end-to-end instead.
// Check and Live never dereference either dependency and are safe to call
// with nil connections.

func newHealthTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
	return ctx, recorder
}

func TestHandler_Check_ReportsHealthyWithVersion(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Version: "0.1.0"}}
	handler := NewHandler(cfg, logrus.New(), nil, nil)

	ctx, recorder := newHealthTestContext()
	handler.Check(ctx)

	require.Equal(t, http.StatusOK, recorder.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "0.1.0", resp.Version)
	assert.NotEmpty(t, resp.Uptime)
	assert.Nil(t, resp.Checks)
}

func TestHandler_Live_NeverTouchesDependencies(t *testing.T) {
	cfg := &config.Config{}
	handler := NewHandler(cfg, logrus.New(), nil, nil)

	ctx, recorder := newHealthTestContext()
	handler.Live(ctx)

	require.Equal(t, http.StatusOK, recorder.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "alive", resp.Status)
	assert.Empty(t, resp.Version)
}
