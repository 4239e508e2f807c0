package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"todo-tracker/internal/app"
	"todo-tracker/internal/config"
	"todo-tracker/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_SQLITE_PATH", ":memory:")
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "0")
	t.Setenv("LOG_LEVEL", "error")
	for k, v := range env {
		t.Setenv(k, v)
	}
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	return cfg
}

func newApp(t *testing.T, cfg *config.Config) *app.App {
	t.Helper()
	a, err := app.New(context.Background(), cfg, log.New(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.Shutdown(ctx)
	})
	return a
}

func serve(a *app.App, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.1:5555"
	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, req)
	return w
}

func TestApp_CRUDWithoutCache(t *testing.T) {
	a := newApp(t, loadTestConfig(t, nil))

	w := serve(a, http.MethodPost, "/api/todos", map[string]string{"title": "Buy milk"})
	require.Equal(t, http.StatusCreated, w.Code)
	var task models.Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &task))

	w = serve(a, http.MethodGet, "/api/todos?search=MILK", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list models.ListTasksResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.EqualValues(t, 1, list.Total)

	w = serve(a, http.MethodDelete, "/api/todos", map[string]string{"id": task.ID.String()})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestApp_OpsEndpoints(t *testing.T) {
	a := newApp(t, loadTestConfig(t, nil))

	assert.Equal(t, http.StatusOK, serve(a, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, serve(a, http.MethodGet, "/ready", nil).Code)
	assert.Equal(t, http.StatusOK, serve(a, http.MethodGet, "/live", nil).Code)

	w := serve(a, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "database")
}

func TestApp_RateLimit(t *testing.T) {
	a := newApp(t, loadTestConfig(t, map[string]string{
		"RATE_LIMIT_ENABLED": "true",
		"RATE_LIMIT_RPM":     "1",
		"RATE_LIMIT_BURST":   "2",
	}))

	assert.Equal(t, http.StatusOK, serve(a, http.MethodGet, "/api/todos", nil).Code)
	assert.Equal(t, http.StatusOK, serve(a, http.MethodGet, "/api/todos", nil).Code)

	w := serve(a, http.MethodGet, "/api/todos", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestApp_PanicsAreRecovered(t *testing.T) {
	a := newApp(t, loadTestConfig(t, nil))
	a.Router().GET("/boom", func(*gin.Context) { panic("kaboom") })

	w := serve(a, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
}

func TestApp_CacheAndWorker(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)

	a := newApp(t, loadTestConfig(t, map[string]string{
		"REDIS_HOST":           host,
		"REDIS_PORT":           port,
		"CACHE_ENABLED":        "true",
		"WORKER_ENABLED":       "true",
		"WORKER_POLL_INTERVAL": "1s",
	}))
	require.NoError(t, a.Start())

	w := serve(a, http.MethodPost, "/api/todos", map[string]string{"title": "Cached"})
	require.Equal(t, http.StatusCreated, w.Code)

	// The warm job re-populates the first page in Redis.
	assert.Eventually(t, func() bool {
		return mr.Exists("todo:tasks_list:1:6:")
	}, 5*time.Second, 50*time.Millisecond)

	w = serve(a, http.MethodGet, "/api/todos", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Cached")

	w = serve(a, http.MethodGet, "/metrics", nil)
	assert.Contains(t, w.Body.String(), "cache")
}

func TestApp_StartServesHTTP(t *testing.T) {
	a := newApp(t, loadTestConfig(t, nil))
	require.NoError(t, a.Start())

	resp, err := http.Get("http://" + a.Addr() + "/live")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ops := a.ShutdownOperations()
	require.Contains(t, ops, "app")
}
