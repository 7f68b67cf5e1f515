package http

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	options "github.com/kart-io/sentinel-docqa/pkg/options/http"
)

func testOptions() *options.Options {
	o := options.NewOptions()
	o.Addr = "127.0.0.1:0"
	o.Mode = gin.TestMode
	return o
}

func TestNoRouteReturnsJSON(t *testing.T) {
	s := NewServer(testOptions())

	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Route not found")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestStartAndStop(t *testing.T) {
	s := NewServer(testOptions())
	s.Engine().GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return s.Addr() != "127.0.0.1:0" }, time.Second, 10*time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://%s/ping", s.Addr()))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	require.NoError(t, <-done)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	assert.NoError(t, s.Stop(stopCtx))
}
