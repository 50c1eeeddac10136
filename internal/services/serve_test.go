package services

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeService_GetServerInfo(t *testing.T) {
	cfg := testConfig(t, map[string]interface{}{
		"server.host": "0.0.0.0",
		"server.port": 9090,
	})

	info := NewServeService(cfg, nil).GetServerInfo()

	assert.Equal(t, "0.0.0.0", info.Host)
	assert.Equal(t, 9090, info.Port)
	assert.Equal(t, "http://0.0.0.0:9090", info.ServerURL)
	assert.Equal(t, "http://0.0.0.0:9090/metrics", info.MetricsURL)
	assert.Equal(t, "template", info.Mode)
}

func TestServeService_ServeListener(t *testing.T) {
	srv := dataServer(t)
	cfg := testConfig(t, map[string]interface{}{
		"render.module":        writeModule(t, pageModule),
		"data_source.base_url": srv.URL,
		"development.watch":    false,
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServeService(cfg, nil).ServeListener(ctx, ln) }()

	var body string
	require.Eventually(t, func() bool {
		res, err := http.Get(base + "/")
		if err != nil {
			return false
		}
		defer res.Body.Close()
		b, _ := io.ReadAll(res.Body)
		body = string(b)
		return res.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	assert.True(t, strings.HasPrefix(body, Doctype))
	assert.Contains(t, body, "<h1>Welcome</h1>")

	res, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	metricsBody, _ := io.ReadAll(res.Body)
	res.Body.Close()
	assert.Contains(t, string(metricsBody), `seedling_renders_total{outcome="ok"}`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout):
		t.Fatal("server did not shut down")
	}
}
