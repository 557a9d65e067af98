package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestServer(t *testing.T) {
	counter := NewCounter("test_requests", "metrics", "requests seen by the test", []string{"kind"})
	counter.WithLabelValues("scrape").Inc()

	srv := NewServer(zaptest.NewLogger(t), 0)
	require.Nil(t, srv.Addr())
	require.NoError(t, srv.Start())
	t.Cleanup(func() { require.NoError(t, srv.Close(context.Background())) })

	resp, err := http.Get("http://" + srv.Addr().String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `histsync_metrics_test_requests{kind="scrape"} 1`)
}
