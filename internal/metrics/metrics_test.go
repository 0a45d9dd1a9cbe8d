package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCounters(t *testing.T) {
	r := NewRegistry()
	r.Orders.Add(3)
	r.Rejected.Inc()

	assert.Equal(t, 3.0, testutil.ToFloat64(r.Orders))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Rejected))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.Products))
}

func TestRegistryHandler(t *testing.T) {
	r := NewRegistry()
	r.Fetched.Add(7)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "lastclick_records_fetched_total 7")
	assert.Contains(t, string(body), "lastclick_run_duration_seconds_bucket")
}

func TestRegistryObserveRequest(t *testing.T) {
	r := NewRegistry()
	r.ObserveRequest("GET", "/orders", 200, 20*time.Millisecond)
	r.ObserveRequest("GET", "/orders", 200, 30*time.Millisecond)
	r.ObserveRequest("GET", "/orders", 400, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.HTTPRequests.WithLabelValues("GET", "/orders", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.HTTPRequests.WithLabelValues("GET", "/orders", "400")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.HTTPDurationSec))
}

func TestRegistryRegisterRuntime(t *testing.T) {
	r := NewRegistry()
	r.RegisterRuntime()

	families, err := r.Gatherer().Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["go_goroutines"])
}

func TestRegistryPush(t *testing.T) {
	var method, path string
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		method, path = req.Method, req.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()

	r := NewRegistry()
	r.Orders.Inc()
	require.NoError(t, r.Push(gw.URL, "lastclick_import"))

	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/lastclick_import", path)
}

func TestRegistryPush_GatewayError(t *testing.T) {
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer gw.Close()

	assert.Error(t, NewRegistry().Push(gw.URL, "lastclick_import"))
}
