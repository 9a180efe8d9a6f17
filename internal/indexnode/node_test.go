package indexnode

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bs2609/fs2/internal/peerregistry"
)

func discardLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestNewWiresAllComponents(t *testing.T) {
	n := New(Config{RefreshPoolSize: 2}, prometheus.NewRegistry(), discardLogger())
	require.NotNil(t, n.Index)
	require.NotNil(t, n.Registry)
	require.NotNil(t, n.Importer)
	require.NotNil(t, n.API)
	require.NotNil(t, n.Metrics)
	assert.Nil(t, n.advertiser)
}

func TestNodeServeHTTPDelegatesToAPI(t *testing.T) {
	n := New(Config{RefreshPoolSize: 1}, prometheus.NewRegistry(), discardLogger())
	req := httptest.NewRequest(http.MethodGet, "/robots.txt", nil)
	rec := httptest.NewRecorder()
	n.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPingOneEvictsAfterThreshold(t *testing.T) {
	n := New(Config{RefreshPoolSize: 1}, prometheus.NewRegistry(), discardLogger())
	req := peerregistry.HelloRequest{
		Identity: peerregistry.Identity{IP: "9.9.9.9", Port: 4000},
		Alias:    "bob",
		PingURL:  "http://127.0.0.1:1/ping",
	}
	p := n.Registry.Hello(req)

	pinger := NewHTTPPinger()
	for i := 0; i <= peerregistry.MaxFailedLivenesses; i++ {
		n.pingOne(pinger, p)
	}

	assert.Nil(t, n.Registry.Get(p.Identity))
}

func TestPingOneResetsCounterOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(Config{RefreshPoolSize: 1}, prometheus.NewRegistry(), discardLogger())
	req := peerregistry.HelloRequest{
		Identity: peerregistry.Identity{IP: "9.9.9.9", Port: 4000},
		Alias:    "bob",
		PingURL:  srv.URL,
	}
	p := n.Registry.Hello(req)

	pinger := NewHTTPPinger()
	n.pingOne(pinger, p)

	assert.Equal(t, 0, p.FailedLiveness())
	assert.NotNil(t, n.Registry.Get(p.Identity))
}
