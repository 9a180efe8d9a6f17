package indexnode

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPPingerSucceedsOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewHTTPPinger()
	assert.NoError(t, p.Ping(srv.URL))
}

func TestHTTPPingerFailsOnNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewHTTPPinger()
	assert.Error(t, p.Ping(srv.URL))
}

func TestHTTPPingerFailsOnUnreachable(t *testing.T) {
	p := NewHTTPPinger()
	assert.Error(t, p.Ping("http://127.0.0.1:1"))
}
