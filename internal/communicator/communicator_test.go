package communicator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAddIndexnodeSendsInitialHello(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Identity{Alias: "bob", Port: 49152}, nil)
	c.AddIndexnode(context.Background(), srv.URL)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Contains(t, c.Indexnodes(), srv.URL)
}

func TestAddIndexnodeIsIdempotent(t *testing.T) {
	c := New(Identity{Alias: "bob"}, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c.AddIndexnode(context.Background(), srv.URL)
	c.AddIndexnode(context.Background(), srv.URL)
	assert.Len(t, c.Indexnodes(), 1)
}

func TestRegisterAllReachesEveryIndexnodeDespiteOneFailing(t *testing.T) {
	var okCalls, failCalls int32
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&okCalls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()
	fail := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&failCalls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer fail.Close()

	c := New(Identity{Alias: "bob"}, nil)
	c.AddIndexnode(context.Background(), ok.URL)
	c.AddIndexnode(context.Background(), fail.URL)

	c.RegisterAll(context.Background())

	assert.GreaterOrEqual(t, atomic.LoadInt32(&okCalls), int32(2))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&failCalls), int32(2))
}

func TestOnShareChangeTriggersReRegistration(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Identity{Alias: "bob"}, nil)
	c.AddIndexnode(context.Background(), srv.URL)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	c.OnShareChange(nil)
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) >= 2
	}, time.Second, 10*time.Millisecond)
}

func TestRemoveIndexnodeForgetsIt(t *testing.T) {
	c := New(Identity{Alias: "bob"}, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c.AddIndexnode(context.Background(), srv.URL)
	c.RemoveIndexnode(srv.URL)
	assert.Empty(t, c.Indexnodes())
}
