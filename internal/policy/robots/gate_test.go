package robots

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGateEnforcesRobots(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprintln(w, "User-agent: *\nDisallow: /blocked")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	gate := New(true, "feedgate-test/1.0", zap.NewNop())
	assert.True(t, gate.Allowed(ctx, srv.URL+"/odds/today"))
	assert.False(t, gate.Allowed(ctx, srv.URL+"/blocked/odds"))
}

func TestGateDisabledAllowsEverything(t *testing.T) {
	t.Parallel()

	gate := New(false, "feedgate-test/1.0", zap.NewNop())
	assert.True(t, gate.Allowed(context.Background(), "https://example.com/anything"))
}

func TestGateFailsOpenOnLookupFailure(t *testing.T) {
	t.Parallel()

	gate := New(true, "feedgate-test/1.0", zap.NewNop())
	// No server listening here; the policy lookup fails, the fetch is allowed.
	assert.True(t, gate.Allowed(context.Background(), "http://127.0.0.1:1/odds"))
}

func TestGateCachesPerOrigin(t *testing.T) {
	t.Parallel()

	var robotsCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			atomic.AddInt32(&robotsCalls, 1)
			fmt.Fprintln(w, "User-agent: *\nAllow: /")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	gate := New(true, "feedgate-test/1.0", zap.NewNop())
	for i := 0; i < 4; i++ {
		require.True(t, gate.Allowed(context.Background(), srv.URL+fmt.Sprintf("/page/%d", i)))
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&robotsCalls))
}

func TestGateRejectsUnparsableURL(t *testing.T) {
	t.Parallel()

	gate := New(true, "feedgate-test/1.0", zap.NewNop())
	assert.False(t, gate.Allowed(context.Background(), "http://%zz"))
}
