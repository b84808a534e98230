package http_test

import (
	"context"
	"encoding/json"
	gohttp "net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/pkg/http"
)

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		assert.Equal(t, gohttp.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["name"]})
	}))
	defer srv.Close()

	resp, err := http.Post(srv.URL).Bearer("tok").Body(map[string]string{"name": "Ana"}).Send()
	require.NoError(t, err)
	require.NoError(t, resp.Throw())

	var out map[string]string
	require.NoError(t, resp.JSON(&out))
	assert.Equal(t, "Ana", out["echo"])
}

func TestRetryServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(gohttp.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL).Retry(3, time.Millisecond).RetryServerErrors().Send()
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, int32(3), calls.Load())
}

func TestLastServerErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		w.WriteHeader(gohttp.StatusBadGateway)
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL).Retry(2, time.Millisecond).RetryServerErrors().Send()
	require.NoError(t, err)
	assert.Equal(t, gohttp.StatusBadGateway, resp.StatusCode)
	assert.Error(t, resp.Throw())
}

func TestCancelledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := http.Get("http://127.0.0.1:1").Retry(5, time.Hour).WithContext(ctx).Send()
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
