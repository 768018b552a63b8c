package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/invoicedesk/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(max int) *RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.MaxRetries = max
	cfg.RetryDelay = 5 * time.Millisecond
	cfg.MaxDelay = 20 * time.Millisecond
	return &cfg
}

func TestNewClient(t *testing.T) {
	t.Run("requires base URL", func(t *testing.T) {
		_, err := NewClient(config.RemoteConfig{}, nil)
		assert.Error(t, err)
	})

	t.Run("rejects relative base URL", func(t *testing.T) {
		_, err := NewClient(config.RemoteConfig{BaseURL: "localhost"}, nil)
		assert.Error(t, err)
	})

	t.Run("uses configured retries", func(t *testing.T) {
		c, err := NewClient(config.RemoteConfig{BaseURL: "http://localhost:8080", Retries: 2}, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, c.retryConfig.MaxRetries)
		assert.Equal(t, "http://localhost:8080", c.GetBaseURL())
	})
}

func TestClient_Do(t *testing.T) {
	t.Run("sends headers query and body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/base/api/v1/things", r.URL.Path)
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, true, body["approved"])

			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"success":true}`))
		}))
		defer server.Close()

		c, err := NewClient(config.RemoteConfig{BaseURL: server.URL + "/base/", Token: "secret"}, fastRetry(0))
		require.NoError(t, err)

		resp, err := c.Do(context.Background(), Request{
			Method:      http.MethodPost,
			Path:        "api/v1/things",
			QueryParams: map[string]string{"page": "2"},
			Body:        map[string]bool{"approved": true},
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.True(t, resp.IsSuccess())
	})

	t.Run("retries idempotent requests on 5xx", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&attempts, 1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		c, err := NewClient(config.RemoteConfig{BaseURL: server.URL}, fastRetry(3))
		require.NoError(t, err)

		resp, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	})

	t.Run("does not retry POST", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c, err := NewClient(config.RemoteConfig{BaseURL: server.URL}, fastRetry(3))
		require.NoError(t, err)

		resp, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/x", Body: map[string]int{"a": 1}})
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
	})

	t.Run("retries resend the body", func(t *testing.T) {
		var bodies []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			bodies = append(bodies, body["comment"])
			if len(bodies) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		c, err := NewClient(config.RemoteConfig{BaseURL: server.URL}, fastRetry(1))
		require.NoError(t, err)

		_, err = c.Do(context.Background(), Request{Method: http.MethodPut, Path: "/x", Body: map[string]string{"comment": "hi"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"hi", "hi"}, bodies)
	})

	t.Run("transport error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		c, err := NewClient(config.RemoteConfig{BaseURL: url}, fastRetry(0))
		require.NoError(t, err)

		_, err = c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"})
		assert.Error(t, err)
	})
}
