package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/cache"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/resilience"
)

func newTestClient(t *testing.T, opts ClientOptions) *Client {
	t.Helper()
	c, err := NewClient(opts)
	require.NoError(t, err)
	c.retrier = resilience.NewRetrier(resilience.RetryOptions{
		MaxRetries:      opts.MaxRetries,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2,
	}, nil)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDefaultClientOptions(t *testing.T) {
	opts := DefaultClientOptions()

	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.Equal(t, 3, opts.MaxRetries)
	assert.Equal(t, 24*time.Hour, opts.CacheTTL)
	assert.Nil(t, opts.Cache)
}

func TestClient_Get(t *testing.T) {
	t.Run("successful fetch", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NotEmpty(t, r.Header.Get("User-Agent"))
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<p>hello</p>"))
		}))
		defer server.Close()

		client := newTestClient(t, ClientOptions{})
		resp, err := client.Get(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, []byte("<p>hello</p>"), resp.Body)
		assert.Equal(t, "text/html; charset=utf-8", resp.ContentType)
		assert.False(t, resp.FromCache)
	})

	t.Run("not found is permanent", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := newTestClient(t, ClientOptions{MaxRetries: 3})
		resp, err := client.Get(context.Background(), server.URL)
		require.Error(t, err)
		assert.Nil(t, resp)

		var fetchErr *domain.FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("retries server errors", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("ok"))
		}))
		defer server.Close()

		client := newTestClient(t, ClientOptions{MaxRetries: 3})
		resp, err := client.Get(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, []byte("ok"), resp.Body)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})
}

func TestClient_GetWithHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Custom") != "test-value" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("custom header received"))
	}))
	defer server.Close()

	client := newTestClient(t, ClientOptions{})
	resp, err := client.GetWithHeaders(context.Background(), server.URL, map[string]string{"X-Custom": "test-value"})
	require.NoError(t, err)
	assert.Equal(t, []byte("custom header received"), resp.Body)
}

func TestClient_PageCache(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte("fresh"))
	}))
	defer server.Close()

	store, err := cache.NewBadgerCache(cache.BadgerOptions{InMemory: true})
	require.NoError(t, err)
	defer store.Close()

	client := newTestClient(t, ClientOptions{Cache: store})
	ctx := context.Background()

	first, err := client.Get(ctx, server.URL)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.True(t, store.Has(ctx, cache.PageKey(server.URL)))

	second, err := client.Get(ctx, server.URL+"/")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, []byte("fresh"), second.Body)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_RandomDelay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := newTestClient(t, ClientOptions{
		RandomDelayMin: 10 * time.Millisecond,
		RandomDelayMax: 20 * time.Millisecond,
	})
	var slept []time.Duration
	client.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	_, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	require.Len(t, slept, 1)
	assert.GreaterOrEqual(t, slept[0], 10*time.Millisecond)
	assert.Less(t, slept[0], 20*time.Millisecond)
}

func TestClient_Transport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("via transport"))
	}))
	defer server.Close()

	client := newTestClient(t, ClientOptions{})
	httpClient := &http.Client{Transport: client.Transport()}

	resp, err := httpClient.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "via transport", string(body))
	assert.Empty(t, resp.Header.Get("Content-Encoding"))
}

func TestStealthHeaders(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		wantHints bool
	}{
		{"chrome sends client hints", UserAgents[0], true},
		{"firefox omits client hints", "Mozilla/5.0 (X11; Linux x86_64; rv:132.0) Gecko/20100101 Firefox/132.0", false},
		{"custom agent kept", "TestAgent/1.0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := StealthHeaders(tt.userAgent)
			assert.Equal(t, tt.userAgent, headers["User-Agent"])
			assert.NotEmpty(t, headers["Accept-Language"])
			_, hasHints := headers["Sec-CH-UA"]
			assert.Equal(t, tt.wantHints, hasHints)
		})
	}

	t.Run("empty agent draws from pool", func(t *testing.T) {
		assert.Contains(t, UserAgents, StealthHeaders("")["User-Agent"])
	})
}

func TestRandomDelay(t *testing.T) {
	lo, hi := 100*time.Millisecond, 500*time.Millisecond
	for i := 0; i < 20; i++ {
		d := RandomDelay(lo, hi)
		assert.GreaterOrEqual(t, d, lo)
		assert.Less(t, d, hi)
	}
	assert.Equal(t, hi, RandomDelay(hi, lo))
	assert.Equal(t, lo, RandomDelay(lo, lo))
}

func TestClient_GetCookies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "consent", Value: "pending", Path: "/"})
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer server.Close()

	c := newTestClient(t, ClientOptions{})
	assert.Empty(t, c.GetCookies(server.URL))

	_, err := c.Get(context.Background(), server.URL+"/page")
	require.NoError(t, err)

	cookies := c.GetCookies(server.URL + "/other")
	require.Len(t, cookies, 1)
	assert.Equal(t, "consent", cookies[0].Name)
	assert.Equal(t, "pending", cookies[0].Value)

	assert.Nil(t, c.GetCookies("://bad"))
}
