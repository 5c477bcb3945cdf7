package proxy_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volunteerhub/feed-bff/internal/proxy"
	"github.com/volunteerhub/feed-bff/middleware"
)

type seen struct {
	path, query, host, requestID, auth, body string
}

func upstream(t *testing.T) (*httptest.Server, chan seen) {
	t.Helper()
	ch := make(chan seen, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		ch <- seen{
			path:      r.URL.Path,
			query:     r.URL.RawQuery,
			host:      r.Host,
			requestID: r.Header.Get("X-Request-Id"),
			auth:      r.Header.Get("Authorization"),
			body:      string(b),
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)
	return srv, ch
}

func receive(t *testing.T, ch chan seen) seen {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for upstream request")
		return seen{}
	}
}

func TestProxy_PathRewriting(t *testing.T) {
	srv, ch := upstream(t)

	rest, err := proxy.New(srv.URL+"/api", "/api")
	require.NoError(t, err)
	gql, err := proxy.New(srv.URL+"/graphql", "/graphql")
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Handle("/api/*", rest)
	r.Handle("/graphql", gql)

	testCases := []struct {
		name         string
		method       string
		requestPath  string
		expectedPath string
	}{
		{"event detail", http.MethodGet, "/api/events/5", "/api/events/5"},
		{"registrations", http.MethodPost, "/api/events/5/registrations", "/api/events/5/registrations"},
		{"nested", http.MethodGet, "/api/users/me/notifications", "/api/users/me/notifications"},
		{"graphql", http.MethodPost, "/graphql", "/graphql"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.requestPath, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tc.expectedPath, receive(t, ch).path)
		})
	}
}

func TestProxy_ForwardsRequest(t *testing.T) {
	srv, ch := upstream(t)

	p, err := proxy.New(srv.URL+"/api", "/api")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "http://bff/api/events?page=2", strings.NewReader(`{"a":1}`))
	req.Header.Set("Authorization", "Bearer abc")
	ctx := middleware.SetRequestIDForTest(req.Context(), "test-req-id")
	w := httptest.NewRecorder()

	p.ServeHTTP(w, req.WithContext(ctx))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	got := receive(t, ch)
	u, _ := url.Parse(srv.URL)
	assert.Equal(t, u.Host, got.host)
	assert.Equal(t, "page=2", got.query)
	assert.Equal(t, "test-req-id", got.requestID)
	assert.Equal(t, "Bearer abc", got.auth)
	assert.Equal(t, `{"a":1}`, got.body)
}

func TestProxy_UpstreamDown(t *testing.T) {
	// Nothing listens on this port.
	p, err := proxy.New("http://localhost:54321/api", "/api")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "http://bff/api/events", nil)
	ctx := middleware.SetRequestIDForTest(req.Context(), "req-123")
	ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	w := httptest.NewRecorder()

	p.ServeHTTP(w, req.WithContext(ctx))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "upstream_unavailable")
	assert.Contains(t, w.Body.String(), "req-123")
}

func TestProxy_InvalidUpstream(t *testing.T) {
	_, err := proxy.New("http://[::1", "/api")
	assert.Error(t, err)
}
