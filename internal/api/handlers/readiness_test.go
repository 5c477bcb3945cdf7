package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestReadyz(t *testing.T) {
	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name     string
		checkers []ReadinessChecker
		status   int
		body     string
	}{
		{
			name:     "all healthy",
			checkers: []ReadinessChecker{NewPingChecker("graphql", up), NewPingChecker("rest", up)},
			status:   http.StatusOK,
			body:     "ready",
		},
		{
			name:     "one down",
			checkers: []ReadinessChecker{NewPingChecker("graphql", up), NewPingChecker("rest", down)},
			status:   http.StatusServiceUnavailable,
			body:     "not_ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewReadinessHandler(tt.checkers...)
			w := httptest.NewRecorder()
			h.Readyz(w, httptest.NewRequest(http.MethodGet, "/api/readyz", nil))

			assert.Equal(t, tt.status, w.Code)
			var resp struct {
				Status string        `json:"status"`
				Checks []checkResult `json:"checks"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.body, resp.Status)
			require.Len(t, resp.Checks, 2)
			assert.Equal(t, "graphql", resp.Checks[0].Name)
			assert.Equal(t, "rest", resp.Checks[1].Name)
		})
	}
}

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	NewReadinessHandler().Healthz(w, httptest.NewRequest(http.MethodGet, "/api/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}
