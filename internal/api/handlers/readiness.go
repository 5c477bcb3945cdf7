package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/render"
)

// ReadinessChecker checks if a dependency is ready.
type ReadinessChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// Pinger is anything that can tell whether its backend answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker adapts a Pinger to a ReadinessChecker.
type PingChecker struct {
	name   string
	pinger Pinger
}

func NewPingChecker(name string, p Pinger) *PingChecker {
	return &PingChecker{name: name, pinger: p}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) error {
	return c.pinger.Ping(ctx)
}

// ReadinessHandler handles /readyz and /healthz endpoints.
type ReadinessHandler struct {
	checkers []ReadinessChecker
	timeout  time.Duration
}

func NewReadinessHandler(checkers ...ReadinessChecker) *ReadinessHandler {
	return &ReadinessHandler{checkers: checkers, timeout: 5 * time.Second}
}

// Healthz is a simple liveness check (process is alive).
func (h *ReadinessHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type checkResult struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Readyz runs every check concurrently and returns detailed status.
func (h *ReadinessHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	results := make([]checkResult, len(h.checkers))
	var wg sync.WaitGroup
	for i, checker := range h.checkers {
		wg.Add(1)
		go func(idx int, c ReadinessChecker) {
			defer wg.Done()
			results[idx] = checkResult{Name: c.Name(), Status: "healthy"}
			if err := c.Check(ctx); err != nil {
				results[idx].Status = "unhealthy"
				results[idx].Error = err.Error()
			}
		}(i, checker)
	}
	wg.Wait()

	resp := struct {
		Status string        `json:"status"`
		Checks []checkResult `json:"checks"`
	}{
		Status: "ready",
		Checks: results,
	}

	status := http.StatusOK
	for _, res := range results {
		if res.Status != "healthy" {
			resp.Status = "not_ready"
			status = http.StatusServiceUnavailable
			break
		}
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}
