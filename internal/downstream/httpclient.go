package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/volunteerhub/feed-bff/internal/logger"
	"github.com/volunteerhub/feed-bff/middleware"
)

// ClientConfig holds configuration for the HTTP client wrapper
type ClientConfig struct {
	// ReadTimeout is used for GET requests and GraphQL queries
	ReadTimeout time.Duration
	// WriteTimeout is used for POST, PUT, PATCH, DELETE requests
	WriteTimeout time.Duration
}

// CredentialProvider yields the Authorization header value for a call.
// An empty string sends the request anonymously.
type CredentialProvider interface {
	BearerToken(ctx context.Context) string
}

// ContextCredentials forwards the bearer token the Auth middleware stored.
type ContextCredentials struct{}

func (ContextCredentials) BearerToken(ctx context.Context) string {
	return middleware.GetBearerToken(ctx)
}

// StaticCredentials always sends the same token.
type StaticCredentials string

func (s StaticCredentials) BearerToken(context.Context) string {
	token := strings.TrimSpace(string(s))
	if token == "" || strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return token
	}
	return "Bearer " + token
}

// Client is a centralized HTTP client wrapper that:
// 1. Injects X-Request-ID and the caller's bearer token
// 2. Enforces timeouts based on intent (read vs write)
// 3. Provides unified error mapping
// 4. Logs requests with correlation ID
type Client struct {
	baseClient *http.Client
	config     ClientConfig
	creds      CredentialProvider
}

// NewClient creates a new HTTP client wrapper with a tracing transport.
func NewClient(config ClientConfig, creds CredentialProvider) *Client {
	if creds == nil {
		creds = StaticCredentials("")
	}
	return &Client{
		baseClient: &http.Client{
			// No global timeout - we set per-request timeouts
			Timeout:   0,
			Transport: &middleware.TracingTransport{Base: http.DefaultTransport},
		},
		config: config,
		creds:  creds,
	}
}

// Do executes req with the timeout its method implies.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	timeout := c.config.ReadTimeout
	if isWriteMethod(req.Method) {
		timeout = c.config.WriteTimeout
	}
	return c.do(ctx, req, timeout)
}

// DoRead executes req with the read timeout whatever its method.
// GraphQL queries are POSTs but reads.
func (c *Client) DoRead(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.do(ctx, req, c.config.ReadTimeout)
}

// The returned response body stays readable after do returns; the timeout
// context is released when the body is closed.
func (c *Client) do(ctx context.Context, req *http.Request, timeout time.Duration) (*http.Response, error) {
	if reqID := middleware.GetRequestID(ctx); reqID != "" {
		req.Header.Set(middleware.HeaderXRequestID, reqID)
	}
	if token := c.creds.BearerToken(ctx); token != "" {
		req.Header.Set("Authorization", token)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	req = req.WithContext(ctx)

	log := logger.Ctx(ctx).With().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Logger()

	start := time.Now()
	resp, err := c.baseClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		cancel()
		log.Warn().
			Err(err).
			Dur("duration", duration).
			Msg("downstream_request_failed")
		return nil, c.mapError(err)
	}

	log.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Msg("downstream_request_completed")

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// DoJSON marshals body (when non-nil) and sends it to url.
func (c *Client) DoJSON(ctx context.Context, method, url string, body any, read bool) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if read {
		return c.DoRead(ctx, req)
	}
	return c.Do(ctx, req)
}

// mapError converts low-level errors to domain errors
func (c *Client) mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTimeout
	}
	// Connection refused, DNS errors, etc.
	return ErrUnavailable
}

// isWriteMethod returns true for HTTP methods that modify state
func isWriteMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
