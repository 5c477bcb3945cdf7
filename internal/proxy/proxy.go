// Package proxy forwards the backend routes the feed BFF does not own.
package proxy

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/volunteerhub/feed-bff/internal/logger"
	"github.com/volunteerhub/feed-bff/middleware"
)

// New creates a reverse proxy to upstream. stripPrefix is removed from the
// incoming path and the remainder is appended to upstream's own path:
//
//	upstream "http://backend:8080/api", stripPrefix "/api"
//	/api/events/5 -> http://backend:8080/api/events/5
func New(upstream, stripPrefix string) (*httputil.ReverseProxy, error) {
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(target.Path, "/")

	p := &httputil.ReverseProxy{
		Transport: &middleware.TracingTransport{Base: http.DefaultTransport},
	}

	p.Rewrite = func(pr *httputil.ProxyRequest) {
		// Host header follows the target so the backend sees a direct call.
		pr.Out.URL.Scheme = target.Scheme
		pr.Out.URL.Host = target.Host
		pr.Out.Host = ""

		pr.Out.URL.Path = base + strings.TrimPrefix(pr.In.URL.Path, stripPrefix)
		pr.Out.URL.RawPath = ""
		if pr.Out.URL.Path == "" {
			pr.Out.URL.Path = "/"
		}
		pr.SetXForwarded()

		if reqID := middleware.GetRequestID(pr.In.Context()); reqID != "" {
			pr.Out.Header.Set(middleware.HeaderXRequestID, reqID)
		}
	}

	// Upstream down or timed out.
	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		reqID := middleware.GetRequestID(r.Context())

		logger.Ctx(r.Context()).Error().
			Err(err).
			Str("target", target.Host).
			Str("path", r.URL.Path).
			Msg("upstream_proxy_error")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"code":"upstream_unavailable","message":"upstream service unreachable","request_id":"` + reqID + `"}}`))
	}

	return p, nil
}
