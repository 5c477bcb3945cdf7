package middleware

import (
	"context"

	"github.com/volunteerhub/feed-bff/internal/domain"
)

// SetRequestIDForTest injects a request ID without going through the HTTP middleware.
func SetRequestIDForTest(ctx context.Context, id string) context.Context {
	return WithRequestID(ctx, id)
}

// SetViewerForTest injects an authenticated viewer and its bearer header.
func SetViewerForTest(ctx context.Context, viewer domain.Viewer) context.Context {
	return WithViewer(ctx, viewer, "Bearer test-token")
}
