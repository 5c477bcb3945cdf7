package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestInitTracing_DisabledIsNoop(t *testing.T) {
	tp, err := InitTracing(context.Background(), Config{ServiceName: "feed-bff"})
	require.NoError(t, err)
	assert.NotNil(t, tp.Tracer())
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestStartSpan(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "feed.test", attribute.String("event_id", "42"))
	assert.NotNil(t, ctx)
	EndSpan(span, errors.New("boom"))
}
