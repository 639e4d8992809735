package util

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracerWithoutEndpoint(t *testing.T) {
	tp, err := InitTracer("payment-service-test", "")
	require.NoError(t, err)
	defer tp.Shutdown(context.Background())

	ctx, span := StartSpan(context.Background(), "Test.Span")
	defer span.End()

	assert.True(t, span.SpanContext().IsValid())
	assert.NotNil(t, ctx)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger("development"))
	assert.NotNil(t, GetLogger())
	SyncLogger()
}
