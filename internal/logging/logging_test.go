package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))

	ctx = WithRequestID(ctx, "req_123")
	assert.Equal(t, "req_123", RequestID(ctx))
}

func TestFromContext_FallsBackToDefault(t *testing.T) {
	logger := FromContext(context.Background())
	assert.NotNil(t, logger)
}

func TestL_AttachesRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req_456")
	ctx = WithLogger(ctx, New("debug", "text"))

	logger := L(ctx)
	assert.NotNil(t, logger)
}

func TestNew_Levels(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error", "bogus"} {
		assert.NotNil(t, New(lvl, "json"))
	}
}
