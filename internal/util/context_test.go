package util

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContextWithRequestID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		requestID string
	}{
		{
			name:      "valid request ID",
			requestID: "test-request-123",
		},
		{
			name:      "empty request ID",
			requestID: "",
		},
		{
			name:      "UUID format",
			requestID: "550e8400-e29b-41d4-a716-446655440000",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			ctx = ContextWithRequestID(ctx, tt.requestID)

			result := RequestIDFromContext(ctx)
			assert.Equal(t, tt.requestID, result)
		})
	}
}

func TestRequestIDFromContext_NotSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	result := RequestIDFromContext(ctx)
	assert.Empty(t, result)
}

func TestContextWithTraceID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, TraceIDFromContext(ctx))

	ctx = ContextWithTraceID(ctx, "trace-1")
	assert.Equal(t, "trace-1", TraceIDFromContext(ctx))
}

func TestContextWithSpanID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, SpanIDFromContext(ctx))

	ctx = ContextWithSpanID(ctx, "span-1")
	assert.Equal(t, "span-1", SpanIDFromContext(ctx))
}

func TestContextWithConsumer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, ConsumerFromContext(ctx))

	ctx = ContextWithConsumer(ctx, "orders-consumer")
	assert.Equal(t, "orders-consumer", ConsumerFromContext(ctx))
}

func TestContextWithSubject(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, SubjectFromContext(ctx))

	ctx = ContextWithSubject(ctx, "order.created")
	assert.Equal(t, "order.created", SubjectFromContext(ctx))
}

func TestContextWithStartTime(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.True(t, StartTimeFromContext(ctx).IsZero())
	assert.Equal(t, time.Duration(0), ElapsedTime(ctx))

	start := time.Now().Add(-time.Second)
	ctx = ContextWithStartTime(ctx, start)

	assert.Equal(t, start, StartTimeFromContext(ctx))
	assert.GreaterOrEqual(t, ElapsedTime(ctx), time.Second)
}

func TestNewTimeoutContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := NewTimeoutContext(context.Background(), 50*time.Millisecond)
	defer cancel()

	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 20*time.Millisecond)
}
