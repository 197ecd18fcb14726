package errors

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "rate_limit error (code 429): rate limit", RateLimited(0).Error())
	assert.Equal(t, "http error (code 500): HTTP 500", HTTPStatus(500).Error())
	assert.Equal(t, "network error: connection refused",
		Network(fmt.Errorf("connection refused")).Error())
	assert.Equal(t, "network error: connection refused",
		Network(fmt.Errorf("connection refused")).Reason())
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		want      bool
	}{
		{ErrorTypeNetwork, true},
		{ErrorTypeRateLimit, true},
		{ErrorTypeHTTP, true},
		{ErrorTypeExhausted, false},
		{ErrorTypeCheckpointCorrupt, false},
		{ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.errorType), func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.errorType))
		})
	}
}

func TestFetchExhaustedKeepsCause(t *testing.T) {
	cause := HTTPStatus(503)
	err := FetchExhausted(7, fmt.Errorf("giving up: %w", cause))

	assert.Equal(t, ErrorTypeExhausted, err.Type)
	assert.Equal(t, 7, err.Page)
	assert.Equal(t, "HTTP 503", err.Message)
	assert.Equal(t, "fetch exhausted on page 7: HTTP 503", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestFetchExhaustedPlainCause(t *testing.T) {
	err := FetchExhausted(1, context.DeadlineExceeded)
	assert.Equal(t, context.DeadlineExceeded.Error(), err.Message)
}

func TestFetchExhaustedNetworkCause(t *testing.T) {
	err := FetchExhausted(2, Network(fmt.Errorf("unexpected EOF")))
	assert.Equal(t, "network error: unexpected EOF", err.Message)
}

func TestTypeOfAndRetryAfter(t *testing.T) {
	wrapped := fmt.Errorf("attempt 3: %w", RateLimited(9*time.Second))

	assert.Equal(t, ErrorTypeRateLimit, TypeOf(wrapped))
	assert.True(t, Is(wrapped, ErrorTypeRateLimit))
	assert.Equal(t, 9*time.Second, RetryAfterOf(wrapped))

	assert.Equal(t, ErrorTypeUnknown, TypeOf(fmt.Errorf("plain")))
	assert.False(t, Is(nil, ErrorTypeUnknown))
	assert.Zero(t, RetryAfterOf(fmt.Errorf("plain")))
}
