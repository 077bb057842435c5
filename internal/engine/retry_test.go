package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() *RetryPolicy {
	return &RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestRetryWithBackoff_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), fastPolicy(), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	}, IsTransientError)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_StopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := errors.New("access denied")
	err := RetryWithBackoff(context.Background(), fastPolicy(), func() error {
		calls++
		return permanent
	}, IsTransientError)

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), fastPolicy(), func() error {
		calls++
		return errors.New("throttled by upstream")
	}, IsTransientError)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries")
	assert.Equal(t, 4, calls)
}

func TestRetryWithBackoff_CancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RetryWithBackoff(ctx, &RetryPolicy{MaxRetries: 5, BaseDelay: time.Minute, MaxDelay: time.Minute}, func() error {
		calls++
		cancel()
		return errors.New("timeout waiting for capacity")
	}, IsTransientError)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsTransientError(t *testing.T) {
	assert.False(t, IsTransientError(nil))
	assert.False(t, IsTransientError(errors.New("validation failed: missing field")))

	apiErr := &smithy.GenericAPIError{Code: "InsufficientInstanceCapacity", Message: "no g4dn capacity"}
	assert.True(t, IsTransientError(apiErr))
	denied := &smithy.GenericAPIError{Code: "AccessDenied", Message: "not authorized"}
	assert.False(t, IsTransientError(denied))

	assert.True(t, IsTransientError(errors.New("Throttling: rate exceeded")))
	assert.True(t, IsTransientError(errors.New("dial tcp: i/o timeout")))
	assert.True(t, IsTransientError(errors.New("read: connection reset")))
	assert.True(t, IsTransientError(errors.New("503 Service Unavailable")))
}

func TestBackoffDelay_CappedAtMax(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		d := backoffDelay(attempt, time.Second, 4*time.Second)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 4*time.Second)
	}
}
