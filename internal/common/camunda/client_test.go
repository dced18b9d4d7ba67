package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "audit-orchestrator/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *Client {
	return &Client{config: &ClientConfig{
		ConnectionTimeout: time.Second,
		RetryConfig:       &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	}}
}

func TestExecuteWithRetry_RecoversFromTransientErrors(t *testing.T) {
	c := testClient()
	calls := 0

	result, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("rpc error: code = Unavailable desc = connection refused")
		}
		return "ok", nil
	}, "topology")

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestExecuteWithRetry_StopsOnPermanentError(t *testing.T) {
	c := testClient()
	calls := 0

	_, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		calls++
		return nil, errors.New("permission denied")
	}, "complete-job")

	assert.Equal(t, 1, calls)
	assert.Equal(t, apperrors.ErrCodeAuthentication, apperrors.CodeOf(err))
}

func TestExecuteWithRetry_ExhaustsRetries(t *testing.T) {
	c := testClient()
	calls := 0

	_, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		calls++
		return nil, errors.New("context deadline exceeded")
	}, "topology")

	assert.Equal(t, 3, calls)
	assert.Equal(t, apperrors.ErrCodeTimeout, apperrors.CodeOf(err))
	assert.Contains(t, apperrors.Describe(err), "after 3 attempts")
}

func TestExecuteWithRetry_Cancelled(t *testing.T) {
	c := testClient()
	c.config.RetryConfig = &RetryConfig{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ExecuteWithRetry(ctx, func(context.Context) (interface{}, error) {
		return nil, errors.New("connection reset by peer")
	}, "topology")

	assert.Equal(t, apperrors.ErrCodeTimeout, apperrors.CodeOf(err))
}

func TestMapZeebeError(t *testing.T) {
	tests := []struct {
		msg  string
		want apperrors.ErrorCode
	}{
		{"connection refused", apperrors.ErrCodeExternalService},
		{"deadline exceeded", apperrors.ErrCodeTimeout},
		{"job not found", apperrors.ErrCodeResourceNotFound},
		{"unauthorized", apperrors.ErrCodeAuthentication},
		{"something odd", apperrors.ErrCodeExternalService},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, apperrors.CodeOf(mapZeebeError(errors.New(tt.msg), "op", 0)))
		})
	}
}
