package publisher

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rendis/scenario/pkg/schema"
)

func TestRetryableStatus(t *testing.T) {
	for code, want := range map[int]bool{
		http.StatusOK:                  false,
		http.StatusBadRequest:          false,
		http.StatusNotFound:            false,
		http.StatusRequestTimeout:      true,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
	} {
		assert.Equal(t, want, RetryableStatus(code), "status %d", code)
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"circuit open", schema.NewError(schema.ErrCodeCircuitOpen, "open"), false},
		{"validation", schema.NewError(schema.ErrCodeValidation, "bad"), false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"reset", errors.New("read: connection reset by peer"), true},
		{"plain", errors.New("something odd"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.err))
		})
	}
}

func TestComputeBackoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

	assert.Equal(t, 100*time.Millisecond, ComputeBackoff(p, 0))
	assert.Equal(t, 200*time.Millisecond, ComputeBackoff(p, 1))
	assert.Equal(t, 400*time.Millisecond, ComputeBackoff(p, 2))
	assert.Equal(t, 800*time.Millisecond, ComputeBackoff(p, 3))
	assert.Equal(t, time.Second, ComputeBackoff(p, 4))
	assert.Equal(t, time.Second, ComputeBackoff(p, 30))
}

func TestComputeBackoff_ZeroBase(t *testing.T) {
	assert.Zero(t, ComputeBackoff(RetryPolicy{MaxAttempts: 3}, 2))
}

func TestWaitForBackoff(t *testing.T) {
	assert.NoError(t, WaitForBackoff(context.Background(), 0))

	start := time.Now()
	assert.NoError(t, WaitForBackoff(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, WaitForBackoff(ctx, time.Hour), context.Canceled)
}
