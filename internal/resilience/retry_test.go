package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// fastConfig keeps the retry shape but does not sleep.
func fastConfig(maxRetries int) RetryConfig {
	cfg := BackoffConfig(maxRetries, 0)
	cfg.InitialBackoff = 0
	return cfg
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastConfig(3), func(_ context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_SuccessAfterRetry(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastConfig(3), func(_ context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection dropped")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsRetriesAndReturnsOriginalError(t *testing.T) {
	sentinel := errors.New("always fails")
	var calls int

	err := Do(context.Background(), fastConfig(3), func(_ context.Context) error {
		calls++
		return sentinel
	})

	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 4, calls, "first attempt plus three retries")
}

func TestDo_RetriesEveryErrorByDefault(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastConfig(2), func(_ context.Context) error {
		calls++
		return errors.New("permanent error: bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ContextCancelled_StopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	cfg := RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
		Multiplier:     2.0,
	}

	err := Do(ctx, cfg, func(_ context.Context) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return NewTransientError(errors.New("fail"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_CustomShouldRetry(t *testing.T) {
	var calls int
	cfg := fastConfig(3)
	cfg.ShouldRetry = IsTransient

	err := Do(context.Background(), cfg, func(_ context.Context) error {
		calls++
		return errors.New("not found")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_OnRetryCallback(t *testing.T) {
	var retryAttempts []int
	cfg := fastConfig(2)
	cfg.OnRetry = func(attempt int, _ error) {
		retryAttempts = append(retryAttempts, attempt)
	}

	_ = Do(context.Background(), cfg, func(_ context.Context) error {
		return errors.New("fail")
	})

	assert.Equal(t, []int{1, 2}, retryAttempts)
}

func TestDoVal_ReturnsValueOnSuccess(t *testing.T) {
	var calls int
	val, err := DoVal(context.Background(), fastConfig(3), func(_ context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("fail")
		}
		return "hello", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", val)
}

func TestDoVal_ReturnsZeroOnFailure(t *testing.T) {
	val, err := DoVal(context.Background(), fastConfig(1), func(_ context.Context) (int, error) {
		return 42, errors.New("fail")
	})
	require.Error(t, err)
	assert.Zero(t, val)
}

func TestDefaultRetryConfig_WaitsPowersOfTwo(t *testing.T) {
	cfg := applyDefaults(DefaultRetryConfig())

	assert.Equal(t, 4, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Second, computeBackoff(0, cfg))
	assert.Equal(t, 4*time.Second, computeBackoff(1, cfg))
	assert.Equal(t, 8*time.Second, computeBackoff(2, cfg))
}

func TestBackoffConfig_DelayPower(t *testing.T) {
	cfg := applyDefaults(BackoffConfig(3, 3*time.Second))

	assert.Equal(t, 3*time.Second, computeBackoff(0, cfg))
	assert.Equal(t, 9*time.Second, computeBackoff(1, cfg))
	assert.Equal(t, 27*time.Second, computeBackoff(2, cfg))
}

func TestBackoffConfig_NegativeRetries(t *testing.T) {
	cfg := BackoffConfig(-1, time.Second)
	assert.Equal(t, 1, cfg.MaxAttempts)
}

func TestComputeBackoff_CapsAtMax(t *testing.T) {
	cfg := applyDefaults(RetryConfig{
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     5 * time.Second,
		Multiplier:     10.0,
	})

	assert.Equal(t, 5*time.Second, computeBackoff(5, cfg))
}

func TestComputeBackoff_WithJitter(t *testing.T) {
	cfg := applyDefaults(RetryConfig{
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.5,
	})

	seen := make(map[time.Duration]bool)
	for i := 0; i < 100; i++ {
		d := computeBackoff(0, cfg)
		seen[d] = true
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 1500*time.Millisecond)
	}
	assert.Greater(t, len(seen), 1, "expected jitter to produce varying delays")
}

func TestRetryLogger(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	t.Cleanup(zap.ReplaceGlobals(zap.New(core)))

	logger := RetryLogger("arcgis", "item_update")
	logger(1, errors.New("test error"))
	logger(2, NewTransientError(errors.New("bad gateway"), 502))

	entries := logs.FilterMessage("retrying operation").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "permanent", entries[0].ContextMap()["class"])
	assert.Equal(t, "transient", entries[1].ContextMap()["class"])
	assert.Equal(t, "item_update", entries[1].ContextMap()["operation"])
	assert.Equal(t, int64(2), entries[1].ContextMap()["attempt"])
}

func TestWithLogger_SetsOnRetry(t *testing.T) {
	cfg := DefaultRetryConfig().WithLogger("arcgis", "move")
	assert.NotNil(t, cfg.OnRetry)
}

func TestFromRetrySettings(t *testing.T) {
	cfg := FromRetrySettings(0, 0)
	assert.Equal(t, 4, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.InitialBackoff)

	cfg = FromRetrySettings(5, 3)
	assert.Equal(t, 6, cfg.MaxAttempts)
	assert.Equal(t, 3*time.Second, cfg.InitialBackoff)
	assert.InDelta(t, 3.0, cfg.Multiplier, 0.001)
}
