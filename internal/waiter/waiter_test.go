package waiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUntil_ImmediateSuccess(t *testing.T) {
	t.Parallel()
	calls := 0
	ok, status := Until(context.Background(), func(_ context.Context) (bool, string, error) {
		calls++
		return true, "ACTIVE", nil
	}, time.Millisecond, 50*time.Millisecond)

	assert.True(t, ok)
	assert.Equal(t, "ACTIVE", status)
	assert.Equal(t, 1, calls)
}

func TestUntil_SuccessAfterPolls(t *testing.T) {
	t.Parallel()
	calls := 0
	ok, status := Until(context.Background(), func(_ context.Context) (bool, string, error) {
		calls++
		if calls < 3 {
			return false, "CREATING", nil
		}
		return true, "ACTIVE", nil
	}, time.Millisecond, time.Second)

	assert.True(t, ok)
	assert.Equal(t, "ACTIVE", status)
	assert.Equal(t, 3, calls)
}

func TestUntil_TimeoutReportsLastStatus(t *testing.T) {
	t.Parallel()
	ok, status := Until(context.Background(), func(_ context.Context) (bool, string, error) {
		return false, "CREATING", nil
	}, time.Millisecond, 20*time.Millisecond)

	assert.False(t, ok)
	assert.Equal(t, "CREATING", status)
}

func TestUntil_PredicateErrorAborts(t *testing.T) {
	t.Parallel()
	calls := 0
	ok, status := Until(context.Background(), func(_ context.Context) (bool, string, error) {
		calls++
		return false, "UNKNOWN", errors.New("describe failed")
	}, time.Millisecond, time.Second)

	assert.False(t, ok)
	assert.Equal(t, "UNKNOWN", status)
	assert.Equal(t, 1, calls)
}

func TestUntil_CanceledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, _ := Until(ctx, func(_ context.Context) (bool, string, error) {
		return false, "CREATING", nil
	}, 10*time.Millisecond, time.Second)

	assert.False(t, ok)
}

func TestSleep(t *testing.T) {
	t.Parallel()
	assert.True(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, Sleep(ctx, time.Minute))
}
