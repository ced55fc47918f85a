package limiter_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/iMan-sources/crawl-repo-final/internal/limiter"
	"github.com/stretchr/testify/require"
)

func TestAcquireConsumesBudget(t *testing.T) {
	rl := limiter.NewRateLimiter(5, 0, 1000)

	for i := 0; i < 5; i++ {
		require.NoError(t, rl.Acquire(context.Background(), 1))
	}
	require.Equal(t, 0, rl.State().Remaining)
}

func TestAcquireBlocksAtReserveFloor(t *testing.T) {
	// Budget 12, reserve 10: chỉ có 2 request được phép
	rl := limiter.NewRateLimiter(12, 10, 1000)

	require.NoError(t, rl.Acquire(context.Background(), 1))
	require.NoError(t, rl.Acquire(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err := rl.Acquire(ctx, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded, "request thứ 3 phải bị chặn bởi reserve floor")
	require.Equal(t, 10, rl.State().Remaining, "phần reserve không bao giờ được tiêu")
}

func TestObserveOverridesAssumedBudget(t *testing.T) {
	rl := limiter.NewRateLimiter(1, 0, 1000)

	// Server báo budget thật lớn hơn giả định ban đầu
	rl.Observe(4999, time.Now().Add(time.Hour))
	require.Equal(t, 4999, rl.State().Remaining)

	require.NoError(t, rl.Acquire(context.Background(), 1))
	require.Equal(t, 4998, rl.State().Remaining)
}

func TestAcquireRefreshesAfterReset(t *testing.T) {
	rl := limiter.NewRateLimiter(60, 0, 1000)

	// Hết budget, mốc reset ngay trước mắt
	rl.Observe(0, time.Now().Add(150*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	start := time.Now()
	require.NoError(t, rl.Acquire(ctx, 1), "phải được cấp lại budget sau mốc reset")
	require.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond, "phải có chờ thật sự")
}

func TestConcurrentAcquireNeverDipsBelowReserve(t *testing.T) {
	budget, reserve := 30, 10
	rl := limiter.NewRateLimiter(budget, reserve, 100000)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var mu sync.Mutex
	granted := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Acquire(ctx, 1) == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, budget-reserve, granted, "chỉ phần budget trên reserve được cấp")
	require.Equal(t, reserve, rl.State().Remaining)
}

func TestAcquireCanceledContext(t *testing.T) {
	rl := limiter.NewRateLimiter(0, 0, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, rl.Acquire(ctx, 1))
}
