package fetcher

import (
	"errors"
	"math/rand"
	"time"
)

// RetryPolicy là chính sách retry tường minh được Client áp dụng thống nhất
// cho mọi request: số lần thử lại, backoff lũy thừa có trần, và predicate
// quyết định lỗi nào được retry.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     float64 // Tỷ lệ jitter cộng thêm, 0.2 nghĩa là tối đa +20%
	Retryable  func(error) bool
}

func DefaultRetryable(err error) bool {
	return errors.Is(err, errTransient)
}

// Delay tính thời gian chờ trước lần thử thứ attempt (0-based):
// base * 2^attempt, có trần, cộng jitter để tránh thundering herd.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter > 0 {
		delay += time.Duration(rand.Float64() * p.Jitter * float64(delay))
	}
	return delay
}
