// Package limiter giữ trạng thái budget request của API trong một lần chạy.
// Budget được cập nhật từ header X-RateLimit-* sau mỗi response và mọi worker
// phải Acquire trước khi gọi remote.
package limiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateState là trạng thái budget tại thời điểm quan sát gần nhất
type RateState struct {
	Remaining    int
	ResetAt      time.Time
	ReserveFloor int
}

type RateLimiter struct {
	mu         sync.Mutex
	remaining  int
	resetAt    time.Time
	reserve    int
	lastBudget int // Budget đầy đủ lớn nhất từng thấy, dùng để refresh khi qua mốc reset
	pacer      *rate.Limiter

	// Khoảng nghỉ giữa hai lần kiểm tra lại budget khi đang chờ
	pollInterval time.Duration
}

// NewRateLimiter tạo limiter với budget giả định ban đầu. Budget thật sẽ được
// refine qua Observe ngay từ response đầu tiên.
func NewRateLimiter(initialBudget, reserveFloor, requestsPerSecond int) *RateLimiter {
	if initialBudget < 0 {
		initialBudget = 0
	}
	burst := requestsPerSecond
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		remaining:    initialBudget,
		reserve:      reserveFloor,
		lastBudget:   initialBudget,
		pacer:        rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		pollInterval: 200 * time.Millisecond,
	}
}

// Acquire block cho đến khi còn đủ budget phía trên reserve floor, hoặc cho
// đến khi mốc reset đã qua và budget được làm mới. Trả về lỗi khi context hủy.
func (r *RateLimiter) Acquire(ctx context.Context, cost int) error {
	if cost <= 0 {
		cost = 1
	}

	// Pacing theo request/giây trước, sau đó mới xét budget
	if err := r.pacer.Wait(ctx); err != nil {
		return err
	}

	for {
		r.mu.Lock()

		// Qua mốc reset thì server đã cấp lại budget
		if !r.resetAt.IsZero() && time.Now().After(r.resetAt) {
			r.remaining = r.lastBudget
			r.resetAt = time.Time{}
		}

		if r.remaining-r.reserve >= cost {
			r.remaining -= cost
			r.mu.Unlock()
			return nil
		}

		wait := r.pollInterval
		if !r.resetAt.IsZero() {
			if until := time.Until(r.resetAt); until > 0 && until < wait {
				wait = until
			}
		}
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Observe cập nhật trạng thái budget từ header của response. Last-writer-wins
// là chấp nhận được vì mỗi lần cập nhật đều phản ánh server tại thời điểm gọi.
func (r *RateLimiter) Observe(remaining int, resetAt time.Time) {
	if remaining < 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.remaining = remaining
	r.resetAt = resetAt
	// lastBudget chỉ tăng: remaining=0 lúc cạn kiệt không được kéo giá trị
	// refresh sau mốc reset về 0
	if remaining > r.lastBudget {
		r.lastBudget = remaining
	}
}

// State trả về snapshot trạng thái hiện tại
func (r *RateLimiter) State() RateState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RateState{
		Remaining:    r.remaining,
		ResetAt:      r.resetAt,
		ReserveFloor: r.reserve,
	}
}
