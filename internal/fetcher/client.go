// Client thực hiện một thao tác HTTP duy nhất cho một target: xin budget từ
// rate limiter, gọi remote với timeout, quan sát header budget, phân loại kết
// quả và retry theo policy. Mọi worker dùng chung một Client.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/iMan-sources/crawl-repo-final/cfg"
	"github.com/iMan-sources/crawl-repo-final/internal/limiter"
	"github.com/iMan-sources/crawl-repo-final/pkg/log"
)

// Outcome là kết quả fetch của một target. Err nil nghĩa là thành công,
// ngược lại Err thuộc taxonomy trong errors.go.
type Outcome struct {
	Target   Target
	Payload  []byte
	Err      error
	Attempts int
}

func (o Outcome) Success() bool {
	return o.Err == nil
}

type Client struct {
	Logger     log.Logger
	Config     *cfg.Config
	Limiter    *limiter.RateLimiter
	Policy     RetryPolicy
	httpClient *http.Client
}

func NewClient(logger log.Logger, config *cfg.Config, rl *limiter.RateLimiter) *Client {
	policy := RetryPolicy{
		MaxRetries: config.Crawler.MaxRetries,
		BaseDelay:  time.Duration(config.Crawler.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:   time.Duration(config.Crawler.RetryMaxDelayMs) * time.Millisecond,
		Jitter:     0.2,
		Retryable:  DefaultRetryable,
	}
	return &Client{
		Logger:  logger,
		Config:  config,
		Limiter: rl,
		Policy:  policy,
		httpClient: &http.Client{
			Timeout: time.Duration(config.Crawler.RequestTimeoutSec) * time.Second,
		},
	}
}

// Fetch gọi target và trả về Outcome đã phân loại. Chỉ lỗi transient mới được
// retry; 404/451 là terminal cho target, 401/403 còn budget là fatal cho cả
// lần chạy. Rate limit (403 với remaining=0) được chờ qua limiter, không tính
// là một lần thử.
func (c *Client) Fetch(ctx context.Context, target Target) Outcome {
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return Outcome{Target: target, Err: err, Attempts: attempt}
		}

		if err := c.Limiter.Acquire(ctx, 1); err != nil {
			return Outcome{Target: target, Err: err, Attempts: attempt}
		}

		payload, rateLimited, err := c.fetchOnce(ctx, target)
		if err == nil && !rateLimited {
			return Outcome{Target: target, Payload: payload, Attempts: attempt + 1}
		}

		// Hết budget: Observe đã ghi nhận remaining=0 và reset time, lần
		// Acquire kế tiếp sẽ tự block. Không đốt lượt retry cho trường hợp này.
		if rateLimited {
			c.Logger.Warn(ctx, "Rate limit hit khi fetch %s, chờ đến mốc reset", target.ID)
			continue
		}

		if !c.Policy.Retryable(err) {
			return Outcome{Target: target, Err: err, Attempts: attempt + 1}
		}

		if attempt >= c.Policy.MaxRetries {
			c.Logger.Warn(ctx, "Target %s thất bại sau %d lần thử: %v", target.ID, attempt+1, err)
			return Outcome{Target: target, Err: err, Attempts: attempt + 1}
		}

		delay := c.Policy.Delay(attempt)
		c.Logger.Debug(ctx, "Retry target %s sau %v (lần %d): %v", target.ID, delay, attempt+1, err)
		select {
		case <-ctx.Done():
			return Outcome{Target: target, Err: ctx.Err(), Attempts: attempt + 1}
		case <-time.After(delay):
		}
		attempt++
	}
}

// fetchOnce thực hiện đúng một request. Trả về (payload, rateLimited, err).
func (c *Client) fetchOnce(ctx context.Context, target Target) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrUnexpectedStatus, err)
	}

	switch target.Kind {
	case KindApi:
		req.Header.Set("Accept", "application/vnd.github.v3+json")
		if c.Config.GithubApi.AccessToken != "" {
			req.Header.Set("Authorization", fmt.Sprintf("token %s", c.Config.GithubApi.AccessToken))
		}
	default:
		// Trang ranking trả 403 cho client không giống trình duyệt
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, false, transientErr("request failed: %v", err)
	}
	defer resp.Body.Close()

	remaining := c.observeRateHeaders(resp)

	switch {
	case resp.StatusCode == http.StatusOK:
		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, transientErr("read body: %v", err)
		}
		return payload, false, nil

	case resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusUnavailableForLegalReasons:
		return nil, false, fmt.Errorf("%w: %s (%s)", ErrNotFound, target.ID, resp.Status)

	case resp.StatusCode == http.StatusForbidden && remaining == 0:
		return nil, true, nil

	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		return nil, false, fmt.Errorf("%w: %s", ErrAuthExhausted, resp.Status)

	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= http.StatusInternalServerError:
		return nil, false, transientErr("status %s", resp.Status)

	default:
		return nil, false, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}
}

// observeRateHeaders đọc header X-RateLimit-* và đẩy vào limiter. Trả về
// remaining, hoặc -1 nếu response không mang thông tin budget.
func (c *Client) observeRateHeaders(resp *http.Response) int {
	remainingStr := resp.Header.Get("X-RateLimit-Remaining")
	if remainingStr == "" {
		return -1
	}
	remaining, err := strconv.Atoi(remainingStr)
	if err != nil {
		return -1
	}

	var resetAt time.Time
	if resetStr := resp.Header.Get("X-RateLimit-Reset"); resetStr != "" {
		if resetUnix, err := strconv.ParseInt(resetStr, 10, 64); err == nil {
			resetAt = time.Unix(resetUnix, 0)
		}
	}
	if resetAt.IsZero() {
		resetAt = time.Now().Add(time.Duration(c.Config.GithubApi.RateLimitResetMin) * time.Minute)
	}

	c.Limiter.Observe(remaining, resetAt)
	return remaining
}
