package fetcher_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iMan-sources/crawl-repo-final/cfg"
	"github.com/iMan-sources/crawl-repo-final/internal/fetcher"
	"github.com/iMan-sources/crawl-repo-final/internal/limiter"
	"github.com/iMan-sources/crawl-repo-final/pkg/log"
	"github.com/stretchr/testify/require"
)

func testConfig() *cfg.Config {
	loader, _ := cfg.NewMockLoader()
	config, _ := loader.Load()
	// Delay retry nhỏ để test chạy nhanh
	config.Crawler.MaxRetries = 2
	config.Crawler.RetryBaseDelayMs = 1
	config.Crawler.RetryMaxDelayMs = 10
	config.Crawler.RequestTimeoutSec = 5
	return config
}

func newTestClient(config *cfg.Config) (*fetcher.Client, *limiter.RateLimiter) {
	logger, _ := log.NewCslLogger()
	rl := limiter.NewRateLimiter(1000, 0, 100000)
	return fetcher.NewClient(logger, config, rl), rl
}

func apiTarget(url string) fetcher.Target {
	return fetcher.Target{ID: "user/repo#1", URL: url, Kind: fetcher.KindApi, RepoID: 1, Page: 1}
}

func TestFetchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id": 1}]`)
	}))
	defer server.Close()

	client, _ := newTestClient(testConfig())
	outcome := client.Fetch(context.Background(), apiTarget(server.URL))

	require.True(t, outcome.Success())
	require.Equal(t, 1, outcome.Attempts)
	require.Equal(t, `[{"id": 1}]`, string(outcome.Payload))
}

func TestFetchSendsApiHeaders(t *testing.T) {
	config := testConfig()
	config.GithubApi.AccessToken = "secret-token"

	var gotAccept, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	client, _ := newTestClient(config)
	outcome := client.Fetch(context.Background(), apiTarget(server.URL))

	require.True(t, outcome.Success())
	require.Equal(t, "application/vnd.github.v3+json", gotAccept)
	require.Equal(t, "token secret-token", gotAuth)
}

func TestFetchRetriesTransientExactly(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	config := testConfig()
	client, _ := newTestClient(config)
	outcome := client.Fetch(context.Background(), apiTarget(server.URL))

	require.False(t, outcome.Success())
	// 1 lần thử đầu + MaxRetries lần thử lại, không hơn không kém
	require.Equal(t, int32(config.Crawler.MaxRetries+1), hits.Load())
	require.Equal(t, config.Crawler.MaxRetries+1, outcome.Attempts)
	require.False(t, fetcher.IsRunFatal(outcome.Err))
	require.False(t, fetcher.IsTerminalTarget(outcome.Err))
}

func TestFetchRecoversAfterTransient(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	client, _ := newTestClient(testConfig())
	outcome := client.Fetch(context.Background(), apiTarget(server.URL))

	require.True(t, outcome.Success())
	require.Equal(t, 3, outcome.Attempts)
}

func TestFetchNotFoundIsTerminalWithoutRetry(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, _ := newTestClient(testConfig())
	outcome := client.Fetch(context.Background(), apiTarget(server.URL))

	require.False(t, outcome.Success())
	require.ErrorIs(t, outcome.Err, fetcher.ErrNotFound)
	require.True(t, fetcher.IsTerminalTarget(outcome.Err))
	require.False(t, fetcher.IsRunFatal(outcome.Err))
	require.Equal(t, int32(1), hits.Load(), "404 không được retry")
}

func TestFetchLegalBlockIsTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnavailableForLegalReasons)
	}))
	defer server.Close()

	client, _ := newTestClient(testConfig())
	outcome := client.Fetch(context.Background(), apiTarget(server.URL))

	require.ErrorIs(t, outcome.Err, fetcher.ErrNotFound)
}

func TestFetchUnauthorizedIsRunFatal(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client, _ := newTestClient(testConfig())
	outcome := client.Fetch(context.Background(), apiTarget(server.URL))

	require.ErrorIs(t, outcome.Err, fetcher.ErrAuthExhausted)
	require.True(t, fetcher.IsRunFatal(outcome.Err))
	require.Equal(t, int32(1), hits.Load(), "401 không được retry")
}

func TestFetchForbiddenWithBudgetIsRunFatal(t *testing.T) {
	// 403 khi vẫn còn budget là mất quyền truy cập, không phải rate limit
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "42")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client, _ := newTestClient(testConfig())
	outcome := client.Fetch(context.Background(), apiTarget(server.URL))

	require.ErrorIs(t, outcome.Err, fetcher.ErrAuthExhausted)
}

func TestFetchWaitsOutRateLimit(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(400*time.Millisecond).Unix(), 10))
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("X-RateLimit-Remaining", "100")
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	client, _ := newTestClient(testConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	outcome := client.Fetch(ctx, apiTarget(server.URL))

	require.True(t, outcome.Success())
	require.Equal(t, int32(2), hits.Load())
	// Chờ rate limit không tính là một lần thử
	require.Equal(t, 1, outcome.Attempts)
}

func TestFetchObservesRateHeaders(t *testing.T) {
	resetAt := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "4321")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	client, rl := newTestClient(testConfig())
	outcome := client.Fetch(context.Background(), apiTarget(server.URL))

	require.True(t, outcome.Success())
	state := rl.State()
	require.Equal(t, 4321, state.Remaining)
	require.True(t, state.ResetAt.Equal(resetAt))
}

func TestFetchUnexpectedStatusIsTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	client, _ := newTestClient(testConfig())
	outcome := client.Fetch(context.Background(), apiTarget(server.URL))

	require.ErrorIs(t, outcome.Err, fetcher.ErrUnexpectedStatus)
	require.True(t, fetcher.IsTerminalTarget(outcome.Err))
}

func TestRetryPolicyDelayBackoff(t *testing.T) {
	policy := fetcher.RetryPolicy{
		BaseDelay: 2 * time.Second,
		MaxDelay:  30 * time.Second,
	}

	// Không jitter thì delay là dãy không giảm, nhân đôi và có trần
	require.Equal(t, 2*time.Second, policy.Delay(0))
	require.Equal(t, 4*time.Second, policy.Delay(1))
	require.Equal(t, 8*time.Second, policy.Delay(2))
	require.Equal(t, 16*time.Second, policy.Delay(3))
	require.Equal(t, 30*time.Second, policy.Delay(4))
	require.Equal(t, 30*time.Second, policy.Delay(10))
}

func TestRetryPolicyJitterBounds(t *testing.T) {
	policy := fetcher.RetryPolicy{
		BaseDelay: time.Second,
		MaxDelay:  time.Minute,
		Jitter:    0.2,
	}

	for i := 0; i < 100; i++ {
		d := policy.Delay(1)
		require.GreaterOrEqual(t, d, 2*time.Second)
		require.LessOrEqual(t, d, 2*time.Second+400*time.Millisecond)
	}
}
