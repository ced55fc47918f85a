package crawler

import (
	"context"
	"sync"
	"time"

	"github.com/iMan-sources/crawl-repo-final/internal/fetcher"
	"github.com/iMan-sources/crawl-repo-final/internal/model"
	"github.com/iMan-sources/crawl-repo-final/internal/sink"
	"github.com/iMan-sources/crawl-repo-final/pkg/log"
)

// Progress là bộ đếm tiến độ của một lần chạy, phục vụ quan sát chứ không
// tham gia vào tính đúng đắn.
type Progress struct {
	Completed  int // Target xử lý thành công
	Skipped    int // Target terminal (404/451), bỏ qua có chủ đích
	Failed     int // Target hết lượt retry hoặc status lạ
	Records    int // Record đã đưa vào batch (sau dedup)
	Duplicates int // Record bị loại vì trùng natural key trong lần chạy
	Flushed    int // Record đã commit xuống sink
}

// Aggregator là consumer duy nhất của result channel: dedup theo natural key,
// gom batch, và flush xuống sink theo ngưỡng kích thước hoặc theo chu kỳ để
// batch cuối không bị kẹt. Không giả định thứ tự nào giữa các worker.
type Aggregator struct {
	Logger        log.Logger
	Sink          sink.Sink
	BatchSize     int
	FlushInterval time.Duration

	// Số lần retry cho một lô khi sink lỗi, vượt quá là fatal cho lần chạy
	CommitRetries int

	mu       sync.Mutex
	progress Progress
	seen     map[string]struct{}
	batch    []model.Record
}

func NewAggregator(logger log.Logger, s sink.Sink, batchSize int, flushInterval time.Duration) *Aggregator {
	if batchSize < 1 {
		batchSize = 1
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Aggregator{
		Logger:        logger,
		Sink:          s,
		BatchSize:     batchSize,
		FlushInterval: flushInterval,
		CommitRetries: 3,
		seen:          make(map[string]struct{}),
		batch:         make([]model.Record, 0, batchSize),
	}
}

// Run drain result channel cho đến khi channel đóng. Trả về lỗi fatal đầu
// tiên (auth hết quyền, sink hỏng) nếu có; lỗi per-target chỉ vào bộ đếm.
// Luôn drain đến cùng để worker không bị kẹt khi push kết quả cuối.
func (a *Aggregator) Run(ctx context.Context, cancel context.CancelFunc, results <-chan Result) error {
	var fatalErr error

	ticker := time.NewTicker(a.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case result, ok := <-results:
			if !ok {
				// Flush nốt batch dở dang rồi kết thúc
				if err := a.flush(ctx); err != nil && fatalErr == nil {
					fatalErr = err
				}
				return fatalErr
			}

			if err := a.consume(ctx, result); err != nil && fatalErr == nil {
				fatalErr = err
				cancel()
			}

		case <-ticker.C:
			if err := a.flush(ctx); err != nil && fatalErr == nil {
				fatalErr = err
				cancel()
			}
		}
	}
}

func (a *Aggregator) consume(ctx context.Context, result Result) error {
	if result.Err != nil {
		switch {
		case fetcher.IsRunFatal(result.Err):
			return result.Err
		case fetcher.IsTerminalTarget(result.Err):
			a.Logger.Warn(ctx, "Bỏ qua target %s: %v", result.Target.ID, result.Err)
			a.mu.Lock()
			a.progress.Skipped++
			a.mu.Unlock()
		default:
			a.Logger.Warn(ctx, "Target %s thất bại: %v", result.Target.ID, result.Err)
			a.mu.Lock()
			a.progress.Failed++
			a.mu.Unlock()
		}
		return nil
	}

	a.mu.Lock()
	a.progress.Completed++
	for _, record := range result.Records {
		key := record.Key()
		if _, dup := a.seen[key]; dup {
			a.progress.Duplicates++
			continue
		}
		a.seen[key] = struct{}{}
		a.progress.Records++
		a.batch = append(a.batch, record)
	}
	full := len(a.batch) >= a.BatchSize
	a.mu.Unlock()

	if full {
		return a.flush(ctx)
	}
	return nil
}

// flush commit nguyên batch hiện tại. Sink upsert theo natural key nên retry
// nguyên lô là idempotent; batch chỉ được xóa sau khi commit thành công,
// không bao giờ bị drop âm thầm.
func (a *Aggregator) flush(ctx context.Context) error {
	a.mu.Lock()
	if len(a.batch) == 0 {
		a.mu.Unlock()
		return nil
	}
	batch := a.batch
	a.mu.Unlock()

	var err error
	for attempt := 0; attempt <= a.CommitRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		if err = a.Sink.Commit(ctx, batch); err == nil {
			a.mu.Lock()
			a.progress.Flushed += len(batch)
			a.batch = a.batch[:0]
			a.mu.Unlock()
			return nil
		}

		a.Logger.Warn(ctx, "Commit batch %d record thất bại (lần %d): %v", len(batch), attempt+1, err)
	}

	a.Logger.Critical(ctx, "Sink không phục hồi được sau %d lần retry: %v", a.CommitRetries, err)
	return err
}

// Progress trả về snapshot bộ đếm hiện tại
func (a *Aggregator) Progress() Progress {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.progress
}
