package crawler

import (
	"context"
	"sync"

	"github.com/iMan-sources/crawl-repo-final/internal/extractor"
	"github.com/iMan-sources/crawl-repo-final/internal/fetcher"
	"github.com/iMan-sources/crawl-repo-final/internal/model"
	"github.com/iMan-sources/crawl-repo-final/pkg/log"
)

// Result là phần tử trên result channel: các record extract được từ một
// target, hoặc lỗi đã phân loại của target đó.
type Result struct {
	Target  fetcher.Target
	Records []model.Record
	Err     error
}

// Pool là một nhóm W worker cố định cùng drain một queue. Mỗi worker là một
// vòng lặp thuần: dequeue -> fetch -> extract -> đẩy kết quả vào result
// channel duy nhất. Worker không chia sẻ state với nhau ngoài rate limiter
// (tự đồng bộ) và result channel.
type Pool struct {
	Logger    log.Logger
	Fetcher   *fetcher.Client
	Extractor extractor.Extractor
	Workers   int

	// FollowUp sinh target kế tiếp từ một target đã xử lý xong (phân trang
	// releases). Nil khi pipeline không cần phân trang động.
	FollowUp func(target fetcher.Target, records []model.Record) *fetcher.Target
}

// Run chạy pool cho đến khi queue cạn hoặc cancel được gọi vì lỗi fatal.
// Result channel được đóng khi worker cuối cùng thoát. Kết quả đã tính xong
// vẫn được đẩy nốt trước khi worker thoát vì cancel.
func (p *Pool) Run(ctx context.Context, cancel context.CancelFunc, queue *Queue) <-chan Result {
	// Bounded để backpressure: worker nhanh không được vượt quá xa aggregator
	results := make(chan Result, p.Workers*2)

	var wg sync.WaitGroup
	for i := 0; i < p.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.runWorker(ctx, cancel, queue, results, workerID)
		}(i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func (p *Pool) runWorker(ctx context.Context, cancel context.CancelFunc, queue *Queue, results chan<- Result, workerID int) {
	for {
		// Kiểm tra cancel ở đầu mỗi vòng để dừng trong vòng một chu kỳ
		select {
		case <-ctx.Done():
			return
		default:
		}

		var target fetcher.Target
		var ok bool
		select {
		case <-ctx.Done():
			return
		case target, ok = <-queue.Chan():
			if !ok {
				return
			}
		}

		result := p.processTarget(ctx, queue, target)
		queue.Done()

		// Lỗi fatal: báo cho mọi worker dừng, target đang bay bị bỏ chứ
		// không requeue, dữ liệu đã persist trước đó giữ nguyên
		if result.Err != nil && fetcher.IsRunFatal(result.Err) {
			p.Logger.Critical(ctx, "Worker %d gặp lỗi fatal, dừng toàn bộ: %v", workerID, result.Err)
			results <- result
			cancel()
			return
		}

		results <- result
	}
}

func (p *Pool) processTarget(ctx context.Context, queue *Queue, target fetcher.Target) Result {
	outcome := p.Fetcher.Fetch(ctx, target)
	if !outcome.Success() {
		return Result{Target: target, Err: outcome.Err}
	}

	records, err := p.Extractor.Extract(target, outcome.Payload)
	if err != nil {
		return Result{Target: target, Err: err}
	}

	if p.FollowUp != nil {
		if next := p.FollowUp(target, records); next != nil {
			queue.Enqueue(*next)
		}
	}

	return Result{Target: target, Records: records}
}
