package crawler

import (
	"sync"

	"github.com/iMan-sources/crawl-repo-final/internal/fetcher"
)

// Queue phân phối target cho worker pool qua một channel có giới hạn.
// Một target chỉ được enqueue đúng một lần trong một lần chạy (seen set);
// channel chỉ đóng khi producer đã seal và mọi target đã được xử lý xong,
// nhờ vậy worker có thể enqueue thêm trang kế tiếp khi đang chạy.
type Queue struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	items   chan fetcher.Target
	pending int
	sealed  bool
	closed  bool
}

func NewQueue(size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{
		seen:  make(map[string]struct{}),
		items: make(chan fetcher.Target, size),
	}
}

// Enqueue thêm một target nếu chưa từng thấy. Trả về false khi target trùng
// hoặc queue đã đóng. Khi channel đầy, việc gửi được đẩy sang goroutine riêng
// để worker enqueue follow-up không tự khóa chính mình.
func (q *Queue) Enqueue(target fetcher.Target) bool {
	q.mu.Lock()
	if q.closed || q.sealed && q.pending == 0 {
		q.mu.Unlock()
		return false
	}
	if _, dup := q.seen[target.ID]; dup {
		q.mu.Unlock()
		return false
	}
	q.seen[target.ID] = struct{}{}
	q.pending++
	q.mu.Unlock()

	select {
	case q.items <- target:
	default:
		go func() { q.items <- target }()
	}
	return true
}

// Done báo một target đã xử lý xong (kể cả thất bại). Khi producer đã seal và
// không còn target nào đang chờ, channel được đóng để worker thoát.
func (q *Queue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending--
	q.maybeClose()
}

// Seal báo không còn target gốc nào nữa. Worker vẫn có thể enqueue follow-up
// cho đến khi mọi target đang chờ được xử lý hết.
func (q *Queue) Seal() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sealed = true
	q.maybeClose()
}

func (q *Queue) maybeClose() {
	if q.sealed && q.pending == 0 && !q.closed {
		q.closed = true
		close(q.items)
	}
}

func (q *Queue) Chan() <-chan fetcher.Target {
	return q.items
}

// Size trả về số target đã từng enqueue
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.seen)
}
