package crawler_test

import (
	"testing"
	"time"

	"github.com/iMan-sources/crawl-repo-final/internal/crawler"
	"github.com/iMan-sources/crawl-repo-final/internal/fetcher"
	"github.com/stretchr/testify/require"
)

func target(id string) fetcher.Target {
	return fetcher.Target{ID: id, URL: "https://example.com/" + id}
}

func TestQueueDedupsByTargetId(t *testing.T) {
	q := crawler.NewQueue(8)

	require.True(t, q.Enqueue(target("1")))
	require.False(t, q.Enqueue(target("1")), "target trùng không được enqueue lần hai")
	require.True(t, q.Enqueue(target("2")))
	require.Equal(t, 2, q.Size())
}

func TestQueueClosesAfterSealAndDrain(t *testing.T) {
	q := crawler.NewQueue(8)
	q.Enqueue(target("1"))
	q.Enqueue(target("2"))
	q.Seal()

	<-q.Chan()
	q.Done()
	<-q.Chan()
	q.Done()

	select {
	case _, ok := <-q.Chan():
		require.False(t, ok, "channel phải đóng khi đã seal và xử lý hết")
	case <-time.After(time.Second):
		t.Fatal("channel không đóng")
	}
}

func TestQueueAllowsFollowUpAfterSeal(t *testing.T) {
	q := crawler.NewQueue(8)
	q.Enqueue(target("page-1"))
	q.Seal()

	// Worker lấy page-1 ra, enqueue trang kế tiếp trước khi báo Done
	got := <-q.Chan()
	require.Equal(t, "page-1", got.ID)
	require.True(t, q.Enqueue(target("page-2")), "follow-up sau seal phải được nhận khi còn target đang xử lý")
	q.Done()

	got = <-q.Chan()
	require.Equal(t, "page-2", got.ID)
	q.Done()

	_, ok := <-q.Chan()
	require.False(t, ok)
}

func TestQueueRejectsAfterClose(t *testing.T) {
	q := crawler.NewQueue(8)
	q.Enqueue(target("1"))
	q.Seal()
	<-q.Chan()
	q.Done()

	require.False(t, q.Enqueue(target("2")), "queue đã đóng không nhận target mới")
}

func TestQueueEnqueueDoesNotBlockWhenFull(t *testing.T) {
	// Channel size 1, enqueue 3 target từ cùng một goroutine: không được deadlock
	q := crawler.NewQueue(1)
	done := make(chan struct{})
	go func() {
		q.Enqueue(target("1"))
		q.Enqueue(target("2"))
		q.Enqueue(target("3"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue bị block khi channel đầy")
	}

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		got := <-q.Chan()
		seen[got.ID] = true
		q.Done()
	}
	require.Len(t, seen, 3)
}
