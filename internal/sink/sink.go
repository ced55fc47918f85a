// Package sink là lớp persistence của crawler: ghi các lô record vào MySQL,
// file output và Kafka. Commit phải idempotent để aggregator có thể retry
// nguyên lô sau lỗi giữa chừng.
package sink

import (
	"context"

	"github.com/iMan-sources/crawl-repo-final/internal/model"
)

type Sink interface {
	Commit(ctx context.Context, batch []model.Record) error
	Close() error
}

// Multi fan-out một lô sang nhiều sink. Lỗi đầu tiên được trả về để
// aggregator retry nguyên lô — các sink đều idempotent nên ghi lặp vô hại.
type Multi struct {
	Sinks []Sink
}

func NewMulti(sinks ...Sink) *Multi {
	return &Multi{Sinks: sinks}
}

func (m *Multi) Commit(ctx context.Context, batch []model.Record) error {
	for _, s := range m.Sinks {
		if err := s.Commit(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (m *Multi) Close() error {
	var firstErr error
	for _, s := range m.Sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
