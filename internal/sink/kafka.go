package sink

import (
	"context"
	"fmt"

	"github.com/iMan-sources/crawl-repo-final/cfg"
	"github.com/iMan-sources/crawl-repo-final/internal/model"
	"github.com/iMan-sources/crawl-repo-final/pkg/kafka"
	"github.com/iMan-sources/crawl-repo-final/pkg/log"
)

// KafkaSink đẩy record lên topic theo loại entity thay vì ghi thẳng database.
// Consumer (cmd/consumer) sẽ gom lô và upsert, nên phát lại message là vô hại.
type KafkaSink struct {
	Logger          log.Logger
	repoProducer    *kafka.Producer
	releaseProducer *kafka.Producer
}

func NewKafkaSink(config *cfg.Config, logger log.Logger) (*KafkaSink, error) {
	repoProducer, err := kafka.NewProducer(config, logger, config.Kafka.Producer.TopicRepo)
	if err != nil {
		return nil, fmt.Errorf("failed to create repo producer: %w", err)
	}
	releaseProducer, err := kafka.NewProducer(config, logger, config.Kafka.Producer.TopicRelease)
	if err != nil {
		return nil, fmt.Errorf("failed to create release producer: %w", err)
	}
	return &KafkaSink{
		Logger:          logger,
		repoProducer:    repoProducer,
		releaseProducer: releaseProducer,
	}, nil
}

func (s *KafkaSink) Commit(ctx context.Context, batch []model.Record) error {
	for _, record := range batch {
		switch r := record.(type) {
		case model.RepoMessage:
			if err := s.repoProducer.Publish(ctx, "repo", r); err != nil {
				return err
			}
		case model.ReleaseMessage:
			if err := s.releaseProducer.Publish(ctx, "release", r); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown record type %T", record)
		}
	}
	return nil
}

func (s *KafkaSink) Close() error {
	if err := s.repoProducer.Close(); err != nil {
		return err
	}
	return s.releaseProducer.Close()
}
