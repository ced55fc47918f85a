package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iMan-sources/crawl-repo-final/cfg"
	"github.com/iMan-sources/crawl-repo-final/internal/model"
	"github.com/iMan-sources/crawl-repo-final/pkg/db"
	"github.com/iMan-sources/crawl-repo-final/pkg/kafka"
	"github.com/iMan-sources/crawl-repo-final/pkg/log"
)

func main() {
	consumerType := flag.String("type", "", "Type of consumer to run (repo, release)")
	flag.Parse()

	if *consumerType == "" {
		fmt.Println("Please specify a consumer type: -type=[repo|release]")
		os.Exit(1)
	}

	logger, _ := log.NewCslLogger()

	loader, err := cfg.NewViperLoader()
	if err != nil {
		logger.Critical(context.Background(), "Failed to create config loader: %v", err)
		os.Exit(1)
	}
	config, err := loader.Load()
	if err != nil {
		logger.Critical(context.Background(), "Failed to load config: %v", err)
		os.Exit(1)
	}

	mysql, err := db.NewMysql(config)
	if err != nil {
		logger.Critical(context.Background(), "Failed to connect to database: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repoModel, _ := model.NewRepo(config, logger, mysql)
	releaseModel, _ := model.NewRelease(config, logger, mysql)
	if err := mysql.Migrate(repoModel, releaseModel); err != nil {
		logger.Critical(ctx, "Failed to migrate database: %v", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	switch *consumerType {
	case "repo":
		startRepoConsumer(ctx, config, logger, repoModel)
	case "release":
		startReleaseConsumer(ctx, config, logger, releaseModel)
	default:
		logger.Error(ctx, "Unknown consumer type: %s", *consumerType)
		os.Exit(1)
	}

	<-sigCh
	logger.Info(ctx, "Received shutdown signal, gracefully shutting down...")
	cancel()
}

func startRepoConsumer(ctx context.Context, config *cfg.Config, logger log.Logger, repoModel *model.Repo) {
	consumer := kafka.NewConsumer(config, logger, config.Kafka.Producer.TopicRepo, "repo-consumer-group")

	messages := make(chan model.RepoMessage, config.Crawler.BatchSize*2)
	go processBatchedRepos(ctx, messages, config, logger, repoModel)

	consumer.RegisterHandler("repo", func(data []byte) error {
		var repoMsg model.RepoMessage
		if err := json.Unmarshal(data, &repoMsg); err != nil {
			return fmt.Errorf("failed to unmarshal repo message: %w", err)
		}
		select {
		case messages <- repoMsg:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error(ctx, "Repo consumer error: %v", err)
		}
	}()

	logger.Info(ctx, "Repository consumer started successfully")
}

// processBatchedRepos gom message thành lô để upsert một transaction thay vì
// ghi từng dòng. Message phát lại chỉ chạm lại cùng một row.
func processBatchedRepos(ctx context.Context, messages <-chan model.RepoMessage, config *cfg.Config, logger log.Logger, repoModel *model.Repo) {
	batchSize := config.Crawler.BatchSize
	batchTimeout := 5 * time.Second

	var batch []model.RepoMessage
	timer := time.NewTimer(batchTimeout)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := repoModel.CreateBatch(batch, config.Crawler.OnConflict); err != nil {
			logger.Error(ctx, "Failed to save batch of %d repositories: %v", len(batch), err)
			return
		}
		logger.Info(ctx, "Successfully saved batch of %d repositories", len(batch))
		batch = nil
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case msg := <-messages:
			batch = append(batch, msg)
			if len(batch) >= batchSize {
				flush()
				timer.Reset(batchTimeout)
			}

		case <-timer.C:
			flush()
			timer.Reset(batchTimeout)
		}
	}
}

func startReleaseConsumer(ctx context.Context, config *cfg.Config, logger log.Logger, releaseModel *model.Release) {
	consumer := kafka.NewConsumer(config, logger, config.Kafka.Producer.TopicRelease, "release-consumer-group")

	messages := make(chan model.ReleaseMessage, config.Crawler.BatchSize*2)
	go processBatchedReleases(ctx, messages, config, logger, releaseModel)

	consumer.RegisterHandler("release", func(data []byte) error {
		var releaseMsg model.ReleaseMessage
		if err := json.Unmarshal(data, &releaseMsg); err != nil {
			return fmt.Errorf("failed to unmarshal release message: %w", err)
		}
		select {
		case messages <- releaseMsg:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error(ctx, "Release consumer error: %v", err)
		}
	}()

	logger.Info(ctx, "Release consumer started successfully")
}

func processBatchedReleases(ctx context.Context, messages <-chan model.ReleaseMessage, config *cfg.Config, logger log.Logger, releaseModel *model.Release) {
	batchSize := config.Crawler.BatchSize
	batchTimeout := 5 * time.Second

	var batch []model.ReleaseMessage
	timer := time.NewTimer(batchTimeout)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := releaseModel.CreateBatch(batch, config.Crawler.OnConflict); err != nil {
			logger.Error(ctx, "Failed to save batch of %d releases: %v", len(batch), err)
			return
		}
		logger.Info(ctx, "Successfully saved batch of %d releases", len(batch))
		batch = nil
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case msg := <-messages:
			batch = append(batch, msg)
			if len(batch) >= batchSize {
				flush()
				timer.Reset(batchTimeout)
			}

		case <-timer.C:
			flush()
			timer.Reset(batchTimeout)
		}
	}
}
