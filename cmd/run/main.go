package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iMan-sources/crawl-repo-final/cfg"
	"github.com/iMan-sources/crawl-repo-final/internal/crawler"
	"github.com/iMan-sources/crawl-repo-final/internal/model"
	"github.com/iMan-sources/crawl-repo-final/internal/sink"
	"github.com/iMan-sources/crawl-repo-final/pkg/db"
	"github.com/iMan-sources/crawl-repo-final/pkg/log"
)

func main() {
	mode := flag.String("mode", "repos", "Crawl mode to run (repos, releases)")
	sinkType := flag.String("sink", "db", "Where to persist results (db, kafka)")
	flag.Parse()

	ctx := context.Background()
	logger, _ := log.NewCslLogger()

	// loader, _ := cfg.NewMockLoader()
	loader, err := cfg.NewViperLoader()
	if err != nil {
		logger.Critical(ctx, "Failed to create config loader: %v", err)
		os.Exit(1)
	}
	config, err := loader.Load()
	if err != nil {
		logger.Critical(ctx, "Failed to load config: %v", err)
		os.Exit(1)
	}

	mysql, err := db.NewMysql(config)
	if err != nil {
		logger.Critical(ctx, "Failed to setup database: %v", err)
		os.Exit(1)
	}
	repoMd, _ := model.NewRepo(config, logger, mysql)
	releaseMd, _ := model.NewRelease(config, logger, mysql)
	if err := mysql.Migrate(repoMd, releaseMd); err != nil {
		logger.Critical(ctx, "Failed to migrate database: %v", err)
		os.Exit(1)
	}

	s, err := buildSink(*sinkType, config, logger, mysql)
	if err != nil {
		logger.Critical(ctx, "Failed to setup sink: %v", err)
		os.Exit(1)
	}
	defer s.Close()

	c, err := crawler.FactoryCrawler(*mode, logger, config, mysql, s)
	if err != nil {
		logger.Critical(ctx, "Failed to create crawler: %v", err)
		os.Exit(1)
	}

	// Ctrl+C hủy context, crawler dừng mềm và flush nốt batch dở dang
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Warn(ctx, "Nhận signal %v, dừng crawler...", sig)
		cancel()
	}()

	logger.Info(ctx, "Starting Github star crawler, mode=%s, sink=%s", *mode, *sinkType)
	if err := c.Crawl(runCtx); err != nil {
		logger.Critical(ctx, "Crawl thất bại: %v", err)
		os.Exit(1)
	}
	logger.Info(ctx, "Successfully!")
}

func buildSink(sinkType string, config *cfg.Config, logger log.Logger, mysql *db.Mysql) (sink.Sink, error) {
	switch sinkType {
	case "db":
		mysqlSink, err := sink.NewMysqlSink(logger, mysql, config.Crawler.OnConflict)
		if err != nil {
			return nil, err
		}
		fileSink, err := sink.NewFileSink(logger, config.Output.JsonFile, config.Output.CsvFile)
		if err != nil {
			return nil, err
		}
		return sink.NewMulti(mysqlSink, fileSink), nil
	case "kafka":
		return sink.NewKafkaSink(config, logger)
	default:
		return nil, fmt.Errorf("unsupported sink type: %s", sinkType)
	}
}
