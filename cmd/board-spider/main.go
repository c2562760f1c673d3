package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/pta-board-spider/pkg/batch"
	"github.com/Sternrassler/pta-board-spider/pkg/client"
	"github.com/Sternrassler/pta-board-spider/pkg/config"
	"github.com/Sternrassler/pta-board-spider/pkg/export"
	"github.com/Sternrassler/pta-board-spider/pkg/logging"
	"github.com/Sternrassler/pta-board-spider/pkg/metrics"
	"github.com/Sternrassler/pta-board-spider/pkg/pta"
	"github.com/Sternrassler/pta-board-spider/pkg/ratelimit"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			log.Error().Err(err).Msg("Board spider failed")
		}
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("board-spider", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file (default: $"+config.ConfigPathEnvVar+")")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
	})

	if cfg.Metrics.Addr != "" {
		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := metrics.Serve(metricsCtx, cfg.Metrics.Addr); err != nil {
				log.Warn().Err(err).Msg("Metrics endpoint stopped")
			}
		}()
	}

	throttle := ratelimit.NewTracker()
	judge, err := client.New(clientConfig(cfg, throttle))
	if err != nil {
		return fmt.Errorf("create judge client: %w", err)
	}

	exporter, closeExporter, err := buildExporter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeExporter()

	spider := pta.NewSpider(judge, spiderConfig(cfg, throttle))
	if err := spider.Run(ctx, cfg.FetchRuns); err != nil {
		return fmt.Errorf("contest %s: %w", cfg.ContestID, err)
	}

	if err := exporter.Export(ctx, spider.Board()); err != nil {
		return fmt.Errorf("export board: %w", err)
	}
	return nil
}

func clientConfig(cfg *config.Config, throttle *ratelimit.Tracker) client.Config {
	return client.Config{
		BaseURL:           cfg.API.BaseURL,
		Timeout:           cfg.API.Timeout,
		UserAgent:         cfg.API.UserAgent,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
		BreakerFailures:   cfg.API.BreakerFailures,
		BreakerTimeout:    cfg.API.BreakerTimeout,
		Throttle:          throttle,
	}
}

func spiderConfig(cfg *config.Config, throttle *ratelimit.Tracker) pta.Config {
	retry := client.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Retry.MaxAttempts
	retry.InitialBackoff = cfg.Retry.InitialBackoff
	retry.MaxBackoff = cfg.Retry.MaxBackoff

	return pta.Config{
		ContestID: cfg.ContestID,
		Board: pta.BoardSettings{
			Name:         cfg.Board.Name,
			Penalty:      cfg.Board.Penalty,
			FrozenTime:   cfg.Board.FrozenTime,
			Organization: cfg.Board.Organization,
		},
		Retry: retry,
		Batch: batch.Config{
			BatchSize:     cfg.Batch.Size,
			BatchDelay:    cfg.Batch.Delay,
			MaxBatchDelay: cfg.Batch.MaxDelay,
		},
		Throttle: throttle,
	}
}

// buildExporter assembles the configured exporters. The returned close
// function releases the Redis connection.
func buildExporter(ctx context.Context, cfg *config.Config) (export.Exporter, func(), error) {
	var exporters export.Multi
	closeFn := func() {}

	if cfg.Export.Dir != "" {
		exporters = append(exporters, export.NewFileExporter(cfg.Export.Dir))
	}

	if cfg.Export.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.Export.RedisAddr,
			DB:   cfg.Export.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.Export.RedisAddr, err)
		}
		log.Info().Str("addr", cfg.Export.RedisAddr).Msg("Connected to Redis")

		exporters = append(exporters, export.NewRedisExporter(redisClient, cfg.Export.RedisTTL))
		closeFn = func() { redisClient.Close() }
	}

	if len(exporters) == 0 {
		log.Warn().Msg("No exporter configured - board will not be written")
	}
	return exporters, closeFn, nil
}
