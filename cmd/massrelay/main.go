package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/cuongceg/massrelay/internal/config"
	rabbitmq "github.com/cuongceg/massrelay/internal/connector/rabbitmq"
	core "github.com/cuongceg/massrelay/internal/core"
	"github.com/cuongceg/massrelay/internal/metrics"
	"github.com/cuongceg/massrelay/internal/relay"
	util "github.com/cuongceg/massrelay/internal/util"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		return 1
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	log, err := util.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	instanceID := uuid.NewString()
	log = log.With().Str("instance_id", instanceID).Logger()

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	mp, shutdownMetrics, err := metrics.NewProvider(ctx, cfg.Metrics.OTLPEndpoint, instanceID)
	if err != nil {
		log.Error().Err(err).Msg("metrics provider")
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(sctx); err != nil {
			log.Warn().Err(err).Msg("metrics shutdown")
		}
	}()

	m, err := metrics.New(mp.Meter(metrics.ServiceName))
	if err != nil {
		log.Error().Err(err).Msg("metrics instruments")
		return 1
	}

	source := rabbitmq.NewConnector(util.SourceConnector(cfg, instanceID), log)
	target := rabbitmq.NewConnector(util.TargetConnector(cfg, instanceID), log)

	eng := &relay.Engine{
		Source:  source,
		Target:  core.TargetWithMetrics{Target: target, Observer: m},
		Options: util.RelayOptions(cfg),
		Log:     log,
		Metrics: m,
	}

	log.Info().
		Str("queue", cfg.Source.Queue).
		Str("exchange", cfg.Target.Exchange).
		Str("routing_key", cfg.Target.RoutingKey).
		Bool("declare", cfg.Declare).
		Msg("starting relay")

	err = eng.Run(ctx)
	if relay.IsShutdown(err) {
		log.Info().Msg("signal received, shutting down")
		return 0
	}
	log.Error().Err(err).Msg("relay stopped")
	return 1
}
