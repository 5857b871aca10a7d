// Package app wires the daemon together: engine client, sampler, sink,
// metrics server, and router, behind a single Run/Close shape.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/mobystash/mobystash/internal/config"
	"github.com/mobystash/mobystash/internal/metrics"
	"github.com/mobystash/mobystash/internal/mobyclient"
	"github.com/mobystash/mobystash/internal/router"
	"github.com/mobystash/mobystash/internal/sampler"
	"github.com/mobystash/mobystash/internal/sink"
	"github.com/rs/zerolog"
)

type App struct {
	engine        *mobyclient.Client
	metricsServer *metrics.Server
	router        *router.Router
	logger        zerolog.Logger
}

// New creates a new App by wiring up all dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	engine, err := mobyclient.New(cfg.Docker.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Docker engine: %w", err)
	}

	snk := sink.NewLogstashSink(cfg.Logstash.Server, logger)

	smpl := sampler.ParseRules(cfg.SampleRules, cfg.SampleRatio)

	var metricsServer *metrics.Server
	if cfg.EnableMetrics {
		metricsServer = metrics.NewServer(cfg.MetricsAddr)
	}

	checkpointInterval := secondsToDuration(cfg.StateCheckpointInterval)
	r := router.New(engine, smpl, snk, cfg.StateFile, checkpointInterval, logger)

	return &App{
		engine:        engine,
		metricsServer: metricsServer,
		router:        r,
		logger:        logger,
	}, nil
}

// Run starts the metrics server (if enabled) in the background and then
// runs the router, returning what the router's Run returns. It does not
// wait for the metrics server to stop.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info().Msg("Application starting")

	if a.metricsServer != nil {
		go func() {
			if err := a.metricsServer.Run(ctx); err != nil {
				a.logger.Error().Err(err).Msg("Metrics server exited with error")
			}
		}()
	}

	return a.router.Run(ctx)
}

func (a *App) Close() error {
	if a.engine != nil {
		if err := a.engine.Close(); err != nil {
			return fmt.Errorf("close docker engine client: %w", err)
		}
	}
	return nil
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
