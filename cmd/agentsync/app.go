// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/agentcloud/agentsync/cloud"
	"github.com/agentcloud/agentsync/cmd/agentsync/cli"
	"github.com/agentcloud/agentsync/lib/config"
	"github.com/agentcloud/agentsync/lib/graphql"
	"github.com/agentcloud/agentsync/lib/mapping"
	"github.com/agentcloud/agentsync/lib/offlinequeue"
	"github.com/agentcloud/agentsync/lib/syncmanager"
	"github.com/agentcloud/agentsync/lib/wire"
)

// app holds the process streams so tests can run commands in-process.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
}

// globalOptions are accepted by every leaf command.
type globalOptions struct {
	configPath string
	endpoint   string
	logFormat  string
	logLevel   string
}

func (o *globalOptions) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&o.configPath, "config", "", "config file (default $"+config.EnvConfig+")")
	flagSet.StringVar(&o.endpoint, "endpoint", "", "GraphQL endpoint, overriding cloud.endpoint")
	flagSet.StringVar(&o.logFormat, "log-format", "", "log format: json, text, or auto (default logging.format)")
	flagSet.StringVar(&o.logLevel, "log-level", "", "log level (default logging.level)")
}

// env is everything a command needs once configuration is loaded.
type env struct {
	config   *config.Config
	logger   *slog.Logger
	host     *tokenHost
	schemas  *wire.Registry
	registry *prometheus.Registry
}

// open loads configuration and builds the logger, host, and schema
// registry. Nothing touches the network or the queue file yet.
func (a *app) open(opts globalOptions, command string) (*env, error) {
	cfg, err := a.loadConfig(opts)
	if err != nil {
		return nil, err
	}

	format := cfg.Logging.Format
	if opts.logFormat != "" {
		format = opts.logFormat
	}
	level, err := cfg.Logging.SlogLevel()
	if err != nil {
		return nil, err
	}
	logger, err := cli.NewLogger(a.stderr, format, level)
	if err != nil {
		return nil, err
	}
	logger = logger.With("command", command)

	schemas, err := wire.NewRegistry(wire.RegistryConfig{
		Source: mapping.NewLoader(cfg.Mappings.Dir, logger),
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &env{
		config:   cfg,
		logger:   logger,
		host:     newTokenHost(cfg, a.getenv(envToken), logger),
		schemas:  schemas,
		registry: registry,
	}, nil
}

// loadConfig reads --config, then AGENTSYNC_CONFIG, then falls back to
// the defaults. Flag overrides are applied before validation.
func (a *app) loadConfig(opts globalOptions) (*config.Config, error) {
	path := opts.configPath
	if path == "" {
		path = a.getenv(config.EnvConfig)
	}
	var cfg *config.Config
	if path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
		cfg.Expand()
	}

	if opts.endpoint != "" {
		cfg.Cloud.Endpoint = opts.endpoint
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (e *env) builder() *graphql.Builder {
	return graphql.NewBuilder(e.schemas, nil, e.logger)
}

// services returns the per-kind sync services. It fails without an
// endpoint since every call would.
func (e *env) services() (*cloud.Services, error) {
	if e.config.Cloud.Endpoint == "" {
		return nil, errors.New("cloud.endpoint is not configured (set it in the config file or pass --endpoint)")
	}
	client := cloud.NewClient(cloud.ClientConfig{
		Timeout: e.config.Cloud.Timeout,
		Logger:  e.logger,
	})
	return cloud.NewServices(cloud.ServicesConfig{
		Host:    e.host,
		Client:  client,
		Schemas: e.schemas,
		Logger:  e.logger,
	})
}

func (e *env) openQueue() (*offlinequeue.Queue, error) {
	if err := e.config.EnsurePaths(); err != nil {
		return nil, err
	}
	return offlinequeue.Open(offlinequeue.Config{
		Path:       e.config.OfflineSync.QueuePath,
		MaxPending: e.config.OfflineSync.MaxPending,
		Logger:     e.logger,
	})
}

// manager wires the offline sync manager over syncer and queue. queue
// may be nil when offline sync is disabled.
func (e *env) manager(syncer syncmanager.Syncer, queue *offlinequeue.Queue) (*syncmanager.Manager, error) {
	offline := e.config.OfflineSync
	return syncmanager.New(syncmanager.Config{
		Syncer:             syncer,
		Queue:              queue,
		OfflineSyncEnabled: offline.Enabled && queue != nil,
		RetryInterval:      offline.RetryInterval,
		DrainTaskTimeout:   offline.DrainTaskTimeout,
		MaxWorkers:         offline.MaxWorkers,
		Logger:             e.logger,
		Metrics:            syncmanager.MustNewMetrics(e.registry),
	})
}

// serveMetrics serves /metrics on metrics.listen until ctx ends. The
// returned function shuts the server down; it is a no-op when no
// address is configured.
func (e *env) serveMetrics(ctx context.Context) (func(), error) {
	address := e.config.Metrics.Listen
	if address == "" {
		return func() {}, nil
	}
	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry}))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Warn("metrics server stopped", "error", err)
		}
	}()
	e.logger.Info("serving metrics", "address", listener.Addr().String())
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}, nil
}
