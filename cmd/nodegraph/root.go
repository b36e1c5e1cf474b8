package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nodegraph/internal/config"
	"nodegraph/internal/logging"
	"nodegraph/internal/metrics"
	"nodegraph/internal/repository/sqlite"
	"nodegraph/internal/service"
)

var (
	configPath string
	dbPath     string
	listenAddr string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "nodegraph",
	Short:         "Node graph editor backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to config file (default: search "+config.EnvConfigPath+", ./"+config.ConfigFileName+", XDG dirs)")
	flags.StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	flags.StringVar(&listenAddr, "addr", "", "HTTP listen address (overrides config)")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// loadConfig layers defaults, file, environment and flags, then validates
func loadConfig() (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if configPath != "" {
		cfg, path, err = config.LoadFromPath(configPath)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return nil, path, err
	}

	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if listenAddr != "" {
		cfg.Server.Addr = listenAddr
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, path, nil
}

// app bundles what every subcommand needs
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Collector
	store   *sqlite.Store
	svc     *service.NodeService

	// mu orders background store work against close
	mu     sync.Mutex
	closed bool
}

// setup loads config, builds the logger and opens the store
func setup() (*app, error) {
	cfg, path, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	if path != "" {
		logger.Info("config loaded", zap.String("path", path))
	}

	m := metrics.NewCollector("nodegraph")

	store, err := sqlite.Open(cfg.Database.Path, storeOptions(cfg, logger, m))
	if err != nil {
		logger.Sync()
		return nil, fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
	}
	logger.Info("database opened",
		zap.String("path", cfg.Database.Path),
		zap.String("id_strategy", string(store.IDStrategy())),
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		store:   store,
		svc:     service.NewNodeService(store, m, logger),
	}, nil
}

func storeOptions(cfg *config.Config, logger *zap.Logger, m *metrics.Collector) sqlite.Options {
	opts := sqlite.DefaultOptions()
	opts.BusyTimeout = cfg.Database.BusyTimeout.Duration()
	opts.QueryTimeout = cfg.Database.QueryTimeout.Duration()
	opts.IDStrategy = cfg.IDStrategy()
	opts.Breaker = sqlite.BreakerSettings{
		MaxRequests:      cfg.Breaker.MaxRequests,
		Interval:         cfg.Breaker.Interval.Duration(),
		Timeout:          cfg.Breaker.Timeout.Duration(),
		FailureThreshold: cfg.Breaker.FailureThreshold,
	}
	opts.Logger = logger
	opts.Metrics = m
	return opts
}

// whileOpen runs fn unless the app has been closed. close waits for a
// running fn to return.
func (a *app) whileOpen(fn func()) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	fn()
	return true
}

func (a *app) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true

	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}
