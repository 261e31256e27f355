package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dnssink/internal/log"
	"dnssink/internal/meta"
	"dnssink/internal/metrics"
	"dnssink/internal/network"
	"dnssink/internal/policy"
	"dnssink/internal/protocol"

	"github.com/getsentry/raven-go"
)

func main() {
	configPath := flag.String(
		"config",
		os.Getenv("DNSSINK_CONFIG"),
		"path to the configuration file on disk",
	)
	version := flag.Bool(
		"version",
		false,
		"print the compiled dnssink version SHA",
	)
	verbosity := flag.String(
		"verbosity",
		"error",
		"desired logging verbosity: one of error, warn, info, debug",
	)
	flag.Parse()

	// Report the compiled version and exit
	if *version {
		fmt.Printf("dnssink/%s\n", meta.VersionSHA)
		return
	}

	// Logging configuration; default to log.Error verbosity
	level, _ := log.ParseLevel(*verbosity)
	logger := log.NewConsoleLogger(level)
	logger.Debug("main: initialized logger: level=%v", level)

	// Parse application configuration; any error here is fatal before the socket is bound
	logger.Debug("main: reading and parsing config: path=%s", *configPath)
	config, err := meta.ParseConfig(*configPath)
	if err != nil {
		logger.Error("main: %v", err)
		os.Exit(1)
	}

	// Configure error reporting
	if config.Application != nil && config.Application.SentryDSN != "" {
		if err := raven.SetDSN(config.Application.SentryDSN); err != nil {
			logger.Error("main: invalid sentry DSN: err=%v", err)
			os.Exit(1)
		}
		raven.SetRelease(meta.VersionSHA)
	}

	// Configure metrics reporting
	clientCxIOHook := metrics.NewNoopConnectionIOHook()
	upstreamCxIOHook := metrics.NewNoopConnectionIOHook()
	upstreamCxLifecycleHook := metrics.NewNoopConnectionLifecycleHook()
	filterHook := metrics.NewNoopFilterHook()

	if config.Metrics != nil && config.Metrics.Statsd != nil {
		statsdAddr := config.Metrics.Statsd.Address
		sampleRate := float32(config.Metrics.Statsd.SampleRate)

		logger.Info(
			"main: configuring statsd metrics reporting: addr=%s sample_rate=%f",
			statsdAddr,
			sampleRate,
		)

		if clientCxIOHook, err = metrics.NewAsyncStatsdConnectionIOHook(
			"client",
			statsdAddr,
			sampleRate,
			meta.VersionSHA,
		); err != nil {
			panic(err)
		}

		if upstreamCxIOHook, err = metrics.NewAsyncStatsdConnectionIOHook(
			"upstream",
			statsdAddr,
			sampleRate,
			meta.VersionSHA,
		); err != nil {
			panic(err)
		}

		if upstreamCxLifecycleHook, err = metrics.NewAsyncStatsdConnectionLifecycleHook(
			"upstream",
			statsdAddr,
			sampleRate,
			meta.VersionSHA,
		); err != nil {
			panic(err)
		}

		if filterHook, err = metrics.NewAsyncStatsdFilterHook(
			statsdAddr,
			sampleRate,
			meta.VersionSHA,
		); err != nil {
			panic(err)
		}
	} else {
		logger.Warn("main: no metrics output engine specified; disabling metrics")
	}

	// Load the blocklist once; it is shared read-only by every query handler
	blocklist, err := policy.Load(config.Policy.BlocklistPath, config.Policy.Blocklist)
	if err != nil {
		logger.Error("main: %v", err)
		os.Exit(1)
	}

	if blocklist.Len() == 0 {
		logger.Warn("main: blocklist is empty; every query will be forwarded")
	}

	logger.Info(
		"main: loaded blocklist: path=%s entries=%d sink=%s ttl=%d",
		config.Policy.BlocklistPath,
		blocklist.Len(),
		config.Policy.Sink(),
		config.Policy.TTL,
	)

	// Configure the upstream
	logger.Info(
		"main: forwarding allowed queries to upstream: addr=%s timeout=%v",
		config.Upstream.Address,
		config.Upstream.Timeout,
	)

	client := network.NewUDPClient(
		config.Upstream.Address,
		upstreamCxLifecycleHook,
		upstreamCxIOHook,
		network.UDPClientOpts{Timeout: config.Upstream.Timeout},
	)

	// Configure the server listener
	h := &protocol.DNSFilterHandler{
		Policy:         blocklist,
		Upstream:       client,
		ClientCxIOHook: clientCxIOHook,
		FilterHook:     filterHook,
		Logger:         logger,
		Opts: protocol.DNSFilterOpts{
			SinkAddr:        config.Policy.Sink(),
			BlockTTL:        uint32(config.Policy.TTL),
			UpstreamTimeout: config.Upstream.Timeout,
		},
	}

	server := network.NewUDPServer(config.Listener.UDP.Address, network.UDPServerOpts{
		MaxConcurrentQueries: config.Listener.UDP.MaxConcurrentQueries,
	})

	if err := server.Listen(); err != nil {
		panic(err)
	}

	logger.Info(
		"main: serving UDP queries: addr=%s max_concurrent_queries=%d",
		server.Addr(),
		config.Listener.UDP.MaxConcurrentQueries,
	)

	// Serve until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Serve(ctx, h); err != nil {
		logger.Error("main: error shutting down server: err=%v", err)
	}

	stats := client.Stats()
	logger.Info(
		"main: shut down: upstream_successful=%d upstream_failed=%d",
		stats.SuccessfulExchanges,
		stats.FailedExchanges,
	)
}
