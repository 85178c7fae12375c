// Package main is the entry point for the market-data feed pipeline.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/fd1az/feedpipe/business/exchange"
	exchangeDI "github.com/fd1az/feedpipe/business/exchange/di"
	"github.com/fd1az/feedpipe/business/feed"
	feedDI "github.com/fd1az/feedpipe/business/feed/di"
	"github.com/fd1az/feedpipe/internal/apm"
	"github.com/fd1az/feedpipe/internal/config"
	"github.com/fd1az/feedpipe/internal/health"
	"github.com/fd1az/feedpipe/internal/logger"
	"github.com/fd1az/feedpipe/internal/metrics"
	"github.com/fd1az/feedpipe/internal/monolith"
	"github.com/fd1az/feedpipe/pkg/ui"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Parse flags
	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Run in CLI mode with logs (no TUI)")
	symbols := flag.String("symbols", "", "Comma-separated instrument symbols (overrides config)")
	maxMessages := flag.Uint64("max-messages", 0, "Stop after processing N messages (0 = unbounded)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("feedpipe %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// TUI is the default, CLI is for debugging
	tuiMode := !*cliMode

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !tuiMode {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
	}()

	// Run application
	if err := run(ctx, *configPath, *symbols, *maxMessages, tuiMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, symbols string, maxMessages uint64, tuiMode bool) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Flag overrides
	if symbols != "" {
		cfg.Exchange.Instruments = strings.Split(symbols, ",")
	}
	if maxMessages > 0 {
		cfg.Engine.MaxMessages = maxMessages
	}

	// Set TUI mode in config so modules know
	cfg.Engine.TUIMode = tuiMode

	// Setup logger (only log to stderr in CLI mode)
	logLevel := logger.LevelInfo
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = logger.LevelDebug
	case "warn":
		logLevel = logger.LevelWarn
	case "error":
		logLevel = logger.LevelError
	}

	var log *logger.Logger
	if tuiMode {
		// In TUI mode, suppress logs (discard output)
		log = logger.New(io.Discard, logLevel, cfg.App.Name, nil)
	} else {
		log = logger.New(os.Stderr, logLevel, cfg.App.Name, nil)
		log.Info(ctx, "starting market-data feed pipeline",
			"version", version,
			"environment", cfg.App.Environment,
			"instruments", cfg.Exchange.Instruments,
		)
	}

	// Initialize observability if enabled
	var traceProvider apm.TraceProvider
	if cfg.Telemetry.Enabled {
		// Set service name env var for OTEL
		if cfg.Telemetry.ServiceName != "" {
			os.Setenv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
		}
		if cfg.Telemetry.OTLPEndpoint != "" {
			os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
		}

		// Initialize tracing with Zipkin (local dev friendly)
		traceProvider = apm.NewTraceProvider(log, apm.WithProvider(apm.ZipkinProvider, log))
		log.Info(ctx, "tracing initialized", "provider", "zipkin", "endpoint", cfg.Telemetry.OTLPEndpoint)

		// Initialize metrics with Prometheus
		metrics.NewMetricProvider(
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.ProviderCfg{
				Provider: metrics.PrometheusProvider,
			}),
		)

		// Start Prometheus metrics server in background
		port := cfg.Telemetry.PrometheusPort
		if port == 0 {
			port = 9090
		}
		go metrics.ServePrometheusMetrics(metrics.WithPort(strconv.Itoa(port)))
		log.Info(ctx, "prometheus metrics server started", "port", port)
	}
	defer func() {
		if traceProvider != nil {
			traceProvider.Stop()
		}
	}()

	// Start health check server on port 8081
	healthServer := health.NewServer(8081, version)
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", 8081)
	}
	defer healthServer.Stop(ctx)

	// Create monolith (application container)
	mono, err := monolith.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	// Define modules in dependency order
	modules := []monolith.Module{
		&feed.Module{},     // Must be first - binds the ingress socket
		&exchange.Module{}, // Dials the ingress socket and streams frames into it
	}

	// Register all module services
	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	// Health checks resolve lazily so module startup order is respected
	healthServer.RegisterCheck("exchange", func(ctx context.Context) (bool, string) {
		streamer := exchangeDI.GetStreamer(mono.Services())
		if streamer.IsConnected() {
			return true, "connected"
		}
		return false, "disconnected"
	})

	if tuiMode {
		// TUI mode: Start modules in background so TUI shows immediately
		startFunc := func() error {
			if err := mono.StartModules(ctx, modules...); err != nil {
				return fmt.Errorf("failed to start modules: %w", err)
			}

			go watchConnection(ctx, mono)

			engine := feedDI.GetEngine(mono.Services())
			go func() {
				if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
					ui.Send(ui.ErrorMsg{Error: err})
				}
			}()
			return nil
		}
		stopFunc := func() {
			exchangeDI.GetStreamer(mono.Services()).Stop()
			feedDI.GetIngress(mono.Services()).Close()
		}
		return runTUI(ctx, startFunc, stopFunc)
	}

	// CLI mode: Start modules synchronously
	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	return runCLI(ctx, mono, log)
}

func runCLI(ctx context.Context, mono monolith.Monolith, log *logger.Logger) error {
	log.Info(ctx, "all modules started, processing feed")

	engine := feedDI.GetEngine(mono.Services())

	// The engine loop blocks until EOF, cap or cancellation.
	errCh := make(chan error, 1)
	go func() {
		errCh <- engine.Run(ctx)
	}()

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
		// Closing the ingress unblocks the engine read.
		feedDI.GetIngress(mono.Services()).Close()
		runErr = <-errCh
	}

	log.Info(ctx, "shutting down")

	if err := exchangeDI.GetStreamer(mono.Services()).Stop(); err != nil {
		log.Error(ctx, "error stopping streamer", "error", err)
	}

	counters := engine.Counters()
	log.Info(ctx, "final counters",
		"snapshots", counters.Snapshots,
		"deltas", counters.Deltas,
		"trades", counters.Trades,
		"unknown", counters.Unknown,
		"parse_errors", counters.ParseErrors,
		"sequence_gaps", counters.SequenceGaps,
		"bbo_emitted", counters.BboEmitted,
	)

	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	return nil
}

// watchConnection pushes exchange connection state to the TUI.
func watchConnection(ctx context.Context, mono monolith.Monolith) {
	streamer := exchangeDI.GetStreamer(mono.Services())

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ui.Send(ui.ConnectionStatusMsg{
				Name:      "Exchange",
				Connected: streamer.IsConnected(),
			})
		}
	}
}

func runTUI(ctx context.Context, startFunc func() error, stopFunc func()) error {
	// Channel to receive StartModulesMsg signal
	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	// Create and start the TUI program IMMEDIATELY (shows welcome screen)
	p := tea.NewProgram(ui.New(), tea.WithAltScreen())
	ui.Program = p

	// Run bot logic in background (non-blocking)
	errCh := make(chan error, 1)
	go func() {
		// Wait for welcome screen to complete (StartModulesMsg signal)
		select {
		case <-startSignal:
			// Welcome complete, start modules
		case <-ctx.Done():
			errCh <- nil
			return
		}

		// Start modules and engine (connections happen here, TUI shows progress)
		if err := startFunc(); err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
			errCh <- err
			return
		}

		// Wait for context cancellation
		<-ctx.Done()

		stopFunc()
		errCh <- nil
	}()

	// Run TUI (blocking) - shows immediately with welcome screen
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	// Check for bot errors
	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}
