package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/aluiziolira/go-scrape-listings/pipeline"
	"github.com/aluiziolira/go-scrape-listings/scraper"
	"github.com/aluiziolira/go-scrape-listings/tasks"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultInputFile = "./data/sample_input.json"

func main() {
	defaults := config.DefaultConfig()

	configFile := flag.String("config", "", "Optional YAML config file")
	envFile := flag.String("env-file", ".env", "Optional .env file with session credentials")
	flag.String("base-url", defaults.BaseURL, "Listing API base URL")
	flag.String("output", defaults.OutputFile, "Output file path")
	flag.String("format", defaults.OutputFormat, "Output format: csv, json, dual, sqlite, or postgres")
	flag.String("postgres-dsn", "", "Postgres connection string for the postgres format")
	flag.Int("max-attempts", defaults.MaxAttempts, "Attempts per listing request")
	flag.Duration("retry-backoff", defaults.RetryBackoff.Duration, "Base retry backoff; attempt n waits base*2^n")
	flag.Duration("retry-backoff-max", defaults.RetryBackoffMax.Duration, "Upper bound for a single retry backoff")
	flag.Duration("cooldown", defaults.RateLimitCooldown.Duration, "Pause after an HTTP 429")
	flag.Duration("page-delay", defaults.PageDelay.Duration, "Pause after every harvested page")
	flag.Duration("task-delay", defaults.TaskDelay.Duration, "Pause between tasks")
	flag.Duration("timeout", defaults.Timeout.Duration, "HTTP request timeout")
	flag.Int("rpm", 0, "Outbound requests per minute ceiling (0 disables)")
	flag.Int("max-pages", 0, "Maximum pages per task (0 means unlimited)")
	flag.Int("max-skipped-pages", defaults.MaxSkippedPages, "Consecutive failed pages before a task ends early")
	flag.Int("workers", defaults.ExportWorkers, "Export worker goroutines")
	flag.Bool("dedupe", false, "Drop repeated products per location and category")
	flag.String("metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [input-file]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	inputFile := defaultInputFile
	if flag.NArg() > 0 {
		inputFile = flag.Arg(0)
	}

	if err := run(*configFile, *envFile, inputFile, *verbose); err != nil {
		slog.Error("harvest aborted", slog.Any("error", err))
		os.Exit(1)
	}
}

// run owns every resource of a harvest so that its deferred cleanups finish
// before main decides on the exit code.
func run(configFile, envFile, inputFile string, verbose bool) error {
	cfg, err := loadConfig(configFile, envFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if verbose {
		cfg.Verbose = true
	}
	cfg.EnsureDeviceID()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	work, err := tasks.Load(inputFile)
	if err != nil {
		return fmt.Errorf("loading input %s: %w", inputFile, err)
	}
	slog.Info("loaded tasks", slog.Int("tasks", len(work)), slog.String("file", inputFile))

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		return fmt.Errorf("initialising scraper: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, exporting what was harvested")
	}()

	// The export outlives the harvest context so an interrupted run still
	// writes its partial records.
	exportCtx := context.WithoutCancel(ctx)

	writer, err := createWriter(exportCtx, cfg)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer := &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	p := pipeline.NewPipeline(exportCtx, writer, cfg)
	p.Start(cfg.ExportWorkers)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	startTime := time.Now()
	result, err := s.Run(ctx, work, p)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			p.Close()
			return fmt.Errorf("harvest failed: %w", err)
		}
		slog.Warn("harvest interrupted", slog.Int("records", len(result.Records)))
	}

	if err := p.Close(); err != nil {
		return fmt.Errorf("pipeline shutdown failed: %w", err)
	}

	exported := p.Processed()
	if exported > 0 {
		if err := writer.Validate(); err != nil {
			return fmt.Errorf("output validation failed: %w", err)
		}
	}

	printSummary(result, time.Since(startTime), exported, outputTarget(cfg), p.GetMetrics())
	return nil
}

// loadConfig layers defaults, the YAML file, the .env file, the process
// environment and finally any flag set on the command line.
func loadConfig(configFile, envFile string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		if err := config.LoadFile(cfg, configFile); err != nil {
			return nil, err
		}
	}
	if envFile != "" {
		if err := config.LoadDotEnv(envFile); err != nil {
			return nil, err
		}
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}

	flag.Visit(func(f *flag.Flag) {
		applyFlag(cfg, f)
	})
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)
	return cfg, nil
}

// applyFlag copies one explicitly set flag onto cfg; flags it does not know
// are left alone.
func applyFlag(cfg *config.Config, f *flag.Flag) {
	getter, ok := f.Value.(flag.Getter)
	if !ok {
		return
	}
	value := getter.Get()

	switch f.Name {
	case "base-url":
		cfg.BaseURL = value.(string)
	case "output":
		cfg.OutputFile = value.(string)
	case "format":
		cfg.OutputFormat = value.(string)
	case "postgres-dsn":
		cfg.PostgresDSN = value.(string)
	case "max-attempts":
		cfg.MaxAttempts = value.(int)
	case "retry-backoff":
		cfg.RetryBackoff = config.DurationFrom(value.(time.Duration))
	case "retry-backoff-max":
		cfg.RetryBackoffMax = config.DurationFrom(value.(time.Duration))
	case "cooldown":
		cfg.RateLimitCooldown = config.DurationFrom(value.(time.Duration))
	case "page-delay":
		cfg.PageDelay = config.DurationFrom(value.(time.Duration))
	case "task-delay":
		cfg.TaskDelay = config.DurationFrom(value.(time.Duration))
	case "timeout":
		cfg.Timeout = config.DurationFrom(value.(time.Duration))
	case "rpm":
		cfg.RequestsPerMinute = value.(int)
	case "max-pages":
		cfg.MaxPages = value.(int)
	case "max-skipped-pages":
		cfg.MaxSkippedPages = value.(int)
	case "workers":
		cfg.ExportWorkers = value.(int)
	case "dedupe":
		cfg.Dedupe = value.(bool)
	case "metrics-addr":
		cfg.MetricsAddr = value.(string)
	case "v":
		cfg.Verbose = value.(bool)
	}
}

func createWriter(ctx context.Context, cfg *config.Config) (pipeline.OutputWriter, error) {
	switch cfg.OutputFormat {
	case "json":
		return pipeline.NewJSONWriter(cfg.OutputFile)
	case "csv":
		return pipeline.NewCSVWriter(cfg.OutputFile)
	case "dual":
		jsonFilename := strings.TrimSuffix(cfg.OutputFile, ".csv") + ".json"
		return pipeline.NewDualWriter(cfg.OutputFile, jsonFilename)
	case "sqlite":
		return pipeline.NewSQLiteWriter(cfg.OutputFile)
	case "postgres":
		return pipeline.NewPostgresWriter(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unsupported format: %s", cfg.OutputFormat)
	}
}

func outputTarget(cfg *config.Config) string {
	if cfg.OutputFormat == "postgres" {
		return "postgres product_records"
	}
	return cfg.OutputFile
}

func printSummary(result *models.HarvestResult, duration time.Duration, exported int, outputFile string, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Harvest complete")

	fmt.Printf("  Tasks:         %d/%d completed\n", result.Completed, result.Total)
	fmt.Printf("  Products:      %d harvested, %d exported\n", len(result.Records), exported)
	fmt.Printf("  Requests:      %d\n", result.RequestCount)
	fmt.Printf("  Retries:       %d\n", result.RetryCount)
	fmt.Printf("  Rate limited:  %d\n", result.RateLimitCount)
	fmt.Printf("  Skipped pages: %d\n", result.SkippedPages)

	failed := result.Failed()
	if len(failed) > 0 {
		fmt.Printf("  Unfinished:    %d\n", len(failed))
		for _, report := range failed {
			if report.Err != nil {
				fmt.Printf("    - %s [%s]: %v\n", report.Label(), report.Status, report.Err)
			} else {
				fmt.Printf("    - %s [%s]\n", report.Label(), report.Status)
			}
		}
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		kinds := make([]string, 0, len(valErrors))
		for kind := range valErrors {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			fmt.Printf("  Dropped:       %s=%d\n", kind, valErrors[kind])
		}
	}
	fmt.Printf("  Duration:      %v\n", duration.Round(time.Millisecond))
	if exported > 0 {
		fmt.Printf("  Output:        %s\n", outputFile)
	} else {
		fmt.Println("  No products were exported. Check the input data and session credentials.")
	}
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
