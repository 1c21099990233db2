// Mongo Profiler - captures and classifies MongoDB profiler output
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/supporttools/mongo-profiler/pkg/config"
	"github.com/supporttools/mongo-profiler/pkg/logger"
	"github.com/supporttools/mongo-profiler/pkg/session"
	mongostore "github.com/supporttools/mongo-profiler/pkg/store/mongo"
	"github.com/supporttools/mongo-profiler/pkg/types"
)

// Build-time variables set by goreleaser or make
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Command-line flags
var (
	configPath = flag.String("config", "mongo-profiler.yaml", "Path to configuration file")
	mongoURI   = flag.String("uri", "", "Override MongoDB connection URI")
	database   = flag.String("database", "", "Override database to profile")
	logLevel   = flag.String("log-level", "", "Override log level (debug, info, warn, error, fatal)")
	duration   = flag.Duration("duration", 0, "Override capture duration (0 = use config)")
	marker     = flag.String("mark", "", "Stamp a marker with this text at session start")
	version    = flag.Bool("version", false, "Show version information and exit")
)

func main() {
	flag.Parse()

	if *version {
		printVersion()
		os.Exit(0)
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	applyFlagOverrides(cfg)

	if err := logger.Initialize(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	logger.Infof("Mongo Profiler %s starting", Version)
	logger.Infof("Database: %s, URI: %s", cfg.Database, cfg.MongoURI)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	records, err := capture(ctx, cfg)
	if err != nil {
		logger.Errorf("Profiling session failed: %v", err)
		os.Exit(1)
	}

	printRecords(records)
}

// applyFlagOverrides lets command-line flags win over file configuration.
func applyFlagOverrides(cfg *config.Config) {
	if *mongoURI != "" {
		cfg.MongoURI = *mongoURI
	}
	if *database != "" {
		cfg.Database = *database
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *duration > 0 {
		cfg.Session.Duration = duration.String()
	}
}

// capture runs one profiling session for the configured duration, cut short
// by SIGINT/SIGTERM, and returns the classified records.
func capture(ctx context.Context, cfg *config.Config) ([]*types.Record, error) {
	sess, cleanup, err := buildSession(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	markerText := cfg.Session.Marker
	if *marker != "" {
		markerText = *marker
	}

	return session.Run(ctx, sess, func(ctx context.Context) error {
		if markerText != "" {
			if err := sess.Mark(ctx, markerText); err != nil {
				return fmt.Errorf("insert marker: %w", err)
			}
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)

		logger.Infof("Capturing for %s (Ctrl-C to stop early)", cfg.SessionDuration())
		select {
		case <-time.After(cfg.SessionDuration()):
		case sig := <-sigChan:
			logger.Infof("Received %s, draining session", sig)
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
}

// buildSession picks the real harness or the no-op variant, per config.
func buildSession(ctx context.Context, cfg *config.Config) (session.Session, func(), error) {
	if !cfg.SessionEnabled() {
		logger.Infof("Profiling disabled, using no-op session")
		return session.NewNoop(), func() {}, nil
	}

	store, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to store: %w", err)
	}
	cleanup := func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Warnf("Failed to disconnect: %v", err)
		}
	}
	return session.New(store), cleanup, nil
}

// printRecords writes each record's rendering and short info to stdout.
func printRecords(records []*types.Record) {
	for _, rec := range records {
		fmt.Println(rec.Render())
		if short := rec.ShortInfo(); short != "" {
			fmt.Printf("  %s\n", short)
		}
	}
	logger.Infof("Classified %d records", len(records))
}

// printVersion displays version and build information.
func printVersion() {
	fmt.Printf("Mongo Profiler %s\n", Version)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Go Version: %s\n", runtime.Version())
	fmt.Printf("Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
