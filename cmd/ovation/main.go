// Ovation Core - Home Automation Brain
//
// This is the main entry point for the Ovation Core application. Ovation
// sits between a home-automation hub and compiled-in Go automation handlers:
// it mirrors hub entity state into the cache store, ingests the hub's live
// event stream, fires registered triggers, and runs persisted scheduled jobs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ovationhq/ovation-core/internal/hub"
	"github.com/ovationhq/ovation-core/internal/infrastructure/config"
	"github.com/ovationhq/ovation-core/internal/infrastructure/logging"
	"github.com/ovationhq/ovation-core/internal/infrastructure/redis"
	"github.com/ovationhq/ovation-core/internal/sched"
	"github.com/ovationhq/ovation-core/internal/state"
	"github.com/ovationhq/ovation-core/internal/stream"
	"github.com/ovationhq/ovation-core/internal/trigger"
	"github.com/ovationhq/ovation-core/internal/webhook"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Ovation Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Connect to the cache store
	store, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		log.Info("closing redis connection")
		if closeErr := store.Close(); closeErr != nil {
			log.Error("error closing redis", "error", closeErr)
		}
	}()
	log.Info("redis connected", "addr", cfg.Redis.Addr())

	// Hub REST client. The hub may be down right now; the stream manager
	// reconnects on its own, so an unreachable hub only warns here.
	hubClient := hub.NewClient(cfg, log)
	if err := hubClient.HealthCheck(ctx); err != nil {
		log.Warn("hub unreachable at startup", "error", err)
	} else {
		log.Info("hub reachable", "url", cfg.Hub.URL)
	}

	// State cache mirrors hub entities into the store
	cache := state.NewCache(store, hubClient, cfg.Redis.GetStateTTL(), log)

	// Trigger registry, dispatcher, and timed-trigger runner
	provider := trigger.NewProvider()
	dispatcher := trigger.NewDispatcher(provider, log)

	location, err := time.LoadLocation(cfg.Site.Timezone)
	if err != nil {
		return fmt.Errorf("loading timezone %q: %w", cfg.Site.Timezone, err)
	}
	solar := trigger.NewSolarCalculator(
		cfg.Site.Location.Latitude,
		cfg.Site.Location.Longitude,
		cfg.Site.Location.Elevation,
		location,
	)

	// Job scheduler with its handler table
	table := sched.NewTable()
	scheduler := sched.NewScheduler(store, table, nil, log)
	defer scheduler.Stop()

	// Site automations register their triggers and schedulable handlers
	// before persisted jobs are restored, so every stored handler
	// reference can resolve.
	deps := automationDeps{
		Provider:  provider,
		Table:     table,
		Scheduler: scheduler,
		Cache:     cache,
		Hub:       hubClient,
		Logger:    log,
	}
	if err := registerAutomations(deps); err != nil {
		return fmt.Errorf("registering automations: %w", err)
	}

	restored, err := scheduler.RestoreAll(ctx)
	if err != nil {
		return fmt.Errorf("restoring scheduled jobs: %w", err)
	}
	log.Info("scheduled jobs restored", "count", restored)

	runner := trigger.NewRunner(provider, dispatcher, solar, nil, log)
	runner.Start(ctx)
	defer runner.Stop()

	// Event ingestion from the hub stream
	manager := stream.NewManager(cfg, cache, dispatcher, log)
	manager.Start(ctx)

	// Inbound webhook surface, fed into the same ingestion pipeline
	server, err := webhook.New(cfg.Webhook, manager, store, hubClient, log)
	if err != nil {
		return fmt.Errorf("creating webhook server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting webhook server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing webhook server", "error", closeErr)
		}
	}()

	dispatcher.Lifecycle(ctx, trigger.PhaseCoreStartup)
	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Shutdown triggers run synchronously before anything is torn down, so
	// handlers still have a live store and hub client.
	dispatcher.Lifecycle(context.Background(), trigger.PhaseCoreShutdown)

	manager.Wait()
	dispatcher.Wait()

	log.Info("Ovation Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses OVATION_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("OVATION_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
