package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"github.com/haukened/rr-relay/internal/dns/common/clock"
	"github.com/haukened/rr-relay/internal/dns/common/log"
	"github.com/haukened/rr-relay/internal/dns/config"
	"github.com/haukened/rr-relay/internal/dns/gateways/transport"
	"github.com/haukened/rr-relay/internal/dns/gateways/upstream"
	"github.com/haukened/rr-relay/internal/dns/gateways/wire"
	"github.com/haukened/rr-relay/internal/dns/repos/dnscache"
	"github.com/haukened/rr-relay/internal/dns/repos/pending"
	"github.com/haukened/rr-relay/internal/dns/repos/snapshot"
	"github.com/haukened/rr-relay/internal/dns/repos/zone"
	"github.com/haukened/rr-relay/internal/dns/repos/zonestore"
	"github.com/haukened/rr-relay/internal/dns/services/resolver"
)

const (
	version = "0.1.0-dev"
	appName = "rr-relayd"
)

// snapshotCache is the record cache as the application sees it: the
// resolver's view plus what the snapshot store needs.
type snapshotCache interface {
	resolver.Cache
	Entries() []dnscache.Entry
	Restore(entries []dnscache.Entry) int
}

// Application holds all the components of the DNS relay
type Application struct {
	config    *config.AppConfig
	transport resolver.ServerTransport
	resolver  *resolver.Resolver
	cache     snapshotCache
	snapshot  *snapshot.Store
	clock     clock.Clock
}

// main always exits with status 0, including after startup failures, which
// are reported on stderr and in the log.
func main() {
	run(os.Args)
}

func run(args []string) {
	zonePath, res := parseArgs(args, os.Stderr)
	if res != parseContinue {
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return
	}

	if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		return
	}

	log.Info(map[string]any{
		"version":    version,
		"env":        cfg.Env,
		"log_level":  cfg.LogLevel,
		"address":    cfg.Address(),
		"zone_file":  zonePath,
		"upstream":   cfg.Upstream,
		"cache_size": cfg.CacheSize,
	}, "Starting rr-relay")

	app, err := buildApplication(cfg, zonePath)
	if err != nil {
		log.Error(map[string]any{"error": err.Error()}, "Failed to build application")
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Error(map[string]any{"error": err.Error()}, "Server failed")
		return
	}
	log.Info(nil, "rr-relay stopped gracefully")
}

// buildApplication constructs all components and wires them together
func buildApplication(cfg *config.AppConfig, zonePath string) (*Application, error) {
	clk := clock.RealClock{}
	logger := log.GetLogger()
	codec := wire.NewUDPCodec(logger)

	records, err := zone.LoadZoneFile(zonePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load zone file: %w", err)
	}
	zones := zonestore.New()
	zones.Load(records)
	log.Info(map[string]any{
		"zone_file": zonePath,
		"records":   zones.Count(),
		"zones":     zones.Zones(),
	}, "Zone loaded")

	cache, err := buildCache(cfg, clk)
	if err != nil {
		return nil, err
	}

	table, err := pending.New(cfg.PendingCapacity, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create pending table: %w", err)
	}

	forwarder, err := upstream.NewForwarder(cfg.Upstream)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream forwarder: %w", err)
	}
	logger.Info(map[string]any{
		"servers": forwarder.Servers(),
	}, "Upstream servers configured")

	resolverService := resolver.NewResolver(resolver.ResolverOptions{
		Codec:             codec,
		Zone:              zones,
		Cache:             cache,
		Pending:           table,
		Upstream:          forwarder,
		Clock:             clk,
		Logger:            logger,
		PendingTimeout:    cfg.PendingTimeout,
		ServfailOnTimeout: cfg.ServfailOnTimeout,
	})

	serverTransport, err := transport.NewTransport(transport.TransportUDP, transport.Options{
		Addr:            cfg.Address(),
		Workers:         cfg.Workers,
		QueueSize:       cfg.QueueSize,
		JanitorInterval: cfg.JanitorInterval,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	app := &Application{
		config:    cfg,
		transport: serverTransport,
		resolver:  resolverService,
		cache:     cache,
		clock:     clk,
	}

	if cfg.CacheSnapshot != "" && !cfg.DisableCache {
		if err := app.restoreSnapshot(cfg.CacheSnapshot); err != nil {
			return nil, err
		}
	}
	return app, nil
}

func buildCache(cfg *config.AppConfig, clk clock.Clock) (snapshotCache, error) {
	if cfg.DisableCache {
		log.Info(map[string]any{"disabled": true}, "DNS response caching disabled")
		return dnscache.NewNop(), nil
	}
	// Safely convert uint to int with bounds check
	if cfg.CacheSize > uint(^uint(0)>>1) {
		return nil, fmt.Errorf("cache size too large: %d (max %d)", cfg.CacheSize, ^uint(0)>>1)
	}
	cache, err := dnscache.New(int(cfg.CacheSize), clk)
	if err != nil {
		return nil, fmt.Errorf("failed to create record cache: %w", err)
	}
	log.Info(map[string]any{
		"type": "LRU",
		"size": cfg.CacheSize,
	}, "DNS response cache configured")
	return cache, nil
}

func (app *Application) restoreSnapshot(path string) error {
	store, err := snapshot.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open cache snapshot: %w", err)
	}
	entries, err := store.Load()
	if err != nil {
		// A damaged snapshot only costs a cold cache.
		log.Warn(map[string]any{
			"path":  path,
			"error": err.Error(),
		}, "Ignoring unreadable cache snapshot")
		entries = nil
	}
	restored := app.cache.Restore(entries)
	fields := map[string]any{
		"path":     path,
		"saved":    len(entries),
		"restored": restored,
	}
	if savedAt, ok := store.SavedAt(); ok {
		fields["saved_at"] = savedAt.Format(time.RFC3339)
	}
	log.Info(fields, "Cache snapshot restored")
	app.snapshot = store
	return nil
}

// Start binds the listening socket and begins serving.
func (app *Application) Start(ctx context.Context) error {
	if err := app.transport.Start(ctx, app.resolver); err != nil {
		return fmt.Errorf("failed to start UDP transport: %w", err)
	}
	log.Info(map[string]any{
		"address":   app.transport.Address(),
		"transport": transport.TransportUDP,
	}, "DNS server started")
	return nil
}

// Address returns the address the server is bound to.
func (app *Application) Address() string {
	return app.transport.Address()
}

// Shutdown stops the transport and persists the cache when a snapshot file
// is configured. Every failure is reported.
func (app *Application) Shutdown() error {
	err := app.transport.Stop()
	if app.snapshot != nil {
		entries := app.cache.Entries()
		saveErr := app.snapshot.Save(entries, app.clock.Now())
		if saveErr == nil {
			log.Info(map[string]any{"entries": len(entries)}, "Cache snapshot saved")
		}
		err = multierr.Combine(err, saveErr, app.snapshot.Close())
		app.snapshot = nil
	}
	return err
}

// Run starts the DNS server and blocks until ctx is cancelled
func (app *Application) Run(ctx context.Context) error {
	if err := app.Start(ctx); err != nil {
		if app.snapshot != nil {
			_ = app.snapshot.Close()
			app.snapshot = nil
		}
		return err
	}

	<-ctx.Done()
	log.Info(nil, "Shutdown initiated")

	if err := app.Shutdown(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
