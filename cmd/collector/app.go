package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/wavefrontHQ/newrelic/internal/checkpoint/memory"
	ckpebble "github.com/wavefrontHQ/newrelic/internal/checkpoint/pebble"
	ckpostgres "github.com/wavefrontHQ/newrelic/internal/checkpoint/postgres"
	"github.com/wavefrontHQ/newrelic/internal/config"
	"github.com/wavefrontHQ/newrelic/internal/emitter"
	"github.com/wavefrontHQ/newrelic/internal/misc"
	"github.com/wavefrontHQ/newrelic/internal/obs"
	"github.com/wavefrontHQ/newrelic/internal/ports"
	"github.com/wavefrontHQ/newrelic/internal/refcache"
	"github.com/wavefrontHQ/newrelic/internal/service"
	"github.com/wavefrontHQ/newrelic/internal/sources/system"
	pebblestore "github.com/wavefrontHQ/newrelic/internal/storage/pebble"
	"github.com/wavefrontHQ/newrelic/pkg/cancel"
	"github.com/wavefrontHQ/newrelic/pkg/observer"
)

// app holds everything a command needs after wiring.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	token   *cancel.Token
	runner  *service.Runner
	store   ports.CheckpointStore
	cache   *refcache.Cache
	pingers map[string]obs.Pinger
	closers []func() error
}

func newLogger() (*zap.Logger, error) {
	if misc.GetBool("COLLECTOR_DEBUG", false) {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// buildApp loads config and wires every component. Anything that fails here
// aborts before a single chunk is scheduled.
func buildApp(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	log, err := newLogger()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		token:   cancel.New(),
		pingers: map[string]obs.Pinger{},
	}

	if err := a.wireStorage(); err != nil {
		a.close()
		return nil, err
	}

	format, err := emitter.ParseFormat(cfg.Emitter.Format)
	if err != nil {
		a.close()
		return nil, err
	}
	var emOpts []emitter.Option
	if cfg.Emitter.DryRun {
		emOpts = append(emOpts, emitter.WithDryRun())
	}
	em := emitter.New(cfg.Emitter.Addr, format, log, emOpts...)
	a.closers = append(a.closers, em.Close)

	sources := map[string]ports.Source{
		"system": system.New(em, log),
	}

	runner, err := service.New(cfg.Streams, sources, a.store, a.token, log)
	if err != nil {
		a.close()
		return nil, err
	}
	runner.Events().Attach(observer.ObserverFunc[service.CycleEvent](
		func(_ context.Context, e service.CycleEvent) error {
			if e.Err != nil {
				return nil // already logged by the runner
			}
			log.Info("stream cycle complete",
				zap.String("stream", e.Stream),
				zap.Duration("duration", e.Duration))
			return nil
		}))
	a.runner = runner

	return a, nil
}

func (a *app) wireStorage() error {
	switch a.cfg.Storage.Backend {
	case "pebble":
		db, err := pebblestore.Open(pebblestore.Options{
			DataDir:    a.cfg.Storage.DataDir,
			SyncWrites: true,
		})
		if err != nil {
			return fmt.Errorf("open pebble store: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.store = ckpebble.New(db)
		a.cache = refcache.New(db, a.log)
	case "postgres":
		db, err := sql.Open("postgres", a.cfg.Storage.DSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := ckpostgres.Migrate(db); err != nil {
			return fmt.Errorf("migrate checkpoints: %w", err)
		}
		st := ckpostgres.New(db)
		a.store = st
		a.pingers["checkpoints"] = st.Ping
	case "memory":
		a.store = memory.New()
	default:
		return fmt.Errorf("unknown storage backend %q", a.cfg.Storage.Backend)
	}
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	_ = a.log.Sync()
}

// handleSignals maps SIGINT/SIGTERM to the cancellation token and SIGUSR1
// to an on-demand goroutine dump.
func (a *app) handleSignals() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	dump := make(chan os.Signal, 1)
	signal.Notify(dump, syscall.SIGUSR1)

	go func() {
		for {
			select {
			case sig := <-stop:
				a.log.Info("shutdown signal received, canceling collection",
					zap.String("signal", sig.String()))
				a.token.Set()
				return
			case <-dump:
				a.log.Info("goroutine dump requested",
					zap.ByteString("stacks", obs.AllStacks()))
			}
		}
	}()
}

// serveOps hosts /healthz, /metrics, /debug/stacks until the token fires.
func (a *app) serveOps() {
	ctx, stop := a.token.Context(context.Background())
	go func() {
		defer stop()
		if err := obs.Serve(ctx, a.cfg.OpsAddr, a.log, a.pingers); err != nil {
			a.log.Warn("ops endpoint stopped", zap.Error(err))
		}
	}()
}
