package main

import (
	"context"
	"time"

	"github.com/kimhsiao/gosauna/backend/internal/analytics"
	"github.com/kimhsiao/gosauna/backend/internal/capture"
	"github.com/kimhsiao/gosauna/backend/internal/config"
	"github.com/kimhsiao/gosauna/backend/internal/console"
	"github.com/kimhsiao/gosauna/backend/internal/kv"
	"github.com/kimhsiao/gosauna/backend/internal/logging"
	"github.com/kimhsiao/gosauna/backend/internal/remote"
	"github.com/kimhsiao/gosauna/backend/internal/store"
	syncpkg "github.com/kimhsiao/gosauna/backend/internal/sync"
	"github.com/kimhsiao/gosauna/backend/internal/sync/conflict"
	"github.com/kimhsiao/gosauna/backend/internal/sync/scheduler"
	"github.com/kimhsiao/gosauna/backend/internal/visitlog"
)

// app holds the wired components and their shutdown hooks.
type app struct {
	api     *API
	closers []func(context.Context) error
}

// newApp wires the booking core from cfg. ctx bounds background work.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	backend, err := kv.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return backend.Close() })

	records := store.New(backend)
	gateway := remote.NewGateway(remote.Config{
		BaseURL: cfg.RemoteBaseURL,
		AppID:   cfg.RemoteAppID,
		Timeout: cfg.RemoteTimeout,
		Tokens:  remote.KVTokenSource{Store: backend, Fallback: cfg.RemoteToken},
	})

	hub := NewWSHub(cfg.CORSOrigins)
	a.closers = append(a.closers, func(context.Context) error { hub.Close(); return nil })

	engine := syncpkg.NewSyncEngine(records, gateway, conflict.NewResolver(conflict.ParseStrategy(cfg.ConflictStrategy)), cfg.BookingPageSize)
	engine.SetEventHandler(hub.BroadcastSyncEvent)

	sched := scheduler.NewScheduler(engine, &scheduler.SchedulerConfig{
		SyncInterval: cfg.SyncInterval,
		SyncTimeout:  cfg.RemoteTimeout * 2,
	})

	visits, err := openVisitSource(ctx, cfg, gateway)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	if closer, ok := visits.(interface{ Close(context.Context) error }); ok {
		a.closers = append(a.closers, closer.Close)
	}

	page := capture.NewSnapshotPage()
	controller := capture.NewController(records, page, capture.Config{
		PollInterval: cfg.CapturePollInterval,
		MaxPolls:     cfg.CaptureMaxPolls,
		OnOutcome:    hub.BroadcastCapture,
	})
	a.closers = append(a.closers, func(context.Context) error { controller.Stop(); return nil })

	svc := console.NewService(console.Deps{
		Identity:   gateway,
		Refresher:  sched,
		Remote:     gateway,
		Store:      records,
		Visits:     visits,
		Aggregator: analytics.New(time.Local),
	}, console.Options{VisitLogLimit: cfg.VisitLogLimit})

	sched.Start(ctx)
	a.closers = append(a.closers, func(context.Context) error { sched.Stop(); return nil })

	a.api = &API{
		ctx:       ctx,
		console:   svc,
		scheduler: sched,
		capture:   controller,
		page:      page,
		hub:       hub,
		limiter:   NewRateLimiter(cfg.RateLimitRPS),
	}
	return a, nil
}

func openVisitSource(ctx context.Context, cfg *config.Config, gateway *remote.Gateway) (visitlog.Source, error) {
	if cfg.VisitLogSource != config.VisitSourceMongo {
		return visitlog.NewRemoteSource(gateway), nil
	}
	mongo, err := visitlog.NewMongo(ctx, visitlog.MongoOptions{
		URI:        cfg.MongoURI,
		Database:   cfg.MongoDB,
		Collection: cfg.MongoCollection,
	})
	if err != nil {
		return nil, err
	}
	return mongo, nil
}

// close runs the shutdown hooks in reverse order.
func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logging.Warn("Shutdown step failed", map[string]interface{}{"error": err.Error()})
		}
	}
	a.closers = nil
}
