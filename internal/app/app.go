package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goonsradar/goonsradar/internal/alias"
	"github.com/goonsradar/goonsradar/internal/api"
	"github.com/goonsradar/goonsradar/internal/command"
	"github.com/goonsradar/goonsradar/internal/config"
	"github.com/goonsradar/goonsradar/internal/feed"
	"github.com/goonsradar/goonsradar/internal/notify"
	"github.com/goonsradar/goonsradar/internal/query"
	"github.com/goonsradar/goonsradar/internal/scheduler"
	"github.com/goonsradar/goonsradar/internal/store"
	"github.com/goonsradar/goonsradar/internal/ws"
)

// certCheckInterval is how often the upstream certificate is re-inspected.
const certCheckInterval = 6 * time.Hour

// App owns every long-lived component of a goonsradar process.
type App struct {
	cfg *config.Config

	aliases  *alias.Holder
	client   *feed.Client
	store    *store.Store
	sched    *scheduler.Scheduler
	engine   *query.Engine
	cmd      *command.Dispatcher
	hub      *ws.Hub
	notifier *notify.Notifier
	handler  http.Handler
	cert     atomic.Pointer[feed.CertStatus]

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New builds the component graph for cfg. Nothing runs until Start.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	table, err := alias.Load(cfg.Aliases.Path)
	var loadErr *alias.ConfigLoadError
	if errors.As(err, &loadErr) {
		slog.Warn("app: alias file unavailable", "path", loadErr.Path, "err", loadErr.Err)
	}
	holder := alias.NewHolder(table)

	client, err := feed.New(feed.Options{
		URL:       cfg.Feed.URL,
		Referer:   cfg.Feed.Referer,
		UserAgent: cfg.Feed.UserAgent,
		Timeout:   cfg.Feed.Timeout,
		RateLimit: cfg.Feed.RateLimit,
		Burst:     cfg.Feed.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	st := store.New()
	sched := scheduler.New(client, st, scheduler.Options{
		Interval: cfg.Refresh.Interval,
		Cooldown: cfg.Refresh.Cooldown,
		// Room for the rate limiter wait on top of the request timeout.
		Timeout: 2 * cfg.Feed.Timeout,
	})
	engine := query.New(st, sched, holder, client.Host())
	cmd := command.New(engine)

	a := &App{
		cfg:      cfg,
		aliases:  holder,
		client:   client,
		store:    st,
		sched:    sched,
		engine:   engine,
		cmd:      cmd,
		notifier: notify.New(cfg.Notify),
	}

	opts := api.Options{Cert: a.cert.Load}
	if cfg.HTTP.WebSocket {
		a.hub = ws.New(engine, st)
		opts.Stream = a.hub
		opts.Clients = a.hub.Count
	}
	a.handler = api.New(engine, cmd, opts)
	return a, nil
}

// Start launches the scheduler and its followers. It returns immediately;
// everything stops when ctx is cancelled or Close is called.
func (a *App) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return
	}
	a.started = true

	ctx, a.cancel = context.WithCancel(ctx)

	// Followers subscribe before the scheduler can publish anything.
	if a.notifier != nil {
		updates, unsubscribe := a.store.Subscribe()
		a.goRun(func() {
			defer unsubscribe()
			a.notifier.Run(ctx, updates)
		})
	}
	if a.hub != nil {
		a.goRun(func() { a.hub.Run(ctx) })
	}
	if a.cfg.Aliases.Watch && a.cfg.Aliases.Path != "" {
		a.goRun(func() {
			if err := config.WatchFile(ctx, a.cfg.Aliases.Path, a.ReloadAliases); err != nil {
				slog.Error("app: alias watcher stopped", "err", err)
			}
		})
	}
	a.goRun(func() { a.watchCert(ctx) })
	a.goRun(func() { a.sched.Run(ctx) })

	slog.Info("app: started",
		"feed", a.client.Host(),
		"interval", a.cfg.Refresh.Interval,
		"aliases", a.aliases.Load().Len(),
		"alias_source", a.aliases.Load().Source(),
		"websocket", a.hub != nil,
		"webhooks", len(a.cfg.Notify.Webhooks),
	)
}

func (a *App) goRun(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

// watchCert inspects the upstream certificate now and then every
// certCheckInterval until ctx is cancelled.
func (a *App) watchCert(ctx context.Context) {
	t := time.NewTicker(certCheckInterval)
	defer t.Stop()
	for {
		if cs := a.client.CheckCert(ctx); cs != nil {
			a.cert.Store(cs)
			switch cs.Status {
			case feed.CertExpired, feed.CertExpiring:
				slog.Warn("app: upstream certificate", "host", cs.Host, "status", cs.Status, "days_left", cs.DaysLeft)
			case feed.CertUnreachable:
				slog.Debug("app: certificate check failed", "host", cs.Host)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// ReloadAliases re-reads the alias file. A file that cannot be used leaves
// the current table in place.
func (a *App) ReloadAliases() error {
	table, err := alias.Load(a.cfg.Aliases.Path)
	if err != nil {
		return err
	}
	a.aliases.Store(table)
	slog.Info("app: aliases reloaded", "entries", table.Len(), "source", table.Source())
	return nil
}

// Close stops background work and waits for in-flight fetches to finish.
func (a *App) Close() {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	a.sched.Stop()
	a.wg.Wait()
	a.sched.Wait()
}

// Handler returns the HTTP handler serving the API, /metrics and the stream.
func (a *App) Handler() http.Handler { return a.handler }

// Engine returns the query engine, for one-shot CLI use.
func (a *App) Engine() *query.Engine { return a.engine }

// Dispatcher returns the chat command dispatcher.
func (a *App) Dispatcher() *command.Dispatcher { return a.cmd }
