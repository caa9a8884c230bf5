package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/goonsradar/goonsradar/internal/feed"
	"github.com/goonsradar/goonsradar/internal/store"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultCooldown = 60 * time.Second
	DefaultTimeout  = 15 * time.Second

	// summaryEvery controls how often a success summary is logged.
	summaryEvery = 10

	flightKey = "refresh"
)

// State is the externally visible phase of the scheduler.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// Fetcher is the upstream source. *feed.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context) (*feed.RawFeed, error)
}

// Options configures a Scheduler. Zero values fall back to the defaults.
type Options struct {
	Interval time.Duration
	Cooldown time.Duration
	// Timeout bounds one shared fetch, independent of who asked for it.
	Timeout time.Duration
	Clock   clockwork.Clock
}

// Scheduler polls the Fetcher on a fixed cadence and publishes every
// successful result to the store. Manual refreshes and ticks share a single
// in-flight fetch.
type Scheduler struct {
	fetcher  Fetcher
	store    *store.Store
	interval time.Duration
	cooldown time.Duration
	timeout  time.Duration
	clock    clockwork.Clock

	// life scopes every fetch. Callers only give up their own wait; the
	// fetch itself ends when it completes, times out or Stop is called.
	life context.Context
	stop context.CancelFunc

	group   singleflight.Group
	state   atomic.Int32
	running atomic.Bool
	fetches sync.WaitGroup
}

// New returns a Scheduler that feeds st from f.
func New(f Fetcher, st *store.Store, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	life, stop := context.WithCancel(context.Background())
	return &Scheduler{
		fetcher:  f,
		store:    st,
		interval: opts.Interval,
		cooldown: opts.Cooldown,
		timeout:  opts.Timeout,
		clock:    opts.Clock,
		life:     life,
		stop:     stop,
	}
}

// Run waits one interval, refreshes, and repeats until ctx is cancelled.
// After a failed refresh it waits the cool-down instead of the interval.
// Run blocks; it never returns early because of a fetch error or panic.
func (s *Scheduler) Run(ctx context.Context) {
	s.running.Store(true)
	defer s.running.Store(false)

	slog.Info("scheduler: started", "interval", s.interval, "cooldown", s.cooldown)
	wait := s.interval
	for {
		t := s.clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			slog.Info("scheduler: stopped")
			return
		case <-t.Chan():
		}

		wait = s.interval
		if s.State() == StateFetching {
			// A manual refresh is in flight; this tick is dropped.
			continue
		}
		if _, err := s.refresh(ctx); err != nil && ctx.Err() == nil {
			wait = s.cooldown
		}
	}
}

// RefreshNow fetches immediately. When a fetch is already in flight the
// caller waits for it and receives its result instead of starting another.
// Cancelling ctx abandons the wait only; the shared fetch carries on for the
// other callers.
func (s *Scheduler) RefreshNow(ctx context.Context) (*store.Snapshot, error) {
	return s.refresh(ctx)
}

func (s *Scheduler) refresh(ctx context.Context) (*store.Snapshot, error) {
	ch := s.group.DoChan(flightKey, func() (any, error) {
		fctx, cancel := context.WithTimeout(s.life, s.timeout)
		defer cancel()
		return s.runOnce(fctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*store.Snapshot), nil
	}
}

// runOnce performs one fetch and records its outcome. Panics from the
// fetcher are converted to errors so the loop keeps running.
func (s *Scheduler) runOnce(ctx context.Context) (snap *store.Snapshot, err error) {
	s.fetches.Add(1)
	defer s.fetches.Done()

	s.state.Store(int32(StateFetching))
	defer func() {
		if r := recover(); r != nil {
			snap = nil
			err = fmt.Errorf("scheduler: refresh panicked: %v", r)
			slog.Error("scheduler: recovered from panic", "panic", r)
			s.store.RecordFailure(s.clock.Now(), err)
		}
		if err != nil && !s.stopped(err) {
			s.state.Store(int32(StateBackoff))
		} else {
			s.state.Store(int32(StateIdle))
		}
	}()

	raw, err := s.fetcher.Fetch(ctx)
	if err != nil {
		if s.stopped(err) {
			// Shutdown; not an upstream failure.
			return nil, err
		}
		s.store.RecordFailure(s.clock.Now(), err)
		slog.Warn("scheduler: refresh failed", "kind", feed.Kind(err), "err", err)
		return nil, err
	}

	// Stats first, so anyone woken by Publish already sees the new count.
	now := s.clock.Now()
	snap = store.NewSnapshot(raw, now)
	n := s.store.RecordSuccess(now)
	s.store.Publish(snap)
	slog.Debug("scheduler: snapshot published",
		"id", snap.ID,
		"pvp_maps", snap.PVP.Len(),
		"pve_maps", snap.PVE.Len(),
	)

	if n%summaryEvery == 0 {
		st := s.store.Stats()
		slog.Info("scheduler: refresh summary",
			"success_count", st.SuccessCount,
			"error_count", st.ErrorCount,
			"recent_success_pct", st.RecentSuccessPct,
		)
	}
	return snap, nil
}

// stopped reports whether err is the result of Stop rather than a failed
// fetch. A fetch that hits Timeout is a failure.
func (s *Scheduler) stopped(err error) bool {
	return s.life.Err() != nil && errors.Is(err, context.Canceled)
}

// Stop cancels any in-flight fetch and makes later ones fail immediately.
// Cancelling Run's context stops the loop but leaves an in-flight fetch to
// finish; call Stop, then Wait, to shut down.
func (s *Scheduler) Stop() { s.stop() }

// State returns the current phase.
func (s *Scheduler) State() State { return State(s.state.Load()) }

// Running reports whether Run is active.
func (s *Scheduler) Running() bool { return s.running.Load() }

// Interval is the steady-state polling interval.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Wait blocks until no fetch is in flight. Call it after cancelling Run's
// context to drain on shutdown.
func (s *Scheduler) Wait() { s.fetches.Wait() }
