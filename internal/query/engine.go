package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/goonsradar/goonsradar/internal/alias"
	"github.com/goonsradar/goonsradar/internal/feed"
	"github.com/goonsradar/goonsradar/internal/reconcile"
	"github.com/goonsradar/goonsradar/internal/scheduler"
	"github.com/goonsradar/goonsradar/internal/store"
)

const (
	// maxRecords is the number of records shown per mode in a map report.
	maxRecords = 5

	// maxAvailable bounds the discovery list of an unmatched map query.
	maxAvailable = 10

	maxSuggestions = 3

	// minPartialRunes is the shortest input the substring fallback accepts.
	minPartialRunes = 2
)

var (
	// ErrNoData is returned when no snapshot exists and the bootstrap fetch
	// did not produce one either.
	ErrNoData = errors.New("query: no data available")

	// ErrEmptyQuery is returned by ByMap for blank input.
	ErrEmptyQuery = errors.New("query: empty map name")
)

// Refresher is the part of the scheduler the engine depends on.
// *scheduler.Scheduler satisfies it.
type Refresher interface {
	RefreshNow(ctx context.Context) (*store.Snapshot, error)
	State() scheduler.State
	Running() bool
	Interval() time.Duration
}

// Engine answers read queries against the current snapshot. It never fetches
// except for one bootstrap refresh when the first read finds no snapshot.
type Engine struct {
	store   *store.Store
	sched   Refresher
	aliases *alias.Holder
	source  string
	now     func() time.Time // injectable for deterministic tests

	bootstrap sync.Once
}

// New builds an Engine. source is the upstream host shown as attribution.
func New(st *store.Store, sched Refresher, aliases *alias.Holder, source string) *Engine {
	return &Engine{
		store:   st,
		sched:   sched,
		aliases: aliases,
		source:  source,
		now:     time.Now,
	}
}

// Overview is the latest sighting per map for both modes.
type Overview struct {
	SnapshotID      string               `json:"snapshot_id"`
	PVP             []reconcile.Sighting `json:"pvp"`
	PVE             []reconcile.Sighting `json:"pve"`
	FetchedAt       time.Time            `json:"fetched_at"`
	AgeSeconds      int64                `json:"age_seconds"`
	IntervalSeconds int64                `json:"refresh_interval_seconds"`
	Source          string               `json:"source"`
}

// ModeRecords are the matching timestamps of one mode, newest first.
type ModeRecords struct {
	Records []string `json:"records"`
	Total   int      `json:"total"`
	More    int      `json:"more"`
}

// MapReport is the per-map drill-down. When Found is false, Available lists
// maps present in the current feed and Suggestions lists close aliases.
type MapReport struct {
	Query       string      `json:"query"`
	Map         string      `json:"map,omitempty"`
	Found       bool        `json:"found"`
	PVP         ModeRecords `json:"pvp"`
	PVE         ModeRecords `json:"pve"`
	Available   []string    `json:"available,omitempty"`
	Suggestions []string    `json:"suggestions,omitempty"`
	FetchedAt   time.Time   `json:"fetched_at"`
	AgeSeconds  int64       `json:"age_seconds"`
}

// StatusReport combines fetch statistics with cache freshness.
type StatusReport struct {
	IntervalSeconds int64       `json:"refresh_interval_seconds"`
	HasData         bool        `json:"has_data"`
	PVPRecords      int         `json:"pvp_records"`
	PVERecords      int         `json:"pve_records"`
	LastUpdate      time.Time   `json:"last_update"`
	AgeSeconds      int64       `json:"age_seconds"`
	Stats           store.Stats `json:"stats"`
	Running         bool        `json:"running"`
	State           string      `json:"state"`
	Aliases         int         `json:"aliases"`
	AliasSource     string      `json:"alias_source"`
	Now             time.Time   `json:"now"`
}

// RefreshReport is the outcome of a forced refresh.
type RefreshReport struct {
	SnapshotID   string    `json:"snapshot_id"`
	FetchedAt    time.Time `json:"fetched_at"`
	AgeSeconds   int64     `json:"age_seconds"`
	SuccessCount int64     `json:"success_count"`
}

// NoDataError carries what is known about the failure behind ErrNoData.
type NoDataError struct {
	LastErrorAt time.Time
	Err         error
}

func (e *NoDataError) Error() string {
	if e.Err == nil {
		return ErrNoData.Error()
	}
	return fmt.Sprintf("%v: %v", ErrNoData, e.Err)
}

func (e *NoDataError) Is(target error) bool { return target == ErrNoData }
func (e *NoDataError) Unwrap() error        { return e.Err }

// ListAll returns the latest sighting per map for both modes.
func (e *Engine) ListAll(ctx context.Context) (*Overview, error) {
	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return e.overview(snap), nil
}

// Current renders the live snapshot without bootstrapping. It returns nil
// when nothing has been fetched yet.
func (e *Engine) Current() *Overview {
	snap := e.store.Load()
	if snap == nil {
		return nil
	}
	return e.overview(snap)
}

func (e *Engine) overview(snap *store.Snapshot) *Overview {
	return &Overview{
		SnapshotID:      snap.ID.String(),
		PVP:             snap.PVP.Sightings(),
		PVE:             snap.PVE.Sightings(),
		FetchedAt:       snap.FetchedAt,
		AgeSeconds:      e.age(snap.FetchedAt),
		IntervalSeconds: int64(e.sched.Interval() / time.Second),
		Source:          e.source,
	}
}

// ByMap returns the records of one map. input is resolved through the alias
// table and used literally when no alias matches. An unmatched map is
// reported with Found=false, not as an error.
func (e *Engine) ByMap(ctx context.Context, input string) (*MapReport, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyQuery
	}
	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	table := e.aliases.Load()
	target, ok := table.Resolve(input)
	if !ok {
		target = input
	}

	rep := &MapReport{
		Query:      input,
		FetchedAt:  snap.FetchedAt,
		AgeSeconds: e.age(snap.FetchedAt),
	}

	pvp := collect(snap.Raw.Records(feed.PVP), target)
	pve := collect(snap.Raw.Records(feed.PVE), target)
	if len(pvp) == 0 && len(pve) == 0 {
		if raw, ok := findPartial(snap.Raw, target); ok {
			target = reconcile.DisplayName(raw)
			pvp = collect(snap.Raw.Records(feed.PVP), target)
			pve = collect(snap.Raw.Records(feed.PVE), target)
		}
	}

	if len(pvp) == 0 && len(pve) == 0 {
		rep.Available = available(snap.Raw)
		rep.Suggestions = table.Suggest(input, maxSuggestions)
		return rep, nil
	}

	rep.Found = true
	rep.Map = target
	rep.PVP = truncate(pvp)
	rep.PVE = truncate(pve)
	return rep, nil
}

// Status reports fetch statistics and cache freshness. It never fetches.
func (e *Engine) Status(context.Context) *StatusReport {
	table := e.aliases.Load()
	rep := &StatusReport{
		IntervalSeconds: int64(e.sched.Interval() / time.Second),
		Stats:           e.store.Stats(),
		Running:         e.sched.Running(),
		State:           e.sched.State().String(),
		Aliases:         table.Len(),
		AliasSource:     table.Source(),
		Now:             e.now(),
	}
	if snap := e.store.Load(); snap != nil {
		rep.HasData = true
		rep.PVPRecords = len(snap.Raw.Records(feed.PVP))
		rep.PVERecords = len(snap.Raw.Records(feed.PVE))
		rep.LastUpdate = snap.FetchedAt
		rep.AgeSeconds = e.age(snap.FetchedAt)
	}
	return rep
}

// Refresh forces a fetch through the scheduler.
func (e *Engine) Refresh(ctx context.Context) (*RefreshReport, error) {
	snap, err := e.sched.RefreshNow(ctx)
	if err != nil {
		return nil, fmt.Errorf("query: refresh: %w", err)
	}
	return &RefreshReport{
		SnapshotID:   snap.ID.String(),
		FetchedAt:    snap.FetchedAt,
		AgeSeconds:   e.age(snap.FetchedAt),
		SuccessCount: e.store.Stats().SuccessCount,
	}, nil
}

// Aliases returns the current alias entries, used by the help text.
func (e *Engine) Aliases() []alias.Entry { return e.aliases.Load().Entries() }

// IntervalSeconds is the steady-state refresh interval.
func (e *Engine) IntervalSeconds() int64 { return int64(e.sched.Interval() / time.Second) }

// snapshot returns the live snapshot, bootstrapping at most once per process.
func (e *Engine) snapshot(ctx context.Context) (*store.Snapshot, error) {
	if snap := e.store.Load(); snap != nil {
		return snap, nil
	}
	e.bootstrap.Do(func() {
		slog.Info("query: no snapshot yet, bootstrapping")
		if _, err := e.sched.RefreshNow(ctx); err != nil {
			slog.Warn("query: bootstrap refresh failed", "err", err)
		}
	})
	if snap := e.store.Load(); snap != nil {
		return snap, nil
	}
	return nil, &NoDataError{
		LastErrorAt: e.store.Stats().LastErrorAt,
		Err:         e.store.LastError(),
	}
}

func (e *Engine) age(t time.Time) int64 {
	d := e.now().Sub(t)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// collect returns the non-empty timestamps of records whose display name is
// target, in upstream order.
func collect(records []feed.Observation, target string) []string {
	var out []string
	for _, r := range records {
		if r.Map == "" || r.UpdateTime == "" {
			continue
		}
		if reconcile.DisplayName(r.Map) == target {
			out = append(out, r.UpdateTime)
		}
	}
	return out
}

// findPartial returns the first raw map name, PVP before PVE, that contains
// target case-insensitively. Targets shorter than minPartialRunes never match.
func findPartial(raw *feed.RawFeed, target string) (string, bool) {
	if utf8.RuneCountInString(target) < minPartialRunes {
		return "", false
	}
	needle := strings.ToLower(target)
	for _, m := range feed.Modes {
		for _, r := range raw.Records(m) {
			if r.Map != "" && strings.Contains(strings.ToLower(r.Map), needle) {
				return r.Map, true
			}
		}
	}
	return "", false
}

// available lists up to maxAvailable distinct display names from raw, sorted.
func available(raw *feed.RawFeed) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range feed.Modes {
		for _, r := range raw.Records(m) {
			name := reconcile.DisplayName(r.Map)
			if name == "" {
				continue
			}
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	if len(out) > maxAvailable {
		out = out[:maxAvailable]
	}
	return out
}

func truncate(ts []string) ModeRecords {
	sort.SliceStable(ts, func(i, j int) bool { return reconcile.Order(ts[i], ts[j]) > 0 })
	mr := ModeRecords{Total: len(ts), Records: ts}
	if len(ts) > maxRecords {
		mr.Records = ts[:maxRecords]
		mr.More = len(ts) - maxRecords
	}
	if mr.Records == nil {
		mr.Records = []string{}
	}
	return mr
}
