package store

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/goonsradar/goonsradar/internal/feed"
	"github.com/goonsradar/goonsradar/internal/reconcile"
)

// historyWindow is the number of recent fetch outcomes tracked for the
// success ratio.
const historyWindow = 20

// subscriberBuffer is the channel capacity of each subscriber.
const subscriberBuffer = 4

// Snapshot is one fully reconciled view of the feed. It is immutable once
// published: readers may keep a reference for as long as they like.
type Snapshot struct {
	ID        uuid.UUID
	PVP       *reconcile.LatestByMap
	PVE       *reconcile.LatestByMap
	Raw       *feed.RawFeed
	FetchedAt time.Time
}

// NewSnapshot reconciles raw and stamps the result with at.
func NewSnapshot(raw *feed.RawFeed, at time.Time) *Snapshot {
	pvp, pve := reconcile.Reconcile(raw)
	return &Snapshot{
		ID:        uuid.New(),
		PVP:       pvp,
		PVE:       pve,
		Raw:       raw,
		FetchedAt: at,
	}
}

// Mode returns the reconciled mapping for m.
func (s *Snapshot) Mode(m feed.Mode) *reconcile.LatestByMap {
	if m == feed.PVE {
		return s.PVE
	}
	return s.PVP
}

// Stats are the process-lifetime fetch counters. The zero time means "never".
type Stats struct {
	SuccessCount  int64     `json:"success_count"`
	ErrorCount    int64     `json:"error_count"`
	LastSuccessAt time.Time `json:"last_success_at"`
	LastErrorAt   time.Time `json:"last_error_at"`
	LastError     string    `json:"last_error,omitempty"`
	LastErrorKind string    `json:"last_error_kind,omitempty"`

	// RecentSuccessPct is the success ratio over the last 20 attempts,
	// 100 before the first attempt.
	RecentSuccessPct float64 `json:"recent_success_pct"`
}

// Store holds the single live Snapshot and the fetch Stats.
// Publish swaps the snapshot atomically, so a reader sees either the old or
// the new value and never a partial one.
type Store struct {
	snap atomic.Pointer[Snapshot]

	mu      sync.RWMutex
	stats   Stats
	history []bool // newest last
	lastErr error

	subMu sync.Mutex
	subs  map[chan *Snapshot]struct{}
}

// New returns an empty Store.
func New() *Store {
	return &Store{subs: make(map[chan *Snapshot]struct{})}
}

// Load returns the current snapshot, or nil before the first success.
func (s *Store) Load() *Snapshot { return s.snap.Load() }

// Publish replaces the current snapshot and notifies subscribers.
// Callers must not modify snap after calling Publish.
func (s *Store) Publish(snap *Snapshot) {
	s.snap.Store(snap)

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Slow subscriber; it will catch up on the next publish.
		}
	}
}

// Subscribe returns a channel that receives every published snapshot and a
// function that unsubscribes and closes it. Sends never block Publish; a
// subscriber that falls behind misses intermediate snapshots.
func (s *Store) Subscribe() (<-chan *Snapshot, func()) {
	ch := make(chan *Snapshot, subscriberBuffer)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, ch)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

// RecordSuccess counts a successful fetch and returns the new success count.
func (s *Store) RecordSuccess(at time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.SuccessCount++
	s.stats.LastSuccessAt = at
	s.record(true)
	return s.stats.SuccessCount
}

// RecordFailure counts a failed fetch. The current snapshot is not touched.
func (s *Store) RecordFailure(at time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.ErrorCount++
	s.stats.LastErrorAt = at
	s.lastErr = err
	if err != nil {
		s.stats.LastError = err.Error()
		s.stats.LastErrorKind = feed.Kind(err)
	}
	s.record(false)
}

// LastError returns the most recent fetch error, or nil.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Stats returns a copy of the current counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.stats
	out.RecentSuccessPct = s.successPct()
	return out
}

// record appends one outcome to the rolling window. Caller holds mu.
func (s *Store) record(ok bool) {
	if len(s.history) >= historyWindow {
		s.history = s.history[1:]
	}
	s.history = append(s.history, ok)
}

func (s *Store) successPct() float64 {
	if len(s.history) == 0 {
		return 100
	}
	var ok int
	for _, v := range s.history {
		if v {
			ok++
		}
	}
	return float64(ok) / float64(len(s.history)) * 100
}
