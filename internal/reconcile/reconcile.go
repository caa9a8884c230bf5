package reconcile

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/goonsradar/goonsradar/internal/feed"
)

// TimeLayout is the upstream timestamp format. It is zero padded, so string
// order and chronological order agree for well-formed values.
const TimeLayout = "2006-01-02 15:04:05"

// nameSeparator splits the upstream bilingual map field ("Customs / 海关").
const nameSeparator = " / "

// Sighting is the latest observation of the squad on one map.
type Sighting struct {
	Map  string `json:"map"`
	Time string `json:"time"`
}

// LatestByMap maps display names to the most recent timestamp seen for one
// mode. It remembers first-appearance order so rendering is deterministic.
// A LatestByMap is never modified once Reconcile has returned it.
type LatestByMap struct {
	order  []string
	latest map[string]string
}

func newLatestByMap() *LatestByMap {
	return &LatestByMap{latest: make(map[string]string)}
}

// observe applies one record using the "latest wins" rule.
func (l *LatestByMap) observe(name, ts string) {
	prev, ok := l.latest[name]
	if !ok {
		l.order = append(l.order, name)
		l.latest[name] = ts
		return
	}
	c, comparable := Compare(ts, prev)
	if !comparable || c > 0 {
		// Unparseable timestamps degrade to last write wins.
		l.latest[name] = ts
	}
}

// Get returns the latest timestamp recorded for the display name.
func (l *LatestByMap) Get(name string) (string, bool) {
	if l == nil {
		return "", false
	}
	ts, ok := l.latest[name]
	return ts, ok
}

// Len returns the number of distinct display names.
func (l *LatestByMap) Len() int {
	if l == nil {
		return 0
	}
	return len(l.order)
}

// Sightings returns one entry per display name in first-appearance order.
func (l *LatestByMap) Sightings() []Sighting {
	if l == nil {
		return []Sighting{}
	}
	out := make([]Sighting, 0, len(l.order))
	for _, name := range l.order {
		out = append(out, Sighting{Map: name, Time: l.latest[name]})
	}
	return out
}

// Newest returns the most recent sighting across all maps. Ties keep the map
// that appeared first.
func (l *LatestByMap) Newest() (Sighting, bool) {
	var best Sighting
	found := false
	for _, s := range l.Sightings() {
		if !found || Order(s.Time, best.Time) > 0 {
			best, found = s, true
		}
	}
	return best, found
}

// MarshalJSON encodes the mapping as an ordered list of sightings.
func (l *LatestByMap) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Sightings())
}

// Reconcile reduces a feed to the latest timestamp per display name for PVP
// and PVE independently. Each call starts from the given feed only; maps
// missing from it do not appear in the result.
func Reconcile(f *feed.RawFeed) (pvp, pve *LatestByMap) {
	return reduce(f.Records(feed.PVP)), reduce(f.Records(feed.PVE))
}

func reduce(records []feed.Observation) *LatestByMap {
	out := newLatestByMap()
	for _, r := range records {
		name := DisplayName(r.Map)
		if name == "" || r.UpdateTime == "" {
			continue
		}
		out.observe(name, r.UpdateTime)
	}
	return out
}

// DisplayName derives the canonical display name from the upstream map
// field: "Customs / 海关" becomes "海关"; a value without the separator is
// returned unchanged. When the second half is blank ("Customs / ") the first
// half is used instead, so a record never lands under an empty name.
func DisplayName(raw string) string {
	parts := strings.Split(raw, nameSeparator)
	if len(parts) < 2 {
		return raw
	}
	if name := strings.TrimSpace(parts[1]); name != "" {
		return parts[1]
	}
	return strings.TrimSpace(parts[0])
}

// Compare orders two upstream timestamps chronologically. comparable is false
// when either value does not parse with TimeLayout; callers then apply their
// own fallback. No time zone conversion is performed.
func Compare(a, b string) (c int, comparable bool) {
	ta, errA := time.Parse(TimeLayout, a)
	tb, errB := time.Parse(TimeLayout, b)
	if errA != nil || errB != nil {
		return 0, false
	}
	return ta.Compare(tb), true
}

// Order is a total order over timestamps: chronological when both parse,
// plain string order otherwise.
func Order(a, b string) int {
	if c, ok := Compare(a, b); ok {
		return c
	}
	return strings.Compare(a, b)
}
