package api

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/goonsradar/goonsradar/internal/feed"
	"github.com/goonsradar/goonsradar/internal/query"
	"github.com/goonsradar/goonsradar/internal/scheduler"
)

const metricPrefix = "goonsradar_"

// metrics serves GET /metrics in the Prometheus text exposition format. The
// families are built from the current status on every scrape.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	w.WriteHeader(http.StatusOK)

	enc := expfmt.NewEncoder(w, format)
	for _, mf := range h.families(r.Context()) {
		if err := enc.Encode(mf); err != nil {
			slog.Warn("api: encode metrics", "family", mf.GetName(), "err", err)
			return
		}
	}
}

func (h *Handler) families(ctx context.Context) []*dto.MetricFamily {
	s := h.engine.Status(ctx)
	out := []*dto.MetricFamily{
		counter("fetch_success_total", "Successful upstream fetches.", float64(s.Stats.SuccessCount)),
		counter("fetch_errors_total", "Failed upstream fetches.", float64(s.Stats.ErrorCount)),
		gauge("fetch_recent_success_ratio", "Success ratio over the last 20 fetch attempts.", s.Stats.RecentSuccessPct/100),
		gauge("last_success_timestamp_seconds", "Unix time of the last successful fetch, 0 if none.", unix(s.Stats.LastSuccessAt.Unix(), s.Stats.LastSuccessAt.IsZero())),
		gauge("last_error_timestamp_seconds", "Unix time of the last failed fetch, 0 if none.", unix(s.Stats.LastErrorAt.Unix(), s.Stats.LastErrorAt.IsZero())),
		gauge("alias_entries", "Map display names in the alias table.", float64(s.Aliases)),
		gauge("scheduler_running", "1 while the refresh loop is running.", boolValue(s.Running)),
		stateFamily(s.State),
	}
	if s.HasData {
		out = append(out, gauge("snapshot_age_seconds", "Seconds since the live snapshot was fetched.", float64(s.AgeSeconds)))
		out = append(out, h.recordFamily(s))
	}
	if cur := h.engine.Current(); cur != nil {
		out = append(out, labeled("maps", "Distinct maps in the live snapshot.", dto.MetricType_GAUGE, "mode", map[string]float64{
			"PVP": float64(len(cur.PVP)),
			"PVE": float64(len(cur.PVE)),
		}))
	}
	if c := h.cert(); c != nil && c.Status != feed.CertUnreachable {
		out = append(out, gauge("feed_cert_days_left", "Days until the upstream TLS certificate expires.", float64(c.DaysLeft)))
	}
	if h.opts.Clients != nil {
		out = append(out, gauge("stream_clients", "Connected websocket stream clients.", float64(h.opts.Clients())))
	}
	return out
}

func (h *Handler) recordFamily(s *query.StatusReport) *dto.MetricFamily {
	return labeled("records", "Raw records in the live snapshot.", dto.MetricType_GAUGE, "mode", map[string]float64{
		"PVP": float64(s.PVPRecords),
		"PVE": float64(s.PVERecords),
	})
}

func stateFamily(current string) *dto.MetricFamily {
	values := make(map[string]float64)
	for _, st := range []scheduler.State{scheduler.StateIdle, scheduler.StateFetching, scheduler.StateBackoff} {
		values[st.String()] = boolValue(st.String() == current)
	}
	return labeled("scheduler_state", "Current scheduler state.", dto.MetricType_GAUGE, "state", values)
}

func counter(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   ptr(metricPrefix + name),
		Help:   ptr(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: ptr(v)}}},
	}
}

func gauge(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   ptr(metricPrefix + name),
		Help:   ptr(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: ptr(v)}}},
	}
}

// labeled builds a gauge family with one series per label value, in a fixed
// order so the output is stable.
func labeled(name, help string, typ dto.MetricType, label string, values map[string]float64) *dto.MetricFamily {
	mf := &dto.MetricFamily{
		Name: ptr(metricPrefix + name),
		Help: ptr(help),
		Type: typ.Enum(),
	}
	for _, k := range sortedKeys(values) {
		mf.Metric = append(mf.Metric, &dto.Metric{
			Label: []*dto.LabelPair{{Name: ptr(label), Value: ptr(k)}},
			Gauge: &dto.Gauge{Value: ptr(values[k])},
		})
	}
	return mf
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func unix(sec int64, zero bool) float64 {
	if zero {
		return 0
	}
	return float64(sec)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func ptr[T any](v T) *T { return &v }
