package api

import (
	"testing"
	"time"

	"github.com/goonsradar/goonsradar/internal/feed"
	"github.com/goonsradar/goonsradar/internal/query"
	"github.com/goonsradar/goonsradar/internal/store"
)

var t0 = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func healthyStatus() *query.StatusReport {
	return &query.StatusReport{
		IntervalSeconds: 5,
		HasData:         true,
		AgeSeconds:      2,
		Running:         true,
		State:           "idle",
		Stats: store.Stats{
			SuccessCount:     10,
			LastSuccessAt:    t0,
			RecentSuccessPct: 100,
		},
	}
}

func TestComputeHealth_OK(t *testing.T) {
	h := computeHealth(healthyStatus(), nil)
	if h.State != "healthy" || len(h.Diagnostics) != 1 || h.Diagnostics[0].Key != "ok" {
		t.Errorf("got %+v", h)
	}
}

func TestComputeHealth_Stale(t *testing.T) {
	s := healthyStatus()
	s.AgeSeconds = 5 * staleIntervals * 2
	h := computeHealth(s, nil)
	if len(h.Diagnostics) != 1 || h.Diagnostics[0].Key != "stale_data" {
		t.Fatalf("got %+v", h.Diagnostics)
	}
	if v := h.Diagnostics[0].Value; v == nil || *v != float64(s.AgeSeconds) {
		t.Errorf("value: got %v", v)
	}
}

func TestComputeHealth_FailingAfterSuccess(t *testing.T) {
	s := healthyStatus()
	s.Stats.ErrorCount = 5
	s.Stats.LastErrorAt = t0.Add(time.Minute)
	s.Stats.LastErrorKind = feed.KindDecode
	s.Stats.LastError = "feed: decode: unexpected EOF"
	s.Stats.RecentSuccessPct = 70

	h := computeHealth(s, nil)
	if h.State != "degraded" {
		t.Errorf("state: got %q, want degraded", h.State)
	}
	if h.Diagnostics[0].Key != "fetch_failing" {
		t.Errorf("diagnostics: got %+v", h.Diagnostics)
	}
}

func TestStateFromScore(t *testing.T) {
	cases := map[float64]string{100: "healthy", 85: "healthy", 84.9: "degraded", 60: "degraded", 59: "critical", 0: "critical"}
	for score, want := range cases {
		if got := stateFromScore(score); got != want {
			t.Errorf("stateFromScore(%v) = %q, want %q", score, got, want)
		}
	}
}

func TestSortHints(t *testing.T) {
	in := []DiagnosticHint{{Key: "a", Level: "info"}, {Key: "b", Level: "critical"}, {Key: "c", Level: "warning"}}
	out := sortHints(in)
	if out[0].Key != "b" || out[1].Key != "c" || out[2].Key != "a" {
		t.Errorf("order: got %v", out)
	}
}

func TestComputeHealth_CertExpiring(t *testing.T) {
	cert := &feed.CertStatus{
		Host:     "eftarkov.com",
		Status:   feed.CertExpiring,
		NotAfter: t0.AddDate(0, 0, 12),
		DaysLeft: 12,
	}
	h := computeHealth(healthyStatus(), cert)
	if h.State != "healthy" {
		t.Errorf("state: got %q, want healthy", h.State)
	}
	if len(h.Diagnostics) != 1 || h.Diagnostics[0].Key != "cert_expiring" {
		t.Fatalf("got %+v", h.Diagnostics)
	}
	if v := h.Diagnostics[0].Value; v == nil || *v != 12 {
		t.Errorf("value: got %v", v)
	}
}

func TestComputeHealth_CertExpiredFirst(t *testing.T) {
	s := healthyStatus()
	s.AgeSeconds = 5 * staleIntervals * 2
	cert := &feed.CertStatus{Host: "eftarkov.com", Status: feed.CertExpired, NotAfter: t0.AddDate(0, 0, -1), DaysLeft: -1}

	h := computeHealth(s, cert)
	if len(h.Diagnostics) != 2 || h.Diagnostics[0].Key != "cert_expired" || h.Diagnostics[1].Key != "stale_data" {
		t.Errorf("got %+v", h.Diagnostics)
	}
}

func TestComputeHealth_CertValidAddsNothing(t *testing.T) {
	cert := &feed.CertStatus{Host: "eftarkov.com", Status: feed.CertValid, DaysLeft: 200}
	h := computeHealth(healthyStatus(), cert)
	if len(h.Diagnostics) != 1 || h.Diagnostics[0].Key != "ok" {
		t.Errorf("got %+v", h.Diagnostics)
	}
}

func TestComputeHealth_CertUntrusted(t *testing.T) {
	cert := &feed.CertStatus{Host: "eftarkov.com", Status: feed.CertUntrusted, DaysLeft: 200}
	h := computeHealth(healthyStatus(), cert)
	if len(h.Diagnostics) != 1 || h.Diagnostics[0].Key != "cert_untrusted" || h.Diagnostics[0].Level != "warning" {
		t.Errorf("got %+v", h.Diagnostics)
	}
}
