package api

import (
	"fmt"

	"github.com/goonsradar/goonsradar/internal/feed"
	"github.com/goonsradar/goonsradar/internal/query"
)

// staleIntervals is how many refresh intervals may pass without a new
// snapshot before the data is reported stale.
const staleIntervals = 20

// DiagnosticHint is one human-readable insight about the poller's health.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level  string `json:"level"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
	// Value is an optional number associated with the hint (e.g. seconds).
	Value *float64 `json:"value,omitempty"`
}

// computeHealth derives the overall health state and hints from a status
// report and the last upstream certificate check (nil when unknown). Hints are
// ordered critical first.
func computeHealth(s *query.StatusReport, cert *feed.CertStatus) HealthResponse {
	resp := HealthResponse{
		Score:          s.Stats.RecentSuccessPct,
		HasData:        s.HasData,
		AgeSeconds:     s.AgeSeconds,
		SchedulerState: s.State,
	}
	attempts := s.Stats.SuccessCount + s.Stats.ErrorCount

	var hints []DiagnosticHint
	if !s.Running {
		hints = append(hints, DiagnosticHint{
			Key:    "scheduler_stopped",
			Level:  "critical",
			Title:  "Auto refresh stopped",
			Detail: "The background refresh loop is not running. Data only changes on a forced refresh.",
		})
	}

	switch {
	case !s.HasData && attempts == 0:
		resp.State = "unknown"
		resp.Diagnostics = append(hints, DiagnosticHint{
			Key:    "warming_up",
			Level:  "info",
			Title:  "Warming up",
			Detail: fmt.Sprintf("No fetch has completed yet; the first one runs within %d seconds.", s.IntervalSeconds),
		})
		return resp
	case !s.HasData:
		hints = append(hints, DiagnosticHint{
			Key:    "no_data",
			Level:  "critical",
			Title:  "No data",
			Detail: fmt.Sprintf("All %d fetch attempts failed; queries answer with a no-data message.", attempts),
		})
	}

	if s.Stats.LastErrorAt.After(s.Stats.LastSuccessAt) {
		hints = append(hints, failingHint(s))
	}

	if s.HasData && s.IntervalSeconds > 0 && s.AgeSeconds > staleIntervals*s.IntervalSeconds {
		v := float64(s.AgeSeconds)
		hints = append(hints, DiagnosticHint{
			Key:    "stale_data",
			Level:  "warning",
			Title:  fmt.Sprintf("Data %ds old", s.AgeSeconds),
			Detail: "The live snapshot is older than expected; queries are served from stale data.",
			Value:  &v,
		})
	}

	if h, ok := certHint(cert); ok {
		hints = append(hints, h)
	}

	resp.State = stateFromScore(resp.Score)
	if !s.HasData || !s.Running {
		resp.State = "critical"
	}
	if len(hints) == 0 {
		hints = append(hints, DiagnosticHint{
			Key:    "ok",
			Level:  "ok",
			Title:  "Healthy",
			Detail: "Fetches are succeeding and the snapshot is fresh.",
		})
	}
	resp.Diagnostics = sortHints(hints)
	return resp
}

func failingHint(s *query.StatusReport) DiagnosticHint {
	var detail string
	switch s.Stats.LastErrorKind {
	case feed.KindHTTPStatus:
		detail = "The upstream answered with an error status. A 403 usually means the request headers were rejected."
	case feed.KindDecode:
		detail = "The upstream answered with a body that is not the expected JSON; its format may have changed."
	case feed.KindNetwork:
		detail = "The upstream could not be reached or timed out."
	default:
		detail = "The last fetch failed unexpectedly."
	}
	return DiagnosticHint{
		Key:    "fetch_failing",
		Level:  "warning",
		Title:  "Fetch failing",
		Detail: detail + " Last error: " + s.Stats.LastError,
	}
}

func certHint(c *feed.CertStatus) (DiagnosticHint, bool) {
	if c == nil {
		return DiagnosticHint{}, false
	}
	days := float64(c.DaysLeft)
	switch c.Status {
	case feed.CertExpired:
		return DiagnosticHint{
			Key:    "cert_expired",
			Level:  "critical",
			Title:  "Upstream certificate expired",
			Detail: fmt.Sprintf("The certificate of %s expired on %s; fetches will fail TLS verification.", c.Host, c.NotAfter.Format("2006-01-02")),
			Value:  &days,
		}, true
	case feed.CertExpiring:
		return DiagnosticHint{
			Key:    "cert_expiring",
			Level:  "warning",
			Title:  fmt.Sprintf("Upstream certificate expires in %d days", c.DaysLeft),
			Detail: fmt.Sprintf("The certificate of %s is valid until %s.", c.Host, c.NotAfter.Format("2006-01-02")),
			Value:  &days,
		}, true
	case feed.CertUntrusted:
		return DiagnosticHint{
			Key:    "cert_untrusted",
			Level:  "warning",
			Title:  "Upstream certificate not trusted",
			Detail: fmt.Sprintf("The certificate of %s does not verify against the system roots; fetches will fail TLS verification.", c.Host),
		}, true
	case feed.CertUnreachable:
		return DiagnosticHint{
			Key:    "cert_unreachable",
			Level:  "info",
			Title:  "Certificate check failed",
			Detail: fmt.Sprintf("Could not complete a TLS handshake with %s.", c.Host),
		}, true
	}
	return DiagnosticHint{}, false
}

// stateFromScore converts a 0-100 success ratio to a health state string.
func stateFromScore(score float64) string {
	switch {
	case score >= 85:
		return "healthy"
	case score >= 60:
		return "degraded"
	default:
		return "critical"
	}
}

var levelRank = map[string]int{"critical": 0, "warning": 1, "info": 2, "ok": 3}

func sortHints(hints []DiagnosticHint) []DiagnosticHint {
	out := make([]DiagnosticHint, 0, len(hints))
	for rank := 0; rank <= 3; rank++ {
		for _, h := range hints {
			if levelRank[h.Level] == rank {
				out = append(out, h)
			}
		}
	}
	return out
}
