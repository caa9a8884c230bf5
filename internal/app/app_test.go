package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goonsradar/goonsradar/internal/config"
	"github.com/goonsradar/goonsradar/internal/query"
)

const sampleFeed = `{
  "PVP": [
    {"map": "Customs / 海关", "update_time": "2024-06-01 08:00:00"},
    {"map": "Woods / 森林", "update_time": "2024-06-01 06:00:00"}
  ],
  "PVE": [
    {"map": "Lighthouse / 灯塔", "update_time": "2024-06-01 07:30:00"}
  ]
}`

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, sampleFeed) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, upstreamURL string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Feed.URL = upstreamURL
	cfg.Feed.RateLimit = 0
	cfg.Refresh.Interval = 20 * time.Millisecond
	cfg.Refresh.Cooldown = 20 * time.Millisecond
	cfg.Aliases.Path = filepath.Join(t.TempDir(), "maps.txt")
	return cfg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNew_BadFeedURL(t *testing.T) {
	cfg := config.Default()
	cfg.Feed.URL = "ftp://example.com/data.json"
	if _, err := New(cfg); err == nil {
		t.Fatal("want error for unsupported scheme")
	}
}

func TestNew_MissingAliasFileUsesBuiltin(t *testing.T) {
	cfg := testConfig(t, newUpstream(t).URL)
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := a.aliases.Load().Source(); got != "builtin" {
		t.Errorf("alias source: got %q want builtin", got)
	}
}

func TestStart_PollsAndServes(t *testing.T) {
	cfg := testConfig(t, newUpstream(t).URL)
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a.Start(context.Background())
	t.Cleanup(a.Close)

	waitFor(t, func() bool { return a.Engine().Current() != nil })

	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/goons", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d want 200", rr.Code)
	}
	var ov query.Overview
	if err := json.NewDecoder(rr.Body).Decode(&ov); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(ov.PVP) != 2 || len(ov.PVE) != 1 {
		t.Errorf("got %d PVP / %d PVE sightings, want 2 / 1", len(ov.PVP), len(ov.PVE))
	}
	if ov.IntervalSeconds != 0 {
		t.Errorf("interval seconds: got %d want 0 for a sub-second interval", ov.IntervalSeconds)
	}
}

func TestDispatcher_AnswersFromCache(t *testing.T) {
	cfg := testConfig(t, newUpstream(t).URL)
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a.Start(context.Background())
	t.Cleanup(a.Close)
	waitFor(t, func() bool { return a.Engine().Current() != nil })

	reply, err := a.Dispatcher().Dispatch(context.Background(), "三狗地图 customs")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !strings.Contains(reply, "海关") {
		t.Errorf("reply should name the map:\n%s", reply)
	}
}

func TestClose_StopsScheduler(t *testing.T) {
	cfg := testConfig(t, newUpstream(t).URL)
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a.Start(context.Background())
	waitFor(t, a.sched.Running)

	a.Close()
	if a.sched.Running() {
		t.Error("scheduler still running after Close")
	}
}

func TestClose_WithoutStart(t *testing.T) {
	a, err := New(testConfig(t, newUpstream(t).URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a.Close()
}

func TestReloadAliases(t *testing.T) {
	cfg := testConfig(t, newUpstream(t).URL)
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := os.WriteFile(cfg.Aliases.Path, []byte("海关 | kuaidi\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := a.ReloadAliases(); err != nil {
		t.Fatalf("ReloadAliases: %v", err)
	}
	if name, ok := a.aliases.Load().Resolve("kuaidi"); !ok || name != "海关" {
		t.Errorf("Resolve(kuaidi): got %q, %v", name, ok)
	}

	// An unusable file keeps the table that is already loaded.
	if err := os.WriteFile(cfg.Aliases.Path, []byte("# nothing here\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := a.ReloadAliases(); err == nil {
		t.Fatal("want error for empty alias file")
	}
	if a.aliases.Load().Source() != cfg.Aliases.Path {
		t.Errorf("table replaced after failed reload: source %q", a.aliases.Load().Source())
	}
}
