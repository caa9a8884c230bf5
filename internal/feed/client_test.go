package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const sampleFeed = `{
  "PVP": [
    {"map": "Customs / 海关", "update_time": "2024-06-01 08:00:00", "id": 17},
    {"map": "Woods / 森林", "update_time": "2024-06-01 07:00:00"}
  ],
  "PVE": [],
  "notice": "ignored"
}`

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(Options{
		URL:       url,
		Referer:   "https://example.com/ref",
		UserAgent: "goonsradar-test",
		Timeout:   2 * time.Second,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.now = func() time.Time { return time.UnixMilli(1717228800123) }
	return c
}

func TestFetch_DecodesFeedAndSendsHeaders(t *testing.T) {
	reqs := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqs <- r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/news/data.json?lang=zh")
	feed, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if len(feed.PVP) != 2 || len(feed.PVE) != 0 {
		t.Fatalf("PVP=%d PVE=%d, want 2/0", len(feed.PVP), len(feed.PVE))
	}
	if feed.PVP[0].Map != "Customs / 海关" || feed.PVP[0].UpdateTime != "2024-06-01 08:00:00" {
		t.Errorf("PVP[0] = %+v", feed.PVP[0])
	}

	got := <-reqs
	if got.URL.Path != "/news/data.json" {
		t.Errorf("path = %q", got.URL.Path)
	}
	if v := got.URL.Query().Get("_"); v != "1717228800123" {
		t.Errorf("cache-busting param = %q, want 1717228800123", v)
	}
	if v := got.URL.Query().Get("lang"); v != "zh" {
		t.Errorf("existing query param lost: lang = %q", v)
	}
	if v := got.Header.Get("User-Agent"); v != "goonsradar-test" {
		t.Errorf("User-Agent = %q", v)
	}
	if v := got.Header.Get("Referer"); v != "https://example.com/ref" {
		t.Errorf("Referer = %q", v)
	}
	if v := got.Header.Get("Accept"); v != "application/json" {
		t.Errorf("Accept = %q", v)
	}
}

func TestFetch_CacheBusterChangesPerCall(t *testing.T) {
	seen := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.URL.Query().Get("_")
		_, _ = w.Write([]byte(`{"PVP":[],"PVE":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ms := int64(1000)
	c.now = func() time.Time { ms++; return time.UnixMilli(ms) }

	for i := 0; i < 2; i++ {
		if _, err := c.Fetch(context.Background()); err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
	}
	if a, b := <-seen, <-seen; a == b {
		t.Errorf("cache-busting param repeated: %q", a)
	}
}

func TestFetch_HTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Fetch(context.Background())
	var he *HTTPStatusError
	if !errors.As(err, &he) {
		t.Fatalf("Fetch() error = %v, want *HTTPStatusError", err)
	}
	if he.Code != http.StatusForbidden {
		t.Errorf("Code = %d, want 403", he.Code)
	}
	if Kind(err) != KindHTTPStatus {
		t.Errorf("Kind() = %q", Kind(err))
	}
}

func TestFetch_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Fetch(context.Background())
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("Fetch() error = %v, want *DecodeError", err)
	}
	if Kind(err) != KindDecode {
		t.Errorf("Kind() = %q", Kind(err))
	}
}

func TestFetch_NetworkError(t *testing.T) {
	_, err := newTestClient(t, "http://127.0.0.1:1/data.json").Fetch(context.Background())
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("Fetch() error = %v, want *NetworkError", err)
	}
	if Kind(err) != KindNetwork {
		t.Errorf("Kind() = %q", Kind(err))
	}
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := New(Options{URL: srv.URL, Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	_, err = c.Fetch(context.Background())
	if Kind(err) != KindNetwork {
		t.Fatalf("Fetch() error = %v, want network timeout", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout not honoured: took %v", elapsed)
	}
}

func TestFetch_RateLimiterHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"PVP":[],"PVE":[]}`))
	}))
	defer srv.Close()

	c, err := New(Options{URL: srv.URL, RateLimit: 0.001, Burst: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Fetch(context.Background()); err != nil {
		t.Fatalf("first Fetch() within burst: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Fetch(ctx); Kind(err) != KindUnknown {
		t.Fatalf("second Fetch() error = %v, want rate-limit failure", err)
	}
}

func TestNew_RejectsBadURL(t *testing.T) {
	for _, u := range []string{"ftp://example.com/data.json", "::not a url"} {
		if _, err := New(Options{URL: u}); err == nil {
			t.Errorf("New(%q) succeeded, want error", u)
		}
	}
}

func TestKind_Foreign(t *testing.T) {
	if got := Kind(errors.New("boom")); got != KindUnknown {
		t.Errorf("Kind(foreign) = %q", got)
	}
}

func TestRawFeed_Records(t *testing.T) {
	f := &RawFeed{PVP: []Observation{{Map: "a"}}, PVE: []Observation{{Map: "b"}, {Map: "c"}}}
	if len(f.Records(PVP)) != 1 || len(f.Records(PVE)) != 2 {
		t.Errorf("Records mismatch")
	}
	var nilFeed *RawFeed
	if nilFeed.Records(PVP) != nil {
		t.Error("nil feed should have no records")
	}
}
