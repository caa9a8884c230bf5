package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTLSClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(Options{
		URL:       srv.URL + "/data.json",
		Timeout:   2 * time.Second,
		TLSConfig: srv.Client().Transport.(*http.Transport).TLSClientConfig,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return c
}

func TestCheckCert_Valid(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	cs := newTLSClient(t, srv).CheckCert(context.Background())
	if cs == nil {
		t.Fatal("want status for https endpoint")
	}
	if cs.Status != CertValid {
		t.Errorf("status: got %q want %q", cs.Status, CertValid)
	}
	if cs.DaysLeft <= certWarnDays {
		t.Errorf("days left: got %d", cs.DaysLeft)
	}
	if cs.Host != "127.0.0.1" {
		t.Errorf("host: got %q", cs.Host)
	}
}

func TestCheckCert_Untrusted(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c, err := New(Options{URL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	cs := c.CheckCert(context.Background())
	if cs == nil || cs.Status != CertUntrusted {
		t.Fatalf("got %+v, want untrusted for a self-signed certificate", cs)
	}
	if cs.DaysLeft <= certWarnDays {
		t.Errorf("days left should still be reported, got %d", cs.DaysLeft)
	}
}

func TestCheckCert_Expired(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	after := srv.Certificate().NotAfter.Add(48 * time.Hour)
	tlsCfg := srv.Client().Transport.(*http.Transport).TLSClientConfig.Clone()
	tlsCfg.Time = func() time.Time { return after }
	c, err := New(Options{URL: srv.URL, TLSConfig: tlsCfg})
	if err != nil {
		t.Fatal(err)
	}
	c.now = func() time.Time { return after }

	cs := c.CheckCert(context.Background())
	if cs == nil || cs.Status != CertExpired {
		t.Fatalf("got %+v, want expired", cs)
	}
	if cs.DaysLeft != -2 {
		t.Errorf("days left: got %d, want -2", cs.DaysLeft)
	}
	if !cs.NotAfter.Equal(srv.Certificate().NotAfter) {
		t.Errorf("not after: got %v", cs.NotAfter)
	}
}

func TestCheckCert_Expiring(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c := newTLSClient(t, srv)
	c.now = func() time.Time { return srv.Certificate().NotAfter.Add(-10*24*time.Hour - time.Hour) }

	cs := c.CheckCert(context.Background())
	if cs == nil || cs.Status != CertExpiring {
		t.Fatalf("got %+v, want expiring", cs)
	}
	if cs.DaysLeft != 10 {
		t.Errorf("days left: got %d, want 10", cs.DaysLeft)
	}
}

func TestCheckCert_Closed(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newTLSClient(t, srv)
	srv.Close()

	if cs := c.CheckCert(context.Background()); cs == nil || cs.Status != CertUnreachable {
		t.Errorf("got %+v, want unreachable", cs)
	}
}

func TestCheckCert_PlainHTTP(t *testing.T) {
	c, err := New(Options{URL: "http://example.com/data.json"})
	if err != nil {
		t.Fatal(err)
	}
	if cs := c.CheckCert(context.Background()); cs != nil {
		t.Errorf("got %+v, want nil for http", cs)
	}
}

func TestFetch_OverTLS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleFeed)) //nolint:errcheck
	}))
	defer srv.Close()

	f, err := newTLSClient(t, srv).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(f.PVP) != 2 {
		t.Errorf("PVP records: got %d want 2", len(f.PVP))
	}
}
