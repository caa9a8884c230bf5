package feed

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"math"
	"net"
	"time"
)

// Certificate states reported by CheckCert.
const (
	CertValid       = "valid"
	CertExpiring    = "expiring"
	CertExpired     = "expired"
	CertUntrusted   = "untrusted"
	CertUnreachable = "unreachable"
)

// certWarnDays is the remaining lifetime below which a certificate is
// reported as expiring.
const certWarnDays = 30

const certDialTimeout = 10 * time.Second

// CertStatus describes the leaf certificate served by the upstream host.
type CertStatus struct {
	Host      string    `json:"host"`
	Status    string    `json:"status"`
	Issuer    string    `json:"issuer,omitempty"`
	NotAfter  time.Time `json:"not_after,omitempty"`
	DaysLeft  int       `json:"days_left"`
	CheckedAt time.Time `json:"checked_at"`
}

// CheckCert dials the upstream over TLS and inspects the leaf certificate.
// It returns nil for plain-HTTP endpoints. The handshake itself does not
// verify, so an expired certificate is still reported as CertExpired; the
// chain and host name are then verified against the client's roots and a
// failure is reported as CertUntrusted. A failed dial is CertUnreachable.
func (c *Client) CheckCert(ctx context.Context) *CertStatus {
	if c.endpoint.Scheme != "https" {
		return nil
	}

	host := c.endpoint.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "443")
	}

	now := c.now()
	cs := &CertStatus{Host: c.endpoint.Hostname(), CheckedAt: now}

	dialCtx, cancel := context.WithTimeout(ctx, certDialTimeout)
	defer cancel()

	cfg := &tls.Config{}
	if c.tlsConfig != nil {
		cfg = c.tlsConfig.Clone()
	}
	roots := cfg.RootCAs
	cfg.InsecureSkipVerify = true //nolint:gosec // verified below
	dialer := &tls.Dialer{NetDialer: &net.Dialer{}, Config: cfg}

	conn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		cs.Status = CertUnreachable
		return cs
	}
	defer conn.Close()

	certs := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(certs) == 0 {
		cs.Status = CertUnreachable
		return cs
	}

	leaf := certs[0]
	daysLeft := leaf.NotAfter.Sub(now).Hours() / 24
	cs.Issuer = leaf.Issuer.CommonName
	cs.NotAfter = leaf.NotAfter.UTC()
	cs.DaysLeft = int(math.Floor(daysLeft))

	intermediates := x509.NewCertPool()
	for _, ic := range certs[1:] {
		intermediates.AddCert(ic)
	}
	_, verifyErr := leaf.Verify(x509.VerifyOptions{
		DNSName:       c.endpoint.Hostname(),
		Roots:         roots,
		Intermediates: intermediates,
		CurrentTime:   now,
	})

	switch {
	case daysLeft <= 0:
		cs.Status = CertExpired
	case verifyErr != nil:
		cs.Status = CertUntrusted
	case daysLeft <= certWarnDays:
		cs.Status = CertExpiring
	default:
		cs.Status = CertValid
	}
	return cs
}
