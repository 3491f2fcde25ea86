package security

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"math"
	"net"
	"net/url"
	"time"
)

// ExpiryWarning is how close to NotAfter a certificate is reported as
// expiring.
const ExpiryWarning = 30 * 24 * time.Hour

const dialTimeout = 10 * time.Second

// Certificate status values.
const (
	StatusValid       = "valid"
	StatusExpiring    = "expiring"
	StatusExpired     = "expired"
	StatusUntrusted   = "untrusted"
	StatusUnreachable = "unreachable"
)

// CertStatus describes the leaf certificate of an endpoint.
type CertStatus struct {
	Endpoint  string    `json:"endpoint"`
	AuthMode  string    `json:"auth_mode"`
	Status    string    `json:"status"`
	Issuer    string    `json:"issuer,omitempty"`
	NotAfter  time.Time `json:"not_after,omitempty"`
	DaysLeft  int       `json:"days_left"`
	CheckedAt time.Time `json:"checked_at"`
	Error     string    `json:"error,omitempty"`
}

// Checker dials endpoints and reports on their certificates.
type Checker struct {
	// TLS supplies RootCAs and ServerName for chain verification. Nil verifies
	// against the system roots using the endpoint's host name.
	TLS *tls.Config

	now func() time.Time
}

// NewChecker returns a Checker verifying against tlsCfg.
func NewChecker(tlsCfg *tls.Config) *Checker {
	return &Checker{TLS: tlsCfg, now: time.Now}
}

// Check performs a TLS handshake with endpoint and classifies its leaf
// certificate. It returns nil for endpoints that are not https, since there
// is no certificate to inspect.
func (c *Checker) Check(ctx context.Context, endpoint, authMode string) *CertStatus {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme != "https" {
		return nil
	}
	if authMode == "" {
		authMode = "none"
	}

	now := c.now()
	cs := &CertStatus{Endpoint: u.Scheme + "://" + u.Host, AuthMode: authMode, CheckedAt: now.UTC()}

	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "443")
	}

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	roots, serverName := (*x509.CertPool)(nil), u.Hostname()
	if c.TLS != nil {
		roots = c.TLS.RootCAs
		if c.TLS.ServerName != "" {
			serverName = c.TLS.ServerName
		}
	}

	// The handshake only collects the chain; it is verified below so that an
	// expired certificate is still reported as expired.
	d := &tls.Dialer{NetDialer: &net.Dialer{}, Config: &tls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: true, //nolint:gosec
	}}
	conn, err := d.DialContext(ctx, "tcp", host)
	if err != nil {
		cs.Status = StatusUnreachable
		cs.Error = err.Error()
		return cs
	}
	defer conn.Close()

	peers := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(peers) == 0 {
		cs.Status = StatusUnreachable
		cs.Error = "no peer certificate"
		return cs
	}

	leaf := peers[0]
	left := leaf.NotAfter.Sub(now)
	cs.Issuer = leaf.Issuer.CommonName
	cs.NotAfter = leaf.NotAfter.UTC()
	cs.DaysLeft = int(math.Floor(left.Hours() / 24))

	intermediates := x509.NewCertPool()
	for _, cert := range peers[1:] {
		intermediates.AddCert(cert)
	}
	_, verr := leaf.Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		DNSName:       serverName,
		CurrentTime:   now,
	})

	var invalid x509.CertificateInvalidError
	switch {
	case left <= 0 || (errors.As(verr, &invalid) && invalid.Reason == x509.Expired):
		cs.Status = StatusExpired
	case verr != nil:
		cs.Status = StatusUntrusted
		cs.Error = verr.Error()
	case left <= ExpiryWarning:
		cs.Status = StatusExpiring
	default:
		cs.Status = StatusValid
	}
	return cs
}
