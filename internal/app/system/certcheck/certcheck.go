// Package certcheck inspects the TLS certificate a host is serving.
package certcheck

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// CertInfo contains information about a TLS certificate.
type CertInfo struct {
	Host      string    `json:"host"`
	ExpiresAt time.Time `json:"expires_at"`
	DaysLeft  int       `json:"days_left"`
	Issuer    string    `json:"issuer"`
	IsValid   bool      `json:"is_valid"`
	Error     string    `json:"error,omitempty"`
}

// Check dials hostOrURL on port 443 and reports its leaf certificate.
// hostOrURL may be "https://example.com" or "example.com".
func Check(ctx context.Context, hostOrURL string) CertInfo {
	host := Host(hostOrURL)
	if host == "" {
		return CertInfo{Host: hostOrURL, Error: "invalid host"}
	}
	if isLocalhost(host) {
		return CertInfo{Host: host, IsValid: true, Error: "localhost - no TLS"}
	}
	return checkAddr(ctx, host, net.JoinHostPort(host, "443"), nil)
}

func checkAddr(ctx context.Context, host, addr string, cfg *tls.Config) CertInfo {
	info := CertInfo{Host: host}

	if cfg == nil {
		cfg = &tls.Config{}
	}
	cfg.ServerName = host

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	d := tls.Dialer{Config: cfg}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		info.Error = fmt.Sprintf("connection failed: %v", err)
		return info
	}
	defer conn.Close()

	certs := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(certs) == 0 {
		info.Error = "no certificates found"
		return info
	}

	cert := certs[0]
	now := time.Now()
	info.ExpiresAt = cert.NotAfter
	info.DaysLeft = int(cert.NotAfter.Sub(now).Hours() / 24)
	info.Issuer = cert.Issuer.CommonName
	info.IsValid = now.Before(cert.NotAfter) && now.After(cert.NotBefore)
	return info
}

// Host returns the bare hostname of a URL or host[:port] string.
func Host(hostOrURL string) string {
	if strings.HasPrefix(hostOrURL, "http://") || strings.HasPrefix(hostOrURL, "https://") {
		u, err := url.Parse(hostOrURL)
		if err != nil {
			return ""
		}
		return u.Hostname()
	}
	if h, _, err := net.SplitHostPort(hostOrURL); err == nil {
		return h
	}
	return hostOrURL
}

func isLocalhost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
