// Package security keeps outbound webhook requests away from internal
// infrastructure: loopback, link-local (cloud metadata), private and
// carrier-grade NAT ranges are refused at dial time and on every redirect.
package security

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"time"
)

// dnsTimeout is the maximum time allowed for DNS resolution.
const dnsTimeout = 500 * time.Millisecond

var (
	ErrSSRFBlocked          = errors.New("ssrf: request to blocked IP range")
	ErrSSRFDNSTimeout       = errors.New("ssrf: DNS resolution timeout")
	ErrSSRFTooManyRedirects = errors.New("ssrf: too many redirects")
	ErrSSRFDNSFailed        = errors.New("ssrf: DNS resolution failed")
)

// BlockedPrefixes lists the destination ranges outbound webhooks may not reach.
var BlockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// IsBlocked reports whether ip falls in a blocked range. IPv4-mapped IPv6
// addresses are checked as IPv4.
func IsBlocked(ip net.IP) bool {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return true
	}
	addr = addr.Unmap()
	if addr.IsUnspecified() {
		return true
	}
	for _, p := range BlockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// IsSSRFError reports whether err was produced by the guard.
func IsSSRFError(err error) bool {
	return errors.Is(err, ErrSSRFBlocked) ||
		errors.Is(err, ErrSSRFDNSTimeout) ||
		errors.Is(err, ErrSSRFTooManyRedirects) ||
		errors.Is(err, ErrSSRFDNSFailed)
}

// Resolver abstracts DNS resolution for testability.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Guard validates hosts against BlockedPrefixes.
type Guard struct {
	Resolver Resolver
}

// NewGuard returns a Guard using resolver, or net.DefaultResolver when nil.
func NewGuard(resolver Resolver) *Guard {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &Guard{Resolver: resolver}
}

// resolve returns the addresses of host after checking every one of them.
// All addresses are validated before any is used so a DNS answer mixing a
// public and a private address is refused.
func (g *Guard) resolve(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if IsBlocked(ip) {
			return nil, fmt.Errorf("%w: %s", ErrSSRFBlocked, ip)
		}
		return []net.IP{ip}, nil
	}

	dnsCtx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()

	addrs, err := g.Resolver.LookupIPAddr(dnsCtx, host)
	if err != nil {
		if dnsCtx.Err() != nil {
			return nil, fmt.Errorf("%w: host %q", ErrSSRFDNSTimeout, host)
		}
		return nil, fmt.Errorf("%w: host %q: %v", ErrSSRFDNSFailed, host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: host %q resolved to no addresses", ErrSSRFDNSFailed, host)
	}

	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		if IsBlocked(a.IP) {
			return nil, fmt.Errorf("%w: %s (resolved from %s)", ErrSSRFBlocked, a.IP, host)
		}
		ips = append(ips, a.IP)
	}
	return ips, nil
}

// DialContext resolves, validates and dials the first safe address. It is
// installed as the transport's dialer so the connected IP is the checked one.
func (g *Guard) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("ssrf: invalid address %q: %w", addr, err)
	}
	ips, err := g.resolve(ctx, host)
	if err != nil {
		return nil, err
	}
	var d net.Dialer
	return d.DialContext(ctx, network, net.JoinHostPort(ips[0].String(), port))
}

// CheckRedirect returns an http.Client CheckRedirect function enforcing the
// redirect limit and validating each redirect target.
func (g *Guard) CheckRedirect(maxRedirects int) func(req *http.Request, via []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("%w: limit is %d", ErrSSRFTooManyRedirects, maxRedirects)
		}
		host := req.URL.Hostname()
		if host == "" {
			return fmt.Errorf("%w: redirect URL has no host", ErrSSRFBlocked)
		}
		_, err := g.resolve(req.Context(), host)
		return err
	}
}

// ValidateURL checks a destination ahead of delivery, used when an
// organization configuration is pushed.
func (g *Guard) ValidateURL(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return fmt.Errorf("%w: unable to extract host from URL", ErrSSRFBlocked)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrSSRFBlocked, u.Scheme)
	}
	_, err = g.resolve(ctx, u.Hostname())
	return err
}

// NewSafeHTTPClient builds the client used for webhook delivery. With
// allowPrivate set (local development only) the guard is bypassed but the
// redirect limit still applies.
func NewSafeHTTPClient(timeout time.Duration, maxRedirects int, allowPrivate bool) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.Proxy = nil

	client := &http.Client{Transport: base, Timeout: timeout}
	if allowPrivate {
		client.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("%w: limit is %d", ErrSSRFTooManyRedirects, maxRedirects)
			}
			return nil
		}
		return client
	}

	guard := NewGuard(nil)
	base.DialContext = guard.DialContext
	client.CheckRedirect = guard.CheckRedirect(maxRedirects)
	return client
}
