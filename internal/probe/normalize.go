package probe

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"

	"sitegauge/internal/domain"
)

// Address ranges that must never be fetched. The same table is applied twice:
// here against literal IP hosts, and again in the resolver against every
// address DNS returns.
var privateRanges []*net.IPNet

func init() {
	cidrs := []string{
		"10.0.0.0/8",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"0.0.0.0/8",
		"::1/128",
		"fc00::/7",
		"fe80::/10",
	}
	for _, cidr := range cidrs {
		_, network, _ := net.ParseCIDR(cidr)
		privateRanges = append(privateRanges, network)
	}
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsUnspecified() {
		return true
	}
	for _, network := range privateRanges {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// Normalize validates and canonicalizes a raw, untrusted URL. No network I/O
// happens here; a NormalizedURL is safe to resolve and fetch but not yet
// known to be publicly routable.
func Normalize(raw string) (domain.NormalizedURL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.NormalizedURL{}, fmt.Errorf("%w: empty url", ErrInvalidInput)
	}

	// Default to https when the user typed a bare host.
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return domain.NormalizedURL{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !u.IsAbs() {
		return domain.NormalizedURL{}, fmt.Errorf("%w: url must be absolute", ErrInvalidInput)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return domain.NormalizedURL{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidInput, u.Scheme)
	}
	if u.User != nil {
		return domain.NormalizedURL{}, fmt.Errorf("%w: embedded credentials are not allowed", ErrInvalidInput)
	}

	host, err := normalizeHost(u.Hostname())
	if err != nil {
		return domain.NormalizedURL{}, err
	}

	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return domain.NormalizedURL{}, fmt.Errorf("%w: localhost is not allowed", ErrInvalidInput)
	}

	// Literal IP hosts are checked right away; hostnames are checked again
	// after resolution.
	if ip := net.ParseIP(host); ip != nil && isPrivateIP(ip) {
		return domain.NormalizedURL{}, fmt.Errorf("%w: private address %s", ErrInvalidInput, ip)
	}

	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}

	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}

	return domain.NormalizedURL{
		Scheme: scheme,
		Host:   host,
		Port:   port,
		Path:   p,
		Query:  u.RawQuery,
	}, nil
}

func normalizeHost(host string) (string, error) {
	host = strings.TrimSuffix(strings.TrimSpace(host), ".")
	if host == "" {
		return "", fmt.Errorf("%w: url has no hostname", ErrInvalidInput)
	}

	if isASCII(host) {
		return strings.ToLower(host), nil
	}

	// Non-ASCII hosts go through IDNA so DNS and TLS see the punycode form.
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("%w: idna: %v", ErrInvalidInput, err)
	}
	return strings.ToLower(ascii), nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
