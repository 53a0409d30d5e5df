package probe

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticLookup(ips ...string) LookupIPFunc {
	return func(ctx context.Context, network, host string) ([]net.IP, error) {
		var out []net.IP
		for _, s := range ips {
			ip := net.ParseIP(s)
			if network == "ip4" && ip.To4() != nil {
				out = append(out, ip)
			}
			if network == "ip6" && ip.To4() == nil {
				out = append(out, ip)
			}
		}
		if len(out) == 0 {
			return nil, nxdomain(host)
		}
		return out, nil
	}
}

func TestProbe_InvalidInputBeforeAnyIO(t *testing.T) {
	lookupCalled := false
	p := New(Config{Lookup: func(ctx context.Context, network, host string) ([]net.IP, error) {
		lookupCalled = true
		return nil, nxdomain(host)
	}}, nil)

	_, err := p.Probe(context.Background(), "http://127.0.0.1/admin")
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.False(t, lookupCalled, "literal private hosts must be rejected before DNS")
}

func TestProbe_NoDNSRecordsIsNotFound(t *testing.T) {
	p := New(Config{Lookup: staticLookup()}, nil)

	res, err := p.Probe(context.Background(), "https://no-such-host.example")
	require.NoError(t, err, "zero DNS records is a valid terminal outcome, not an error")
	assert.False(t, res.Exists)
	assert.False(t, res.Reachable)
	assert.Zero(t, res.Confidence)
	assert.Zero(t, res.StatusCode)
	assert.Empty(t, res.FinalURL)
	assert.False(t, res.SuspectedParked)
	assert.False(t, res.CheckedAt.IsZero())
}

func TestProbe_RebindingBlockedAfterResolution(t *testing.T) {
	// Literal-host validation passes (the name looks public) but the DNS
	// answer points inside the network. The probe must fail closed with the
	// post-resolution kind, and no fetch may be attempted.
	p := New(Config{Lookup: staticLookup("192.168.0.10")}, nil)

	_, err := p.Probe(context.Background(), "https://innocent-looking.example")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSSRFBlocked)
	assert.NotErrorIs(t, err, ErrInvalidInput, "rebinding must surface as a distinct condition")
}

func TestProbe_MixedResolutionFailsClosed(t *testing.T) {
	// One public and one private address: refuse the whole probe.
	p := New(Config{Lookup: staticLookup("93.184.216.34", "10.0.0.8")}, nil)

	_, err := p.Probe(context.Background(), "https://half-private.example")
	assert.ErrorIs(t, err, ErrSSRFBlocked)
}
