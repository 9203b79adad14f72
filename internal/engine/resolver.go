package engine

import (
	"context"
	"net"
	"time"

	"github.com/miekg/dns"
)

const (
	defaultResolvConf    = "/etc/resolv.conf"
	defaultDNSServer     = "1.1.1.1:53"
	reverseLookupTimeout = 2 * time.Second
)

// Resolver performs bounded reverse-DNS lookups used to fill in hostnames
// when nmap reports none.
type Resolver struct {
	client *dns.Client
	server string
}

// NewResolver creates a resolver using the system's configured nameserver,
// falling back to a public one when resolv.conf is unreadable.
func NewResolver() *Resolver {
	server := defaultDNSServer
	if conf, err := dns.ClientConfigFromFile(defaultResolvConf); err == nil && len(conf.Servers) > 0 {
		server = net.JoinHostPort(conf.Servers[0], conf.Port)
	}
	return &Resolver{
		client: &dns.Client{Timeout: reverseLookupTimeout},
		server: server,
	}
}

// ReverseLookup returns the PTR name for addr, or "" when the lookup fails
// for any reason. Failures are silent; hostnames are opportunistic.
func (r *Resolver) ReverseLookup(ctx context.Context, addr string) string {
	rev, err := dns.ReverseAddr(addr)
	if err != nil {
		return ""
	}

	msg := new(dns.Msg)
	msg.SetQuestion(rev, dns.TypePTR)

	resp, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil || resp == nil || resp.Rcode != dns.RcodeSuccess {
		return ""
	}

	for _, rr := range resp.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return trimTrailingDot(ptr.Ptr)
		}
	}
	return ""
}

func trimTrailingDot(name string) string {
	if len(name) > 0 && name[len(name)-1] == '.' {
		return name[:len(name)-1]
	}
	return name
}
