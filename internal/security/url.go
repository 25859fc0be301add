package security

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
)

// metadataHosts is the cloud-metadata-endpoint blocklist, always checked
// regardless of AllowPrivate.
var metadataHosts = map[string]bool{
	"169.254.169.254": true,
	"metadata.google.internal": true,
	"metadata.internal": true,
}

var privateCIDRsV4 = mustParseCIDRs(
	"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16",
	"127.0.0.0/8", "169.254.0.0/16", "0.0.0.0/8",
)

var privateCIDRsV6 = mustParseCIDRs("::1/128", "fe80::/10", "fc00::/7")

func mustParseCIDRs(cidrs...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		out = append(out, n)
	}
	return out
}

// Resolver abstracts DNS resolution so tests can mock it without a real
// network lookup").
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

type netResolver struct{}

func (netResolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	return net.DefaultResolver.LookupIPAddr(ctx, host)
}

// DefaultResolver is the real-network DNS resolver.
var DefaultResolver Resolver = netResolver{}

// UrlPolicy implements 8-step SSRF guard for web_fetch.
type UrlPolicy struct {
	Enabled bool
	AllowedDomains []string
	BlockedDomains []string
	AllowPrivate bool
	Resolver Resolver
}

// NewUrlPolicy builds a UrlPolicy with the real DNS resolver wired in.
func NewUrlPolicy(enabled bool, allowedDomains, blockedDomains []string, allowPrivate bool) *UrlPolicy {
	return &UrlPolicy{
		Enabled: enabled,
		AllowedDomains: allowedDomains,
		BlockedDomains: blockedDomains,
		AllowPrivate: allowPrivate,
		Resolver: DefaultResolver,
	}
}

// Validate runs the 8-step check against rawURL. It is also called for
// every redirect hop by the tool that owns the HTTP client: the tool's
// http.Client.CheckRedirect must call Validate(ctx, req.URL.String())
// before following each hop.
func (p *UrlPolicy) Validate(ctx context.Context, rawURL string) error {
	// 1. If disabled, permit.
	if !p.Enabled {
		return nil
	}

	// 2. Parse URL; reject schemes outside {http, https}.
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q not permitted", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("missing hostname")
	}
	hostLower := strings.ToLower(host)

	// 3. Host in allowed_domains (exact or wildcard) → permit.
	if matchesDomainList(hostLower, p.AllowedDomains) {
		return nil
	}

	// 4. Host in blocked_domains → reject.
	if matchesDomainList(hostLower, p.BlockedDomains) {
		return fmt.Errorf("host %q is blocked", host)
	}

	// 5. Metadata-hostname set → reject.
	if metadataHosts[hostLower] {
		return fmt.Errorf("host %q is a cloud metadata endpoint", host)
	}

	// 6. Resolve and check CIDR membership, unless private IPs are allowed.
	if p.AllowPrivate {
		return nil
	}

	resolver := p.Resolver
	if resolver == nil {
		resolver = DefaultResolver
	}
	addrs, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		// 7. DNS failure → permit (downstream HTTP will fail naturally); warn.
		slog.Warn("web_fetch DNS resolution failed, permitting by default", "host", host, "error", err)
		return nil
	}
	for _, addr := range addrs {
		if isPrivateIP(addr.IP) {
			return fmt.Errorf("host %q resolves to a private/internal address %s", host, addr.IP)
		}
	}
	return nil
}

func matchesDomainList(host string, list []string) bool {
	for _, pattern := range list {
		pattern = strings.ToLower(pattern)
		if pattern == host {
			return true
		}
		if strings.HasPrefix(pattern, "*.") {
			suffix := pattern[1:] // ".example.com"
			if strings.HasSuffix(host, suffix) && host != suffix[1:] {
				return true
			}
		}
	}
	return false
}

// isPrivateIP checks v4 and v6 private/internal CIDR membership, including
// re-checking IPv4-mapped IPv6 addresses against the IPv4 set.
func isPrivateIP(ip net.IP) bool {
	if v4 := ip.To4(); v4 != nil {
		for _, n := range privateCIDRsV4 {
			if n.Contains(v4) {
				return true
			}
		}
		return false
	}
	for _, n := range privateCIDRsV6 {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
