package security

import (
	"context"
	"net"
	"testing"
)

type fakeResolver struct {
	ips map[string][]net.IPAddr
}

func (f fakeResolver) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	return f.ips[host], nil
}

func TestUrlPolicy_DisabledPermitsEverything(t *testing.T) {
	p := NewUrlPolicy(false, nil, nil, false)
	if err := p.Validate(context.Background(), "http://169.254.169.254/latest/meta-data/"); err != nil {
		t.Errorf("disabled policy should permit everything, got %v", err)
	}
}

func TestUrlPolicy_BlocksMetadataHost(t *testing.T) {
	p := NewUrlPolicy(true, nil, nil, false)
	err := p.Validate(context.Background(), "http://169.254.169.254/latest/meta-data/")
	if err == nil {
		t.Error("expected metadata host to be blocked")
	}
}

func TestUrlPolicy_RejectsNonHTTPScheme(t *testing.T) {
	p := NewUrlPolicy(true, nil, nil, false)
	if err := p.Validate(context.Background(), "file:///etc/passwd"); err == nil {
		t.Error("expected file:// scheme to be rejected")
	}
}

func TestUrlPolicy_BlockedDomainsList(t *testing.T) {
	p := NewUrlPolicy(true, nil, []string{"evil.example.com"}, true)
	if err := p.Validate(context.Background(), "https://evil.example.com/x"); err == nil {
		t.Error("expected blocked domain to be rejected")
	}
}

func TestUrlPolicy_AllowedDomainsBypassesPrivateCheck(t *testing.T) {
	p := NewUrlPolicy(true, []string{"internal.example.com"}, nil, false)
	p.Resolver = fakeResolver{ips: map[string][]net.IPAddr{
		"internal.example.com": {{IP: net.ParseIP("10.0.0.5")}},
	}}
	if err := p.Validate(context.Background(), "https://internal.example.com/x"); err != nil {
		t.Errorf("explicitly allowed domain should bypass private-IP check: %v", err)
	}
}

func TestUrlPolicy_RejectsPrivateIP(t *testing.T) {
	p := NewUrlPolicy(true, nil, nil, false)
	p.Resolver = fakeResolver{ips: map[string][]net.IPAddr{
		"internal.corp": {{IP: net.ParseIP("10.1.2.3")}},
	}}
	if err := p.Validate(context.Background(), "https://internal.corp/x"); err == nil {
		t.Error("expected private IP resolution to be rejected")
	}
}

func TestUrlPolicy_AllowPrivateSkipsDNSCheck(t *testing.T) {
	p := NewUrlPolicy(true, nil, nil, true)
	p.Resolver = fakeResolver{ips: map[string][]net.IPAddr{
		"internal.corp": {{IP: net.ParseIP("10.1.2.3")}},
	}}
	if err := p.Validate(context.Background(), "https://internal.corp/x"); err != nil {
		t.Errorf("allow_private should skip the resolved-IP check: %v", err)
	}
}

func TestUrlPolicy_PermitsPublicHost(t *testing.T) {
	p := NewUrlPolicy(true, nil, nil, false)
	p.Resolver = fakeResolver{ips: map[string][]net.IPAddr{
		"example.com": {{IP: net.ParseIP("93.184.216.34")}},
	}}
	if err := p.Validate(context.Background(), "https://example.com/x"); err != nil {
		t.Errorf("public host should be permitted: %v", err)
	}
}

func TestUrlPolicy_WildcardAllowedDomain(t *testing.T) {
	p := NewUrlPolicy(true, []string{"*.example.com"}, nil, false)
	if err := p.Validate(context.Background(), "https://api.example.com/x"); err != nil {
		t.Errorf("wildcard allowed domain should match subdomain: %v", err)
	}
}
