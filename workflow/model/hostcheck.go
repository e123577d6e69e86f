package model

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
)

// privateCIDRs are the networks an ollama endpoint may live on without being
// listed explicitly.
var privateCIDRs = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"192.168.0.0/16",
}

// AllowedOllamaHost reports whether raw may be used as an ollama endpoint.
//
// Allowed: localhost and loopback addresses, hosts on the 10.0.0.0/8 and
// 192.168.0.0/16 private networks, and anything matched by the
// ALLOWED_OLLAMA_HOSTS environment variable, a comma separated list of
// hostnames and CIDR ranges. Everything else is rejected so a workflow cannot
// turn the engine into a proxy to arbitrary endpoints.
func AllowedOllamaHost(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid ollama host %q: %w", raw, err)
	}
	hostname := u.Hostname()
	if hostname == "" {
		return fmt.Errorf("invalid ollama host %q: no hostname", raw)
	}

	if hostname == "localhost" {
		return nil
	}
	ip := net.ParseIP(hostname)
	for _, allowed := range strings.Split(os.Getenv("ALLOWED_OLLAMA_HOSTS"), ",") {
		allowed = strings.TrimSpace(allowed)
		if allowed == "" {
			continue
		}
		if allowed == hostname {
			return nil
		}
		if ip != nil && strings.Contains(allowed, "/") {
			if _, network, err := net.ParseCIDR(allowed); err == nil && network.Contains(ip) {
				return nil
			}
		}
	}
	if ip != nil {
		for _, cidr := range privateCIDRs {
			_, network, err := net.ParseCIDR(cidr)
			if err != nil {
				continue
			}
			if network.Contains(ip) {
				return nil
			}
		}
	}
	return fmt.Errorf("ollama host %q is not on a private network and not in ALLOWED_OLLAMA_HOSTS", hostname)
}
