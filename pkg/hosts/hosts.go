// Package hosts maps download URLs to known file-hosting providers.
package hosts

import (
	"net/url"
	"strings"

	"github.com/ps4dex/release-scraper/pkg/config"
)

// Identifier resolves a URL to a configured provider id. It is immutable after
// construction and safe for concurrent use.
type Identifier struct {
	hosts []config.HostConfig
}

// NewIdentifier builds an Identifier over hosts, matched in order.
func NewIdentifier(hosts []config.HostConfig) *Identifier {
	cp := make([]config.HostConfig, len(hosts))
	copy(cp, hosts)
	return &Identifier{hosts: cp}
}

// Identify returns the provider id for href, or "" when the host is not recognized.
// A domain matches itself and any of its subdomains.
func (i *Identifier) Identify(href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	hostname := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if hostname == "" {
		return ""
	}
	for _, h := range i.hosts {
		for _, d := range h.Domains {
			if hostname == d || strings.HasSuffix(hostname, "."+d) {
				return h.ID
			}
		}
	}
	return ""
}

// IDs returns the provider ids in configured order.
func (i *Identifier) IDs() []string {
	ids := make([]string, 0, len(i.hosts))
	for _, h := range i.hosts {
		ids = append(ids, h.ID)
	}
	return ids
}

// NameTokens returns lowercase words that name a provider: ids, labels and
// domain stems ("1fichier" from "1fichier.com"), plus extra.
func (i *Identifier) NameTokens(extra []string) []string {
	seen := make(map[string]bool)
	var tokens []string
	add := func(t string) {
		t = strings.ToLower(strings.TrimSpace(t))
		if len(t) < 3 || seen[t] {
			return
		}
		seen[t] = true
		tokens = append(tokens, t)
	}
	for _, h := range i.hosts {
		add(h.ID)
		add(h.Label)
		for _, d := range h.Domains {
			if dot := strings.Index(d, "."); dot > 0 {
				add(d[:dot])
			}
		}
	}
	for _, t := range extra {
		add(t)
	}
	return tokens
}
