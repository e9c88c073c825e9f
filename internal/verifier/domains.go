package verifier

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DomainLists holds the verifier's domain classification data. Trusted
// domains are publishers and archives where a bare 200 is sufficient
// proof of existence; paywall domains elevate confidence but always
// flag the result as paywalled.
type DomainLists struct {
	Trusted []string `yaml:"trusted"`
	Paywall []string `yaml:"paywall"`
}

// DefaultDomainLists returns the compiled-in allow-lists, used when no
// domains file is configured.
func DefaultDomainLists() DomainLists {
	return DomainLists{
		Trusted: []string{
			"archive.org",
			"gutenberg.org",
			"arxiv.org",
			"jstor.org",
			"theatlantic.com",
			"newyorker.com",
			"theparisreview.org",
			"lrb.co.uk",
			"nybooks.com",
			"aeon.co",
			"longreads.com",
			"theguardian.com",
			"smithsonianmag.com",
			"nautil.us",
			"quantamagazine.org",
			"plato.stanford.edu",
			"gutenberg.net.au",
			"marxists.org",
			"bartleby.com",
			"poetryfoundation.org",
		},
		Paywall: []string{
			"nytimes.com",
			"wsj.com",
			"ft.com",
			"economist.com",
			"washingtonpost.com",
			"bloomberg.com",
			"harpers.org",
			"foreignaffairs.com",
			"medium.com",
			"substack.com",
		},
	}
}

// LoadDomainLists reads allow-lists from a YAML file. Lists left empty
// in the file fall back to the defaults, so a file can extend just one
// of the two.
func LoadDomainLists(path string) (DomainLists, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DomainLists{}, fmt.Errorf("read domains file: %w", err)
	}

	var lists DomainLists
	if err := yaml.Unmarshal(data, &lists); err != nil {
		return DomainLists{}, fmt.Errorf("parse domains file: %w", err)
	}

	defaults := DefaultDomainLists()
	if len(lists.Trusted) == 0 {
		lists.Trusted = defaults.Trusted
	}
	if len(lists.Paywall) == 0 {
		lists.Paywall = defaults.Paywall
	}
	return lists, nil
}

// IsTrusted reports whether host belongs to a trusted domain.
func (d DomainLists) IsTrusted(host string) bool {
	return matchesDomain(host, d.Trusted)
}

// IsPaywall reports whether host belongs to a known paywalled domain.
func (d DomainLists) IsPaywall(host string) bool {
	return matchesDomain(host, d.Paywall)
}

func matchesDomain(host string, domains []string) bool {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	for _, domain := range domains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
