// Package classify decides whether a store URL is an acceptable price source.
package classify

import (
	"net/url"
	"strings"
)

type Verdict string

const (
	VerdictOK      Verdict = "ok"
	VerdictBlocked Verdict = "blocked"
	VerdictForeign Verdict = "foreign"
	VerdictListing Verdict = "listing_page"
)

// Config holds the domain sets and URL patterns the classifier matches against.
type Config struct {
	// BlockedDomains match by substring: "leilao" blocks every auction domain.
	BlockedDomains []string
	// AllowedForeignDomains are manufacturer sites without a .br domain that
	// still sell locally and are acceptable sources.
	AllowedForeignDomains []string
	// ComparatorDomains are price-comparison aggregators, rejected regardless
	// of path.
	ComparatorDomains []string
	// ListingPathPatterns match by substring against path+query and mark
	// search/category/listing pages that carry many prices, none authoritative.
	ListingPathPatterns []string
}

type Classifier struct {
	blocked     []string
	foreignOK   map[string]struct{}
	comparators map[string]struct{}
	listing     []string
}

func New(cfg Config) *Classifier {
	c := &Classifier{
		blocked:     make([]string, 0, len(cfg.BlockedDomains)),
		foreignOK:   make(map[string]struct{}, len(cfg.AllowedForeignDomains)),
		comparators: make(map[string]struct{}, len(cfg.ComparatorDomains)),
		listing:     make([]string, 0, len(cfg.ListingPathPatterns)),
	}
	for _, d := range cfg.BlockedDomains {
		if d = normalizeEntry(d); d != "" {
			c.blocked = append(c.blocked, d)
		}
	}
	for _, d := range cfg.AllowedForeignDomains {
		if d = normalizeEntry(d); d != "" {
			c.foreignOK[d] = struct{}{}
		}
	}
	for _, d := range cfg.ComparatorDomains {
		if d = normalizeEntry(d); d != "" {
			c.comparators[d] = struct{}{}
		}
	}
	for _, p := range cfg.ListingPathPatterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			c.listing = append(c.listing, p)
		}
	}
	return c
}

// Classify is pure and total: any syntactically valid URL or bare domain gets
// a verdict, never an error. Precedence is blocked > foreign > listing — the
// same order the validation pipeline reports failures in.
func (c *Classifier) Classify(rawURL string) Verdict {
	domain := c.Domain(rawURL)
	if domain == "" {
		// Unparseable input can't be verified as a local store.
		return VerdictBlocked
	}

	if c.isBlocked(domain) {
		return VerdictBlocked
	}
	if _, comparator := c.comparators[domain]; comparator {
		return VerdictListing
	}
	if !strings.HasSuffix(domain, ".br") {
		if _, ok := c.foreignOK[domain]; !ok {
			return VerdictForeign
		}
	}
	if c.isListingPath(rawURL) {
		return VerdictListing
	}
	return VerdictOK
}

// IsBlockedSource matches a bare source label from the search index (which is
// often a store name or domain fragment) against the blocked set.
func (c *Classifier) IsBlockedSource(label string) bool {
	return c.isBlocked(normalizeEntry(label))
}

// Domain extracts and normalizes the host: lowercase, no www. prefix, no port.
// Returns "" if no host can be recovered.
func (c *Classifier) Domain(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return normalizeEntry(u.Hostname())
}

func (c *Classifier) isBlocked(domain string) bool {
	if domain == "" {
		return false
	}
	for _, b := range c.blocked {
		if strings.Contains(domain, b) {
			return true
		}
	}
	return false
}

func (c *Classifier) isListingPath(rawURL string) bool {
	s := strings.ToLower(rawURL)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	// Drop the host so patterns like "/s?" only match path+query.
	if i := strings.IndexAny(s, "/?"); i >= 0 {
		s = s[i:]
	} else {
		return false
	}
	for _, p := range c.listing {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func normalizeEntry(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "www.")
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	return s
}
