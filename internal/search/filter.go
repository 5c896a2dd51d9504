package search

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"
)

// FilterOptions controls result filtering for one run.
type FilterOptions struct {
	Now        time.Time
	Freshness  time.Duration
	MaxResults int
	// ProbeLinks enables the reachability check: each candidate URL is
	// fetched and run through readability extraction; unreachable pages and
	// pages yielding almost no text (paywalls, interstitials) are dropped.
	ProbeLinks   bool
	ProbeTimeout time.Duration
}

// minReadableChars is the extraction threshold below which a page is treated
// as paywalled or otherwise unusable.
const minReadableChars = 200

// Filter applies the content-quality rules: items with no URL, items whose
// explicit date is ambiguous or stale, unreachable items, and lower-authority
// duplicates of the same story are dropped. Dropping is always per-item and
// never aborts the run.
func Filter(ctx context.Context, results []Result, opts FilterOptions) []Result {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	cutoff := freshnessCutoff(now, opts.Freshness)

	kept := make([]Result, 0, len(results))
	for _, r := range results {
		if strings.TrimSpace(r.URL) == "" {
			continue
		}
		if date := strings.TrimSpace(r.PublishedAt); date != "" {
			parsed, err := dateparse.ParseAny(date)
			if err != nil {
				// Ambiguous freshness: exclude rather than guess.
				continue
			}
			if parsed.Before(cutoff) {
				continue
			}
		}
		kept = append(kept, r)
	}

	kept = dedupeByStory(kept)

	if opts.ProbeLinks {
		kept = probeReachable(ctx, kept, opts.ProbeTimeout)
	}

	if opts.MaxResults > 0 && len(kept) > opts.MaxResults {
		kept = kept[:opts.MaxResults]
	}
	return kept
}

// dedupeByStory keeps one result per normalized title, preferring the most
// authoritative source. Ties keep the earlier, higher-relevance entry.
func dedupeByStory(results []Result) []Result {
	index := make(map[string]int, len(results))
	out := make([]Result, 0, len(results))
	for _, r := range results {
		key := normalizeTitle(r.Title)
		if key == "" {
			out = append(out, r)
			continue
		}
		if at, seen := index[key]; seen {
			if domainAuthority(r.URL) > domainAuthority(out[at].URL) {
				out[at] = r
			}
			continue
		}
		index[key] = len(out)
		out = append(out, r)
	}
	return out
}

// authoritativeHosts are scholarly-infrastructure and intergovernmental
// domains treated as primary sources for open-science stories.
var authoritativeHosts = map[string]struct{}{
	"europa.eu":       {},
	"unesco.org":      {},
	"doaj.org":        {},
	"arxiv.org":       {},
	"biorxiv.org":     {},
	"crossref.org":    {},
	"orcid.org":       {},
	"coalition-s.org": {},
	"cos.io":          {},
	"nih.gov":         {},
	"nsf.gov":         {},
}

// domainAuthority scores a URL host: official institutional domains rank
// above publishers, which rank above everything else.
func domainAuthority(rawURL string) int {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return 0
	}
	host := strings.ToLower(strings.TrimPrefix(u.Host, "www."))
	for suffix := range authoritativeHosts {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return 3
		}
	}
	for _, tld := range []string{".gov", ".edu", ".int"} {
		if strings.HasSuffix(host, tld) || strings.Contains(host, tld+".") {
			return 3
		}
	}
	if strings.HasSuffix(host, ".org") {
		return 2
	}
	return 1
}

func probeReachable(ctx context.Context, results []Result, timeout time.Duration) []Result {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	kept := make([]Result, 0, len(results))
	for _, r := range results {
		if ctx.Err() != nil {
			break
		}
		article, err := readability.FromURL(r.URL, timeout)
		if err != nil {
			continue
		}
		if len(strings.TrimSpace(article.TextContent)) < minReadableChars {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}
