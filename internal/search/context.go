package search

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	snippetPolicyOnce sync.Once
	snippetPolicy     *bluemonday.Policy
)

// cleanSnippet strips any HTML the search provider left in a snippet and
// collapses whitespace to a single line.
func cleanSnippet(s string) string {
	snippetPolicyOnce.Do(func() {
		snippetPolicy = bluemonday.StrictPolicy()
	})
	s = snippetPolicy.Sanitize(s)
	return strings.Join(strings.Fields(s), " ")
}

// BuildContext assembles the bounded context blob fed to the model. Results
// are assumed already ranked (highest relevance first): when the budget is
// exceeded, whole entries are dropped from the tail before any hard
// truncation. Zero results produce an empty blob.
func BuildContext(results []Result, maxChars int) string {
	if len(results) == 0 {
		return ""
	}
	if maxChars <= 0 {
		maxChars = 4000
	}

	parts := make([]string, 0, len(results)+1)
	parts = append(parts, "Search results:")
	for _, r := range results {
		var b strings.Builder
		if t := strings.TrimSpace(r.Title); t != "" {
			b.WriteString("Title: " + t + "\n")
		}
		if s := cleanSnippet(r.Snippet); s != "" {
			b.WriteString("Snippet: " + s + "\n")
		}
		if u := strings.TrimSpace(r.URL); u != "" {
			b.WriteString("URL: " + u + "\n")
		}
		if d := strings.TrimSpace(r.PublishedAt); d != "" {
			b.WriteString("Date: " + d + "\n")
		}
		entry := strings.TrimSpace(b.String())
		if entry != "" {
			parts = append(parts, entry)
		}
	}

	// Drop lowest-ranked entries until the blob fits.
	for len(parts) > 2 {
		if blob := strings.Join(parts, "\n\n"); len(blob) <= maxChars {
			return blob
		}
		parts = parts[:len(parts)-1]
	}
	if len(parts) == 1 {
		return ""
	}

	blob := strings.Join(parts, "\n\n")
	if len(blob) <= maxChars {
		return blob
	}
	if maxChars <= 3 {
		return blob[:maxChars]
	}
	return blob[:maxChars-3] + "..."
}
