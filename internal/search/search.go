package search

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openscience/digest/config"
	"github.com/openscience/digest/internal/search/duckduckgo"
	"github.com/openscience/digest/internal/search/tavily"
)

// Result is one external finding. PublishedAt stays empty when the source did
// not supply a date; downstream code must treat that as "unknown", never as
// an invitation to guess.
type Result struct {
	Title       string
	Snippet     string
	URL         string
	PublishedAt string
}

// Gatherer produces candidate source material for one run.
type Gatherer interface {
	Gather(ctx context.Context, query string, max int) ([]Result, error)
}

// Provider identifies a gathering strategy.
type Provider string

const (
	TavilyProvider     Provider = "tavily"
	DuckDuckGoProvider Provider = "duckduckgo"
	FeedsProvider      Provider = "feeds"
	NoneProvider       Provider = "none"
)

var ErrUnsupportedProvider = errors.New("unsupported search provider")

// NewGatherer creates the configured gathering strategy.
func NewGatherer(cfg config.SearchConfig) (Gatherer, error) {
	switch Provider(cfg.Provider) {
	case TavilyProvider:
		return tavilyGatherer{client: tavily.NewClient(cfg.Tavily.APIKey, cfg.Tavily.Endpoint, cfg.Tavily.CABundle, cfg.Tavily.Depth, cfg.Timeout)}, nil
	case DuckDuckGoProvider:
		return duckduckgoGatherer{client: duckduckgo.NewClient(cfg.Timeout)}, nil
	case FeedsProvider:
		return NewFeedGatherer(cfg.FeedsFile, cfg.Freshness, cfg.Timeout), nil
	case NoneProvider, "":
		return noneGatherer{}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}

type tavilyGatherer struct{ client *tavily.Client }

func (g tavilyGatherer) Gather(ctx context.Context, query string, max int) ([]Result, error) {
	items, err := g.client.Search(ctx, query, max)
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(items))
	for _, it := range items {
		out = append(out, Result{Title: it.Title, Snippet: it.Snippet, URL: it.URL, PublishedAt: it.PublishedAt})
	}
	return out, nil
}

type duckduckgoGatherer struct{ client *duckduckgo.Client }

func (g duckduckgoGatherer) Gather(ctx context.Context, query string, max int) ([]Result, error) {
	items, err := g.client.Search(ctx, query, max)
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(items))
	for _, it := range items {
		out = append(out, Result{Title: it.Title, Snippet: it.Snippet, URL: it.URL})
	}
	return out, nil
}

// noneGatherer skips gathering entirely: the prompt alone drives the model.
type noneGatherer struct{}

func (noneGatherer) Gather(ctx context.Context, query string, max int) ([]Result, error) {
	return nil, nil
}

// normalizeTitle reduces a title to a comparable key for same-story detection.
func normalizeTitle(title string) string {
	fields := strings.Fields(strings.ToLower(title))
	kept := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, `.,:;!?"'()[]`)
		if f != "" {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

// freshnessCutoff returns the oldest acceptable publication instant.
func freshnessCutoff(now time.Time, window time.Duration) time.Time {
	if window <= 0 {
		window = 48 * time.Hour
	}
	return now.Add(-window)
}
