package search

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mmcdole/gofeed"
	"gopkg.in/yaml.v3"
)

// feedSource is one curated source entry in the feeds YAML file.
type feedSource struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type feedsFile struct {
	Feeds []feedSource `yaml:"feeds"`
}

// FeedGatherer pulls recent entries from a curated RSS/Atom source list.
// It is the "static curated sources" strategy: no general web search, only
// feeds an operator has vetted.
type FeedGatherer struct {
	path      string
	freshness time.Duration
	parser    *gofeed.Parser
}

// NewFeedGatherer creates a gatherer reading its source list from path.
func NewFeedGatherer(path string, freshness, timeout time.Duration) *FeedGatherer {
	parser := gofeed.NewParser()
	parser.UserAgent = "openscience-digest/1.0"
	if timeout > 0 {
		parser.Client = &http.Client{Timeout: timeout}
	}
	if freshness <= 0 {
		freshness = 48 * time.Hour
	}
	return &FeedGatherer{path: path, freshness: freshness, parser: parser}
}

// Gather fetches every configured feed and keeps entries inside the
// freshness window. A single unreachable feed is skipped, never fatal.
func (g *FeedGatherer) Gather(ctx context.Context, query string, max int) ([]Result, error) {
	sources, err := g.loadSources()
	if err != nil {
		return nil, err
	}

	cutoff := freshnessCutoff(time.Now(), g.freshness)
	var out []Result
	for _, src := range sources {
		feed, err := g.parser.ParseURLWithContext(src.URL, ctx)
		if err != nil {
			continue
		}
		for _, item := range feed.Items {
			if max > 0 && len(out) >= max {
				return out, nil
			}
			if item.Link == "" {
				continue
			}
			published := ""
			if item.PublishedParsed != nil {
				if item.PublishedParsed.Before(cutoff) {
					continue
				}
				published = item.PublishedParsed.Format("2006-01-02")
			}
			out = append(out, Result{
				Title:       item.Title,
				Snippet:     item.Description,
				URL:         item.Link,
				PublishedAt: published,
			})
		}
	}
	return out, nil
}

func (g *FeedGatherer) loadSources() ([]feedSource, error) {
	raw, err := os.ReadFile(g.path)
	if err != nil {
		return nil, fmt.Errorf("feeds file: %w", err)
	}
	var f feedsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("feeds file %s: %w", g.path, err)
	}
	if len(f.Feeds) == 0 {
		return nil, fmt.Errorf("feeds file %s lists no feeds", g.path)
	}
	return f.Feeds, nil
}
