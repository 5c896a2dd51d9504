package search

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// inputFile is the boundary schema for pre-structured search input. Either a
// query or a non-empty results list must be present; untyped data never
// crosses into the pipeline.
type inputFile struct {
	Query   string      `json:"query"`
	Results []inputItem `json:"results"`
}

type inputItem struct {
	Title         string `json:"title"`
	Headline      string `json:"headline"`
	Snippet       string `json:"snippet"`
	Content       string `json:"content"`
	Summary       string `json:"summary"`
	RawContent    string `json:"raw_content"`
	URL           string `json:"url"`
	Link          string `json:"link"`
	PublishedDate string `json:"published_date"`
}

// LoadInputFile reads a pre-structured JSON result file and maps it to the
// internal Result shape. The returned query may be empty when the file only
// carries results.
func LoadInputFile(path string, max int) ([]Result, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("input JSON file: %w", err)
	}

	var in inputFile
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, "", fmt.Errorf("input JSON file %s: %w", path, err)
	}
	if strings.TrimSpace(in.Query) == "" && len(in.Results) == 0 {
		return nil, "", fmt.Errorf("input JSON file %s: needs a query or a results list", path)
	}

	out := make([]Result, 0, len(in.Results))
	for _, item := range in.Results {
		if max > 0 && len(out) >= max {
			break
		}
		r := Result{
			Title:       strings.TrimSpace(firstNonEmpty(item.Title, item.Headline)),
			Snippet:     strings.TrimSpace(firstNonEmpty(item.Snippet, item.Content, item.Summary, item.RawContent)),
			URL:         strings.TrimSpace(firstNonEmpty(item.URL, item.Link)),
			PublishedAt: strings.TrimSpace(item.PublishedDate),
		}
		if r.URL == "" {
			continue
		}
		out = append(out, r)
	}
	return out, strings.TrimSpace(in.Query), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
