package duckduckgo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	searchURL = "https://html.duckduckgo.com/html/"
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/117.0.0.0 Safari/537.36"
)

// Result is one parsed search hit. DuckDuckGo's HTML results never carry a
// publication date.
type Result struct {
	Title   string
	Snippet string
	URL     string
}

// Client scrapes DuckDuckGo's HTML results page. It needs no API key, which
// makes it the default provider when nothing else is configured.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a DuckDuckGo HTML search client.
func NewClient(timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{endpoint: searchURL, httpClient: &http.Client{Timeout: timeout}}
}

// Search posts the query to the HTML endpoint and parses the top results.
func (c *Client) Search(ctx context.Context, query string, max int) ([]Result, error) {
	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse HTML failed: %w", err)
	}

	var out []Result
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		a := s.Find("a.result__a").First()
		if a.Length() == 0 {
			a = s.Find("a").First()
		}
		if a.Length() == 0 {
			return true
		}
		href, _ := a.Attr("href")
		href = resolveRedirect(href)
		if href == "" {
			return true
		}
		out = append(out, Result{
			Title:   strings.TrimSpace(a.Text()),
			Snippet: strings.TrimSpace(s.Find(".result__snippet").Text()),
			URL:     href,
		})
		return max <= 0 || len(out) < max
	})
	return out, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links to the real
// destination URL.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if !strings.HasSuffix(u.Host, "duckduckgo.com") && u.Host != "" {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
