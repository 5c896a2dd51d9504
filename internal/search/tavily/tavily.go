package tavily

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Result is one finding returned by the Tavily API.
type Result struct {
	Title       string
	Snippet     string
	URL         string
	PublishedAt string
}

// Client calls the Tavily search API. When a request fails at the transport
// level and an alternate CA bundle is configured, the request is retried once
// through a client trusting that bundle before giving up. Corporate proxies
// that re-sign TLS are the case this exists for.
type Client struct {
	apiKey   string
	endpoint string
	caBundle string
	depth    string
	primary  *http.Client
	timeout  time.Duration
}

type request struct {
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth,omitempty"`
	MaxResults  int    `json:"max_results,omitempty"`
}

type response struct {
	Results []struct {
		Title         string `json:"title"`
		Content       string `json:"content"`
		Snippet       string `json:"snippet"`
		URL           string `json:"url"`
		PublishedDate string `json:"published_date"`
	} `json:"results"`
}

// NewClient creates a Tavily client.
func NewClient(apiKey, endpoint, caBundle, depth string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = "https://api.tavily.com/search"
	}
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		apiKey:   apiKey,
		endpoint: endpoint,
		caBundle: caBundle,
		depth:    depth,
		primary:  &http.Client{Timeout: timeout},
		timeout:  timeout,
	}
}

// Search issues a single query and maps the response.
func (c *Client) Search(ctx context.Context, query string, max int) ([]Result, error) {
	raw, err := c.do(ctx, c.primary, query, max)
	if err != nil {
		fallback, fbErr := c.fallbackClient()
		if fbErr != nil || fallback == nil {
			return nil, err
		}
		raw, err = c.do(ctx, fallback, query, max)
		if err != nil {
			return nil, fmt.Errorf("tavily search failed on both trust paths: %w", err)
		}
	}

	out := make([]Result, 0, len(raw.Results))
	for i, r := range raw.Results {
		if max > 0 && i >= max {
			break
		}
		snippet := r.Snippet
		if snippet == "" {
			snippet = r.Content
		}
		out = append(out, Result{
			Title:       r.Title,
			Snippet:     snippet,
			URL:         r.URL,
			PublishedAt: r.PublishedDate,
		})
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, client *http.Client, query string, max int) (*response, error) {
	body, err := json.Marshal(request{Query: query, SearchDepth: c.depth, MaxResults: max})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("tavily API returned %d: %s", resp.StatusCode, string(b))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to parse tavily response: %w", err)
	}
	return &out, nil
}

// fallbackClient builds an HTTP client trusting the configured CA bundle.
// Returns nil when no bundle is configured.
func (c *Client) fallbackClient() (*http.Client, error) {
	if c.caBundle == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(c.caBundle)
	if err != nil {
		return nil, fmt.Errorf("reading ca bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates parsed from %s", c.caBundle)
	}
	return &http.Client{
		Timeout: c.timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: pool},
		},
	}, nil
}
