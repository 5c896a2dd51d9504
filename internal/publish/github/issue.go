package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/openscience/digest/internal/publish"
)

// Publisher creates one dated issue per run via the GitHub REST API. A failed
// create is retried exactly once after a fixed delay; a second failure is
// fatal for the run and reported with remediation hints.
type Publisher struct {
	token      string
	repo       string // owner/repo
	baseURL    string
	retryDelay time.Duration
	httpClient *http.Client
	logger     *log.Logger
}

type issueRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type issueResponse struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
}

// NewPublisher creates a GitHub issue publisher for the given owner/repo.
func NewPublisher(token, repo, baseURL string, retryDelay, timeout time.Duration, logger *log.Logger) *Publisher {
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	if retryDelay <= 0 {
		retryDelay = 30 * time.Second
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[PUBLISH] ", log.LstdFlags)
	}
	return &Publisher{
		token:      token,
		repo:       repo,
		baseURL:    strings.TrimRight(baseURL, "/"),
		retryDelay: retryDelay,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Publish creates the issue, retrying once after the configured delay.
func (p *Publisher) Publish(ctx context.Context, date time.Time, body string) (publish.Artifact, error) {
	title := publish.TitleFor(date)

	issue, err := p.createIssue(ctx, title, body)
	if err == nil {
		return publish.Artifact{Kind: "issue", Location: issue.HTMLURL}, nil
	}

	p.logger.Printf("issue creation failed, retrying in %s: %v", p.retryDelay, err)
	select {
	case <-time.After(p.retryDelay):
	case <-ctx.Done():
		return publish.Artifact{}, ctx.Err()
	}

	issue, retryErr := p.createIssue(ctx, title, body)
	if retryErr != nil {
		return publish.Artifact{}, fmt.Errorf(
			"creating issue in %s failed twice (last: %w); verify the token has the 'repo' scope and write access to the repository",
			p.repo, retryErr)
	}
	return publish.Artifact{Kind: "issue", Location: issue.HTMLURL}, nil
}

func (p *Publisher) createIssue(ctx context.Context, title, body string) (*issueResponse, error) {
	jsonData, err := json.Marshal(issueRequest{Title: title, Body: body})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/repos/%s/issues", p.baseURL, p.repo)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "token "+p.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("GitHub API error %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var issue issueResponse
	if err := json.NewDecoder(resp.Body).Decode(&issue); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &issue, nil
}
