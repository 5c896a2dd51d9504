package duckduckgo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const resultsPage = `<html><body>
<div class="result">
  <a class="result__a" href="https://duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.org%2Fstory">First story</a>
  <div class="result__snippet">First snippet.</div>
</div>
<div class="result">
  <a class="result__a" href="https://other.example.com/second">Second story</a>
  <div class="result__snippet">Second snippet.</div>
</div>
<div class="result">
  <a class="result__a" href="https://third.example.com/x">Third story</a>
</div>
</body></html>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(5 * time.Second)
	c.endpoint = srv.URL
	return c
}

func TestSearchParsesResults(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("q") == "" {
			t.Errorf("missing form query (err=%v)", err)
		}
		_, _ = w.Write([]byte(resultsPage))
	})

	got, err := c.Search(context.Background(), "open science news", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d: %+v", len(got), got)
	}
	if got[0].Title != "First story" || got[0].Snippet != "First snippet." {
		t.Fatalf("first result = %+v", got[0])
	}
	if got[0].URL != "https://example.org/story" {
		t.Fatalf("redirect link not unwrapped: %q", got[0].URL)
	}
	if got[1].URL != "https://other.example.com/second" {
		t.Fatalf("direct link altered: %q", got[1].URL)
	}
}

func TestSearchHonorsMax(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(resultsPage))
	})
	got, err := c.Search(context.Background(), "q", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
}

func TestSearchErrorsOnBadStatus(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	if _, err := c.Search(context.Background(), "q", 5); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}
