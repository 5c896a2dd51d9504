package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openscience/digest/config"
	"github.com/openscience/digest/internal/digest"
	"github.com/openscience/digest/internal/publish"
	"github.com/openscience/digest/internal/search"
	"github.com/openscience/digest/internal/trigger"
	"github.com/openscience/digest/provider"
)

type stubCompleter struct{}

func (stubCompleter) Complete(ctx context.Context, system, user string) (provider.Completion, error) {
	return provider.Completion{Text: "## Executive Summary\n\nAll quiet.", Model: "stub"}, nil
}

type stubGatherer struct{}

func (stubGatherer) Gather(ctx context.Context, query string, max int) ([]search.Result, error) {
	return nil, nil
}

type countingPublisher struct {
	calls atomic.Int32
	err   error
}

func (p *countingPublisher) Publish(ctx context.Context, date time.Time, body string) (publish.Artifact, error) {
	p.calls.Add(1)
	if p.err != nil {
		return publish.Artifact{}, p.err
	}
	return publish.Artifact{Kind: "file", Location: "summaries/test.md"}, nil
}

func newTestServer(t *testing.T, pub publish.Publisher) (*Server, *trigger.Trigger) {
	t.Helper()

	promptPath := filepath.Join(t.TempDir(), "prompt.md")
	if err := os.WriteFile(promptPath, []byte("You write digests."), 0o644); err != nil {
		t.Fatalf("writing prompt: %v", err)
	}

	cfg := &config.Config{}
	cfg.General.PromptPath = promptPath
	cfg.General.DefaultTimeout = 5 * time.Second
	cfg.LLM.Timeout = 5 * time.Second
	cfg.Search.MaxResults = 8
	cfg.Search.MaxBlobSize = 4000

	runner := digest.NewRunner(cfg, stubCompleter{}, stubGatherer{}, pub, nil, nil, nil)

	sched, err := trigger.NewSchedule(config.ScheduleConfig{Timezone: "UTC", Hour: 6})
	if err != nil {
		t.Fatalf("NewSchedule: %v", err)
	}
	trig := trigger.New(sched, "", nil)

	return New(runner, trig, nil), trig
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &countingPublisher{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRunNowPublishesOnce(t *testing.T) {
	t.Parallel()
	pub := &countingPublisher{}
	s, _ := newTestServer(t, pub)

	req := httptest.NewRequest(http.MethodPost, "/api/run", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}
	if got := pub.calls.Load(); got != 1 {
		t.Fatalf("publisher called %d times, want 1", got)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body["kind"] != "file" || body["location"] == "" {
		t.Fatalf("unexpected response: %v", body)
	}
}

func TestRunNowConflictsWhileRunInFlight(t *testing.T) {
	t.Parallel()
	pub := &countingPublisher{}
	s, trig := newTestServer(t, pub)

	if !trig.TryAcquire() {
		t.Fatal("could not acquire idle trigger")
	}
	defer trig.Release()

	req := httptest.NewRequest(http.MethodPost, "/api/run", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if got := pub.calls.Load(); got != 0 {
		t.Fatalf("publisher called %d times, want 0", got)
	}
}

func TestRunNowSurfacesRunFailure(t *testing.T) {
	t.Parallel()
	pub := &countingPublisher{err: errors.New("issue creation failed")}
	s, trig := newTestServer(t, pub)

	req := httptest.NewRequest(http.MethodPost, "/api/run", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	// A failed manual run must not consume the scheduling window.
	if !trig.ShouldFire(time.Date(2024, 4, 1, 6, 1, 0, 0, time.UTC)) {
		t.Fatal("failed run consumed the scheduling window")
	}
}
