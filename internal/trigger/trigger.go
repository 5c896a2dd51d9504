package trigger

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/openscience/digest/config"
)

// stateFile holds the last fired local date so a process restart within the
// same scheduling day cannot double-fire.
const stateFile = "last_run"

// Schedule decides whether a wall-clock instant qualifies as a scheduled run.
type Schedule struct {
	Location  *time.Location
	Hour      int
	Minute    int
	Tolerance time.Duration
	cron      *cronexpr.Expression
}

// NewSchedule builds a Schedule from configuration. When cron_spec is set it
// takes precedence over the weekday/time fields.
func NewSchedule(cfg config.ScheduleConfig) (Schedule, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Schedule{}, fmt.Errorf("schedule timezone: %w", err)
	}
	tolerance := time.Duration(cfg.ToleranceMins) * time.Minute
	if tolerance == 0 {
		tolerance = 2 * time.Minute
	}
	s := Schedule{Location: loc, Hour: cfg.Hour, Minute: cfg.Minute, Tolerance: tolerance}
	if spec := strings.TrimSpace(cfg.CronSpec); spec != "" {
		expr, err := cronexpr.Parse(spec)
		if err != nil {
			return Schedule{}, fmt.Errorf("schedule cron_spec: %w", err)
		}
		s.cron = expr
	}
	return s, nil
}

// Due reports whether now, converted to the schedule's reference timezone,
// falls inside a qualifying window: a weekday at the configured run time
// within the tolerance. The check works on local time so a coarse external
// clock cannot skip or duplicate the job across a DST transition.
func (s Schedule) Due(now time.Time) bool {
	local := now.In(s.Location)

	if s.cron != nil {
		next := s.cron.Next(local.Add(-s.Tolerance - time.Second))
		return !next.After(local) && !next.IsZero()
	}

	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	target := time.Date(local.Year(), local.Month(), local.Day(), s.Hour, s.Minute, 0, 0, s.Location)
	diff := local.Sub(target)
	return diff >= 0 && diff <= s.Tolerance
}

// Trigger owns the recurring check loop and the once-per-window guard.
type Trigger struct {
	schedule  Schedule
	statePath string
	logger    *log.Logger

	mu        sync.Mutex
	lastFired string // local date, YYYY-MM-DD
	running   bool
}

// New creates a Trigger. When dataDir is non-empty the last fired date is
// persisted there across restarts.
func New(schedule Schedule, dataDir string, logger *log.Logger) *Trigger {
	if logger == nil {
		logger = log.New(log.Writer(), "[TRIGGER] ", log.LstdFlags)
	}
	t := &Trigger{schedule: schedule, logger: logger}
	if dataDir != "" {
		t.statePath = filepath.Join(dataDir, stateFile)
		if raw, err := os.ReadFile(t.statePath); err == nil {
			t.lastFired = strings.TrimSpace(string(raw))
		}
	}
	return t
}

// ShouldFire reports whether the pipeline should run now: the schedule is
// due and no run has fired in this window yet.
func (t *Trigger) ShouldFire(now time.Time) bool {
	if !t.schedule.Due(now) {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastFired != t.localDate(now)
}

// MarkFired records that a run happened in the current window.
func (t *Trigger) MarkFired(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastFired = t.localDate(now)
	if t.statePath != "" {
		if err := os.MkdirAll(filepath.Dir(t.statePath), 0o755); err == nil {
			if err := os.WriteFile(t.statePath, []byte(t.lastFired+"\n"), 0o644); err != nil {
				t.logger.Printf("persisting last run date: %v", err)
			}
		}
	}
}

// TryAcquire marks a run as in flight. It returns false when another run is
// already executing, so scheduled and manual invocations can never overlap.
func (t *Trigger) TryAcquire() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return false
	}
	t.running = true
	return true
}

// Release clears the in-flight marker.
func (t *Trigger) Release() {
	t.mu.Lock()
	t.running = false
	t.mu.Unlock()
}

// Run checks the schedule every minute and invokes fire at most once per
// qualifying window. It blocks until ctx is cancelled.
func (t *Trigger) Run(ctx context.Context, fire func(context.Context) error) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	t.logger.Printf("scheduler started: weekdays %02d:%02d %s (tolerance %s)",
		t.schedule.Hour, t.schedule.Minute, t.schedule.Location, t.schedule.Tolerance)

	for {
		select {
		case <-ctx.Done():
			t.logger.Printf("scheduler stopped")
			return
		case now := <-ticker.C:
			if !t.ShouldFire(now) {
				continue
			}
			if !t.TryAcquire() {
				continue
			}
			t.MarkFired(now)
			if err := fire(ctx); err != nil {
				t.logger.Printf("scheduled run failed: %v", err)
			}
			t.Release()
		}
	}
}

func (t *Trigger) localDate(now time.Time) string {
	return now.In(t.schedule.Location).Format("2006-01-02")
}
