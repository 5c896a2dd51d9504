package trigger

import (
	"testing"
	"time"

	"github.com/openscience/digest/config"
)

func parisSchedule(t *testing.T) Schedule {
	t.Helper()
	s, err := NewSchedule(config.ScheduleConfig{
		Timezone:      "Europe/Paris",
		Hour:          6,
		Minute:        0,
		ToleranceMins: 2,
	})
	if err != nil {
		t.Fatalf("NewSchedule: %v", err)
	}
	return s
}

func TestScheduleDueTable(t *testing.T) {
	t.Parallel()
	s := parisSchedule(t)
	paris, _ := time.LoadLocation("Europe/Paris")

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		// 2024-03-29 is a Friday in CET (UTC+1): 05:00 UTC == 06:00 local.
		{"weekday at run time before DST", time.Date(2024, 3, 29, 5, 0, 0, 0, time.UTC), true},
		{"weekday inside tolerance", time.Date(2024, 3, 29, 5, 2, 0, 0, time.UTC), true},
		{"weekday past tolerance", time.Date(2024, 3, 29, 5, 3, 0, 0, time.UTC), false},
		{"weekday before run time", time.Date(2024, 3, 29, 4, 59, 0, 0, time.UTC), false},
		// DST starts 2024-03-31; from 2024-04-01 (Monday, CEST, UTC+2)
		// the same local 06:00 is 04:00 UTC.
		{"weekday at run time after DST", time.Date(2024, 4, 1, 4, 0, 0, 0, time.UTC), true},
		{"old UTC offset after DST no longer matches", time.Date(2024, 4, 1, 5, 0, 0, 0, time.UTC), false},
		{"saturday local run time", time.Date(2024, 3, 30, 5, 0, 0, 0, time.UTC), false},
		{"sunday local run time", time.Date(2024, 3, 31, 4, 0, 0, 0, time.UTC), false},
		{"local midnight weekday", time.Date(2024, 3, 29, 0, 0, 0, 0, paris), false},
	}
	for _, tc := range cases {
		if got := s.Due(tc.at); got != tc.want {
			t.Fatalf("%s: Due(%s) = %v, want %v", tc.name, tc.at, got, tc.want)
		}
	}
}

func TestScheduleCronSpec(t *testing.T) {
	t.Parallel()
	s, err := NewSchedule(config.ScheduleConfig{
		Timezone:      "UTC",
		ToleranceMins: 2,
		CronSpec:      "0 6 * * 1-5",
	})
	if err != nil {
		t.Fatalf("NewSchedule: %v", err)
	}
	if !s.Due(time.Date(2024, 4, 1, 6, 1, 0, 0, time.UTC)) {
		t.Fatal("cron schedule should be due just after 06:00 Monday")
	}
	if s.Due(time.Date(2024, 4, 1, 7, 0, 0, 0, time.UTC)) {
		t.Fatal("cron schedule should not be due at 07:00")
	}
	if s.Due(time.Date(2024, 4, 6, 6, 1, 0, 0, time.UTC)) {
		t.Fatal("cron schedule should not be due on Saturday")
	}
}

func TestScheduleRejectsBadCronSpec(t *testing.T) {
	t.Parallel()
	_, err := NewSchedule(config.ScheduleConfig{Timezone: "UTC", CronSpec: "not a cron"})
	if err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestTriggerFiresOncePerWindow(t *testing.T) {
	t.Parallel()
	trig := New(parisSchedule(t), "", nil)
	at := time.Date(2024, 3, 29, 5, 0, 30, 0, time.UTC)

	if !trig.ShouldFire(at) {
		t.Fatal("first check in window should fire")
	}
	trig.MarkFired(at)
	if trig.ShouldFire(at.Add(time.Minute)) {
		t.Fatal("second check in same window must not fire")
	}
	// Next weekday's window fires again.
	nextMonday := time.Date(2024, 4, 1, 4, 1, 0, 0, time.UTC)
	if !trig.ShouldFire(nextMonday) {
		t.Fatal("next window should fire")
	}
}

func TestTriggerGuardSurvivesRestart(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	at := time.Date(2024, 3, 29, 5, 0, 30, 0, time.UTC)

	first := New(parisSchedule(t), dir, nil)
	if !first.ShouldFire(at) {
		t.Fatal("first process should fire")
	}
	first.MarkFired(at)

	restarted := New(parisSchedule(t), dir, nil)
	if restarted.ShouldFire(at.Add(time.Minute)) {
		t.Fatal("restarted process must not fire again in the same window")
	}
}

func TestTriggerSingleFlight(t *testing.T) {
	t.Parallel()
	trig := New(parisSchedule(t), "", nil)
	if !trig.TryAcquire() {
		t.Fatal("first acquire should succeed")
	}
	if trig.TryAcquire() {
		t.Fatal("second acquire must fail while a run is in flight")
	}
	trig.Release()
	if !trig.TryAcquire() {
		t.Fatal("acquire after release should succeed")
	}
}
