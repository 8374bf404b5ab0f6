package scheduler

import (
	"testing"
	"time"

	"github.com/shaiso/Conductor/internal/domain"
)

func TestCalculateNextDue_Cron(t *testing.T) {
	sched := &domain.Schedule{
		CronExpr: "0 9 * * *",
		Timezone: "UTC",
	}

	from := time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %s, got %s", want, next)
	}
}

func TestCalculateNextDue_CronRollsToNextDay(t *testing.T) {
	sched := &domain.Schedule{
		CronExpr: "0 9 * * *",
		Timezone: "UTC",
	}

	from := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %s, got %s", want, next)
	}
}

func TestCalculateNextDue_CronWithTimezone(t *testing.T) {
	sched := &domain.Schedule{
		CronExpr: "0 9 * * *",
		Timezone: "Europe/Moscow",
	}

	// 05:00 UTC = 08:00 MSK, ближайшие 09:00 MSK = 06:00 UTC.
	from := time.Date(2025, 3, 10, 5, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %s, got %s", want, next)
	}
	if next.Location() != time.UTC {
		t.Errorf("expected UTC result, got %s", next.Location())
	}
}

func TestCalculateNextDue_InvalidTimezoneFallsBackToUTC(t *testing.T) {
	sched := &domain.Schedule{
		CronExpr: "0 9 * * *",
		Timezone: "Not/AZone",
	}

	from := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected UTC fallback, got %s", next)
	}
}

func TestCalculateNextDue_Interval(t *testing.T) {
	sched := &domain.Schedule{
		IntervalSec: 300,
		Timezone:    "UTC",
	}

	from := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := from.Add(5 * time.Minute)
	if !next.Equal(want) {
		t.Errorf("expected %s, got %s", want, next)
	}
}

func TestCalculateNextDue_CronTakesPriorityOverInterval(t *testing.T) {
	sched := &domain.Schedule{
		CronExpr:    "0 9 * * *",
		IntervalSec: 60,
		Timezone:    "UTC",
	}

	from := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected cron to win, got %s", next)
	}
}

func TestCalculateNextDue_NeitherCronNorInterval(t *testing.T) {
	sched := &domain.Schedule{Timezone: "UTC"}

	if _, err := CalculateNextDue(sched, time.Now()); err == nil {
		t.Error("expected error for schedule without cron_expr and interval_sec")
	}
}

func TestCalculateNextDue_InvalidCron(t *testing.T) {
	sched := &domain.Schedule{
		CronExpr: "not a cron",
		Timezone: "UTC",
	}

	if _, err := CalculateNextDue(sched, time.Now()); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestValidateCronExpr(t *testing.T) {
	valid := []string{"0 9 * * *", "*/5 * * * *", "30 2 1 * *", "0 0 * * 1"}
	for _, expr := range valid {
		if err := ValidateCronExpr(expr); err != nil {
			t.Errorf("expected %q to be valid, got %v", expr, err)
		}
	}

	invalid := []string{"", "* * *", "99 * * * *", "0 9 * * * *"}
	for _, expr := range invalid {
		if err := ValidateCronExpr(expr); err == nil {
			t.Errorf("expected %q to be invalid", expr)
		}
	}
}
