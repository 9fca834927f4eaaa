package schedule

import (
	"testing"
	"time"
)

func TestExpectedDateEveryDay(t *testing.T) {
	cfg := Config{StartDate: Date(2026, time.February, 11), Cadence: CadenceEveryDay}
	for seq, want := range map[int]time.Time{
		1:  Date(2026, time.February, 11),
		3:  Date(2026, time.February, 13),
		20: Date(2026, time.March, 2),
	} {
		if got := cfg.ExpectedDate(seq); !got.Equal(want) {
			t.Fatalf("expected date for %d = %s, want %s", seq, got, want)
		}
	}
}

func TestExpectedDateGroupsPerDate(t *testing.T) {
	cfg := Config{StartDate: Date(2026, time.February, 11), Cadence: CadenceEveryNDays, IntervalDays: 2, PerDate: 2}
	cases := []struct {
		seq  int
		want time.Time
	}{
		{1, Date(2026, time.February, 11)},
		{2, Date(2026, time.February, 11)},
		{3, Date(2026, time.February, 13)},
		{4, Date(2026, time.February, 13)},
		{5, Date(2026, time.February, 15)},
	}
	for _, tc := range cases {
		if got := cfg.ExpectedDate(tc.seq); !got.Equal(tc.want) {
			t.Fatalf("expected date for %d = %s, want %s", tc.seq, got.Format("2006-01-02"), tc.want.Format("2006-01-02"))
		}
	}
}

func TestScheduleMonotonicForEveryNDays(t *testing.T) {
	for n := 1; n <= 5; n++ {
		cfg := Config{StartDate: Date(2026, time.January, 30), Cadence: CadenceEveryNDays, IntervalDays: n}
		for s := 1; s < 60; s++ {
			prev := cfg.ExpectedDate(s)
			next := cfg.ExpectedDate(s + 1)
			if next.Before(prev.AddDate(0, 0, n)) {
				t.Fatalf("n=%d: expected(%d)=%s is earlier than expected(%d)+%dd=%s", n, s+1, next, s, n, prev.AddDate(0, 0, n))
			}
		}
	}
}

func TestDueStatusScenario(t *testing.T) {
	cfg := Config{StartDate: Date(2026, time.February, 11), Cadence: CadenceEveryDay}
	today := time.Date(2026, time.February, 13, 18, 30, 0, 0, time.UTC)
	want := map[int]Status{
		1: StatusOverdue,
		2: StatusOverdue,
		3: StatusDue,
		4: StatusPending,
		5: StatusPending,
	}
	for seq, status := range want {
		if got := DueStatus(seq, cfg, today); got != status {
			t.Fatalf("sequence %d = %s, want %s", seq, got, status)
		}
	}
	if got := Classify(1, cfg, today, true); got != StatusComplete {
		t.Fatalf("complete item classified %s", got)
	}
	if got := Classify(3, cfg, today, true); got != StatusComplete {
		t.Fatalf("complete due item classified %s", got)
	}
}

func TestDueStatusIsPure(t *testing.T) {
	cfg := Config{StartDate: Date(2026, time.February, 11), Cadence: CadenceEveryNDays, IntervalDays: 3}
	today := Date(2026, time.February, 20)
	first := DueStatus(4, cfg, today)
	for i := 0; i < 10; i++ {
		if got := DueStatus(4, cfg, today); got != first {
			t.Fatalf("classification changed between calls: %s vs %s", got, first)
		}
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := map[string]Config{
		"no start":      {Cadence: CadenceEveryDay},
		"zero interval": {StartDate: Date(2026, 1, 1), Cadence: CadenceEveryNDays},
		"bad cadence":   {StartDate: Date(2026, 1, 1), Cadence: "weekly"},
		"negative per":  {StartDate: Date(2026, 1, 1), Cadence: CadenceEveryDay, PerDate: -1},
	}
	for name, cfg := range cases {
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestParseCadenceLegacyNames(t *testing.T) {
	cadence, n, err := ParseCadence("every_other_day")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cadence != CadenceEveryNDays || n != 2 {
		t.Fatalf("every_other_day = %s/%d", cadence, n)
	}
	if _, _, err := ParseCadence("fortnightly"); err == nil {
		t.Fatalf("expected error for unknown cadence")
	}
}

func TestNextOccurrence(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	at := TimeOfDay{Hour: 9}
	before := time.Date(2026, time.February, 11, 8, 0, 0, 0, loc)
	if got := at.NextOccurrence(before, loc); !got.Equal(time.Date(2026, time.February, 11, 9, 0, 0, 0, loc)) {
		t.Fatalf("next before 9am = %s", got)
	}
	exactly := time.Date(2026, time.February, 11, 9, 0, 0, 0, loc)
	if got := at.NextOccurrence(exactly, loc); !got.Equal(time.Date(2026, time.February, 12, 9, 0, 0, 0, loc)) {
		t.Fatalf("next at 9am = %s", got)
	}
	if _, err := ParseTimeOfDay("25:00"); err == nil {
		t.Fatalf("expected error for invalid hour")
	}
}
