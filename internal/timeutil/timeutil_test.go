package timeutil

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		ms   int64
		want string
	}{
		{0, "0m"},
		{-5, "0m"},
		{2700000, "45m"},
		{11040000, "3h 4m"},
		{3600000, "1h 0m"},
	}
	for _, tc := range cases {
		if got := FormatDuration(tc.ms); got != tc.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tc.ms, got, tc.want)
		}
	}
}

func TestMSRoundTrip(t *testing.T) {
	if !MSToTime(0).IsZero() {
		t.Fatal("MSToTime(0) must be the zero time")
	}
	if TimeToMS(time.Time{}) != 0 {
		t.Fatal("TimeToMS(zero) must be 0")
	}
	ms := int64(1738410840000)
	if got := TimeToMS(MSToTime(ms)); got != ms {
		t.Fatalf("round trip = %d, want %d", got, ms)
	}
}

func TestWeekRangeSelectors(t *testing.T) {
	// Wednesday 2026-02-11
	now := time.Date(2026, 2, 11, 15, 30, 0, 0, time.UTC)

	start, end, err := WeekRange("current", now)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if start.Format("2006-01-02") != "2026-02-09" || end.Format("2006-01-02") != "2026-02-16" {
		t.Fatalf("current week = %s..%s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	start, _, err = WeekRange("previous", now)
	if err != nil || start.Format("2006-01-02") != "2026-02-02" {
		t.Fatalf("previous week start = %s err=%v", start.Format("2006-01-02"), err)
	}

	start, _, err = WeekRange("2-weeks-ago", now)
	if err != nil || start.Format("2006-01-02") != "2026-01-26" {
		t.Fatalf("2-weeks-ago start = %s err=%v", start.Format("2006-01-02"), err)
	}

	start, _, err = WeekRange("2026-01-15", now)
	if err != nil || start.Format("2006-01-02") != "2026-01-12" {
		t.Fatalf("date selector start = %s err=%v", start.Format("2006-01-02"), err)
	}

	// Sunday belongs to the week that started the previous Monday.
	sunday := time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC)
	start, _, _ = WeekRange("current", sunday)
	if start.Format("2006-01-02") != "2026-02-09" {
		t.Fatalf("sunday week start = %s", start.Format("2006-01-02"))
	}

	if _, _, err := WeekRange("sometime", now); err == nil {
		t.Fatal("expected error for invalid selector")
	}
}

func TestParseRange(t *testing.T) {
	start, end, err := ParseRange("2026-02-01", "2026-02-07")
	if err != nil {
		t.Fatalf("ParseRange failed: %v", err)
	}
	if start.Format("2006-01-02") != "2026-02-01" {
		t.Fatalf("start = %s", start.Format("2006-01-02"))
	}
	// End is exclusive midnight after the end date.
	if end.Format("2006-01-02") != "2026-02-08" {
		t.Fatalf("end = %s", end.Format("2006-01-02"))
	}

	if _, _, err := ParseRange("2026-02-07", "2026-02-01"); err == nil {
		t.Fatal("expected error for inverted range")
	}
	if _, _, err := ParseRange("bad", "2026-02-01"); err == nil {
		t.Fatal("expected error for malformed date")
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-08-01")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.Format(time.RFC3339) != "2026-08-01T00:00:00Z" {
		t.Fatalf("date-only = %s", d.Format(time.RFC3339))
	}

	d, err = ParseDate("2026-08-01T15:04:05Z")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.Hour() != 15 {
		t.Fatalf("timestamp = %s", d.Format(time.RFC3339))
	}

	if _, err := ParseDate("yesterday"); err == nil {
		t.Fatal("expected error for malformed date")
	}
}
