// Package timeutil holds the shared millisecond-timestamp, duration, and
// reporting-period helpers used across fetching, reporting, and storage.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// MSToTime converts an epoch-milliseconds value to a UTC time. Zero maps to
// the zero time.
func MSToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// TimeToMS is the inverse of MSToTime; the zero time maps to 0.
func TimeToMS(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FormatDuration renders milliseconds as "3h 4m", "45m", or "0m".
func FormatDuration(ms int64) string {
	if ms <= 0 {
		return "0m"
	}
	mins := ms / 60000
	hours := mins / 60
	mins = mins % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

// DateOnly formats an epoch-ms timestamp as YYYY-MM-DD, or "N/A" for zero.
func DateOnly(ms int64) string {
	if ms == 0 {
		return "N/A"
	}
	return MSToTime(ms).Format("2006-01-02")
}

// WeekRange resolves a week selector to [monday, nextMonday) in UTC.
// Accepted selectors: "current" (or empty), "previous", "N-weeks-ago",
// and "YYYY-MM-DD" (the week containing that date).
func WeekRange(selector string, now time.Time) (time.Time, time.Time, error) {
	now = now.UTC()
	switch sel := strings.TrimSpace(strings.ToLower(selector)); {
	case sel == "" || sel == "current":
		start := startOfWeek(now)
		return start, start.AddDate(0, 0, 7), nil
	case sel == "previous":
		start := startOfWeek(now).AddDate(0, 0, -7)
		return start, start.AddDate(0, 0, 7), nil
	case strings.HasSuffix(sel, "-weeks-ago"):
		var n int
		if _, err := fmt.Sscanf(sel, "%d-weeks-ago", &n); err != nil || n < 0 {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid week selector %q", selector)
		}
		start := startOfWeek(now).AddDate(0, 0, -7*n)
		return start, start.AddDate(0, 0, 7), nil
	default:
		day, err := time.Parse("2006-01-02", strings.TrimSpace(selector))
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid week selector %q", selector)
		}
		start := startOfWeek(day)
		return start, start.AddDate(0, 0, 7), nil
	}
}

// ParseDate parses a YYYY-MM-DD date (midnight UTC) or a full RFC 3339
// timestamp.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layout := "2006-01-02"
	if strings.Contains(s, "T") {
		layout = time.RFC3339
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t.UTC(), nil
}

// ParseRange parses explicit YYYY-MM-DD bounds into [start, end) where end is
// exclusive midnight after the end date.
func ParseRange(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", strings.TrimSpace(startDate))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q", startDate)
	}
	end, err := time.Parse("2006-01-02", strings.TrimSpace(endDate))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q", endDate)
	}
	end = end.AddDate(0, 0, 1)
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %q precedes start date %q", endDate, startDate)
	}
	return start, end, nil
}

func startOfWeek(t time.Time) time.Time {
	weekday := t.Weekday()
	if weekday == time.Sunday {
		weekday = 7
	}
	daysFromMonday := int(weekday) - int(time.Monday)
	return time.Date(t.Year(), t.Month(), t.Day()-daysFromMonday, 0, 0, 0, 0, time.UTC)
}
