package util

import (
    "strconv"
    "testing"
    "time"
)

func TestParseTimeRFC3339(t *testing.T) {
    s := "2024-10-10T10:10:10Z"
    got, ok := ParseTime(s)
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.UTC().Format(time.RFC3339) != s {
        t.Fatalf("unexpected time %v", got)
    }
}

func TestParseTimeUnix(t *testing.T) {
    ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
    got, ok := ParseTime(strconv.FormatInt(ts, 10))
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.Unix() != ts {
        t.Fatalf("unexpected unix %v", got.Unix())
    }
}

func TestParseDateJalali(t *testing.T) {
    // 1403-10-26 is 2025-01-15.
    got, err := ParseDate("1403-10-26", time.UTC)
    if err != nil {
        t.Fatalf("parse: %v", err)
    }
    if got.Format("2006-01-02") != "2025-01-15" {
        t.Fatalf("unexpected gregorian date %s", got.Format("2006-01-02"))
    }
    if FormatJalali(got) != "1403-10-26" {
        t.Fatalf("round trip gave %s", FormatJalali(got))
    }
}

func TestParseDateGregorian(t *testing.T) {
    got, err := ParseDate("2025-01-15", time.UTC)
    if err != nil {
        t.Fatalf("parse: %v", err)
    }
    if !got.Equal(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)) {
        t.Fatalf("unexpected %v", got)
    }
    if _, err := ParseDate("2025-13-01", time.UTC); err == nil {
        t.Fatalf("expected month range error")
    }
    if _, err := ParseDate("20250115", time.UTC); err == nil {
        t.Fatalf("expected layout error")
    }
}

func TestParseClock(t *testing.T) {
    got, err := ParseClock("09:15:00")
    if err != nil {
        t.Fatalf("parse: %v", err)
    }
    if got != 9*time.Hour+15*time.Minute {
        t.Fatalf("unexpected %v", got)
    }
    if got, _ := ParseClock("12:30"); got != 12*time.Hour+30*time.Minute {
        t.Fatalf("unexpected %v", got)
    }
}

func TestDaysBetween(t *testing.T) {
    from := time.Date(2025, 1, 1, 23, 59, 0, 0, time.UTC)
    to := time.Date(2025, 1, 15, 0, 1, 0, 0, time.UTC)
    if d := DaysBetween(from, to); d != 14 {
        t.Fatalf("expected 14 days, got %d", d)
    }
    if d := DaysBetween(to, from); d != -14 {
        t.Fatalf("expected -14 days, got %d", d)
    }
}

func TestParseTimeDefault(t *testing.T) {
    def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
    got := ParseTimeDefault("", def)
    if !got.Equal(def) {
        t.Fatalf("expected default")
    }
}
