package domain

import (
	"testing"
	"time"
)

func TestParseSubmittedDate_StrictISO(t *testing.T) {
	d, err := ParseSubmittedDate(" 2024-05-01 ")
	if err != nil || d.Format(DateLayout) != "2024-05-01" {
		t.Fatalf("got %v, %v", d, err)
	}
	for _, bad := range []string{"", "05/01/2024", "2024-13-01", "yesterday", "2024-05-01T00:00:00Z"} {
		if _, err := ParseSubmittedDate(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParseImportedDate_Layouts(t *testing.T) {
	cases := map[string]string{
		"2024-05-01":           "2024-05-01",
		"2024-05-01 10:15:00":  "2024-05-01",
		"2024-05-01T10:15:00Z": "2024-05-01",
		"2024/05/01":           "2024-05-01",
		"5/1/2024":             "2024-05-01",
		"05/01/2024":           "2024-05-01",
		"May 1, 2024":          "2024-05-01",
		"1 May 2024":           "2024-05-01",
		"01-May-2024":          "2024-05-01",
		"20240501":             "2024-05-01",
		"5/1/24":               "2024-05-01",
		"5/1/24 10:30":         "2024-05-01",
		"05/01/24 10:30":       "2024-05-01",
		"5/1/24 10:30:15":      "2024-05-01",
	}
	for in, want := range cases {
		got, ok := ParseImportedDate(in)
		if !ok {
			t.Fatalf("ParseImportedDate(%q) not ok", in)
		}
		if got.Format(DateLayout) != want {
			t.Fatalf("ParseImportedDate(%q) = %s; want %s", in, got.Format(DateLayout), want)
		}
	}
}

func TestParseImportedDate_KeepsWallClock(t *testing.T) {
	cases := map[string]time.Time{
		"2024-05-01T23:00:00-05:00": time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC),
		"2024-05-01T01:30:00+09:00": time.Date(2024, 5, 1, 1, 30, 0, 0, time.UTC),
		"5/1/24 10:30":              time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
	}
	for in, want := range cases {
		got, ok := ParseImportedDate(in)
		if !ok || !got.Equal(want) || got.Location() != time.UTC {
			t.Fatalf("ParseImportedDate(%q) = %v, %v; want %v", in, got, ok, want)
		}
	}
}

func TestParseImportedDate_RejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "nan", "31/31/2024", "hello"} {
		if _, ok := ParseImportedDate(in); ok {
			t.Fatalf("expected failure for %q", in)
		}
	}
}

func TestParseImportedDate_TwoDigitPivot(t *testing.T) {
	far := (time.Now().Year() + TwoDigitYearPivot + 5) % 100
	in := "1/2/" + twoDigits(far)
	got, ok := ParseImportedDate(in)
	if !ok {
		t.Fatalf("parse %q failed", in)
	}
	if got.Year() > time.Now().Year()+TwoDigitYearPivot {
		t.Fatalf("pivot not applied: %v", got)
	}
}

func twoDigits(n int) string {
	return string([]byte{byte('0' + n/10), byte('0' + n%10)})
}
