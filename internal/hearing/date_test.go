package hearing

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"display format", "25/01/2026", time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC)},
		{"api query format", "2026-01-25", time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC)},
		{"api timestamp", "2026-01-25T10:30:00", time.Date(2026, 1, 25, 10, 30, 0, 0, time.UTC)},
		{"empty", "", time.Time{}},
		{"garbage", "not a date", time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDate(tt.input)
			if !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestStartTime(t *testing.T) {
	t.Run("combines date and time", func(t *testing.T) {
		r := Record{Date: "25/01/2026", Time: "14:30:00"}
		want := time.Date(2026, 1, 25, 14, 30, 0, 0, time.UTC)
		if got := r.StartTime(); !got.Equal(want) {
			t.Errorf("StartTime() = %v, want %v", got, want)
		}
	})

	t.Run("short time format", func(t *testing.T) {
		r := Record{Date: "25/01/2026", Time: "14:30"}
		want := time.Date(2026, 1, 25, 14, 30, 0, 0, time.UTC)
		if got := r.StartTime(); !got.Equal(want) {
			t.Errorf("StartTime() = %v, want %v", got, want)
		}
	})

	t.Run("malformed time falls back to midnight", func(t *testing.T) {
		r := Record{Date: "25/01/2026", Time: "??"}
		want := time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC)
		if got := r.StartTime(); !got.Equal(want) {
			t.Errorf("StartTime() = %v, want %v", got, want)
		}
	})

	t.Run("unparseable date is zero", func(t *testing.T) {
		r := Record{Date: "", Time: "14:30:00"}
		if got := r.StartTime(); !got.IsZero() {
			t.Errorf("StartTime() = %v, want zero", got)
		}
	})
}

func TestLessUnparseableDatesSortLast(t *testing.T) {
	good := Record{Date: "25/01/2026", Time: "10:00:00", ProcessNumber: "P1"}
	bad := Record{Date: "???", Time: "10:00:00", ProcessNumber: "P0"}

	if !Less(good, bad) {
		t.Error("expected parseable date to sort before unparseable date")
	}
	if Less(bad, good) {
		t.Error("expected unparseable date to sort last")
	}
}
