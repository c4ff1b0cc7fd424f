package localday

import (
	"testing"
	"time"
)

func TestStartOfDayIsMidnightInZone(t *testing.T) {
	cases := []time.Time{
		time.Date(2025, 10, 24, 16, 59, 0, 0, time.UTC), // 23:59 VN
		time.Date(2025, 10, 24, 17, 0, 0, 0, time.UTC),  // 00:00 VN ngày 25
		time.Date(2024, 2, 29, 3, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.FixedZone("PST", -8*3600)),
	}
	for _, in := range cases {
		got := StartOfDay(in)
		lt := got.In(Location())
		if lt.Hour() != 0 || lt.Minute() != 0 || lt.Second() != 0 || lt.Nanosecond() != 0 {
			t.Errorf("StartOfDay(%v) = %v, not midnight in %s", in, lt, Zone)
		}
		if got.Location() != time.UTC {
			t.Errorf("expected UTC result, got %v", got.Location())
		}
		if again := StartOfDay(got); !again.Equal(got) {
			t.Errorf("not idempotent: %v then %v", got, again)
		}
	}
}

func TestStartOfDayIgnoresHostZone(t *testing.T) {
	in := time.Date(2025, 10, 24, 20, 0, 0, 0, time.UTC) // 03:00 ngày 25 giờ VN
	want := time.Date(2025, 10, 24, 17, 0, 0, 0, time.UTC)

	saved := time.Local
	defer func() { time.Local = saved }()
	for _, name := range []string{"UTC", "America/New_York", "Asia/Tokyo"} {
		l, err := time.LoadLocation(name)
		if err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
		time.Local = l
		if got := StartOfDay(in.In(l)); !got.Equal(want) {
			t.Errorf("host %s: expected %v, got %v", name, want, got)
		}
	}
}

func TestStartOfDayInHandlesDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	in := time.Date(2025, 3, 9, 15, 0, 0, 0, ny)
	got := StartOfDayIn(in, ny).In(ny)
	if got.Day() != 9 || got.Hour() != 0 {
		t.Fatalf("expected 2025-03-09 00:00 NY, got %v", got)
	}
}

func TestMonthRange(t *testing.T) {
	from, to := MonthRange(2025, 10)
	if !from.Equal(Date(2025, time.October, 1)) {
		t.Errorf("unexpected from %v", from)
	}
	if !to.Equal(Date(2025, time.November, 1)) {
		t.Errorf("unexpected to %v", to)
	}
	if !to.After(from) {
		t.Errorf("expected to > from")
	}
}

func TestMonthRangeDecemberRollsOver(t *testing.T) {
	from, to := MonthRange(2025, 12)
	if !to.Equal(StartOfDay(time.Date(2026, 1, 1, 12, 0, 0, 0, Location()))) {
		t.Errorf("expected Jan 1 2026 local, got %v", to)
	}
	if !to.After(from) {
		t.Errorf("expected to > from")
	}
}

func TestMonthRangeFebruaryLeapYear(t *testing.T) {
	from, to := MonthRange(2024, 2)
	if days := to.Sub(from).Hours() / 24; days != 29 {
		t.Errorf("expected 29 days, got %v", days)
	}
}

func TestParseYMD(t *testing.T) {
	got, err := ParseYMD("2025-10-24")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if want := time.Date(2025, 10, 23, 17, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	for _, bad := range []string{"2025-13-01", "2025-02-30", "24-10-2025", ""} {
		if _, err := ParseYMD(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestParseYM(t *testing.T) {
	y, m, err := ParseYM("2025-12")
	if err != nil || y != 2025 || m != 12 {
		t.Fatalf("expected 2025-12, got %d-%d (%v)", y, m, err)
	}
	if _, _, err := ParseYM("2025-00"); err == nil {
		t.Errorf("expected error for month 00")
	}
}

func TestParseAcceptsInstant(t *testing.T) {
	got, err := Parse("2025-10-24T20:00:00Z")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if want := Date(2025, time.October, 25); !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestMonthKey(t *testing.T) {
	if got := MonthKey(time.Date(2025, 10, 31, 18, 0, 0, 0, time.UTC)); got != "2025-11" {
		t.Errorf("expected 2025-11, got %s", got)
	}
}
