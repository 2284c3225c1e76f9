package dart

import (
	"testing"
	"time"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 12, 0, 0, 0, time.UTC)
}

func TestExpectedMaxQuarterForYear(t *testing.T) {
	cases := []struct {
		now  time.Time
		year int
		want Quarter
	}{
		// Old years always resolve to the full-year quarter.
		{date(2026, 1, 10), 2023, Quarter4},
		// Future years expect nothing.
		{date(2026, 1, 10), 2027, QuarterNone},
		// Current year thresholds: May 15 / Aug 15 / Nov 15.
		{date(2026, 5, 14), 2026, QuarterNone},
		{date(2026, 5, 15), 2026, Quarter1},
		{date(2026, 8, 14), 2026, Quarter1},
		{date(2026, 8, 15), 2026, Quarter2},
		{date(2026, 11, 14), 2026, Quarter2},
		{date(2026, 11, 15), 2026, Quarter3},
		{date(2026, 12, 31), 2026, Quarter3},
		// Previous year: 3Q until end of March, then the annual report.
		{date(2026, 2, 1), 2025, Quarter3},
		{date(2026, 3, 30), 2025, Quarter3},
		{date(2026, 3, 31), 2025, Quarter4},
		{date(2026, 6, 1), 2025, Quarter4},
	}
	for _, c := range cases {
		got := ExpectedMaxQuarterForYear(c.now, c.year)
		if got != c.want {
			t.Errorf("ExpectedMaxQuarterForYear(%s, %d) = %s, want %s",
				c.now.Format("2006-01-02"), c.year, got, c.want)
		}
	}
}

func TestExpectedMaxQuarterMonotonicInTime(t *testing.T) {
	// For a fixed year, scanning forward day by day must never decrease
	// the expected quarter.
	year := 2026
	prev := QuarterNone
	for d := date(2026, 1, 1); d.Year() <= 2028; d = d.AddDate(0, 0, 7) {
		q := ExpectedMaxQuarterForYear(d, year)
		if q < prev {
			t.Fatalf("expected quarter decreased at %s: %s -> %s", d.Format("2006-01-02"), prev, q)
		}
		prev = q
	}
}

func TestSmartReportCodes(t *testing.T) {
	// Early in the year: last year's reports, newest first, with a year-2
	// annual fallback because the annual report may be unfiled.
	got := SmartReportCodes(date(2026, 2, 1))
	want := []ReportCode{{2025, ReportAnnual}, {2025, ReportQ3}, {2025, ReportHalf}, {2024, ReportAnnual}}
	assertCodes(t, got, want)

	got = SmartReportCodes(date(2026, 4, 20))
	want = []ReportCode{{2026, ReportQ1}, {2025, ReportAnnual}, {2024, ReportAnnual}}
	assertCodes(t, got, want)

	got = SmartReportCodes(date(2026, 7, 1))
	want = []ReportCode{{2026, ReportHalf}, {2026, ReportQ1}, {2025, ReportAnnual}, {2024, ReportAnnual}}
	assertCodes(t, got, want)

	got = SmartReportCodes(date(2026, 10, 2))
	want = []ReportCode{{2026, ReportQ3}, {2026, ReportHalf}, {2026, ReportQ1}, {2025, ReportAnnual}}
	assertCodes(t, got, want)
}

func assertCodes(t *testing.T, got, want []ReportCode) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestYearsWindow(t *testing.T) {
	years := YearsWindow(date(2026, 8, 28))
	if len(years) != FinancialYears {
		t.Fatalf("got %d years, want %d", len(years), FinancialYears)
	}
	if years[0] != 2021 || years[len(years)-1] != 2026 {
		t.Errorf("window = %v, want 2021..2026", years)
	}
}
