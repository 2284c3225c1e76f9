package financials

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/realonep/dart-openapi/pkg/core/dart"
)

func indFor(year int, fsDiv string) *PeriodIndicators {
	return &PeriodIndicators{Year: year, Revenue: i64(100), FsDiv: fsDiv, Status: StatusConfirmed}
}

func TestResolvePolicy(t *testing.T) {
	// One consolidated period anywhere in the window wins.
	byYear := map[int]map[string]*ScopePair{
		2023: {dart.ReportAnnual: {OFS: indFor(2023, "OFS")}},
		2024: {dart.ReportAnnual: {CFS: indFor(2024, "CFS"), OFS: indFor(2024, "OFS")}},
	}
	if got := ResolvePolicy(byYear); got != dart.ScopeConsolidated {
		t.Errorf("policy = %s, want CFS", got)
	}

	ofsOnly := map[int]map[string]*ScopePair{
		2023: {dart.ReportAnnual: {OFS: indFor(2023, "OFS")}},
		2024: {dart.ReportAnnual: {OFS: indFor(2024, "OFS")}},
	}
	if got := ResolvePolicy(ofsOnly); got != dart.ScopeSeparate {
		t.Errorf("policy = %s, want OFS", got)
	}
}

func TestChooseByPolicyFallback(t *testing.T) {
	byYear := map[int]map[string]*ScopePair{
		2024: {dart.ReportAnnual: {CFS: indFor(2024, "CFS")}},
		2023: {dart.ReportAnnual: {OFS: indFor(2023, "OFS")}}, // consolidated missing here
	}
	chosen := ChooseByPolicy(byYear, dart.ScopeConsolidated)
	if got := chosen[2024][dart.ReportAnnual]; got == nil || got.FsDiv != "CFS" {
		t.Errorf("2024 = %+v, want the CFS indicator", got)
	}
	// The fallback keeps its real scope so the substitution is visible.
	if got := chosen[2023][dart.ReportAnnual]; got == nil || got.FsDiv != "OFS" {
		t.Errorf("2023 = %+v, want the OFS fallback", got)
	}
}

func TestComposeYearsSingleQuarterOnLatestYear(t *testing.T) {
	chosen := map[int]map[string]*PeriodIndicators{
		2023: {dart.ReportAnnual: indFor(2023, "CFS")},
		2024: {dart.ReportAnnual: indFor(2024, "CFS")},
		2025: {
			dart.ReportQ3:   indFor(2025, "CFS"),
			dart.ReportHalf: indFor(2025, "CFS"),
		},
	}
	records := ComposeYears(chosen)
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0].Year != 2025 || records[1].Year != 2024 || records[2].Year != 2023 {
		t.Fatalf("records not newest first: %d %d %d", records[0].Year, records[1].Year, records[2].Year)
	}

	latest := records[0]
	if latest.Annual != nil {
		t.Error("2025 has no annual report yet, annual must be nil")
	}
	if len(latest.Quarters) != 1 {
		t.Fatalf("latest year carries %d quarters, want exactly 1", len(latest.Quarters))
	}
	q3 := latest.Quarters["3Q"]
	if q3 == nil {
		t.Fatal("latest year must keep the most advanced quarter (3Q)")
	}
	if q3.Quarter != "3Q" || q3.ReportType != "cumulative" {
		t.Errorf("quarter snapshot = %s/%s, want 3Q/cumulative", q3.Quarter, q3.ReportType)
	}
	if latest.Status != StatusPartial || latest.Source != SourceQuarterly {
		t.Errorf("latest status/source = %s/%s, want partial/Quarterly", latest.Status, latest.Source)
	}

	// Earlier years: annual only, no quarter snapshots.
	for _, r := range records[1:] {
		if len(r.Quarters) != 0 {
			t.Errorf("year %d carries %d quarters, want none", r.Year, len(r.Quarters))
		}
		if r.Status != StatusConfirmed || r.Source != SourceAnnual {
			t.Errorf("year %d status/source = %s/%s, want confirmed/Annual Report", r.Year, r.Status, r.Source)
		}
	}
}

func TestComposeYearsAnnualDoublesAsFourthQuarter(t *testing.T) {
	chosen := map[int]map[string]*PeriodIndicators{
		2024: {dart.ReportAnnual: indFor(2024, "CFS")},
	}
	records := ComposeYears(chosen)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	q4 := records[0].Quarters["4Q"]
	if q4 == nil {
		t.Fatal("annual report on the latest year must also surface as the 4Q snapshot")
	}
	if q4.ReportType != "cumulative" {
		t.Errorf("4Q report_type = %s, want cumulative", q4.ReportType)
	}
	if records[0].Annual == nil || records[0].Annual.ReportType != "" {
		t.Error("annual entry must stay unmarked; only the quarter snapshot is cumulative")
	}
}

func TestApplyPreliminary(t *testing.T) {
	records := []YearRecord{
		{Year: 2025, Quarters: map[string]*PeriodIndicators{"3Q": indFor(2025, "CFS")}, Status: StatusPartial, Source: SourceQuarterly},
		{Year: 2024, Annual: indFor(2024, "CFS"), Quarters: map[string]*PeriodIndicators{}, Status: StatusConfirmed, Source: SourceAnnual},
	}
	figures := []PreliminaryFigure{
		{Year: 2025, Revenue: i64(900), OpIncome: i64(90)},
		{Year: 2024, Revenue: i64(1)}, // confirmed year, must not be touched
	}
	out := ApplyPreliminary(records, figures, dart.ScopeConsolidated)

	if out[0].Year != 2025 || out[0].Annual == nil {
		t.Fatal("2025 should gain a preliminary annual entry")
	}
	if out[0].Status != StatusPreliminary || out[0].Annual.Source != SourceDisclosure {
		t.Errorf("2025 status/source = %s/%s, want preliminary/Disclosure", out[0].Status, out[0].Annual.Source)
	}
	if q4 := out[0].Quarters["4Q"]; q4 == nil || q4.ReportType != "cumulative" {
		t.Error("preliminary backfill must also install the 4Q snapshot")
	}
	if out[1].Annual.Revenue == nil || *out[1].Annual.Revenue != 100 {
		t.Error("confirmed 2024 annual must not be overwritten by preliminary figures")
	}
}

func TestLatestPeriodKey(t *testing.T) {
	records := []YearRecord{
		{Year: 2025, Quarters: map[string]*PeriodIndicators{"3Q": indFor(2025, "CFS")}},
		{Year: 2024, Annual: indFor(2024, "CFS"), Quarters: map[string]*PeriodIndicators{}},
	}
	// 2025 3Q -> 20253 beats 2024 annual -> 20244.
	if got := LatestPeriodKey(records); got != 20253 {
		t.Errorf("latest period key = %d, want 20253", got)
	}
	if got := LatestPeriodKey(nil); got != 0 {
		t.Errorf("empty records key = %d, want 0", got)
	}
}

// fakeStatementAPI serves canned account lists and records the probe order.
type fakeStatementAPI struct {
	data  map[string][]dart.Account // key: year/reprt/fsDiv
	calls []string
}

func (f *fakeStatementAPI) key(year int, reprt, fs string) string {
	return strconv.Itoa(year) + "/" + reprt + "/" + fs
}

func (f *fakeStatementAPI) FinancialStatements(_ context.Context, _ string, year int, reprtCode, fsDiv string) ([]dart.Account, error) {
	k := f.key(year, reprtCode, fsDiv)
	f.calls = append(f.calls, k)
	list, ok := f.data[k]
	if !ok {
		return nil, dart.ErrNoData
	}
	return list, nil
}

func (f *fakeStatementAPI) Delay() {}

func TestFetchWindowProbesQuartersTopDown(t *testing.T) {
	// Fixed clock: 2026-12-01. The current year expects 3Q, so the probe
	// order for 2026 is 3Q, half, Q1, stopping at the first success.
	now := func() time.Time { return time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC) }
	api := &fakeStatementAPI{data: map[string][]dart.Account{
		"2026/" + dart.ReportQ3 + "/CFS":   {acct("IS", "ifrs-full_Revenue", "매출액", "CFS", "900", "900")},
		"2025/" + dart.ReportAnnual + "/CFS": {acct("IS", "ifrs-full_Revenue", "매출액", "CFS", "1,200", "")},
	}}
	f := NewFetcher(api, now)
	byYear := f.FetchWindow(context.Background(), "00126380", []int{2025, 2026})

	pair := byYear[2026][dart.ReportQ3]
	if pair.Empty() || pair.CFS == nil {
		t.Fatal("expected 3Q consolidated data for 2026")
	}
	if _, probedHalf := byYear[2026][dart.ReportHalf]; probedHalf {
		t.Error("probe must stop at the first successful quarter")
	}
	if byYear[2026][dart.ReportAnnual] != nil {
		t.Error("annual report must not be fetched for the running year")
	}
	if byYear[2025][dart.ReportAnnual].Empty() {
		t.Error("expected the 2025 annual report")
	}
}
