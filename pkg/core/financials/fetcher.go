package financials

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/realonep/dart-openapi/pkg/core/dart"
)

// StatementAPI is the slice of the DART client the fetcher needs.
type StatementAPI interface {
	FinancialStatements(ctx context.Context, corpCode string, year int, reprtCode, fsDiv string) ([]dart.Account, error)
	Delay()
}

// ScopePair holds both statement scopes of one (year, report type) fetch.
// Either side may be nil when that scope was not filed.
type ScopePair struct {
	CFS *PeriodIndicators
	OFS *PeriodIndicators
}

// Empty reports whether neither scope returned data.
func (s *ScopePair) Empty() bool { return s == nil || (s.CFS == nil && s.OFS == nil) }

// Fetcher probes the structured financial statement API across the year
// window, requesting only the (year, report type) pairs the schedule says
// could exist.
type Fetcher struct {
	api StatementAPI
	now func() time.Time
}

// NewFetcher creates a fetcher. now is injectable for tests; nil means
// time.Now.
func NewFetcher(api StatementAPI, now func() time.Time) *Fetcher {
	if now == nil {
		now = time.Now
	}
	return &Fetcher{api: api, now: now}
}

// fetchReport requests one (year, report type) pair in both statement
// scopes. A scope returning ErrNoData, or failing after retries, yields nil
// for that scope: data absence and a dead probe both mean "move on".
func (f *Fetcher) fetchReport(ctx context.Context, corpCode string, year int, reprtCode string) *ScopePair {
	fetchOne := func(fsDiv string) *PeriodIndicators {
		list, err := f.api.FinancialStatements(ctx, corpCode, year, reprtCode, fsDiv)
		if err != nil {
			if !errors.Is(err, dart.ErrNoData) {
				log.Printf("  [Financials] corp=%s year=%d reprt=%s fs_div=%s fetch failed: %v", corpCode, year, reprtCode, fsDiv, err)
			}
			return nil
		}
		return ToIndicators(list, year, reprtCode, fsDiv)
	}

	cfs := fetchOne(dart.ScopeConsolidated)
	f.api.Delay()
	ofs := fetchOne(dart.ScopeSeparate)
	return &ScopePair{CFS: cfs, OFS: ofs}
}

// FetchWindow probes the whole year window and returns the raw per-year,
// per-report-type scope pairs.
//
// Annual reports are fetched only for years whose full-year filing is
// plausible (or old enough that it must exist). Quarters are probed
// top-down, most advanced first, stopping at the first success.
func (f *Fetcher) FetchWindow(ctx context.Context, corpCode string, years []int) map[int]map[string]*ScopePair {
	now := f.now()
	currentYear := now.Year()
	byYear := make(map[int]map[string]*ScopePair)
	put := func(year int, code string, pair *ScopePair) {
		if byYear[year] == nil {
			byYear[year] = make(map[string]*ScopePair)
		}
		byYear[year][code] = pair
	}

	for _, year := range years {
		exp := dart.ExpectedMaxQuarterForYear(now, year)
		if exp != dart.Quarter4 && year >= currentYear-1 {
			continue
		}
		pair := f.fetchReport(ctx, corpCode, year, dart.ReportAnnual)
		f.api.Delay()
		put(year, dart.ReportAnnual, pair)
	}

	for _, year := range years {
		exp := dart.ExpectedMaxQuarterForYear(now, year)
		if exp == dart.QuarterNone || year < currentYear-1 {
			continue
		}
		var order []string
		switch exp {
		case dart.Quarter1:
			order = []string{dart.ReportQ1}
		case dart.Quarter2:
			order = []string{dart.ReportHalf, dart.ReportQ1}
		default: // 3Q or 4Q: probe 3Q -> half -> 1Q
			order = []string{dart.ReportQ3, dart.ReportHalf, dart.ReportQ1}
		}
		for _, reprtCode := range order {
			pair := f.fetchReport(ctx, corpCode, year, reprtCode)
			f.api.Delay()
			put(year, reprtCode, pair)
			if !pair.Empty() {
				break
			}
		}
	}
	return byYear
}
