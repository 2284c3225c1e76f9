package financials

import (
	"log"
	"sort"

	"github.com/realonep/dart-openapi/pkg/core/dart"
)

// YearRecord is one fiscal year of the composed financials payload. Quarters
// holds at most one cumulative quarter snapshot, and only on the most recent
// year that has any data at all.
type YearRecord struct {
	Year     int                          `json:"year"`
	Annual   *PeriodIndicators            `json:"annual"`
	Quarters map[string]*PeriodIndicators `json:"quarters"`
	Status   string                       `json:"status"`
	Source   string                       `json:"source"`
}

// PeriodKey encodes (year, quarter) as an ordered integer, e.g. 2024 4Q is
// 20244. Keys compare correctly across years because quarter is one digit.
func PeriodKey(year int, quarter string) int {
	q := 0
	switch quarter {
	case "1Q":
		q = 1
	case "2Q":
		q = 2
	case "3Q":
		q = 3
	case "4Q":
		q = 4
	}
	return year*10 + q
}

// LatestPeriodKey returns the highest period key present in the composed
// records, counting annuals as 4Q. Zero means no structured data.
func LatestPeriodKey(records []YearRecord) int {
	best := 0
	for _, r := range records {
		if r.Annual != nil {
			if k := PeriodKey(r.Year, "4Q"); k > best {
				best = k
			}
		}
		for q := range r.Quarters {
			if k := PeriodKey(r.Year, q); k > best {
				best = k
			}
		}
	}
	return best
}

// ResolvePolicy decides the company's statement scope: consolidated wins when
// any fetched period anywhere in the window has consolidated data, otherwise
// the company is treated as separate-only.
func ResolvePolicy(byYear map[int]map[string]*ScopePair) string {
	for _, reports := range byYear {
		for _, pair := range reports {
			if pair != nil && pair.CFS != nil {
				return dart.ScopeConsolidated
			}
		}
	}
	return dart.ScopeSeparate
}

// ChooseByPolicy applies the resolved scope to every fetched pair. A period
// missing the preferred scope falls back to the other one; the indicator
// keeps its own fs_div so the substitution stays visible.
func ChooseByPolicy(byYear map[int]map[string]*ScopePair, policy string) map[int]map[string]*PeriodIndicators {
	chosen := make(map[int]map[string]*PeriodIndicators)
	for year, reports := range byYear {
		for code, pair := range reports {
			if pair == nil {
				continue
			}
			preferred, other := pair.CFS, pair.OFS
			if policy == dart.ScopeSeparate {
				preferred, other = pair.OFS, pair.CFS
			}
			pick := preferred
			if pick == nil {
				pick = other
				if pick != nil {
					log.Printf("  [Financials/POLICY] year=%d reprt=%s missing %s, falling back to %s", year, code, policy, pick.FsDiv)
				}
			}
			if pick == nil {
				continue
			}
			if chosen[year] == nil {
				chosen[year] = make(map[string]*PeriodIndicators)
			}
			chosen[year][code] = pick
		}
	}
	return chosen
}

var quarterLabels = []struct {
	code  string
	label string
}{
	{dart.ReportAnnual, "4Q"},
	{dart.ReportQ3, "3Q"},
	{dart.ReportHalf, "2Q"},
	{dart.ReportQ1, "1Q"},
}

// ComposeYears builds the final year records from the chosen per-period
// indicators.
//
// Only the single most recent year with data gets a quarter snapshot, and it
// gets exactly one: the most advanced cumulative period, with the annual
// report standing in for 4Q. Earlier years keep annual figures only. A year
// is confirmed only when its annual report exists.
func ComposeYears(chosen map[int]map[string]*PeriodIndicators) []YearRecord {
	years := make([]int, 0, len(chosen))
	for y := range chosen {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))

	latestWithData := 0
	for _, y := range years {
		if len(chosen[y]) > 0 {
			latestWithData = y
			break
		}
	}

	var out []YearRecord
	for _, year := range years {
		reports := chosen[year]
		if len(reports) == 0 {
			continue
		}
		rec := YearRecord{
			Year:     year,
			Annual:   reports[dart.ReportAnnual],
			Quarters: map[string]*PeriodIndicators{},
		}
		if year == latestWithData {
			for _, ql := range quarterLabels {
				ind := reports[ql.code]
				if ind == nil {
					continue
				}
				snap := *ind
				snap.Quarter = ql.label
				snap.ReportType = "cumulative"
				rec.Quarters[ql.label] = &snap
				break
			}
		}
		if rec.Annual == nil && len(rec.Quarters) == 0 {
			continue
		}
		if rec.Annual != nil {
			rec.Status = StatusConfirmed
			rec.Source = SourceAnnual
		} else {
			rec.Status = StatusPartial
			rec.Source = SourceQuarterly
		}
		out = append(out, rec)
	}
	return out
}

// PreliminaryFigure carries provisional full-year figures mined from an
// earnings disclosure, used to backfill a year whose annual report is not
// yet filed.
type PreliminaryFigure struct {
	Year      int
	Revenue   *int64
	OpIncome  *int64
	NetIncome *int64
}

// ApplyPreliminary backfills records with provisional annual figures. A year
// already confirmed by its annual report is never touched. Returns the
// records newest year first.
func ApplyPreliminary(records []YearRecord, figures []PreliminaryFigure, policy string) []YearRecord {
	byYear := make(map[int]int, len(records))
	for i, r := range records {
		byYear[r.Year] = i
	}
	for _, fig := range figures {
		if fig.Revenue == nil && fig.OpIncome == nil && fig.NetIncome == nil {
			continue
		}
		if i, ok := byYear[fig.Year]; ok && records[i].Annual != nil {
			continue
		}
		ind := &PeriodIndicators{
			Year:      fig.Year,
			Revenue:   fig.Revenue,
			OpIncome:  fig.OpIncome,
			NetIncome: fig.NetIncome,
			Status:    StatusPreliminary,
			Source:    SourceDisclosure,
			FsDiv:     policy,
		}
		snap := *ind
		snap.Quarter = "4Q"
		snap.ReportType = "cumulative"
		if i, ok := byYear[fig.Year]; ok {
			records[i].Annual = ind
			records[i].Quarters["4Q"] = &snap
			records[i].Status = StatusPreliminary
			records[i].Source = SourceDisclosure
			log.Printf("  [Financials/PRELIM] year=%d backfilled partial year from disclosure", fig.Year)
		} else {
			records = append(records, YearRecord{
				Year:     fig.Year,
				Annual:   ind,
				Quarters: map[string]*PeriodIndicators{"4Q": &snap},
				Status:   StatusPreliminary,
				Source:   SourceDisclosure,
			})
			byYear[fig.Year] = len(records) - 1
			log.Printf("  [Financials/PRELIM] year=%d added from disclosure", fig.Year)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Year > records[j].Year })
	return records
}
