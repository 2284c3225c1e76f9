package dart

import "time"

// Report type codes as defined by the Open DART API.
const (
	ReportAnnual = "11011" // 사업보고서
	ReportHalf   = "11012" // 반기보고서
	ReportQ1     = "11013" // 1분기보고서
	ReportQ3     = "11014" // 3분기보고서
)

// FinancialYears is the width of the year window synced per company.
const FinancialYears = 6

// Quarter is the most advanced quarter that could plausibly be filed for a
// year. QuarterNone means no filing of any kind is expected yet.
type Quarter int

const (
	QuarterNone Quarter = iota
	Quarter1
	Quarter2
	Quarter3
	Quarter4
)

func (q Quarter) String() string {
	switch q {
	case Quarter1:
		return "1Q"
	case Quarter2:
		return "2Q"
	case Quarter3:
		return "3Q"
	case Quarter4:
		return "4Q"
	}
	return "0Q"
}

// ExpectedMaxQuarterForYear estimates, as of now, the most advanced quarter
// that could plausibly have been filed for year. Filing deadlines lag the
// period end: interim reports arrive roughly six weeks after quarter end and
// the annual report lands well into the following spring. Pure in (now, year)
// and monotonic in now.
func ExpectedMaxQuarterForYear(now time.Time, year int) Quarter {
	currentYear := now.Year()
	month := int(now.Month())
	day := now.Day()

	// Old years: the annual report must already exist.
	if year < currentYear-1 {
		return Quarter4
	}
	// Future years: nothing expected.
	if year > currentYear {
		return QuarterNone
	}

	if year == currentYear {
		// Q1 filings from mid May, half-year from mid August, Q3 from mid
		// November. Until year end only 3Q can exist for the current year.
		if month < 5 || (month == 5 && day < 15) {
			return QuarterNone
		}
		if month < 8 || (month == 8 && day < 15) {
			return Quarter1
		}
		if month < 11 || (month == 11 && day < 15) {
			return Quarter2
		}
		return Quarter3
	}

	// year == currentYear-1: the annual report may be missing until the end
	// of March, so only expect 3Q before then.
	if month < 3 || (month == 3 && day < 31) {
		return Quarter3
	}
	return Quarter4
}

// ReportCode is a (fiscal year, report type) probe candidate.
type ReportCode struct {
	Year int
	Code string
}

// SmartReportCodes returns the probe order for slowly-changing company facts
// (shareholders, officers, total stock), most-likely-current first with the
// prior-year annual report as the safe fallback. Derived from the current
// month only:
//
//	Jan-Mar: last year's annual, 3Q, half-year, then year-2 annual
//	Apr-May: this year's 1Q, then last/year-2 annual
//	Jun-Aug: this year's half-year, 1Q, then last/year-2 annual
//	Sep-Dec: this year's 3Q, half-year, 1Q, then last year's annual
func SmartReportCodes(now time.Time) []ReportCode {
	yr := now.Year()
	mo := int(now.Month())
	switch {
	case mo <= 3:
		// Last year's annual report may still be unfiled, so include year-2.
		return []ReportCode{{yr - 1, ReportAnnual}, {yr - 1, ReportQ3}, {yr - 1, ReportHalf}, {yr - 2, ReportAnnual}}
	case mo <= 5:
		return []ReportCode{{yr, ReportQ1}, {yr - 1, ReportAnnual}, {yr - 2, ReportAnnual}}
	case mo <= 8:
		return []ReportCode{{yr, ReportHalf}, {yr, ReportQ1}, {yr - 1, ReportAnnual}, {yr - 2, ReportAnnual}}
	default:
		return []ReportCode{{yr, ReportQ3}, {yr, ReportHalf}, {yr, ReportQ1}, {yr - 1, ReportAnnual}}
	}
}

// YearsWindow returns the ascending list of fiscal years covered by a sync
// run: the FinancialYears most recent years ending at the current one.
func YearsWindow(now time.Time) []int {
	currentYear := now.Year()
	years := make([]int, 0, FinancialYears)
	for y := currentYear - (FinancialYears - 1); y <= currentYear; y++ {
		years = append(years, y)
	}
	return years
}
