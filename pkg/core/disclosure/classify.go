// Package disclosure mines the date-ranged disclosure listing for earnings
// guidance and treasury-stock retirement filings, fetches their original
// documents and reconciles the extracted figures.
package disclosure

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	guidanceIncludeRe = regexp.MustCompile(`영업실적|잠정\s*실적|연결재무제표기준영업\(잠정\)실적`)
	guidanceExcludeRe = regexp.MustCompile(`장래사업|경영계획|투자계획|사업계획`)
	treasuryTitleRe   = regexp.MustCompile(`(자기\s*주식|자사주).*(소각)|주식\s*소각\s*결정|자기주식\s*소각`)

	yearWordRe    = regexp.MustCompile(`\b20\d{2}\b`)
	compactDateRe = regexp.MustCompile(`20\d{6}`)
	periodLabelRe = regexp.MustCompile(`(?i)(20\d{2})\.([1-4])Q`)

	q4TitleRe = regexp.MustCompile(`(?i)4\s*분기|제4분기|4Q|결산|사업\s*연도|연간`)
	q3TitleRe = regexp.MustCompile(`(?i)3\s*분기|제3분기|3Q`)
	q2TitleRe = regexp.MustCompile(`(?i)2\s*분기|제2분기|2Q|반기|중간`)
	q1TitleRe = regexp.MustCompile(`(?i)1\s*분기|제1분기|1Q`)
)

// IsGuidanceTitle reports whether a disclosure title announces provisional
// operating results. Forward-looking plan filings match the same keywords and
// are excluded explicitly.
func IsGuidanceTitle(reportNm string) bool {
	return guidanceIncludeRe.MatchString(reportNm) && !guidanceExcludeRe.MatchString(reportNm)
}

// IsTreasuryTitle reports whether a title announces a treasury-stock
// retirement decision or completion.
func IsTreasuryTitle(reportNm string) bool {
	return treasuryTitleRe.MatchString(reportNm)
}

// ExtractYear pulls the business year out of a title and receipt date,
// taking the highest plausible year mentioned. Returns 0 when neither field
// carries one.
func ExtractYear(reportNm, rceptDt string) int {
	s := reportNm + rceptDt
	best := 0
	for _, m := range yearWordRe.FindAllString(s, -1) {
		if y, err := strconv.Atoi(m); err == nil && y > best {
			best = y
		}
	}
	if best > 0 {
		return best
	}
	// A compact YYYYMMDD has no word boundary between year and month.
	for _, m := range compactDateRe.FindAllString(s, -1) {
		if y, err := strconv.Atoi(m[:4]); err == nil && y > best {
			best = y
		}
	}
	return best
}

// PeriodLabel derives the YYYY.[1-4]Q label a filing refers to. Titles name
// the quarter directly when they can; otherwise the filing month decides:
// January-March filings report the previous year's 4Q, and each later
// quarter-end window reports the quarter just closed.
func PeriodLabel(reportNm, rceptDt string) string {
	year := ExtractYear(reportNm, rceptDt)
	if year == 0 {
		return ""
	}
	switch {
	case q4TitleRe.MatchString(reportNm):
		return strconv.Itoa(year) + ".4Q"
	case q3TitleRe.MatchString(reportNm):
		return strconv.Itoa(year) + ".3Q"
	case q2TitleRe.MatchString(reportNm):
		return strconv.Itoa(year) + ".2Q"
	case q1TitleRe.MatchString(reportNm):
		return strconv.Itoa(year) + ".1Q"
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, rceptDt)
	if len(digits) >= 6 {
		yy, errY := strconv.Atoi(digits[:4])
		mm, errM := strconv.Atoi(digits[4:6])
		if errY == nil && errM == nil {
			switch {
			case mm <= 3:
				return strconv.Itoa(yy-1) + ".4Q"
			case mm <= 6:
				return strconv.Itoa(yy) + ".1Q"
			case mm <= 9:
				return strconv.Itoa(yy) + ".2Q"
			default:
				return strconv.Itoa(yy) + ".3Q"
			}
		}
	}
	return strconv.Itoa(year) + ".4Q"
}

// PeriodKeyFromLabel converts a YYYY.[1-4]Q label to the ordered integer key
// (2024.4Q -> 20244). Returns 0 for anything else.
func PeriodKeyFromLabel(label string) int {
	m := periodLabelRe.FindStringSubmatch(label)
	if m == nil {
		return 0
	}
	y, _ := strconv.Atoi(m[1])
	q, _ := strconv.Atoi(m[2])
	return y*10 + q
}
