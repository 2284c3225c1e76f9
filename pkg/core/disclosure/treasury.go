package disclosure

import (
	"context"
	"log"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/realonep/dart-openapi/pkg/core/dart"
	"github.com/realonep/dart-openapi/pkg/core/extract"
)

// TreasuryItem is one parsed share-retirement filing.
type TreasuryItem struct {
	Year          int    `json:"year"`
	RceptNo       string `json:"rcept_no"`
	ReportNm      string `json:"report_nm"`
	RceptDt       string `json:"rcept_dt"`
	EventType     string `json:"event_type"` // decision or completion
	RetiredShares *int64 `json:"retired_shares"`
	RetiredAmount *int64 `json:"retired_amount"`
	Status        string `json:"status"`
	Source        string `json:"source"`
	Confidence    string `json:"confidence"`
}

// TreasuryYearlySummary aggregates retirements per calendar year.
type TreasuryYearlySummary struct {
	Year               int    `json:"year"`
	RetiredSharesTotal *int64 `json:"retired_shares_total"`
	RetiredAmountTotal *int64 `json:"retired_amount_total"`
	EventCount         int    `json:"event_count"`
	Basis              string `json:"basis"` // completion or decision
}

var (
	completionTitleRe = regexp.MustCompile(`완료|종료|결과`)

	ordinarySharesRes = []*regexp.Regexp{
		regexp.MustCompile(`보통주식\s*\(주\)\s*([\d,]+)`),
		regexp.MustCompile(`보통주(?:식)?\s*[:：]?\s*([\d,]+)`),
	}
	preferredSharesRes = []*regexp.Regexp{
		regexp.MustCompile(`종류주식\s*\(주\)\s*([\d,]+)`),
		regexp.MustCompile(`우선주(?:식)?\s*[:：]?\s*([\d,]+)`),
	}
	fallbackSharesRes = []*regexp.Regexp{
		regexp.MustCompile(`소각(?:할|예정|완료)?\s*주식(?:의)?\s*(?:총수|수량|수)?\s*[:：]?\s*([\d,]+)`),
		regexp.MustCompile(`소각\s*주식수\s*[:：]?\s*([\d,]+)`),
		regexp.MustCompile(`자기\s*주식\s*소각\s*[:：]?\s*([\d,]+)`),
	}
	amountRes = []*regexp.Regexp{
		regexp.MustCompile(`소각(?:할|예정|완료)?\s*(?:금액|대금|가액(?:총액)?)\s*(?:\([^)]+\))?\s*[:：]?\s*([\d,.]+)`),
		regexp.MustCompile(`취득가액(?:총액)?\s*(?:\([^)]+\))?\s*[:：]?\s*([\d,.]+)`),
		regexp.MustCompile(`총\s*소각금액\s*(?:\([^)]+\))?\s*[:：]?\s*([\d,.]+)`),
	}
)

func firstMatchNumber(text string, res []*regexp.Regexp) *float64 {
	for _, re := range res {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		token := strings.TrimSpace(strings.ReplaceAll(m[1], ",", ""))
		n, err := strconv.ParseFloat(token, 64)
		if err != nil {
			continue
		}
		return &n
	}
	return nil
}

// ParseTreasuryDocument extracts the retired share count and amount from a
// sanitized filing text. Share counts come from the per-class rows when
// present, else from the generic retirement phrasing; amounts are scaled by
// the unit the document declares. Returns nil when nothing numeric was
// recovered.
func ParseTreasuryDocument(text, reportNm, rceptDt, rceptNo string) *TreasuryItem {
	year := ExtractYear(reportNm, rceptDt)
	if year == 0 {
		return nil
	}
	multiplier := int64(1)
	if u := extract.DetectDeclaredUnit(text); u != nil {
		multiplier = u.Multiplier
	}

	ordinary := firstMatchNumber(text, ordinarySharesRes)
	preferred := firstMatchNumber(text, preferredSharesRes)
	var sharesRaw *float64
	if ordinary != nil || preferred != nil {
		total := 0.0
		if ordinary != nil {
			total += *ordinary
		}
		if preferred != nil {
			total += *preferred
		}
		sharesRaw = &total
	} else {
		sharesRaw = firstMatchNumber(text, fallbackSharesRes)
	}
	amountRaw := firstMatchNumber(text, amountRes)
	if sharesRaw == nil && amountRaw == nil {
		return nil
	}

	item := &TreasuryItem{
		Year:       year,
		RceptNo:    rceptNo,
		ReportNm:   reportNm,
		RceptDt:    rceptDt,
		EventType:  "decision",
		Status:     "confirmed",
		Source:     "Disclosure",
		Confidence: "medium",
	}
	if completionTitleRe.MatchString(reportNm) {
		item.EventType = "completion"
	}
	if sharesRaw != nil {
		v := int64(math.Round(*sharesRaw))
		item.RetiredShares = &v
	}
	if amountRaw != nil {
		v := int64(math.Round(*amountRaw * float64(multiplier)))
		item.RetiredAmount = &v
	}
	return item
}

// BuildTreasuryYearlySummary sums retirements per year, newest first. When a
// year has completion filings, only those count; decision filings are the
// basis only when nothing completed.
func BuildTreasuryYearlySummary(items []TreasuryItem) []TreasuryYearlySummary {
	byYear := map[int][]TreasuryItem{}
	for _, it := range items {
		if it.Year == 0 {
			continue
		}
		byYear[it.Year] = append(byYear[it.Year], it)
	}
	var out []TreasuryYearlySummary
	for year, list := range byYear {
		var completion []TreasuryItem
		for _, x := range list {
			if x.EventType == "completion" {
				completion = append(completion, x)
			}
		}
		source, basis := list, "decision"
		if len(completion) > 0 {
			source, basis = completion, "completion"
		}
		var shares, amount int64
		for _, x := range source {
			if x.RetiredShares != nil {
				shares += *x.RetiredShares
			}
			if x.RetiredAmount != nil {
				amount += *x.RetiredAmount
			}
		}
		summary := TreasuryYearlySummary{Year: year, EventCount: len(source), Basis: basis}
		if shares != 0 {
			summary.RetiredSharesTotal = &shares
		}
		if amount != 0 {
			summary.RetiredAmountTotal = &amount
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year > out[j].Year })
	return out
}

// BuildTreasury fetches each candidate's document newest first and parses it.
// Unreadable documents are skipped.
func BuildTreasury(ctx context.Context, docs DocumentAPI, candidates []dart.Disclosure, corpCode string) ([]TreasuryItem, []TreasuryYearlySummary) {
	seen := map[string]bool{}
	var merged []dart.Disclosure
	for _, d := range candidates {
		if d.RceptNo == "" || seen[d.RceptNo] {
			continue
		}
		seen[d.RceptNo] = true
		merged = append(merged, d)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].RceptDt > merged[j].RceptDt })
	if len(merged) > MaxTreasuryItems {
		merged = merged[:MaxTreasuryItems]
	}

	var items []TreasuryItem
	for _, d := range merged {
		docs.Delay()
		zipBytes, err := docs.Document(ctx, d.RceptNo)
		if err != nil || len(zipBytes) < 100 {
			continue
		}
		text, err := ExtractDocumentText(zipBytes)
		if err != nil {
			log.Printf("  [Treasury] corp=%s rcept_no=%s document unreadable: %v", corpCode, d.RceptNo, err)
			continue
		}
		if parsed := ParseTreasuryDocument(text, d.ReportNm, d.RceptDt, d.RceptNo); parsed != nil {
			items = append(items, *parsed)
		}
	}
	return items, BuildTreasuryYearlySummary(items)
}
