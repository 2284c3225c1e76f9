package disclosure

import (
	"context"
	"log"
	"sort"

	"github.com/realonep/dart-openapi/pkg/core/dart"
	"github.com/realonep/dart-openapi/pkg/core/extract"
)

// GuidanceValues are the extracted provisional figures of one filing, in
// base KRW.
type GuidanceValues struct {
	Revenue              *int64   `json:"revenue"`
	OpIncome             *int64   `json:"op_income"`
	NetIncome            *int64   `json:"net_income"`
	CashDividendPerShare *float64 `json:"cash_dividend_per_share"`
}

// GuidanceItem is one reconciled provisional-earnings disclosure.
type GuidanceItem struct {
	RceptNo     string          `json:"rcept_no"`
	ReportNm    string          `json:"report_nm"`
	RceptDt     string          `json:"rcept_dt"`
	Status      string          `json:"status"`
	Source      string          `json:"source"`
	ReportKind  string          `json:"report_kind"`
	PeriodLabel string          `json:"period_label,omitempty"`
	Values      *GuidanceValues `json:"values,omitempty"`
}

// DocumentAPI is the slice of the DART client the detail fetchers need.
type DocumentAPI interface {
	Document(ctx context.Context, rceptNo string) ([]byte, error)
	Delay()
}

// FigureExtractor is the text-to-figures capability consumed here.
type FigureExtractor interface {
	ExtractFigures(ctx context.Context, text string) (*extract.Figures, error)
}

// BuildGuidance fetches the candidate documents newest first, runs figure
// extraction on each, and reconciles the results down to the final guidance
// set: one entry per period label, newest filing wins, capped at
// MaxGuidanceItems.
//
// Individual document or extraction failures drop that candidate; guidance
// is best-effort enrichment, not a hard dependency of the sync.
func BuildGuidance(ctx context.Context, docs DocumentAPI, ex FigureExtractor, candidates []dart.Disclosure, corpCode string) []GuidanceItem {
	seen := map[string]bool{}
	var merged []*GuidanceItem
	for _, d := range candidates {
		if d.RceptNo == "" || seen[d.RceptNo] {
			continue
		}
		seen[d.RceptNo] = true
		merged = append(merged, &GuidanceItem{
			RceptNo:    d.RceptNo,
			ReportNm:   d.ReportNm,
			RceptDt:    d.RceptDt,
			Status:     "preliminary",
			Source:     "Disclosure",
			ReportKind: "guidance",
		})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].RceptDt > merged[j].RceptDt })
	if len(merged) > MaxGuidanceItems*6 {
		merged = merged[:MaxGuidanceItems*6]
	}

	for _, item := range merged {
		docs.Delay()
		zipBytes, err := docs.Document(ctx, item.RceptNo)
		if err != nil || len(zipBytes) < 100 {
			continue
		}
		text, err := ExtractDocumentText(zipBytes)
		if err != nil {
			log.Printf("  [Guidance] corp=%s rcept_no=%s document unreadable: %v", corpCode, item.RceptNo, err)
			continue
		}
		figures, err := ex.ExtractFigures(ctx, text)
		if err != nil {
			log.Printf("  [Guidance] corp=%s rcept_no=%s extraction failed: %v", corpCode, item.RceptNo, err)
			continue
		}
		hasAny := figures.Revenue != nil || figures.OpIncome != nil || figures.NetIncome != nil || figures.DividendPerShare != nil
		if !hasAny {
			continue
		}
		item.Values = &GuidanceValues{
			Revenue:              figures.Revenue,
			OpIncome:             figures.OpIncome,
			NetIncome:            figures.NetIncome,
			CashDividendPerShare: figures.DividendPerShare,
		}
		if figures.PeriodLabel != nil {
			item.PeriodLabel = *figures.PeriodLabel
		} else {
			item.PeriodLabel = PeriodLabel(item.ReportNm, item.RceptDt)
		}
	}

	// One entry per period; a correcting re-filing (newer receipt date)
	// replaces the original.
	byPeriod := map[string]*GuidanceItem{}
	for _, item := range merged {
		label := item.PeriodLabel
		if label == "" {
			label = PeriodLabel(item.ReportNm, item.RceptDt)
		}
		if label == "" {
			label = "unknown"
		}
		prev, ok := byPeriod[label]
		if !ok || item.RceptDt > prev.RceptDt {
			byPeriod[label] = item
		}
	}
	deduped := make([]GuidanceItem, 0, len(byPeriod))
	for _, item := range byPeriod {
		deduped = append(deduped, *item)
	}
	sort.Slice(deduped, func(i, j int) bool { return deduped[i].RceptDt > deduped[j].RceptDt })
	if len(deduped) > MaxGuidanceItems {
		deduped = deduped[:MaxGuidanceItems]
	}
	return deduped
}
