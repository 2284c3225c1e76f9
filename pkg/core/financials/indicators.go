// Package financials turns raw DART accounting line items into normalized
// per-period indicators and composes them into the per-company year records.
package financials

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/realonep/dart-openapi/pkg/core/dart"
)

// Period statuses and sources.
const (
	StatusConfirmed   = "confirmed"
	StatusPartial     = "partial"
	StatusPreliminary = "preliminary"

	SourceAnnual     = "Annual Report"
	SourceQuarterly  = "Quarterly"
	SourceDisclosure = "Disclosure"
)

// PeriodIndicators is the normalized figure set for one reporting period.
// Monetary fields are base-unit (KRW) integers; nil means the account was
// absent or a derived input was missing.
type PeriodIndicators struct {
	Year    int    `json:"year"`
	Quarter string `json:"quarter,omitempty"`

	Revenue              *int64 `json:"revenue"`
	OpIncome             *int64 `json:"op_income"`
	NetIncome            *int64 `json:"net_income"`
	Equity               *int64 `json:"equity"`
	TotalAssets          *int64 `json:"total_assets"`
	Debt                 *int64 `json:"debt"`
	OperatingCF          *int64 `json:"operating_cf"`
	NonCashAdjustments   *int64 `json:"non_cash_adjustments"`
	WorkingCapitalChange *int64 `json:"working_capital_change"`
	CapexPPE             *int64 `json:"capex_ppe"`
	CapexIntangible      *int64 `json:"capex_intangible"`
	CapexTotal           *int64 `json:"capex_total"`
	FCF                  *int64 `json:"fcf"`

	ROE       *float64 `json:"roe"`
	ROA       *float64 `json:"roa"`
	DebtRatio *float64 `json:"debt_ratio"`

	Status     string `json:"status,omitempty"`
	Source     string `json:"source,omitempty"`
	FsDiv      string `json:"fs_div,omitempty"`
	ReportType string `json:"report_type,omitempty"`
}

// ParseAmount converts a DART amount string ("1,234,567") to a base-unit
// integer. Empty, dash and literal-zero values all mean "not reported".
func ParseAmount(s string) *int64 {
	t := strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if t == "" || t == "-" || t == "0" {
		return nil
	}
	n, err := strconv.ParseInt(t, 10, 64)
	if err != nil {
		// Some filings carry decimals; fall back to a float parse.
		f, ferr := strconv.ParseFloat(t, 64)
		if ferr != nil {
			return nil
		}
		n = int64(math.Round(f))
	}
	return &n
}

// amountOf prefers the cumulative year-to-date figure on interim reports and
// falls back to the single-period figure.
func amountOf(a *dart.Account, useCumulative bool) *int64 {
	if a == nil {
		return nil
	}
	if useCumulative {
		if v := ParseAmount(a.ThstrmAddAmount); v != nil {
			return v
		}
	}
	return ParseAmount(a.ThstrmAmount)
}

// balanceOf always takes the period-end figure; balance sheet accounts have
// no cumulative variant.
func balanceOf(a *dart.Account) *int64 {
	if a == nil {
		return nil
	}
	return ParseAmount(a.ThstrmAmount)
}

// ToIndicators extracts the named accounting concepts from one statement
// fetch. reprtCode selects cumulative-vs-period amounts; fsDiv scopes the
// rows and is recorded as provenance.
func ToIndicators(list []dart.Account, year int, reprtCode, fsDiv string) *PeriodIndicators {
	if len(list) == 0 {
		return nil
	}
	scoped := filterByScope(list, fsDiv)
	incomeScoped := preferIncomeStatement(scoped)
	cfScoped := preferCashflowStatement(scoped)
	useCumulative := reprtCode != dart.ReportAnnual

	label := func(concept string) string {
		return fmt.Sprintf("%s y=%d fs=%s", concept, year, strings.ToUpper(fsDiv))
	}

	revenue := FindByPriority(incomeScoped, []Rule{
		{Name: "id_exact_revenue", Match: func(id, _ string) bool {
			return id == "ifrs-full_revenue" || id == "ifrs-full_revenuefromcontractswithcustomers"
		}},
		idContains("revenue"),
		nmContainsAny("name_revenue", "매출액", "수익"),
	}, label("revenue"))
	opIncome := FindByPriority(incomeScoped, []Rule{
		idExact("ifrs-full_profitlossfromoperatingactivities"),
		idContains("operatingincomeloss"),
		nmContainsAny("name_op_income", "영업이익", "영업손익"),
	}, label("op_income"))
	netIncome := FindByPriority(incomeScoped, []Rule{
		idExact("ifrs-full_profitloss"),
		idContains("profitloss"),
		nmContainsAny("name_net_income", "당기순이익", "분기순이익"),
	}, label("net_income"))
	totalAssets := FindByPriority(scoped, []Rule{
		idExact("ifrs-full_assets"),
		{Name: "id_assets_noncurrent", Match: func(id, _ string) bool {
			return strings.Contains(id, "assets") && !strings.Contains(id, "current")
		}},
		nmContainsAny("name_total_assets", "자산총계"),
	}, label("total_assets"))
	liabilities := FindByPriority(scoped, []Rule{
		idExact("ifrs-full_liabilities"),
		{Name: "id_liabilities_noncurrent", Match: func(id, _ string) bool {
			return strings.Contains(id, "liabilities") && !strings.Contains(id, "current")
		}},
		nmContainsAny("name_liabilities", "부채총계"),
	}, label("liabilities"))
	equity := FindByPriority(scoped, []Rule{
		idExact("ifrs-full_equity"),
		idContains("equity"),
		nmContainsAny("name_equity", "자본총계", "지배기업 소유주지분"),
	}, label("equity"))

	operatingCF := FindByPriority(cfScoped, []Rule{
		idExact("ifrs-full_cashflowsfromusedinoperatingactivities"),
		idExact("ifrs-full_netcashflowsfromusedinoperatingactivities"),
		idExact("ifrs-full_cashflowsfromusedinoperatingactivitiescontinuingoperations"),
		nmContainsAny("name_operating_cf", "영업활동으로 인한 현금흐름", "영업활동현금흐름"),
	}, label("operating_cf"))
	capexPPE := FindByPriority(cfScoped, []Rule{
		idExact("ifrs-full_purchaseofpropertyplantandequipment"),
		idExact("ifrs-full_acquisitionofpropertyplantandequipment"),
		nmContainsAll("name_ppe_acquisition", "유형자산", "취득"),
	}, label("capex_ppe"))
	capexIntangible := FindByPriority(cfScoped, []Rule{
		idExact("ifrs-full_purchaseofintangibleassets"),
		idExact("ifrs-full_acquisitionofintangibleassets"),
		nmContainsAll("name_intangible_acquisition", "무형자산", "취득"),
	}, label("capex_intangible"))
	nonCashAdjustments := FindByPriority(cfScoped, []Rule{
		idExact("ifrs-full_adjustmentsforreconcileprofitloss"),
		idContains("adjustmentsforreconcileprofitloss"),
		nmContainsAll("name_non_cash_adjust", "비현금", "조정"),
		nmContainsAll("name_profitloss_adjust", "손익", "조정"),
		// Legacy filings label the whole block just "조정" with no standard id.
		{Name: "name_exact_adjust_legacy", Match: func(id, nm string) bool {
			return strings.TrimSpace(nm) == "조정" && (id == "" || strings.Contains(id, "표준계정코드 미사용"))
		}},
	}, label("non_cash_adjustments"))
	workingCapitalChange := FindByPriority(cfScoped, []Rule{
		idExact("dart_adjustmentsforassetsliabilitiesofoperatingactivities"),
		idContains("adjustmentsforassetsliabilitiesofoperatingactivities"),
		nmContainsAll("name_working_capital_change", "운전자본", "변동"),
		nmContainsAll("name_op_assets_liabilities_change", "영업활동", "자산부채", "변동"),
		nmContainsAll("name_op_assets_liabilities_delta", "영업활동", "자산", "부채", "증감"),
	}, label("working_capital_change"))

	ind := &PeriodIndicators{
		Year:                 year,
		Revenue:              amountOf(revenue, useCumulative),
		OpIncome:             amountOf(opIncome, useCumulative),
		NetIncome:            amountOf(netIncome, useCumulative),
		Equity:               balanceOf(equity),
		TotalAssets:          balanceOf(totalAssets),
		Debt:                 balanceOf(liabilities),
		OperatingCF:          amountOf(operatingCF, useCumulative),
		NonCashAdjustments:   amountOf(nonCashAdjustments, useCumulative),
		WorkingCapitalChange: amountOf(workingCapitalChange, useCumulative),
		CapexPPE:             amountOf(capexPPE, useCumulative),
		CapexIntangible:      amountOf(capexIntangible, useCumulative),
		Status:               StatusConfirmed,
		FsDiv:                strings.ToUpper(fsDiv),
	}
	if reprtCode == dart.ReportAnnual {
		ind.Source = SourceAnnual
	} else {
		ind.Source = SourceQuarterly
	}
	ind.derive()
	return ind
}

// derive fills the computed fields. Any nil input (or zero denominator)
// leaves the derived value nil.
func (p *PeriodIndicators) derive() {
	if p.CapexPPE != nil || p.CapexIntangible != nil {
		var total int64
		if p.CapexPPE != nil {
			total += absI64(*p.CapexPPE)
		}
		if p.CapexIntangible != nil {
			total += absI64(*p.CapexIntangible)
		}
		p.CapexTotal = &total
	}
	if p.OperatingCF != nil && p.CapexTotal != nil {
		fcf := *p.OperatingCF - *p.CapexTotal
		p.FCF = &fcf
	}
	if p.NetIncome != nil && p.Equity != nil && *p.Equity != 0 {
		roe := float64(*p.NetIncome) / float64(*p.Equity) * 100
		p.ROE = &roe
	}
	if p.NetIncome != nil && p.TotalAssets != nil && *p.TotalAssets != 0 {
		roa := float64(*p.NetIncome) / float64(*p.TotalAssets) * 100
		p.ROA = &roa
	}
	if p.Debt != nil && p.Equity != nil && *p.Equity != 0 {
		ratio := float64(*p.Debt) / float64(*p.Equity) * 100
		p.DebtRatio = &ratio
	}
}

func absI64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
