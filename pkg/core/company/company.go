// Package company fetches the slowly-changing company facts: the overview
// profile, the largest-shareholder roster, the registered officers and the
// total-shares table. The periodic report endpoints are probed in the smart
// report-code order until one answers.
package company

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/realonep/dart-openapi/pkg/core/dart"
)

// API is the slice of the DART client used here.
type API interface {
	Company(ctx context.Context, corpCode string) (*dart.CompanyProfile, error)
	Shareholders(ctx context.Context, corpCode string, year int, reprtCode string) ([]dart.ShareholderRow, error)
	Officers(ctx context.Context, corpCode string, year int, reprtCode string) ([]dart.OfficerRow, error)
	StockTotals(ctx context.Context, corpCode string, year int, reprtCode string) ([]dart.StockTotalRow, error)
	Delay()
}

// ShareholderItem is one aggregated shareholder, common stock only.
type ShareholderItem struct {
	Nm       string  `json:"nm"`
	Ratio    float64 `json:"ratio"`
	Shares   int64   `json:"shares"`
	Relation string  `json:"relation"`
}

// Shareholders is the parsed roster of one successful probe.
type Shareholders struct {
	BsnsYear  int
	ReprtCode string
	Items     []ShareholderItem
}

// OfficerItem is one registered officer.
type OfficerItem struct {
	Nm                 string `json:"nm"`
	Ofcps              string `json:"ofcps"`
	ChrgJob            string `json:"chrg_job"`
	MainCareer         string `json:"main_career"`
	RgistExctvAt       string `json:"rgist_exctv_at"`
	FteAt              string `json:"fte_at"`
	BirthYm            string `json:"birth_ym"`
	Sexdstn            string `json:"sexdstn"`
	MxmmShrholdrRelate string `json:"mxmm_shrholdr_relate"`
	HffcPd             string `json:"hffc_pd"`
	TenureEndOn        string `json:"tenure_end_on"`
}

// Officers is the parsed roster of one successful probe.
type Officers struct {
	BsnsYear  int
	ReprtCode string
	Items     []OfficerItem
}

// StockTotals carries the common-stock treasury and issued share counts.
type StockTotals struct {
	BsnsYear             int
	ReprtCode            string
	CommonTreasuryShares int64
	TotalIssuedShares    *int64
}

// Fetcher probes the periodic-report fact endpoints.
type Fetcher struct {
	api API
	now func() time.Time
}

// NewFetcher creates a fetcher. now is injectable for tests; nil means
// time.Now.
func NewFetcher(api API, now func() time.Time) *Fetcher {
	if now == nil {
		now = time.Now
	}
	return &Fetcher{api: api, now: now}
}

// Shareholders probes the roster endpoint. Returns (nil, nil) when no probe
// yields usable rows; per-probe failures only advance to the next candidate.
func (f *Fetcher) Shareholders(ctx context.Context, corpCode string) (*Shareholders, error) {
	for _, rc := range dart.SmartReportCodes(f.now()) {
		list, err := f.api.Shareholders(ctx, corpCode, rc.Year, rc.Code)
		f.api.Delay()
		if err != nil || len(list) == 0 {
			continue
		}
		if parsed := ParseShareholders(list, rc.Year, rc.Code); parsed != nil {
			return parsed, nil
		}
	}
	return nil, nil
}

// Officers probes the officer endpoint the same way.
func (f *Fetcher) Officers(ctx context.Context, corpCode string) (*Officers, error) {
	for _, rc := range dart.SmartReportCodes(f.now()) {
		list, err := f.api.Officers(ctx, corpCode, rc.Year, rc.Code)
		f.api.Delay()
		if err != nil || len(list) == 0 {
			continue
		}
		if parsed := ParseOfficers(list, rc.Year, rc.Code); parsed != nil {
			return parsed, nil
		}
	}
	return nil, nil
}

// StockTotals probes the total-shares endpoint the same way.
func (f *Fetcher) StockTotals(ctx context.Context, corpCode string) (*StockTotals, error) {
	for _, rc := range dart.SmartReportCodes(f.now()) {
		list, err := f.api.StockTotals(ctx, corpCode, rc.Year, rc.Code)
		f.api.Delay()
		if err != nil || len(list) == 0 {
			continue
		}
		if parsed := ParseStockTotals(list, rc.Year, rc.Code); parsed != nil {
			return parsed, nil
		}
	}
	return nil, nil
}

var summaryNames = map[string]bool{"계": true, "합계": true, "total": true, "-": true}

// ParseShareholders keeps common (voting) stock rows, aggregates holdings by
// shareholder name, drops the summary rows, and returns the top three by
// ratio. Returns nil when nothing usable remains.
func ParseShareholders(list []dart.ShareholderRow, year int, reprtCode string) *Shareholders {
	type agg struct {
		item  ShareholderItem
		order int
	}
	byName := map[string]*agg{}
	order := 0
	for _, r := range list {
		knd := strings.TrimSpace(r.StockKnd)
		if knd != "" && knd != "-" &&
			(strings.Contains(knd, "우선") || strings.Contains(knd, "무의결") || strings.Contains(knd, "종류")) {
			continue
		}
		nm := strings.TrimSpace(r.Nm)
		if nm == "" || summaryNames[strings.ToLower(nm)] {
			continue
		}
		ratio := parseFloatLoose(r.TrmendPosesnStockRate)
		shares := parseIntLoose(r.TrmendPosesnStockCo)
		if a, ok := byName[nm]; ok {
			a.item.Ratio += ratio
			a.item.Shares += shares
			continue
		}
		byName[nm] = &agg{
			item:  ShareholderItem{Nm: nm, Ratio: ratio, Shares: shares, Relation: strings.TrimSpace(r.Relate)},
			order: order,
		}
		order++
	}
	if len(byName) == 0 {
		return nil
	}
	aggs := make([]*agg, 0, len(byName))
	for _, a := range byName {
		aggs = append(aggs, a)
	}
	sort.SliceStable(aggs, func(i, j int) bool {
		if aggs[i].item.Ratio != aggs[j].item.Ratio {
			return aggs[i].item.Ratio > aggs[j].item.Ratio
		}
		return aggs[i].order < aggs[j].order
	})
	if len(aggs) > 3 {
		aggs = aggs[:3]
	}
	items := make([]ShareholderItem, 0, len(aggs))
	for _, a := range aggs {
		a.item.Ratio = math.Round(a.item.Ratio*100) / 100
		items = append(items, a.item)
	}
	return &Shareholders{BsnsYear: year, ReprtCode: reprtCode, Items: items}
}

// ParseOfficers trims every field and drops unnamed rows.
func ParseOfficers(list []dart.OfficerRow, year int, reprtCode string) *Officers {
	items := make([]OfficerItem, 0, len(list))
	for _, r := range list {
		nm := strings.TrimSpace(r.Nm)
		if nm == "" || nm == "-" {
			continue
		}
		items = append(items, OfficerItem{
			Nm:                 nm,
			Ofcps:              strings.TrimSpace(r.Ofcps),
			ChrgJob:            strings.TrimSpace(r.ChrgJob),
			MainCareer:         strings.TrimSpace(r.MainCareer),
			RgistExctvAt:       strings.TrimSpace(r.RgistExctvAt),
			FteAt:              strings.TrimSpace(r.FteAt),
			BirthYm:            strings.TrimSpace(r.BirthYm),
			Sexdstn:            strings.TrimSpace(r.Sexdstn),
			MxmmShrholdrRelate: strings.TrimSpace(r.MxmmShrholdrRelate),
			HffcPd:             strings.TrimSpace(r.HffcPd),
			TenureEndOn:        strings.TrimSpace(r.TenureEndOn),
		})
	}
	if len(items) == 0 {
		return nil
	}
	return &Officers{BsnsYear: year, ReprtCode: reprtCode, Items: items}
}

// ParseStockTotals pulls the treasury and issued share counts from the
// common-stock row. The treasury count is mandatory; older filings carry it
// under a legacy column name.
func ParseStockTotals(list []dart.StockTotalRow, year int, reprtCode string) *StockTotals {
	for _, r := range list {
		if strings.TrimSpace(r.Se) != "보통주" {
			continue
		}
		raw := r.TesstTotqy
		if strings.TrimSpace(raw) == "" {
			raw = r.TesstkCo
		}
		treasury, ok := parseIntStrict(raw)
		if !ok {
			return nil
		}
		out := &StockTotals{BsnsYear: year, ReprtCode: reprtCode, CommonTreasuryShares: treasury}
		if issued, ok := parseIntStrict(r.IstcTotqy); ok {
			out.TotalIssuedShares = &issued
		}
		return out
	}
	return nil
}

func parseFloatLoose(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(s, ",", "")), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseIntLoose(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(strings.ReplaceAll(s, ",", "")), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseIntStrict(s string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(strings.ReplaceAll(s, ",", "")), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
