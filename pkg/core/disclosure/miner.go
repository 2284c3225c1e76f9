package disclosure

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/realonep/dart-openapi/pkg/core/dart"
	"github.com/realonep/dart-openapi/pkg/core/extract"
	"github.com/realonep/dart-openapi/pkg/core/retry"
)

const (
	// PageSize is the listing page size; PageDelay paces consecutive pages.
	PageSize  = 100
	PageDelay = 150 * time.Millisecond

	// MaxGuidanceItems is the number of guidance entries kept after
	// reconciliation; the miner collects up to six times as many candidates
	// because corrections and re-filings collapse during dedup.
	MaxGuidanceItems = 2
	MaxTreasuryItems = 40

	// TreasuryMinYears bounds how many calendar years of retirement filings
	// are considered; TreasuryLookbackMonths bounds the receipt date.
	TreasuryMinYears       = 3
	TreasuryLookbackMonths = 18

	// LogicVersion gates re-extraction: persisted results parsed with the
	// same version are reused instead of re-running the model. The value
	// lives next to the extraction prompt, which is what a bump tracks.
	LogicVersion = extract.LogicVersion
)

// ListingAPI is the slice of the DART client the miner needs.
type ListingAPI interface {
	Disclosures(ctx context.Context, corpCode, bgn, end string, pageNo, pageCount int) (*dart.DisclosurePage, error)
	Delay()
}

// MineOptions tunes one listing scan.
type MineOptions struct {
	NeedGuidance bool
	NeedTreasury bool

	// LatestFinancialPeriodKey stops the guidance scan once a candidate's
	// period is already covered by structured financials. Zero disables the
	// cutoff.
	LatestFinancialPeriodKey int

	// TreasuryLookbackMonths overrides the receipt-date window; zero means
	// the default.
	TreasuryLookbackMonths int
}

// MineResult is the classified raw candidate set of one scan.
type MineResult struct {
	Guidance []dart.Disclosure
	Treasury []dart.Disclosure

	TreasuryLookbackMonths int
	TreasuryCutoff         string // YYYYMMDD
}

// Miner walks the disclosure listing newest-first and classifies titles into
// the guidance and treasury candidate sets, stopping each track as soon as
// its own cutoff is reached.
type Miner struct {
	api ListingAPI
	now func() time.Time
}

// NewMiner creates a miner. now is injectable for tests; nil means time.Now.
func NewMiner(api ListingAPI, now func() time.Time) *Miner {
	if now == nil {
		now = time.Now
	}
	return &Miner{api: api, now: now}
}

// Mine scans the listing from the start of last year through today.
func (m *Miner) Mine(ctx context.Context, corpCode string, opts MineOptions) (*MineResult, error) {
	now := m.now()
	nowYear := now.Year()
	lookback := opts.TreasuryLookbackMonths
	if lookback <= 0 {
		lookback = TreasuryLookbackMonths
	}
	res := &MineResult{
		TreasuryLookbackMonths: lookback,
		TreasuryCutoff:         now.AddDate(0, -lookback, 0).Format("20060102"),
	}
	if !opts.NeedGuidance && !opts.NeedTreasury {
		return res, nil
	}

	bgn := fmt.Sprintf("%d0101", nowYear-1)
	end := now.Format("20060102")
	stopTreasuryBeforeYear := nowYear - (TreasuryMinYears - 1)
	guidanceScanLimit := MaxGuidanceItems * 6

	guidanceDone := !opts.NeedGuidance
	treasuryDone := !opts.NeedTreasury
	guidanceSeen := map[string]bool{}
	treasurySeen := map[string]bool{}

	totalPage := 1
	for pageNo := 1; pageNo <= totalPage; pageNo++ {
		page, err := m.api.Disclosures(ctx, corpCode, bgn, end, pageNo, PageSize)
		if err != nil {
			if errors.Is(err, dart.ErrNoData) && pageNo == 1 {
				return res, nil
			}
			return nil, fmt.Errorf("disclosure listing page %d: %w", pageNo, err)
		}
		m.api.Delay()

		for _, item := range page.List {
			if item.RceptNo == "" {
				continue
			}
			if !guidanceDone && IsGuidanceTitle(item.ReportNm) && !guidanceSeen[item.RceptNo] {
				key := PeriodKeyFromLabel(PeriodLabel(item.ReportNm, item.RceptDt))
				if opts.LatestFinancialPeriodKey > 0 && key > 0 && key <= opts.LatestFinancialPeriodKey {
					guidanceDone = true
				} else {
					guidanceSeen[item.RceptNo] = true
					res.Guidance = append(res.Guidance, item)
					if len(res.Guidance) >= guidanceScanLimit {
						guidanceDone = true
					}
				}
			}
			if !treasuryDone && IsTreasuryTitle(item.ReportNm) && !treasurySeen[item.RceptNo] {
				y := ExtractYear(item.ReportNm, item.RceptDt)
				if y >= stopTreasuryBeforeYear && y <= nowYear && (item.RceptDt == "" || item.RceptDt >= res.TreasuryCutoff) {
					treasurySeen[item.RceptNo] = true
					res.Treasury = append(res.Treasury, item)
					if len(res.Treasury) >= MaxTreasuryItems {
						treasuryDone = true
					}
				}
			}
		}

		if pageNo == 1 {
			switch {
			case page.TotalPage > 0:
				totalPage = page.TotalPage
			case page.TotalCount > 0:
				totalPage = (page.TotalCount + PageSize - 1) / PageSize
			}
		}

		// The listing is newest-first: once the page tail falls out of the
		// treasury window, deeper pages cannot re-enter it.
		if !treasuryDone && len(page.List) > 0 {
			last := page.List[len(page.List)-1]
			if y := ExtractYear(last.ReportNm, last.RceptDt); y > 0 && y < stopTreasuryBeforeYear {
				treasuryDone = true
			}
			if last.RceptDt != "" && last.RceptDt < res.TreasuryCutoff {
				treasuryDone = true
			}
		}

		if guidanceDone && treasuryDone {
			break
		}
		if pageNo < totalPage {
			retry.SmartDelay(PageDelay, 0)
		}
	}
	log.Printf("  [DisclosureList] corp=%s guidance=%d treasury=%d cutoff=%s", corpCode, len(res.Guidance), len(res.Treasury), res.TreasuryCutoff)
	return res, nil
}
