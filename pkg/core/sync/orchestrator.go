// Package sync orchestrates a company sync: the structured stage (overview,
// financial statements, company facts, dividends) and the unstructured stage
// (disclosure mining plus text extraction) run in sequence with independent
// failure domains, and the merged result is persisted in one save.
package sync

import (
	"context"
	"fmt"
	"log"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/realonep/dart-openapi/pkg/core/company"
	"github.com/realonep/dart-openapi/pkg/core/config"
	"github.com/realonep/dart-openapi/pkg/core/dart"
	"github.com/realonep/dart-openapi/pkg/core/disclosure"
	"github.com/realonep/dart-openapi/pkg/core/financials"
	"github.com/realonep/dart-openapi/pkg/core/retry"
	"github.com/realonep/dart-openapi/pkg/core/store"
)

// API is the full upstream surface the orchestrator needs; *dart.Client
// implements it.
type API interface {
	FinancialStatements(ctx context.Context, corpCode string, year int, reprtCode, fsDiv string) ([]dart.Account, error)
	Disclosures(ctx context.Context, corpCode, bgn, end string, pageNo, pageCount int) (*dart.DisclosurePage, error)
	Document(ctx context.Context, rceptNo string) ([]byte, error)
	Company(ctx context.Context, corpCode string) (*dart.CompanyProfile, error)
	Shareholders(ctx context.Context, corpCode string, year int, reprtCode string) ([]dart.ShareholderRow, error)
	Officers(ctx context.Context, corpCode string, year int, reprtCode string) ([]dart.OfficerRow, error)
	StockTotals(ctx context.Context, corpCode string, year int, reprtCode string) ([]dart.StockTotalRow, error)
	Delay()
}

// DividendSource provides per-ticker dividend history. The engine only
// defines the contract; a no-op source is wired by default.
type DividendSource interface {
	Dividends(ctx context.Context, stockCode string) ([]store.DividendYear, error)
}

// NoopDividendSource returns no dividend data.
type NoopDividendSource struct{}

func (NoopDividendSource) Dividends(context.Context, string) ([]store.DividendYear, error) {
	return nil, nil
}

// Result summarizes one company sync.
type Result struct {
	CorpCode           string
	CorpName           string
	ConfirmedYears     int
	FinancialYears     int
	GuidanceCount      int
	TreasuryCount      int
	UnstructuredPeriod string
}

// Orchestrator runs company syncs against one API client and one store.
type Orchestrator struct {
	api       API
	store     store.Store
	extractor disclosure.FigureExtractor
	dividends DividendSource
	cfg       *config.Config
	now       func() time.Time
	registry  *Registry
}

// New creates an orchestrator with the no-op dividend source.
func New(api API, st store.Store, ex disclosure.FigureExtractor, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		api:       api,
		store:     st,
		extractor: ex,
		dividends: NoopDividendSource{},
		cfg:       cfg,
		now:       time.Now,
		registry:  NewRegistry(),
	}
}

// SetDividendSource replaces the default no-op dividend source.
func (o *Orchestrator) SetDividendSource(src DividendSource) { o.dividends = src }

// SetClock overrides the time source for tests.
func (o *Orchestrator) SetClock(now func() time.Time) { o.now = now }

func (o *Orchestrator) today() string {
	return o.now().UTC().Format("2006-01-02")
}

// structuredResult carries everything the structured stage produced.
type structuredResult struct {
	corpName     string
	policy       string
	overview     *store.OverviewPayload
	index        *store.IndexEntry
	financials   *store.FinancialsPayload
	dividends    *store.DividendsPayload
	shareholders *store.ShareholdersPayload
	officers     *store.OfficersPayload
	confirmed    int
}

// unstructuredResult carries the mined documents. A nil payload means the
// section was skipped and the persisted copy stays untouched.
type unstructuredResult struct {
	guidance      *store.GuidancePayload
	treasury      *store.TreasuryPayload
	guidanceItems []disclosure.GuidanceItem
	treasuryCount int
}

// SyncCompany runs both stages for one company and persists the result.
// One stage failing is tolerated; both failing is fatal for the company.
func (o *Orchestrator) SyncCompany(ctx context.Context, corpCode string) (*Result, error) {
	jobID, ok := o.registry.Begin(corpCode)
	if !ok {
		return nil, fmt.Errorf("sync for corp %s already in flight (job %s)", corpCode, jobID)
	}
	defer o.registry.Finish(corpCode)

	structured, sErr := o.syncStructured(ctx, corpCode)
	if sErr != nil {
		log.Printf("[Sync] structured stage failed corp=%s: %v", corpCode, sErr)
	}

	latestKey := 0
	if structured != nil {
		latestKey = structured.financials.LatestPeriodKey()
	} else if persisted, err := o.store.LoadFinancials(ctx, corpCode); err == nil {
		latestKey = persisted.LatestPeriodKey()
	}

	unstructured, uErr := o.syncUnstructured(ctx, corpCode, latestKey)
	if uErr != nil {
		log.Printf("[Sync] unstructured stage failed corp=%s: %v", corpCode, uErr)
	}
	if structured == nil && unstructured == nil {
		return nil, fmt.Errorf("both structured and unstructured stages failed for corp %s", corpCode)
	}

	data := &store.CompanyData{}
	res := &Result{CorpCode: corpCode, CorpName: corpCode}
	if structured != nil {
		if unstructured != nil {
			o.applyGuidanceFallback(structured, unstructured.guidanceItems)
		}
		data.Overview = structured.overview
		data.Financials = structured.financials
		data.Dividends = structured.dividends
		data.Shareholders = structured.shareholders
		data.Officers = structured.officers
		res.CorpName = structured.corpName
		res.ConfirmedYears = structured.confirmed
		res.FinancialYears = len(structured.financials.Items)
	}
	if unstructured != nil {
		data.Guidance = unstructured.guidance
		data.Treasury = unstructured.treasury
		res.GuidanceCount = len(unstructured.guidanceItems)
		res.TreasuryCount = unstructured.treasuryCount
		for _, g := range unstructured.guidanceItems {
			if g.Values != nil && g.PeriodLabel != "" {
				res.UnstructuredPeriod = g.PeriodLabel
				break
			}
		}
	}

	if err := o.store.SaveCompany(ctx, corpCode, data); err != nil {
		return nil, fmt.Errorf("persist corp %s: %w", corpCode, err)
	}
	if structured != nil && structured.index != nil {
		if err := o.store.UpsertIndexEntry(ctx, structured.index); err != nil {
			return nil, fmt.Errorf("persist index entry %s: %w", corpCode, err)
		}
	}
	return res, nil
}

func (o *Orchestrator) syncStructured(ctx context.Context, corpCode string) (*structuredResult, error) {
	res := &structuredResult{corpName: corpCode}
	now := o.today()

	profile, err := o.api.Company(ctx, corpCode)
	o.api.Delay()
	if err != nil {
		log.Printf("  [Overview] fetch failed corp=%s: %v", corpCode, err)
	} else if profile.OK() {
		res.corpName = profile.CorpName
		res.overview = &store.OverviewPayload{
			CorpCode:      profile.CorpCode,
			CorpName:      profile.CorpName,
			StockName:     profile.StockName,
			StockCode:     profile.StockCode,
			CEONm:         profile.CEONm,
			CorpCls:       profile.CorpCls,
			IndutyCode:    profile.IndutyCode,
			EstDt:         profile.EstDt,
			AccMt:         profile.AccMt,
			LastUpdatedAt: now,
		}
		res.index = &store.IndexEntry{
			CorpCode:      profile.CorpCode,
			CorpName:      profile.CorpName,
			StockName:     profile.StockName,
			StockCode:     profile.StockCode,
			Market:        profile.CorpCls,
			Induty:        profile.IndutyCode,
			LastUpdatedAt: now,
		}
	}

	fetcher := financials.NewFetcher(o.api, o.now)
	byYear := fetcher.FetchWindow(ctx, corpCode, dart.YearsWindow(o.now()))
	res.policy = financials.ResolvePolicy(byYear)
	records := financials.ComposeYears(financials.ChooseByPolicy(byYear, res.policy))
	if res.overview == nil && len(records) == 0 {
		return nil, fmt.Errorf("no overview and no financial data for corp %s", corpCode)
	}
	for _, r := range records {
		if r.Status == financials.StatusConfirmed {
			res.confirmed++
		}
	}
	res.financials = &store.FinancialsPayload{
		CorpCode:      corpCode,
		FsPolicy:      res.policy,
		Items:         records,
		LastUpdatedAt: now,
	}

	var dividendYears []store.DividendYear
	if res.overview != nil && res.overview.StockCode != "" {
		dividendYears, err = o.dividends.Dividends(ctx, res.overview.StockCode)
		if err != nil {
			log.Printf("  [Dividends] fetch failed corp=%s: %v", corpCode, err)
			dividendYears = nil
		}
	}
	res.dividends = &store.DividendsPayload{
		CorpCode:      corpCode,
		Items:         dividendYears,
		LastUpdatedAt: now,
	}

	facts := company.NewFetcher(o.api, o.now)
	roster, shErr := facts.Shareholders(ctx, corpCode)
	officers, ofErr := facts.Officers(ctx, corpCode)
	totals, _ := facts.StockTotals(ctx, corpCode)

	res.shareholders = &store.ShareholdersPayload{
		CorpCode:      corpCode,
		SyncStatus:    factStatus(shErr, roster != nil),
		LastUpdatedAt: now,
	}
	if roster != nil {
		res.shareholders.BsnsYear = roster.BsnsYear
		res.shareholders.ReprtCode = roster.ReprtCode
		res.shareholders.Items = roster.Items
	}
	if totals != nil {
		treasury := totals.CommonTreasuryShares
		res.shareholders.CommonTreasuryShares = &treasury
		res.shareholders.TotalIssuedShares = totals.TotalIssuedShares
	}
	res.officers = &store.OfficersPayload{
		CorpCode:      corpCode,
		SyncStatus:    factStatus(ofErr, officers != nil),
		LastUpdatedAt: now,
	}
	if officers != nil {
		res.officers.BsnsYear = officers.BsnsYear
		res.officers.ReprtCode = officers.ReprtCode
		res.officers.Items = officers.Items
	}
	return res, nil
}

func factStatus(err error, found bool) string {
	switch {
	case err != nil:
		return "error"
	case found:
		return "ok"
	default:
		return "no_data"
	}
}

func (o *Orchestrator) syncUnstructured(ctx context.Context, corpCode string, latestKey int) (*unstructuredResult, error) {
	existingG, err := o.store.LoadGuidance(ctx, corpCode)
	if err != nil {
		log.Printf("  [Guidance] load failed corp=%s: %v", corpCode, err)
	}
	existingT, err := o.store.LoadTreasury(ctx, corpCode)
	if err != nil {
		log.Printf("  [Treasury] load failed corp=%s: %v", corpCode, err)
	}

	force := o.cfg.ForceRefresh
	needGuidance := force || existingG == nil || existingG.LogicVersion != disclosure.LogicVersion
	needTreasury := force || existingT == nil || existingT.LogicVersion != disclosure.LogicVersion

	res := &unstructuredResult{}
	if existingG != nil {
		res.guidanceItems = existingG.Items
	}
	if existingT != nil {
		res.treasuryCount = len(existingT.Items)
	}
	if !needGuidance && !needTreasury {
		log.Printf("  [Guidance/Treasury] Skip: already parsed with current logic (corp=%s, logic_version=%s)",
			corpCode, disclosure.LogicVersion)
		return res, nil
	}

	miner := disclosure.NewMiner(o.api, o.now)
	mined, err := miner.Mine(ctx, corpCode, disclosure.MineOptions{
		NeedGuidance:             needGuidance,
		NeedTreasury:             needTreasury,
		LatestFinancialPeriodKey: latestKey,
		TreasuryLookbackMonths:   o.cfg.TreasuryLookbackMonths,
	})
	if err != nil {
		return nil, fmt.Errorf("mine disclosures corp %s: %w", corpCode, err)
	}
	now := o.today()

	if needGuidance {
		items := disclosure.BuildGuidance(ctx, o.api, o.extractor, mined.Guidance, corpCode)
		res.guidance = &store.GuidancePayload{
			CorpCode:      corpCode,
			LogicVersion:  disclosure.LogicVersion,
			Items:         items,
			LastUpdatedAt: now,
		}
		res.guidanceItems = items
	} else {
		log.Printf("  [Guidance] Skip: already parsed with current logic (corp=%s, logic_version=%s)",
			corpCode, disclosure.LogicVersion)
	}

	if needTreasury {
		log.Printf("  [Treasury/Policy] corp=%s lookback_months=%d cutoff_rcept_dt=%s",
			corpCode, mined.TreasuryLookbackMonths, mined.TreasuryCutoff)
		items, summary := disclosure.BuildTreasury(ctx, o.api, mined.Treasury, corpCode)
		res.treasury = &store.TreasuryPayload{
			CorpCode:      corpCode,
			LogicVersion:  disclosure.LogicVersion,
			Items:         items,
			YearlySummary: summary,
			FetchPolicy: &store.TreasuryFetchPolicy{
				LookbackMonths: mined.TreasuryLookbackMonths,
				CutoffRceptDt:  mined.TreasuryCutoff,
				Source:         "integrated-list-fetch",
			},
			LastUpdatedAt: now,
		}
		res.treasuryCount = len(items)
	} else {
		log.Printf("  [Treasury] Skip: already parsed with current logic (corp=%s, logic_version=%s)",
			corpCode, disclosure.LogicVersion)
	}
	return res, nil
}

// applyGuidanceFallback synthesizes preliminary annual figures for years the
// structured stage left without an annual snapshot.
func (o *Orchestrator) applyGuidanceFallback(structured *structuredResult, items []disclosure.GuidanceItem) {
	var figures []financials.PreliminaryFigure
	for _, g := range items {
		if g.Values == nil {
			continue
		}
		year := disclosure.ExtractYear(g.ReportNm, g.RceptDt)
		if year == 0 {
			continue
		}
		figures = append(figures, financials.PreliminaryFigure{
			Year:      year,
			Revenue:   g.Values.Revenue,
			OpIncome:  g.Values.OpIncome,
			NetIncome: g.Values.NetIncome,
		})
	}
	if len(figures) == 0 {
		return
	}
	structured.financials.Items = financials.ApplyPreliminary(structured.financials.Items, figures, structured.policy)
}

// SyncAll syncs every target company in concurrency-bounded batches and
// records the run. Per-company failures are collected; the run fails when
// any company failed.
func (o *Orchestrator) SyncAll(ctx context.Context) error {
	started := o.now()
	corps, err := o.store.TargetCorps(ctx)
	if err != nil {
		log.Printf("[Sync] target lookup failed, falling back to config: %v", err)
	}
	if len(corps) == 0 {
		corps = o.cfg.TargetCorps
	}
	if len(corps) == 0 {
		log.Print("[Sync] no sync targets configured")
		return nil
	}

	type outcome struct {
		corpCode string
		res      *Result
		err      error
	}
	failed := 0
	size := o.cfg.CorpConcurrency
	for start := 0; start < len(corps); start += size {
		end := start + size
		if end > len(corps) {
			end = len(corps)
		}
		batch := corps[start:end]
		outcomes := make([]outcome, len(batch))
		var wg gosync.WaitGroup
		for i, corpCode := range batch {
			wg.Add(1)
			go func(i int, corpCode string) {
				defer wg.Done()
				res, err := o.SyncCompany(ctx, corpCode)
				outcomes[i] = outcome{corpCode: corpCode, res: res, err: err}
			}(i, corpCode)
		}
		wg.Wait()
		for _, out := range outcomes {
			if out.err != nil {
				failed++
				log.Printf("[%s] sync failed: %v", out.corpCode, out.err)
				continue
			}
			log.Print(formatResult(out.res))
		}
		if end < len(corps) {
			retry.SmartDelay(150*time.Millisecond, 50*time.Millisecond)
		}
	}

	finished := o.now()
	run := &store.SyncRun{
		ID:          uuid.NewString(),
		StartedAt:   started.UTC().Format(time.RFC3339),
		FinishedAt:  finished.UTC().Format(time.RFC3339),
		Status:      runStatus(len(corps), failed),
		CorpsTotal:  len(corps),
		CorpsFailed: failed,
	}
	if failed > 0 {
		run.ErrorMessage = fmt.Sprintf("%d of %d corps failed", failed, len(corps))
	}
	if err := o.store.RecordSyncRun(ctx, run); err != nil {
		log.Printf("[Sync] recording run failed: %v", err)
	}
	log.Printf("[ALL DONE] corps=%d failed=%d elapsed=%.1fs",
		len(corps), failed, finished.Sub(started).Seconds())
	if failed > 0 {
		return fmt.Errorf("%d of %d corps failed", failed, len(corps))
	}
	return nil
}

func runStatus(total, failed int) string {
	switch {
	case failed == 0:
		return "ok"
	case failed < total:
		return "partial"
	default:
		return "failed"
	}
}

func formatResult(r *Result) string {
	structured := "Fin -"
	if r.ConfirmedYears > 0 {
		structured = "Fin OK"
	}
	unstructured := "Unstructured(-)"
	if r.UnstructuredPeriod != "" {
		unstructured = "LLM Extracted " + r.UnstructuredPeriod
	}
	return fmt.Sprintf("[%s] %s: Structured(%s) | %s -> Done", r.CorpCode, r.CorpName, structured, unstructured)
}
