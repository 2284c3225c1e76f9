package sync

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/realonep/dart-openapi/pkg/core/config"
	"github.com/realonep/dart-openapi/pkg/core/dart"
	"github.com/realonep/dart-openapi/pkg/core/extract"
	"github.com/realonep/dart-openapi/pkg/core/store"
)

// fixedNow pins the clock: annual reports exist through 2025 and the
// half-year report is the most advanced 2026 filing.
var fixedNow = func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) }

func zipDoc(t *testing.T, name, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(body)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// fakeAPI serves one healthy company and errors the listing for corps in
// failListing.
type fakeAPI struct {
	statements   map[string][]dart.Account // "year/reprt/fs"
	disclosures  []dart.Disclosure
	docs         map[string][]byte
	shareholders []dart.ShareholderRow
	failListing  map[string]bool
	docCalls     int
}

func (f *fakeAPI) FinancialStatements(_ context.Context, corpCode string, year int, reprtCode, fsDiv string) ([]dart.Account, error) {
	if f.failListing[corpCode] {
		return nil, errors.New("upstream statements outage")
	}
	list, ok := f.statements[fmt.Sprintf("%d/%s/%s", year, reprtCode, fsDiv)]
	if !ok {
		return nil, dart.ErrNoData
	}
	return list, nil
}

func (f *fakeAPI) Disclosures(_ context.Context, corpCode, _, _ string, pageNo, _ int) (*dart.DisclosurePage, error) {
	if f.failListing[corpCode] {
		return nil, errors.New("upstream listing outage")
	}
	if pageNo != 1 || len(f.disclosures) == 0 {
		return nil, dart.ErrNoData
	}
	return &dart.DisclosurePage{
		PageNo:     1,
		TotalPage:  1,
		TotalCount: len(f.disclosures),
		List:       f.disclosures,
	}, nil
}

func (f *fakeAPI) Document(_ context.Context, rceptNo string) ([]byte, error) {
	f.docCalls++
	b, ok := f.docs[rceptNo]
	if !ok {
		return nil, dart.ErrNoData
	}
	return b, nil
}

func (f *fakeAPI) Company(_ context.Context, corpCode string) (*dart.CompanyProfile, error) {
	if f.failListing[corpCode] {
		return nil, errors.New("upstream profile outage")
	}
	var p dart.CompanyProfile
	raw := fmt.Sprintf(`{"status":"000","corp_code":%q,"corp_name":"삼성전자","stock_name":"삼성전자","stock_code":"005930","ceo_nm":"한종희","corp_cls":"Y","induty_code":"264","est_dt":"19690113","acc_mt":"12"}`, corpCode)
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (f *fakeAPI) Shareholders(_ context.Context, _ string, _ int, _ string) ([]dart.ShareholderRow, error) {
	if len(f.shareholders) == 0 {
		return nil, dart.ErrNoData
	}
	return f.shareholders, nil
}

func (f *fakeAPI) Officers(context.Context, string, int, string) ([]dart.OfficerRow, error) {
	return nil, dart.ErrNoData
}

func (f *fakeAPI) StockTotals(context.Context, string, int, string) ([]dart.StockTotalRow, error) {
	return nil, dart.ErrNoData
}

func (f *fakeAPI) Delay() {}

// fakeExtractor maps text fragments to canned figures.
type fakeExtractor struct {
	byFragment map[string]*extract.Figures
	calls      int
}

func (f *fakeExtractor) ExtractFigures(_ context.Context, text string) (*extract.Figures, error) {
	f.calls++
	for frag, figs := range f.byFragment {
		if strings.Contains(text, frag) {
			return figs, nil
		}
	}
	return &extract.Figures{}, nil
}

func strp(s string) *string { return &s }
func i64p(v int64) *int64   { return &v }

func healthyAPI(t *testing.T) *fakeAPI {
	t.Helper()
	return &fakeAPI{
		statements: map[string][]dart.Account{
			"2025/" + dart.ReportAnnual + "/CFS": {
				{SjDiv: "IS", AccountID: "ifrs-full_Revenue", AccountNm: "매출액", FsDiv: "CFS", ThstrmAmount: "300,000,000,000,000"},
				{SjDiv: "IS", AccountID: "ifrs-full_ProfitLossFromOperatingActivities", AccountNm: "영업이익", FsDiv: "CFS", ThstrmAmount: "32,000,000,000,000"},
				{SjDiv: "IS", AccountID: "ifrs-full_ProfitLoss", AccountNm: "당기순이익", FsDiv: "CFS", ThstrmAmount: "26,000,000,000,000"},
			},
		},
		disclosures: []dart.Disclosure{
			{RceptNo: "g1", ReportNm: "연결재무제표기준영업(잠정)실적", RceptDt: "20260708"},
			{RceptNo: "t1", ReportNm: "주요사항보고서(자기주식소각결정)", RceptDt: "20260415"},
		},
		docs: map[string][]byte{
			"g1": zipDoc(t, "g1.xml", "<body>연결재무제표 기준 영업(잠정)실적 공시입니다. (단위: 억원) 당기실적 매출액 740,000 영업이익 90,000 전년동기 대비 증감</body>"),
			"t1": zipDoc(t, "t1.xml", "<body>주요사항보고서. 이사회는 주주가치 제고를 위한 자기주식 소각을 결의하였습니다. 소각 주식수 : 100,000 소각예정일 2026년 4월 30일</body>"),
		},
		shareholders: []dart.ShareholderRow{
			{Nm: "이재용", Relate: "본인", StockKnd: "보통주", TrmendPosesnStockCo: "1,000,000", TrmendPosesnStockRate: "9.12"},
		},
		failListing: map[string]bool{},
	}
}

func newTestOrchestrator(t *testing.T, api *fakeAPI, dataDir string) (*Orchestrator, *fakeExtractor) {
	t.Helper()
	ex := &fakeExtractor{byFragment: map[string]*extract.Figures{
		"(잠정)실적 공시": {
			PeriodLabel: strp("2026.2Q"),
			UnitLabel:   strp("억원"),
			Revenue:     i64p(74_000_000_000_000),
			OpIncome:    i64p(9_000_000_000_000),
		},
	}}
	cfg := config.Defaults()
	cfg.DartAPIKey = "test-key"
	o := New(api, store.NewFileStore(dataDir), ex, cfg)
	o.SetClock(fixedNow)
	return o, ex
}

func TestSyncCompanyFullFlow(t *testing.T) {
	dataDir := t.TempDir()
	api := healthyAPI(t)
	o, _ := newTestOrchestrator(t, api, dataDir)
	ctx := context.Background()

	res, err := o.SyncCompany(ctx, "00126380")
	if err != nil {
		t.Fatal(err)
	}
	if res.CorpName != "삼성전자" {
		t.Errorf("corp name = %s", res.CorpName)
	}
	if res.ConfirmedYears != 1 {
		t.Errorf("confirmed years = %d, want 1 (only 2025 has an annual report)", res.ConfirmedYears)
	}
	if res.GuidanceCount != 1 || res.TreasuryCount != 1 {
		t.Errorf("guidance/treasury = %d/%d, want 1/1", res.GuidanceCount, res.TreasuryCount)
	}
	if res.UnstructuredPeriod != "2026.2Q" {
		t.Errorf("unstructured period = %s", res.UnstructuredPeriod)
	}

	st := store.NewFileStore(dataDir)
	fin, err := st.LoadFinancials(ctx, "00126380")
	if err != nil || fin == nil {
		t.Fatalf("financials: %+v, %v", fin, err)
	}
	// The 2026.2Q guidance backfills a preliminary 2026 year on top of the
	// confirmed 2025 annual.
	if len(fin.Items) != 2 {
		t.Fatalf("financial years = %d, want 2", len(fin.Items))
	}
	if fin.Items[0].Year != 2026 || fin.Items[0].Status != "preliminary" {
		t.Errorf("2026 = %d/%s, want preliminary", fin.Items[0].Year, fin.Items[0].Status)
	}
	if fin.Items[0].Annual == nil || *fin.Items[0].Annual.Revenue != 74_000_000_000_000 {
		t.Errorf("2026 preliminary annual = %+v", fin.Items[0].Annual)
	}
	if fin.Items[1].Year != 2025 || fin.Items[1].Status != "confirmed" {
		t.Errorf("2025 = %d/%s, want confirmed", fin.Items[1].Year, fin.Items[1].Status)
	}
	if fin.FsPolicy != "CFS" {
		t.Errorf("policy = %s", fin.FsPolicy)
	}

	tr, err := st.LoadTreasury(ctx, "00126380")
	if err != nil || tr == nil {
		t.Fatalf("treasury: %+v, %v", tr, err)
	}
	// 18 months before 2026-08-28.
	if tr.FetchPolicy == nil || tr.FetchPolicy.CutoffRceptDt != "20250228" {
		t.Errorf("fetch policy = %+v", tr.FetchPolicy)
	}
	if len(tr.Items) != 1 || *tr.Items[0].RetiredShares != 100_000 {
		t.Errorf("treasury items = %+v", tr.Items)
	}

	var sh store.ShareholdersPayload
	b, err := os.ReadFile(filepath.Join(dataDir, "corp", "00126380", "shareholders.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(b, &sh); err != nil {
		t.Fatal(err)
	}
	if sh.SyncStatus != "ok" || len(sh.Items) != 1 || sh.Items[0].Nm != "이재용" {
		t.Errorf("shareholders = %+v", sh)
	}

	var of store.OfficersPayload
	b, err = os.ReadFile(filepath.Join(dataDir, "corp", "00126380", "officers.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(b, &of); err != nil {
		t.Fatal(err)
	}
	if of.SyncStatus != "no_data" || len(of.Items) != 0 {
		t.Errorf("officers = %+v", of)
	}
}

func TestSyncCompanySkipsUnstructuredWhenVersionCurrent(t *testing.T) {
	dataDir := t.TempDir()
	api := healthyAPI(t)
	o, ex := newTestOrchestrator(t, api, dataDir)
	ctx := context.Background()

	if _, err := o.SyncCompany(ctx, "00126380"); err != nil {
		t.Fatal(err)
	}
	extractions := ex.calls
	docFetches := api.docCalls

	res, err := o.SyncCompany(ctx, "00126380")
	if err != nil {
		t.Fatal(err)
	}
	if ex.calls != extractions || api.docCalls != docFetches {
		t.Errorf("second run re-mined: extractions %d->%d, doc fetches %d->%d",
			extractions, ex.calls, docFetches, api.docCalls)
	}
	// The persisted guidance still feeds the result and the fallback.
	if res.GuidanceCount != 1 || res.UnstructuredPeriod != "2026.2Q" {
		t.Errorf("result after skip = %+v", res)
	}
}

func TestSyncCompanyForceRefreshReMines(t *testing.T) {
	dataDir := t.TempDir()
	api := healthyAPI(t)
	o, ex := newTestOrchestrator(t, api, dataDir)
	ctx := context.Background()

	if _, err := o.SyncCompany(ctx, "00126380"); err != nil {
		t.Fatal(err)
	}
	o.cfg.ForceRefresh = true
	before := ex.calls
	if _, err := o.SyncCompany(ctx, "00126380"); err != nil {
		t.Fatal(err)
	}
	if ex.calls == before {
		t.Error("force refresh must re-run extraction")
	}
}

func TestSyncAllRecordsPartialRun(t *testing.T) {
	dataDir := t.TempDir()
	api := healthyAPI(t)
	api.failListing["00999999"] = true
	o, _ := newTestOrchestrator(t, api, dataDir)
	o.cfg.TargetCorps = []string{"00126380", "00999999"}

	err := o.SyncAll(context.Background())
	if err == nil {
		t.Fatal("expected a failed-corps error")
	}
	if !strings.Contains(err.Error(), "1 of 2") {
		t.Errorf("err = %v", err)
	}

	var runs []store.SyncRun
	b, readErr := os.ReadFile(filepath.Join(dataDir, "meta", "sync-runs.json"))
	if readErr != nil {
		t.Fatal(readErr)
	}
	if err := json.Unmarshal(b, &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	if runs[0].Status != "partial" || runs[0].CorpsTotal != 2 || runs[0].CorpsFailed != 1 {
		t.Errorf("run = %+v", runs[0])
	}
	if runs[0].ID == "" {
		t.Error("run id must be set")
	}
}

func TestSyncAllNoTargetsIsNoop(t *testing.T) {
	dataDir := t.TempDir()
	o, _ := newTestOrchestrator(t, healthyAPI(t), dataDir)
	if err := o.SyncAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "meta", "sync-runs.json")); !os.IsNotExist(err) {
		t.Error("no-op run must not be recorded")
	}
}
