package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIsBusyErr(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("SQLITE_BUSY: database table is locked"), true},
		{errors.New("Database Is Locked (5)"), true},
		{errors.New("constraint failed"), false},
	}
	for _, c := range cases {
		if got := isBusyErr(c.err); got != c.want {
			t.Errorf("isBusyErr(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestSQLiteSaveCompanyRoundTrip(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()
	if err := s.SaveCompany(ctx, "00126380", sampleCompanyData()); err != nil {
		t.Fatal(err)
	}

	fin, err := s.LoadFinancials(ctx, "00126380")
	if err != nil {
		t.Fatal(err)
	}
	if fin == nil || fin.FsPolicy != "CFS" || len(fin.Items) != 2 {
		t.Fatalf("financials = %+v", fin)
	}
	// Year-status rows come back newest first.
	if fin.Items[0].Year != 2026 || fin.Items[1].Year != 2025 {
		t.Fatalf("year order = %d, %d", fin.Items[0].Year, fin.Items[1].Year)
	}
	q1 := fin.Items[0].Quarters["1Q"]
	if q1 == nil || q1.Revenue == nil || *q1.Revenue != 79_000_000_000_000 {
		t.Fatalf("2026 1Q record = %+v", q1)
	}
	if q1.ReportType != "cumulative" || q1.FsDiv != "CFS" {
		t.Errorf("2026 1Q provenance = %s/%s", q1.ReportType, q1.FsDiv)
	}
	if fin.Items[1].Annual == nil || *fin.Items[1].Annual.Revenue != 300_000_000_000_000 {
		t.Fatalf("2025 annual record = %+v", fin.Items[1].Annual)
	}
	if got := fin.LatestPeriodKey(); got != 20261 {
		t.Errorf("latest period key = %d, want 20261", got)
	}

	g, err := s.LoadGuidance(ctx, "00126380")
	if err != nil {
		t.Fatal(err)
	}
	if g == nil || len(g.Items) != 1 || g.Items[0].PeriodLabel != "2026.2Q" {
		t.Fatalf("guidance = %+v", g)
	}
	if g.Items[0].Values == nil || *g.Items[0].Values.Revenue != 74_000_000_000_000 {
		t.Errorf("guidance values = %+v", g.Items[0].Values)
	}

	tr, err := s.LoadTreasury(ctx, "00126380")
	if err != nil {
		t.Fatal(err)
	}
	if tr == nil || len(tr.Items) != 1 || len(tr.YearlySummary) != 1 {
		t.Fatalf("treasury = %+v", tr)
	}
	if tr.Items[0].RetiredShares == nil || *tr.Items[0].RetiredShares != 1_000_000 {
		t.Errorf("treasury item = %+v", tr.Items[0])
	}
	if tr.Items[0].RetiredAmount != nil {
		t.Error("retired amount must stay nil")
	}
	if tr.FetchPolicy == nil || tr.FetchPolicy.LookbackMonths != 18 {
		t.Errorf("fetch policy = %+v", tr.FetchPolicy)
	}
}

func TestSQLiteSaveCompanyIsIdempotent(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()
	data := sampleCompanyData()
	if err := s.SaveCompany(ctx, "00126380", data); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveCompany(ctx, "00126380", data); err != nil {
		t.Fatal(err)
	}
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM corp_financial_records WHERE corp_code = ?", "00126380").Scan(&n)
	if err != nil {
		t.Fatal(err)
	}
	// One 1Q snapshot for 2026 plus the 2025 annual; the second save must not
	// duplicate them.
	if n != 2 {
		t.Errorf("record rows = %d, want 2", n)
	}
}

func TestSQLiteSaveClearsPreviousRows(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()
	if err := s.SaveCompany(ctx, "00126380", sampleCompanyData()); err != nil {
		t.Fatal(err)
	}
	// The next sync found no guidance. Saving with a guidance section that
	// has no items must remove the stale item rows.
	data := sampleCompanyData()
	data.Guidance.Items = nil
	if err := s.SaveCompany(ctx, "00126380", data); err != nil {
		t.Fatal(err)
	}
	g, err := s.LoadGuidance(ctx, "00126380")
	if err != nil {
		t.Fatal(err)
	}
	if g == nil || len(g.Items) != 0 {
		t.Fatalf("guidance after re-save = %+v, want meta row with no items", g)
	}
}

func TestSQLiteNilSectionsLeaveRowsAlone(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()
	full := sampleCompanyData()
	if err := s.SaveCompany(ctx, "00126380", full); err != nil {
		t.Fatal(err)
	}
	// A later sync whose unstructured stage was version-gated (and whose
	// structured stage failed) saves with those sections nil. The persisted
	// rows must survive.
	if err := s.SaveCompany(ctx, "00126380", &CompanyData{Overview: full.Overview}); err != nil {
		t.Fatal(err)
	}

	fin, err := s.LoadFinancials(ctx, "00126380")
	if err != nil {
		t.Fatal(err)
	}
	if fin == nil || len(fin.Items) != 2 {
		t.Fatalf("financials after nil-section save = %+v", fin)
	}
	g, err := s.LoadGuidance(ctx, "00126380")
	if err != nil {
		t.Fatal(err)
	}
	if g == nil || len(g.Items) != 1 || g.LogicVersion != full.Guidance.LogicVersion {
		t.Fatalf("guidance after nil-section save = %+v", g)
	}
	tr, err := s.LoadTreasury(ctx, "00126380")
	if err != nil {
		t.Fatal(err)
	}
	if tr == nil || len(tr.Items) != 1 || tr.FetchPolicy == nil {
		t.Fatalf("treasury after nil-section save = %+v", tr)
	}
}

func TestSQLiteLoadMissingCompany(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()
	fin, err := s.LoadFinancials(ctx, "99999999")
	if err != nil || fin != nil {
		t.Fatalf("financials: got %+v, %v; want nil, nil", fin, err)
	}
	g, err := s.LoadGuidance(ctx, "99999999")
	if err != nil || g != nil {
		t.Fatalf("guidance: got %+v, %v; want nil, nil", g, err)
	}
	tr, err := s.LoadTreasury(ctx, "99999999")
	if err != nil || tr != nil {
		t.Fatalf("treasury: got %+v, %v; want nil, nil", tr, err)
	}
}

func TestSQLiteTargetCorps(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()
	seed := []struct {
		code   string
		added  string
		active int
	}{
		{"00164779", "2026-01-02", 1},
		{"00126380", "2026-01-01", 1},
		{"00999999", "2026-01-03", 0},
	}
	for _, row := range seed {
		_, err := s.db.Exec(
			"INSERT INTO sync_targets (corp_code, added_at, is_active) VALUES (?, ?, ?)",
			row.code, row.added, row.active)
		if err != nil {
			t.Fatal(err)
		}
	}
	corps, err := s.TargetCorps(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// Active targets only, oldest registration first.
	want := []string{"00126380", "00164779"}
	if len(corps) != len(want) || corps[0] != want[0] || corps[1] != want[1] {
		t.Fatalf("corps = %v, want %v", corps, want)
	}
}

func TestSQLiteRecordSyncRun(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()
	run := &SyncRun{
		ID: "0d9f5b7e-1111-2222-3333-444455556666", StartedAt: "t1", FinishedAt: "t2",
		Status: "partial", CorpsTotal: 3, CorpsFailed: 1, ErrorMessage: "1 of 3 corps failed",
	}
	if err := s.RecordSyncRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	var status string
	var failed int
	err := s.db.QueryRow("SELECT status, corps_failed FROM sync_runs WHERE id = ?", run.ID).Scan(&status, &failed)
	if err != nil {
		t.Fatal(err)
	}
	if status != "partial" || failed != 1 {
		t.Errorf("stored run = %s/%d", status, failed)
	}
}
