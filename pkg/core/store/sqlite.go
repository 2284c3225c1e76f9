package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/realonep/dart-openapi/pkg/core/disclosure"
	"github.com/realonep/dart-openapi/pkg/core/financials"
	"github.com/realonep/dart-openapi/pkg/core/retry"
)

// schemaStatements are idempotent; the full set runs on every open.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS corp_index (
		corp_code TEXT PRIMARY KEY,
		corp_name TEXT,
		stock_name TEXT,
		stock_code TEXT,
		market TEXT,
		induty TEXT,
		sector TEXT,
		last_updated_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS corp_overview (
		corp_code TEXT PRIMARY KEY,
		stock_code TEXT,
		corp_name TEXT,
		payload_json TEXT NOT NULL,
		last_updated_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS corp_financial_meta (
		corp_code TEXT PRIMARY KEY,
		financials_fs_policy TEXT,
		last_updated_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS corp_financial_year_status (
		corp_code TEXT NOT NULL,
		year INTEGER NOT NULL,
		status TEXT,
		source TEXT,
		last_updated_at TEXT,
		PRIMARY KEY (corp_code, year)
	)`,
	`CREATE TABLE IF NOT EXISTS corp_financial_records (
		corp_code TEXT NOT NULL,
		year INTEGER NOT NULL,
		period_key TEXT NOT NULL,
		period_type TEXT NOT NULL,
		quarter TEXT,
		revenue REAL,
		op_income REAL,
		net_income REAL,
		equity REAL,
		total_assets REAL,
		debt REAL,
		operating_cf REAL,
		non_cash_adjustments REAL,
		working_capital_change REAL,
		capex_ppe REAL,
		capex_intangible REAL,
		capex_total REAL,
		fcf REAL,
		roe REAL,
		roa REAL,
		debt_ratio REAL,
		status TEXT,
		source TEXT,
		fs_div TEXT,
		report_type TEXT,
		PRIMARY KEY (corp_code, year, period_key)
	)`,
	`CREATE TABLE IF NOT EXISTS corp_dividend_meta (
		corp_code TEXT PRIMARY KEY,
		last_updated_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS corp_dividend_yearly (
		corp_code TEXT NOT NULL,
		year INTEGER NOT NULL,
		total_cash_dividend_per_share REAL,
		dividend_yield_expect REAL,
		payout_ratio REAL,
		dividend_yield REAL,
		last_updated_at TEXT,
		PRIMARY KEY (corp_code, year)
	)`,
	`CREATE TABLE IF NOT EXISTS corp_dividend_details (
		corp_code TEXT NOT NULL,
		year INTEGER NOT NULL,
		detail_idx INTEGER NOT NULL,
		type TEXT,
		label TEXT,
		cash_dividend_per_share REAL,
		rcept_no TEXT,
		report_nm TEXT,
		rcept_dt TEXT,
		status TEXT,
		source TEXT,
		PRIMARY KEY (corp_code, year, detail_idx)
	)`,
	`CREATE TABLE IF NOT EXISTS corp_guidance_meta (
		corp_code TEXT PRIMARY KEY,
		logic_version TEXT,
		last_updated_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS corp_guidance_items (
		corp_code TEXT NOT NULL,
		rcept_no TEXT NOT NULL,
		report_nm TEXT,
		rcept_dt TEXT,
		status TEXT,
		source TEXT,
		report_kind TEXT,
		period_label TEXT,
		revenue REAL,
		op_income REAL,
		net_income REAL,
		cash_dividend_per_share REAL,
		logic_version TEXT,
		last_updated_at TEXT,
		PRIMARY KEY (corp_code, rcept_no)
	)`,
	`CREATE TABLE IF NOT EXISTS corp_treasury_meta (
		corp_code TEXT PRIMARY KEY,
		logic_version TEXT,
		last_updated_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS corp_treasury_items (
		corp_code TEXT NOT NULL,
		rcept_no TEXT NOT NULL,
		year INTEGER,
		report_nm TEXT,
		rcept_dt TEXT,
		event_type TEXT,
		retired_shares REAL,
		retired_amount REAL,
		status TEXT,
		source TEXT,
		confidence TEXT,
		logic_version TEXT,
		last_updated_at TEXT,
		PRIMARY KEY (corp_code, rcept_no)
	)`,
	`CREATE TABLE IF NOT EXISTS corp_treasury_yearly_summary (
		corp_code TEXT NOT NULL,
		year INTEGER NOT NULL,
		retired_shares_total REAL,
		retired_amount_total REAL,
		event_count INTEGER,
		basis TEXT,
		PRIMARY KEY (corp_code, year)
	)`,
	`CREATE TABLE IF NOT EXISTS corp_treasury_fetch_policy (
		corp_code TEXT PRIMARY KEY,
		lookback_months INTEGER,
		cutoff_rcept_dt TEXT,
		source TEXT,
		updated_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS corp_shareholders (
		corp_code TEXT PRIMARY KEY,
		bsns_year INTEGER,
		reprt_code TEXT,
		items_json TEXT NOT NULL,
		common_treasury_shares INTEGER,
		total_issued_shares INTEGER,
		sync_status TEXT,
		last_updated_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS corp_officers (
		corp_code TEXT PRIMARY KEY,
		bsns_year INTEGER,
		reprt_code TEXT,
		items_json TEXT NOT NULL,
		sync_status TEXT,
		last_updated_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS sync_targets (
		corp_code TEXT PRIMARY KEY,
		added_at TEXT NOT NULL,
		memo TEXT,
		is_active INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS sync_runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		status TEXT NOT NULL,
		corps_total INTEGER NOT NULL,
		corps_failed INTEGER NOT NULL,
		error_message TEXT
	)`,
}

// domainTables groups the per-company tables by save domain. A save clears
// only the domains it rewrites; a skipped (nil) section keeps its rows, the
// same contract the file backend honors.
var (
	overviewTables     = []string{"corp_overview"}
	financialsTables   = []string{"corp_financial_meta", "corp_financial_year_status", "corp_financial_records"}
	dividendsTables    = []string{"corp_dividend_meta", "corp_dividend_yearly", "corp_dividend_details"}
	guidanceTables     = []string{"corp_guidance_meta", "corp_guidance_items"}
	treasuryTables     = []string{"corp_treasury_meta", "corp_treasury_items", "corp_treasury_yearly_summary", "corp_treasury_fetch_policy"}
	shareholdersTables = []string{"corp_shareholders"}
	officersTables     = []string{"corp_officers"}
)

// SQLiteStore persists companies in an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path, switches it to WAL and
// ensures the schema exists.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(strings.ToLower(msg), "database is locked")
}

// exec runs a statement under the contention retry policy. Another process
// holding the write lock surfaces as a busy error, which backs off and tries
// again.
func (s *SQLiteStore) exec(ctx context.Context, query string, args ...interface{}) error {
	return retry.DBBusy.Do(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	}, isBusyErr)
}

func iArg(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func fArg(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func i64FromNull(v sql.NullFloat64) *int64 {
	if !v.Valid {
		return nil
	}
	n := int64(v.Float64)
	return &n
}

func f64FromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	n := v.Float64
	return &n
}

// clearDomain removes the company's rows from one domain's tables before
// that domain is rewritten.
func (s *SQLiteStore) clearDomain(ctx context.Context, corpCode string, tables []string) error {
	for _, table := range tables {
		if err := s.exec(ctx, "DELETE FROM "+table+" WHERE corp_code = ?", corpCode); err != nil {
			return fmt.Errorf("clear %s for %s: %w", table, corpCode, err)
		}
	}
	return nil
}

// SaveCompany rewrites every non-nil section delete-then-insert. Nil sections
// are left untouched, so a sync stage that was skipped or failed never erases
// what an earlier run persisted.
func (s *SQLiteStore) SaveCompany(ctx context.Context, corpCode string, data *CompanyData) error {
	if data == nil {
		return nil
	}
	if data.Overview != nil {
		if err := s.clearDomain(ctx, corpCode, overviewTables); err != nil {
			return err
		}
		if err := s.saveOverview(ctx, corpCode, data.Overview); err != nil {
			return err
		}
	}
	if data.Financials != nil {
		if err := s.clearDomain(ctx, corpCode, financialsTables); err != nil {
			return err
		}
		if err := s.saveFinancials(ctx, corpCode, data.Financials); err != nil {
			return err
		}
	}
	if data.Dividends != nil {
		if err := s.clearDomain(ctx, corpCode, dividendsTables); err != nil {
			return err
		}
		if err := s.saveDividends(ctx, corpCode, data.Dividends); err != nil {
			return err
		}
	}
	if data.Guidance != nil {
		if err := s.clearDomain(ctx, corpCode, guidanceTables); err != nil {
			return err
		}
		if err := s.saveGuidance(ctx, corpCode, data.Guidance); err != nil {
			return err
		}
	}
	if data.Treasury != nil {
		if err := s.clearDomain(ctx, corpCode, treasuryTables); err != nil {
			return err
		}
		if err := s.saveTreasury(ctx, corpCode, data.Treasury); err != nil {
			return err
		}
	}
	if data.Shareholders != nil {
		if err := s.clearDomain(ctx, corpCode, shareholdersTables); err != nil {
			return err
		}
		if err := s.saveShareholders(ctx, corpCode, data.Shareholders); err != nil {
			return err
		}
	}
	if data.Officers != nil {
		if err := s.clearDomain(ctx, corpCode, officersTables); err != nil {
			return err
		}
		if err := s.saveOfficers(ctx, corpCode, data.Officers); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) saveOverview(ctx context.Context, corpCode string, p *OverviewPayload) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal overview %s: %w", corpCode, err)
	}
	return s.exec(ctx, `INSERT OR REPLACE INTO corp_overview (
		corp_code, stock_code, corp_name, payload_json, last_updated_at
	) VALUES (?, ?, ?, ?, ?)`,
		corpCode, p.StockCode, p.CorpName, string(payload), p.LastUpdatedAt)
}

func (s *SQLiteStore) saveFinancials(ctx context.Context, corpCode string, p *FinancialsPayload) error {
	err := s.exec(ctx, `INSERT OR REPLACE INTO corp_financial_meta (
		corp_code, financials_fs_policy, last_updated_at
	) VALUES (?, ?, ?)`,
		corpCode, p.FsPolicy, p.LastUpdatedAt)
	if err != nil {
		return err
	}
	for _, yr := range p.Items {
		err := s.exec(ctx, `INSERT OR REPLACE INTO corp_financial_year_status (
			corp_code, year, status, source, last_updated_at
		) VALUES (?, ?, ?, ?, ?)`,
			corpCode, yr.Year, yr.Status, yr.Source, p.LastUpdatedAt)
		if err != nil {
			return err
		}
		if yr.Annual != nil {
			if err := s.saveFinancialRecord(ctx, corpCode, yr.Year, "annual", "annual", yr.Annual); err != nil {
				return err
			}
		}
		for quarter, ind := range yr.Quarters {
			if ind == nil {
				continue
			}
			if err := s.saveFinancialRecord(ctx, corpCode, yr.Year, quarter, "quarter", ind); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *SQLiteStore) saveFinancialRecord(ctx context.Context, corpCode string, year int, periodKey, periodType string, p *financials.PeriodIndicators) error {
	return s.exec(ctx, `INSERT OR REPLACE INTO corp_financial_records (
		corp_code, year, period_key, period_type, quarter, revenue, op_income, net_income, equity,
		total_assets, debt, operating_cf, non_cash_adjustments, working_capital_change,
		capex_ppe, capex_intangible, capex_total, fcf, roe, roa, debt_ratio, status, source, fs_div, report_type
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		corpCode, year, periodKey, periodType, p.Quarter,
		iArg(p.Revenue), iArg(p.OpIncome), iArg(p.NetIncome), iArg(p.Equity),
		iArg(p.TotalAssets), iArg(p.Debt), iArg(p.OperatingCF), iArg(p.NonCashAdjustments), iArg(p.WorkingCapitalChange),
		iArg(p.CapexPPE), iArg(p.CapexIntangible), iArg(p.CapexTotal), iArg(p.FCF),
		fArg(p.ROE), fArg(p.ROA), fArg(p.DebtRatio),
		p.Status, p.Source, p.FsDiv, p.ReportType)
}

func (s *SQLiteStore) saveDividends(ctx context.Context, corpCode string, p *DividendsPayload) error {
	err := s.exec(ctx, `INSERT OR REPLACE INTO corp_dividend_meta (corp_code, last_updated_at) VALUES (?, ?)`,
		corpCode, p.LastUpdatedAt)
	if err != nil {
		return err
	}
	for _, yr := range p.Items {
		err := s.exec(ctx, `INSERT OR REPLACE INTO corp_dividend_yearly (
			corp_code, year, total_cash_dividend_per_share, dividend_yield_expect, payout_ratio, dividend_yield, last_updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			corpCode, yr.Year, fArg(yr.TotalCashDividendPerShare), fArg(yr.DividendYieldExpect),
			fArg(yr.PayoutRatio), fArg(yr.DividendYield), p.LastUpdatedAt)
		if err != nil {
			return err
		}
		for i, d := range yr.Details {
			err := s.exec(ctx, `INSERT OR REPLACE INTO corp_dividend_details (
				corp_code, year, detail_idx, type, label, cash_dividend_per_share,
				rcept_no, report_nm, rcept_dt, status, source
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				corpCode, yr.Year, i, d.Type, d.Label, fArg(d.CashDividendPerShare),
				d.RceptNo, d.ReportNm, d.RceptDt, d.Status, d.Source)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *SQLiteStore) saveGuidance(ctx context.Context, corpCode string, p *GuidancePayload) error {
	err := s.exec(ctx, `INSERT OR REPLACE INTO corp_guidance_meta (corp_code, logic_version, last_updated_at) VALUES (?, ?, ?)`,
		corpCode, p.LogicVersion, p.LastUpdatedAt)
	if err != nil {
		return err
	}
	for _, item := range p.Items {
		if item.RceptNo == "" {
			continue
		}
		values := item.Values
		if values == nil {
			values = &disclosure.GuidanceValues{}
		}
		err := s.exec(ctx, `INSERT OR REPLACE INTO corp_guidance_items (
			corp_code, rcept_no, report_nm, rcept_dt, status, source, report_kind, period_label,
			revenue, op_income, net_income, cash_dividend_per_share, logic_version, last_updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			corpCode, item.RceptNo, item.ReportNm, item.RceptDt, item.Status, item.Source,
			item.ReportKind, item.PeriodLabel,
			iArg(values.Revenue), iArg(values.OpIncome), iArg(values.NetIncome), fArg(values.CashDividendPerShare),
			p.LogicVersion, p.LastUpdatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) saveTreasury(ctx context.Context, corpCode string, p *TreasuryPayload) error {
	err := s.exec(ctx, `INSERT OR REPLACE INTO corp_treasury_meta (corp_code, logic_version, last_updated_at) VALUES (?, ?, ?)`,
		corpCode, p.LogicVersion, p.LastUpdatedAt)
	if err != nil {
		return err
	}
	for _, item := range p.Items {
		if item.RceptNo == "" {
			continue
		}
		err := s.exec(ctx, `INSERT OR REPLACE INTO corp_treasury_items (
			corp_code, rcept_no, year, report_nm, rcept_dt, event_type, retired_shares, retired_amount,
			status, source, confidence, logic_version, last_updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			corpCode, item.RceptNo, item.Year, item.ReportNm, item.RceptDt, item.EventType,
			iArg(item.RetiredShares), iArg(item.RetiredAmount),
			item.Status, item.Source, item.Confidence, p.LogicVersion, p.LastUpdatedAt)
		if err != nil {
			return err
		}
	}
	for _, row := range p.YearlySummary {
		err := s.exec(ctx, `INSERT OR REPLACE INTO corp_treasury_yearly_summary (
			corp_code, year, retired_shares_total, retired_amount_total, event_count, basis
		) VALUES (?, ?, ?, ?, ?, ?)`,
			corpCode, row.Year, iArg(row.RetiredSharesTotal), iArg(row.RetiredAmountTotal),
			row.EventCount, row.Basis)
		if err != nil {
			return err
		}
	}
	if p.FetchPolicy != nil {
		err := s.exec(ctx, `INSERT OR REPLACE INTO corp_treasury_fetch_policy (
			corp_code, lookback_months, cutoff_rcept_dt, source, updated_at
		) VALUES (?, ?, ?, ?, ?)`,
			corpCode, p.FetchPolicy.LookbackMonths, p.FetchPolicy.CutoffRceptDt,
			p.FetchPolicy.Source, p.LastUpdatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) saveShareholders(ctx context.Context, corpCode string, p *ShareholdersPayload) error {
	items, err := json.Marshal(p.Items)
	if err != nil {
		return fmt.Errorf("marshal shareholders %s: %w", corpCode, err)
	}
	return s.exec(ctx, `INSERT OR REPLACE INTO corp_shareholders (
		corp_code, bsns_year, reprt_code, items_json, common_treasury_shares, total_issued_shares, sync_status, last_updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		corpCode, p.BsnsYear, p.ReprtCode, string(items),
		iArg(p.CommonTreasuryShares), iArg(p.TotalIssuedShares), p.SyncStatus, p.LastUpdatedAt)
}

func (s *SQLiteStore) saveOfficers(ctx context.Context, corpCode string, p *OfficersPayload) error {
	items, err := json.Marshal(p.Items)
	if err != nil {
		return fmt.Errorf("marshal officers %s: %w", corpCode, err)
	}
	return s.exec(ctx, `INSERT OR REPLACE INTO corp_officers (
		corp_code, bsns_year, reprt_code, items_json, sync_status, last_updated_at
	) VALUES (?, ?, ?, ?, ?, ?)`,
		corpCode, p.BsnsYear, p.ReprtCode, string(items), p.SyncStatus, p.LastUpdatedAt)
}

// LoadFinancials rebuilds the composed document from the meta, year-status
// and record tables.
func (s *SQLiteStore) LoadFinancials(ctx context.Context, corpCode string) (*FinancialsPayload, error) {
	p := &FinancialsPayload{CorpCode: corpCode}
	err := s.db.QueryRowContext(ctx,
		"SELECT financials_fs_policy, last_updated_at FROM corp_financial_meta WHERE corp_code = ?",
		corpCode).Scan(&p.FsPolicy, &p.LastUpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load financial meta %s: %w", corpCode, err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT year, status, source FROM corp_financial_year_status WHERE corp_code = ? ORDER BY year DESC",
		corpCode)
	if err != nil {
		return nil, fmt.Errorf("load year status %s: %w", corpCode, err)
	}
	defer rows.Close()
	for rows.Next() {
		var yr financials.YearRecord
		if err := rows.Scan(&yr.Year, &yr.Status, &yr.Source); err != nil {
			return nil, err
		}
		p.Items = append(p.Items, yr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	years := make(map[int]*financials.YearRecord, len(p.Items))
	for i := range p.Items {
		years[p.Items[i].Year] = &p.Items[i]
	}

	recs, err := s.db.QueryContext(ctx, `SELECT
		year, period_key, quarter, revenue, op_income, net_income, equity,
		total_assets, debt, operating_cf, non_cash_adjustments, working_capital_change,
		capex_ppe, capex_intangible, capex_total, fcf, roe, roa, debt_ratio,
		status, source, fs_div, report_type
	FROM corp_financial_records WHERE corp_code = ?`, corpCode)
	if err != nil {
		return nil, fmt.Errorf("load financial records %s: %w", corpCode, err)
	}
	defer recs.Close()
	for recs.Next() {
		var (
			year                                     int
			periodKey                                string
			quarter, status, source, fsDiv, repType  sql.NullString
			revenue, opIncome, netIncome, equity     sql.NullFloat64
			totalAssets, debt, operatingCF           sql.NullFloat64
			nonCash, wcChange, capexPPE, capexIntang sql.NullFloat64
			capexTotal, fcf, roe, roa, debtRatio     sql.NullFloat64
		)
		err := recs.Scan(&year, &periodKey, &quarter,
			&revenue, &opIncome, &netIncome, &equity,
			&totalAssets, &debt, &operatingCF, &nonCash, &wcChange,
			&capexPPE, &capexIntang, &capexTotal, &fcf, &roe, &roa, &debtRatio,
			&status, &source, &fsDiv, &repType)
		if err != nil {
			return nil, err
		}
		yr, ok := years[year]
		if !ok {
			continue
		}
		ind := &financials.PeriodIndicators{
			Year:                 year,
			Quarter:              quarter.String,
			Revenue:              i64FromNull(revenue),
			OpIncome:             i64FromNull(opIncome),
			NetIncome:            i64FromNull(netIncome),
			Equity:               i64FromNull(equity),
			TotalAssets:          i64FromNull(totalAssets),
			Debt:                 i64FromNull(debt),
			OperatingCF:          i64FromNull(operatingCF),
			NonCashAdjustments:   i64FromNull(nonCash),
			WorkingCapitalChange: i64FromNull(wcChange),
			CapexPPE:             i64FromNull(capexPPE),
			CapexIntangible:      i64FromNull(capexIntang),
			CapexTotal:           i64FromNull(capexTotal),
			FCF:                  i64FromNull(fcf),
			ROE:                  f64FromNull(roe),
			ROA:                  f64FromNull(roa),
			DebtRatio:            f64FromNull(debtRatio),
			Status:               status.String,
			Source:               source.String,
			FsDiv:                fsDiv.String,
			ReportType:           repType.String,
		}
		if periodKey == "annual" {
			yr.Annual = ind
		} else {
			if yr.Quarters == nil {
				yr.Quarters = map[string]*financials.PeriodIndicators{}
			}
			yr.Quarters[periodKey] = ind
		}
	}
	if err := recs.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadGuidance rebuilds the guidance document, newest filings first.
func (s *SQLiteStore) LoadGuidance(ctx context.Context, corpCode string) (*GuidancePayload, error) {
	p := &GuidancePayload{CorpCode: corpCode}
	err := s.db.QueryRowContext(ctx,
		"SELECT logic_version, last_updated_at FROM corp_guidance_meta WHERE corp_code = ?",
		corpCode).Scan(&p.LogicVersion, &p.LastUpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load guidance meta %s: %w", corpCode, err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT
		rcept_no, report_nm, rcept_dt, status, source, report_kind, period_label,
		revenue, op_income, net_income, cash_dividend_per_share
	FROM corp_guidance_items WHERE corp_code = ? ORDER BY rcept_dt DESC, rcept_no DESC`, corpCode)
	if err != nil {
		return nil, fmt.Errorf("load guidance items %s: %w", corpCode, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			item                          disclosure.GuidanceItem
			revenue, opIncome, netIncome  sql.NullFloat64
			dps                           sql.NullFloat64
			status, source, kind, period  sql.NullString
			reportNm                      sql.NullString
		)
		err := rows.Scan(&item.RceptNo, &reportNm, &item.RceptDt, &status, &source, &kind, &period,
			&revenue, &opIncome, &netIncome, &dps)
		if err != nil {
			return nil, err
		}
		item.ReportNm = reportNm.String
		item.Status = status.String
		item.Source = source.String
		item.ReportKind = kind.String
		item.PeriodLabel = period.String
		if revenue.Valid || opIncome.Valid || netIncome.Valid || dps.Valid {
			item.Values = &disclosure.GuidanceValues{
				Revenue:              i64FromNull(revenue),
				OpIncome:             i64FromNull(opIncome),
				NetIncome:            i64FromNull(netIncome),
				CashDividendPerShare: f64FromNull(dps),
			}
		}
		p.Items = append(p.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadTreasury rebuilds the treasury document with its yearly summary and
// fetch policy.
func (s *SQLiteStore) LoadTreasury(ctx context.Context, corpCode string) (*TreasuryPayload, error) {
	p := &TreasuryPayload{CorpCode: corpCode}
	err := s.db.QueryRowContext(ctx,
		"SELECT logic_version, last_updated_at FROM corp_treasury_meta WHERE corp_code = ?",
		corpCode).Scan(&p.LogicVersion, &p.LastUpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load treasury meta %s: %w", corpCode, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT
		rcept_no, year, report_nm, rcept_dt, event_type, retired_shares, retired_amount,
		status, source, confidence
	FROM corp_treasury_items WHERE corp_code = ? ORDER BY rcept_dt DESC, rcept_no DESC`, corpCode)
	if err != nil {
		return nil, fmt.Errorf("load treasury items %s: %w", corpCode, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			item                     disclosure.TreasuryItem
			year                     sql.NullInt64
			shares, amount           sql.NullFloat64
			reportNm, eventType      sql.NullString
			status, source, confid   sql.NullString
		)
		err := rows.Scan(&item.RceptNo, &year, &reportNm, &item.RceptDt, &eventType,
			&shares, &amount, &status, &source, &confid)
		if err != nil {
			return nil, err
		}
		item.Year = int(year.Int64)
		item.ReportNm = reportNm.String
		item.EventType = eventType.String
		item.RetiredShares = i64FromNull(shares)
		item.RetiredAmount = i64FromNull(amount)
		item.Status = status.String
		item.Source = source.String
		item.Confidence = confid.String
		p.Items = append(p.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	yearly, err := s.db.QueryContext(ctx, `SELECT
		year, retired_shares_total, retired_amount_total, event_count, basis
	FROM corp_treasury_yearly_summary WHERE corp_code = ? ORDER BY year DESC`, corpCode)
	if err != nil {
		return nil, fmt.Errorf("load treasury summary %s: %w", corpCode, err)
	}
	defer yearly.Close()
	for yearly.Next() {
		var (
			row            disclosure.TreasuryYearlySummary
			shares, amount sql.NullFloat64
			count          sql.NullInt64
			basis          sql.NullString
		)
		if err := yearly.Scan(&row.Year, &shares, &amount, &count, &basis); err != nil {
			return nil, err
		}
		row.RetiredSharesTotal = i64FromNull(shares)
		row.RetiredAmountTotal = i64FromNull(amount)
		row.EventCount = int(count.Int64)
		row.Basis = basis.String
		p.YearlySummary = append(p.YearlySummary, row)
	}
	if err := yearly.Err(); err != nil {
		return nil, err
	}

	var policy TreasuryFetchPolicy
	var cutoff, source sql.NullString
	var lookback sql.NullInt64
	err = s.db.QueryRowContext(ctx,
		"SELECT lookback_months, cutoff_rcept_dt, source FROM corp_treasury_fetch_policy WHERE corp_code = ?",
		corpCode).Scan(&lookback, &cutoff, &source)
	if err == nil {
		policy.LookbackMonths = int(lookback.Int64)
		policy.CutoffRceptDt = cutoff.String
		policy.Source = source.String
		p.FetchPolicy = &policy
	} else if err != sql.ErrNoRows {
		return nil, fmt.Errorf("load treasury fetch policy %s: %w", corpCode, err)
	}
	return p, nil
}

func (s *SQLiteStore) UpsertIndexEntry(ctx context.Context, entry *IndexEntry) error {
	if entry == nil || entry.CorpCode == "" {
		return nil
	}
	return s.exec(ctx, `INSERT OR REPLACE INTO corp_index (
		corp_code, corp_name, stock_name, stock_code, market, induty, sector, last_updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.CorpCode, entry.CorpName, entry.StockName, entry.StockCode,
		entry.Market, entry.Induty, entry.Sector, entry.LastUpdatedAt)
}

// TargetCorps lists the active sync targets in registration order.
func (s *SQLiteStore) TargetCorps(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT corp_code FROM sync_targets WHERE is_active = 1 ORDER BY added_at")
	if err != nil {
		return nil, fmt.Errorf("load sync targets: %w", err)
	}
	defer rows.Close()
	var corps []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		corps = append(corps, code)
	}
	return corps, rows.Err()
}

func (s *SQLiteStore) RecordSyncRun(ctx context.Context, run *SyncRun) error {
	if run == nil {
		return nil
	}
	return s.exec(ctx, `INSERT OR REPLACE INTO sync_runs (
		id, started_at, finished_at, status, corps_total, corps_failed, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt, run.FinishedAt, run.Status,
		run.CorpsTotal, run.CorpsFailed, run.ErrorMessage)
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
