// Package store persists synchronized company data. Two backends exist, a
// JSON file tree and an embedded relational database, plus a dual-write
// wrapper; all of them rewrite each domain atomically from the reader's
// point of view (delete then insert, or file replace) and leave nil
// sections untouched.
package store

import (
	"context"
	"fmt"

	"github.com/realonep/dart-openapi/pkg/core/company"
	"github.com/realonep/dart-openapi/pkg/core/disclosure"
	"github.com/realonep/dart-openapi/pkg/core/financials"
)

// Persistence modes.
const (
	ModeFile = "file"
	ModeDB   = "db"
	ModeDual = "dual"
)

// OverviewPayload is the company.json profile as persisted.
type OverviewPayload struct {
	CorpCode      string `json:"corp_code"`
	CorpName      string `json:"corp_name"`
	StockName     string `json:"stock_name"`
	StockCode     string `json:"stock_code"`
	CEONm         string `json:"ceo_nm"`
	CorpCls       string `json:"corp_cls"`
	IndutyCode    string `json:"induty_code"`
	EstDt         string `json:"est_dt"`
	AccMt         string `json:"acc_mt"`
	LastUpdatedAt string `json:"last_updated_at"`
}

// FinancialsPayload is the composed structured-financials document.
type FinancialsPayload struct {
	CorpCode      string                  `json:"corp_code"`
	FsPolicy      string                  `json:"financials_fs_policy"`
	Items         []financials.YearRecord `json:"items"`
	LastUpdatedAt string                  `json:"last_updated_at"`
}

// LatestPeriodKey returns the highest structured period key, zero when none.
func (p *FinancialsPayload) LatestPeriodKey() int {
	if p == nil {
		return 0
	}
	return financials.LatestPeriodKey(p.Items)
}

// GuidancePayload is the reconciled guidance document.
type GuidancePayload struct {
	CorpCode      string                    `json:"corp_code"`
	LogicVersion  string                    `json:"logic_version"`
	Items         []disclosure.GuidanceItem `json:"items"`
	LastUpdatedAt string                    `json:"last_updated_at"`
}

// TreasuryFetchPolicy records the window the treasury scan used, so a later
// run can tell whether the persisted data already covers its window.
type TreasuryFetchPolicy struct {
	LookbackMonths int    `json:"lookback_months"`
	CutoffRceptDt  string `json:"cutoff_rcept_dt"`
	Source         string `json:"source"`
}

// TreasuryPayload is the parsed treasury-retirement document.
type TreasuryPayload struct {
	CorpCode      string                             `json:"corp_code"`
	LogicVersion  string                             `json:"logic_version"`
	Items         []disclosure.TreasuryItem          `json:"items"`
	YearlySummary []disclosure.TreasuryYearlySummary `json:"yearly_summary"`
	FetchPolicy   *TreasuryFetchPolicy               `json:"fetch_policy,omitempty"`
	LastUpdatedAt string                             `json:"last_updated_at"`
}

// ShareholdersPayload is the aggregated largest-shareholder roster, merged
// with the treasury/issued share counts from the stock-totals table.
type ShareholdersPayload struct {
	CorpCode             string                    `json:"corp_code"`
	BsnsYear             int                       `json:"bsns_year"`
	ReprtCode            string                    `json:"reprt_code"`
	Items                []company.ShareholderItem `json:"items"`
	CommonTreasuryShares *int64                    `json:"common_treasury_shares,omitempty"`
	TotalIssuedShares    *int64                    `json:"total_issued_shares,omitempty"`
	SyncStatus           string                    `json:"sync_status"`
	LastUpdatedAt        string                    `json:"last_updated_at"`
}

// OfficersPayload is the registered-officer roster.
type OfficersPayload struct {
	CorpCode      string                `json:"corp_code"`
	BsnsYear      int                   `json:"bsns_year"`
	ReprtCode     string                `json:"reprt_code"`
	Items         []company.OfficerItem `json:"items"`
	SyncStatus    string                `json:"sync_status"`
	LastUpdatedAt string                `json:"last_updated_at"`
}

// DividendDetail is one per-filing dividend entry.
type DividendDetail struct {
	Type                 string   `json:"type"`
	Label                string   `json:"label"`
	CashDividendPerShare *float64 `json:"cash_dividend_per_share"`
	RceptNo              string   `json:"rcept_no"`
	ReportNm             string   `json:"report_nm"`
	RceptDt              string   `json:"rcept_dt"`
	Status               string   `json:"status"`
	Source               string   `json:"source"`
}

// DividendYear aggregates one fiscal year of dividends.
type DividendYear struct {
	Year                      int              `json:"year"`
	TotalCashDividendPerShare *float64         `json:"total_cash_dividend_per_share"`
	DividendYieldExpect       *float64         `json:"dividend_yield_expect"`
	PayoutRatio               *float64         `json:"payout_ratio"`
	DividendYield             *float64         `json:"dividend_yield"`
	Details                   []DividendDetail `json:"details,omitempty"`
}

// DividendsPayload is the per-company dividend document.
type DividendsPayload struct {
	CorpCode      string         `json:"corp_code"`
	Items         []DividendYear `json:"items"`
	LastUpdatedAt string         `json:"last_updated_at"`
}

// IndexEntry is one row of the company index.
type IndexEntry struct {
	CorpCode      string `json:"corp_code"`
	CorpName      string `json:"corp_name"`
	StockName     string `json:"stock_name"`
	StockCode     string `json:"stock_code"`
	Market        string `json:"market"`
	Induty        string `json:"induty"`
	Sector        string `json:"sector"`
	LastUpdatedAt string `json:"last_updated_at"`
}

// CompanyData bundles everything one sync produced for one company. Nil
// sections are left untouched by SaveCompany.
type CompanyData struct {
	Overview     *OverviewPayload
	Financials   *FinancialsPayload
	Dividends    *DividendsPayload
	Guidance     *GuidancePayload
	Treasury     *TreasuryPayload
	Shareholders *ShareholdersPayload
	Officers     *OfficersPayload
}

// SyncRun is one recorded orchestrator run.
type SyncRun struct {
	ID           string `json:"id"`
	StartedAt    string `json:"started_at"`
	FinishedAt   string `json:"finished_at"`
	Status       string `json:"status"`
	CorpsTotal   int    `json:"corps_total"`
	CorpsFailed  int    `json:"corps_failed"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Store is the persistence surface the sync pipeline writes through.
// Load methods return (nil, nil) when the company has no persisted data.
type Store interface {
	SaveCompany(ctx context.Context, corpCode string, data *CompanyData) error
	LoadFinancials(ctx context.Context, corpCode string) (*FinancialsPayload, error)
	LoadGuidance(ctx context.Context, corpCode string) (*GuidancePayload, error)
	LoadTreasury(ctx context.Context, corpCode string) (*TreasuryPayload, error)
	UpsertIndexEntry(ctx context.Context, entry *IndexEntry) error
	TargetCorps(ctx context.Context) ([]string, error)
	RecordSyncRun(ctx context.Context, run *SyncRun) error
	Close() error
}

// Open builds a store for the configured persistence mode.
func Open(mode, dataDir, dbPath string) (Store, error) {
	switch mode {
	case ModeFile, "":
		return NewFileStore(dataDir), nil
	case ModeDB:
		return OpenSQLite(dbPath)
	case ModeDual:
		db, err := OpenSQLite(dbPath)
		if err != nil {
			return nil, err
		}
		return NewDualStore(NewFileStore(dataDir), db), nil
	default:
		return nil, fmt.Errorf("unknown persistence mode %q", mode)
	}
}
