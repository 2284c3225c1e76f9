package dart

// Open DART response status codes.
const (
	StatusOK     = "000"
	StatusNoData = "013"
)

// Statement scope codes (fs_div parameter).
const (
	ScopeConsolidated = "CFS"
	ScopeSeparate     = "OFS"
)

// apiStatus is the envelope every JSON endpoint shares.
type apiStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Account is one accounting line item from fnlttSinglAcntAll.json.
// ThstrmAddAmount carries the year-to-date cumulative figure on interim
// reports; ThstrmAmount is the single-period figure.
type Account struct {
	SjDiv           string `json:"sj_div"`     // statement division: BS, IS, CIS, CF, SCE
	AccountID       string `json:"account_id"` // standard account id, e.g. ifrs-full_Revenue
	AccountNm       string `json:"account_nm"`
	FsDiv           string `json:"fs_div"` // CFS or OFS
	ThstrmAmount    string `json:"thstrm_amount"`
	ThstrmAddAmount string `json:"thstrm_add_amount"`
}

type financialsResponse struct {
	apiStatus
	List []Account `json:"list"`
}

// Disclosure is one row of the list.json disclosure listing.
type Disclosure struct {
	RceptNo  string `json:"rcept_no"`
	ReportNm string `json:"report_nm"`
	RceptDt  string `json:"rcept_dt"` // YYYYMMDD
}

// DisclosurePage is one page of the date-ranged disclosure listing.
type DisclosurePage struct {
	apiStatus
	PageNo     int          `json:"page_no"`
	PageCount  int          `json:"page_count"`
	TotalCount int          `json:"total_count"`
	TotalPage  int          `json:"total_page"`
	List       []Disclosure `json:"list"`
}

// CompanyProfile is the company.json overview payload.
type CompanyProfile struct {
	apiStatus
	CorpCode   string `json:"corp_code"`
	CorpName   string `json:"corp_name"`
	StockName  string `json:"stock_name"`
	StockCode  string `json:"stock_code"`
	CEONm      string `json:"ceo_nm"`
	CorpCls    string `json:"corp_cls"`
	IndutyCode string `json:"induty_code"`
	EstDt      string `json:"est_dt"`
	AccMt      string `json:"acc_mt"`
}

// OK reports whether the profile response carried data.
func (p *CompanyProfile) OK() bool { return p != nil && p.Status == StatusOK }

// ShareholderRow is one row of hyslrSttus.json (largest shareholders).
type ShareholderRow struct {
	Nm                    string `json:"nm"`
	Relate                string `json:"relate"`
	StockKnd              string `json:"stock_knd"`
	TrmendPosesnStockCo   string `json:"trmend_posesn_stock_co"`
	TrmendPosesnStockRate string `json:"trmend_posesn_stock_qota_rt"`
}

type shareholdersResponse struct {
	apiStatus
	List []ShareholderRow `json:"list"`
}

// OfficerRow is one row of exctvSttus.json (registered officers).
type OfficerRow struct {
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

type officersResponse struct {
	apiStatus
	List []OfficerRow `json:"list"`
}

// StockTotalRow is one row of stockTotqySttus.json (total shares by class).
type StockTotalRow struct {
	Se         string `json:"se"` // share class label, 보통주 for common stock
	IstcTotqy  string `json:"istc_totqy"`
	TesstTotqy string `json:"tesst_totqy"`
	TesstkCo   string `json:"tesstk_co"` // legacy field name for treasury count
}

type stockTotalsResponse struct {
	apiStatus
	List []StockTotalRow `json:"list"`
}
