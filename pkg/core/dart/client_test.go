package dart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/realonep/dart-openapi/pkg/core/retry"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient("test-key")
	c.SetBaseURL(srv.URL)
	c.SetRetryPolicy(retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Jitter: 0})
	return c, srv
}

func TestFinancialStatementsParsesAccounts(t *testing.T) {
	var gotQuery map[string]string
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"crtfc_key":  r.URL.Query().Get("crtfc_key"),
			"bsns_year":  r.URL.Query().Get("bsns_year"),
			"reprt_code": r.URL.Query().Get("reprt_code"),
			"fs_div":     r.URL.Query().Get("fs_div"),
		}
		fmt.Fprint(w, `{"status":"000","message":"정상","list":[
			{"sj_div":"IS","account_id":"ifrs-full_Revenue","account_nm":"매출액","fs_div":"CFS","thstrm_amount":"1,000"},
			{"sj_div":"BS","account_id":"ifrs-full_Equity","account_nm":"자본총계","fs_div":"CFS","thstrm_amount":"2,000"}]}`)
	})
	defer srv.Close()

	list, err := c.FinancialStatements(context.Background(), "00126380", 2025, ReportAnnual, ScopeConsolidated)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].AccountID != "ifrs-full_Revenue" {
		t.Errorf("list = %+v", list)
	}
	want := map[string]string{"crtfc_key": "test-key", "bsns_year": "2025", "reprt_code": "11011", "fs_div": "CFS"}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query %s = %q, want %q", k, gotQuery[k], v)
		}
	}
}

func TestFinancialStatementsNoData(t *testing.T) {
	status := "013"
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"status":%q,"message":"조회된 데이타가 없습니다.","list":[]}`, status)
	})
	defer srv.Close()

	// An explicit 013 and an empty 000 list both mean no data.
	for _, s := range []string{"013", "000"} {
		status = s
		_, err := c.FinancialStatements(context.Background(), "00126380", 2026, ReportAnnual, ScopeConsolidated)
		if !errors.Is(err, ErrNoData) {
			t.Errorf("status %s: err = %v, want ErrNoData", s, err)
		}
	}
}

func TestErrorStatusIsNotNoData(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"020","message":"사용한도 초과"}`)
	})
	defer srv.Close()

	_, err := c.Company(context.Background(), "00126380")
	if err == nil || errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want a hard status error", err)
	}
	if !strings.Contains(err.Error(), "020") {
		t.Errorf("err = %v, must carry the upstream status", err)
	}
}

func TestTransientServerErrorIsRetried(t *testing.T) {
	calls := 0
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"status":"000","message":"정상","corp_code":"00126380","corp_name":"삼성전자"}`)
	})
	defer srv.Close()

	p, err := c.Company(context.Background(), "00126380")
	if err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (one failure, one retry)", calls)
	}
	if p.CorpName != "삼성전자" {
		t.Errorf("profile = %+v", p)
	}
}

func TestDocumentChecksZipMagic(t *testing.T) {
	body := "<html>오류</html>"
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	})
	defer srv.Close()

	if _, err := c.Document(context.Background(), "20260101000001"); err == nil {
		t.Error("non-zip body must be rejected")
	}

	body = "PK\x03\x04 pretend zip payload"
	got, err := c.Document(context.Background(), "20260101000001")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != body {
		t.Errorf("body = %q", got)
	}
}

func TestShareholdersEmptyListIsNoData(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"000","message":"정상","list":[]}`)
	})
	defer srv.Close()

	_, err := c.Shareholders(context.Background(), "00126380", 2025, ReportAnnual)
	if !errors.Is(err, ErrNoData) {
		t.Errorf("err = %v, want ErrNoData", err)
	}
}
