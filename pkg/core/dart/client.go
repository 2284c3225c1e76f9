// Package dart provides the Open DART API client: structured financial
// statements, the disclosure listing, original document bundles and the
// slowly-changing company fact endpoints.
package dart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/realonep/dart-openapi/pkg/core/retry"
)

const (
	defaultBaseURL = "https://opendart.fss.or.kr/api"
	UserAgent      = "dart-openapi-sync/1.0"
)

// ErrNoData signals the API's explicit "no data" status (013). It is not a
// failure: callers short-circuit the probe and move to the next candidate.
var ErrNoData = errors.New("dart: no data for request")

// Client calls the Open DART HTTP API. Transient failures are retried with
// the configured policy; ErrNoData is never retried.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	policy     retry.Policy

	// Inter-call pacing applied by Delay between consecutive upstream calls.
	baseDelay time.Duration
	jitter    time.Duration
}

// NewClient creates a client with the default endpoint, retry policy and
// rate-limit pacing (150ms base + 50ms jitter).
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		policy:     retry.Default,
		baseDelay:  150 * time.Millisecond,
		jitter:     50 * time.Millisecond,
	}
}

// SetBaseURL overrides the API endpoint (tests point this at a local server).
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

// SetRetryPolicy overrides the per-call retry policy.
func (c *Client) SetRetryPolicy(p retry.Policy) { c.policy = p }

// SetPacing overrides the inter-call delay applied by Delay.
func (c *Client) SetPacing(base, jitter time.Duration) {
	c.baseDelay = base
	c.jitter = jitter
}

// Delay sleeps the base delay plus random jitter. Call it between
// consecutive API requests.
func (c *Client) Delay() { retry.SmartDelay(c.baseDelay, c.jitter) }

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	q := url.Values{}
	q.Set("crtfc_key", c.apiKey)
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	fullURL := fmt.Sprintf("%s/%s?%s", c.baseURL, path, q.Encode())

	return c.policy.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", UserAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("dart %s returned status %d", path, resp.StatusCode)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return json.Unmarshal(body, out)
	}, func(err error) bool {
		// Decode errors and context cancellation are not transient.
		var jsonErr *json.SyntaxError
		return !errors.As(err, &jsonErr) && ctx.Err() == nil
	})
}

// FinancialStatements fetches all accounting line items for one
// (company, year, report type, statement scope) combination.
func (c *Client) FinancialStatements(ctx context.Context, corpCode string, year int, reprtCode, fsDiv string) ([]Account, error) {
	params := url.Values{}
	params.Set("corp_code", corpCode)
	params.Set("bsns_year", fmt.Sprintf("%d", year))
	params.Set("reprt_code", reprtCode)
	params.Set("fs_div", fsDiv)

	var raw financialsResponse
	if err := c.getJSON(ctx, "fnlttSinglAcntAll.json", params, &raw); err != nil {
		return nil, err
	}
	log.Printf("  [Financials/API] corp=%s year=%d reprt=%s fs_div=%s status=%s count=%d",
		corpCode, year, reprtCode, fsDiv, raw.Status, len(raw.List))
	if raw.Status == StatusNoData || (raw.Status == StatusOK && len(raw.List) == 0) {
		return nil, ErrNoData
	}
	if raw.Status != StatusOK {
		return nil, fmt.Errorf("dart financials status=%s: %s", raw.Status, raw.Message)
	}
	return raw.List, nil
}

// Disclosures fetches one page of the date-ranged disclosure listing.
// bgn and end are YYYYMMDD strings. Returns ErrNoData when the range holds
// no disclosures at all.
func (c *Client) Disclosures(ctx context.Context, corpCode, bgn, end string, pageNo, pageCount int) (*DisclosurePage, error) {
	params := url.Values{}
	params.Set("corp_code", corpCode)
	params.Set("bgn_de", bgn)
	params.Set("end_de", end)
	params.Set("page_no", fmt.Sprintf("%d", pageNo))
	params.Set("page_count", fmt.Sprintf("%d", pageCount))

	var raw DisclosurePage
	if err := c.getJSON(ctx, "list.json", params, &raw); err != nil {
		return nil, err
	}
	log.Printf("  [DisclosureList/API] corp=%s page=%d status=%s count=%d", corpCode, pageNo, raw.Status, len(raw.List))
	if raw.Status == StatusNoData {
		return nil, ErrNoData
	}
	if raw.Status != StatusOK {
		return nil, fmt.Errorf("dart list status=%s: %s", raw.Status, raw.Message)
	}
	return &raw, nil
}

// Document downloads the original disclosure bundle (a ZIP holding one
// XML/HTML document) for a receipt number.
func (c *Client) Document(ctx context.Context, rceptNo string) ([]byte, error) {
	q := url.Values{}
	q.Set("crtfc_key", c.apiKey)
	q.Set("rcept_no", rceptNo)
	fullURL := fmt.Sprintf("%s/document.xml?%s", c.baseURL, q.Encode())

	var body []byte
	err := c.policy.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", UserAgent)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("dart document.xml returned status %d", resp.StatusCode)
		}
		body, err = io.ReadAll(resp.Body)
		return err
	}, nil)
	if err != nil {
		return nil, err
	}
	okZip := len(body) >= 2 && body[0] == 0x50 && body[1] == 0x4b
	log.Printf("  [Document/API] rcept_no=%s status=%s bytes=%d", rceptNo, map[bool]string{true: "000", false: "error"}[okZip], len(body))
	if !okZip {
		return nil, fmt.Errorf("dart document.xml for %s is not a zip bundle (%d bytes)", rceptNo, len(body))
	}
	return body, nil
}

// Company fetches the company.json overview.
func (c *Client) Company(ctx context.Context, corpCode string) (*CompanyProfile, error) {
	params := url.Values{}
	params.Set("corp_code", corpCode)
	var raw CompanyProfile
	if err := c.getJSON(ctx, "company.json", params, &raw); err != nil {
		return nil, err
	}
	log.Printf("  [Overview/API] corp=%s status=%s", corpCode, raw.Status)
	if raw.Status == StatusNoData {
		return nil, ErrNoData
	}
	if raw.Status != StatusOK {
		return nil, fmt.Errorf("dart company status=%s: %s", raw.Status, raw.Message)
	}
	return &raw, nil
}

// Shareholders fetches the largest-shareholder roster for one
// (year, report type) probe.
func (c *Client) Shareholders(ctx context.Context, corpCode string, year int, reprtCode string) ([]ShareholderRow, error) {
	var raw shareholdersResponse
	if err := c.getJSON(ctx, "hyslrSttus.json", c.reportParams(corpCode, year, reprtCode), &raw); err != nil {
		return nil, err
	}
	return listOrErr("hyslrSttus", raw.apiStatus, raw.List)
}

// Officers fetches the registered-officer roster for one probe.
func (c *Client) Officers(ctx context.Context, corpCode string, year int, reprtCode string) ([]OfficerRow, error) {
	var raw officersResponse
	if err := c.getJSON(ctx, "exctvSttus.json", c.reportParams(corpCode, year, reprtCode), &raw); err != nil {
		return nil, err
	}
	return listOrErr("exctvSttus", raw.apiStatus, raw.List)
}

// StockTotals fetches the total-shares-by-class table for one probe.
func (c *Client) StockTotals(ctx context.Context, corpCode string, year int, reprtCode string) ([]StockTotalRow, error) {
	var raw stockTotalsResponse
	if err := c.getJSON(ctx, "stockTotqySttus.json", c.reportParams(corpCode, year, reprtCode), &raw); err != nil {
		return nil, err
	}
	return listOrErr("stockTotqySttus", raw.apiStatus, raw.List)
}

func (c *Client) reportParams(corpCode string, year int, reprtCode string) url.Values {
	params := url.Values{}
	params.Set("corp_code", corpCode)
	params.Set("bsns_year", fmt.Sprintf("%d", year))
	params.Set("reprt_code", reprtCode)
	return params
}

func listOrErr[T any](tag string, st apiStatus, list []T) ([]T, error) {
	if st.Status == StatusNoData || (st.Status == StatusOK && len(list) == 0) {
		return nil, ErrNoData
	}
	if st.Status != StatusOK {
		return nil, fmt.Errorf("dart %s status=%s: %s", tag, st.Status, st.Message)
	}
	return list, nil
}
