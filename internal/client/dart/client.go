package dart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DART open-API status codes.
const (
	statusOK        = "000"
	statusNoData    = "013"
	statusRateLimit = "020"
)

// ErrRateLimited signals that the daily usage quota is exhausted. Callers
// abort the current run and leave their cursor untouched; the quota resets
// the next day.
var ErrRateLimited = errors.New("dart: usage limit exceeded")

type APIError struct {
	Status  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dart API error (%s): %s", e.Status, e.Message)
}

type Client struct {
	host       string
	apiKey     string
	httpClient *http.Client
}

func NewClient(httpClient *http.Client, host, apiKey string) *Client {
	if host == "" {
		host = "https://opendart.fss.or.kr"
	}
	host = strings.TrimRight(host, "/")
	return &Client{
		host:       host,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// Filing is one row of the DART list endpoint.
type Filing struct {
	ReceiptNo   string
	CorpCode    string
	CorpName    string
	StockCode   string
	Title       string
	DisclosedAt time.Time
}

// SourceURL returns the public viewer URL of the filing.
func (f Filing) SourceURL() string {
	return "https://dart.fss.or.kr/dsaf001/main.do?rcpNo=" + f.ReceiptNo
}

type ListParams struct {
	From      time.Time
	To        time.Time
	Watermark string // stop paging once a receipt number <= watermark is seen
	PageLimit int    // rows per page, DART caps at 100
	MaxPages  int    // 0 means no cap (testing hook)
}

type listResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	PageNo    int    `json:"page_no"`
	TotalPage int    `json:"total_page"`
	List      []struct {
		RceptNo   string `json:"rcept_no"`
		CorpCode  string `json:"corp_code"`
		CorpName  string `json:"corp_name"`
		StockCode string `json:"stock_code"`
		ReportNm  string `json:"report_nm"`
		RceptDt   string `json:"rcept_dt"`
	} `json:"list"`
}

// ListFilings pages through the list endpoint newest-first and returns every
// filing with a receipt number greater than the watermark. An empty
// watermark returns the full window.
func (c *Client) ListFilings(ctx context.Context, params ListParams) ([]Filing, error) {
	limit := params.PageLimit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var out []Filing
	for page := 1; ; page++ {
		if params.MaxPages > 0 && page > params.MaxPages {
			break
		}
		resp, err := c.listPage(ctx, params, page, limit)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Status == statusNoData {
				break
			}
			return nil, err
		}

		reachedWatermark := false
		for _, row := range resp.List {
			rcept := strings.TrimSpace(row.RceptNo)
			if rcept == "" {
				continue
			}
			if params.Watermark != "" && rcept <= params.Watermark {
				reachedWatermark = true
				break
			}
			out = append(out, Filing{
				ReceiptNo:   rcept,
				CorpCode:    strings.TrimSpace(row.CorpCode),
				CorpName:    strings.TrimSpace(row.CorpName),
				StockCode:   strings.TrimSpace(row.StockCode),
				Title:       strings.TrimSpace(row.ReportNm),
				DisclosedAt: parseReceiptDate(row.RceptDt),
			})
		}
		if reachedWatermark || resp.PageNo >= resp.TotalPage || len(resp.List) == 0 {
			break
		}
	}
	return out, nil
}

func (c *Client) listPage(ctx context.Context, params ListParams, page, limit int) (*listResponse, error) {
	query := url.Values{}
	query.Set("crtfc_key", c.apiKey)
	query.Set("bgn_de", params.From.Format("20060102"))
	query.Set("end_de", params.To.Format("20060102"))
	query.Set("page_no", strconv.Itoa(page))
	query.Set("page_count", strconv.Itoa(limit))

	body, err := c.doRequest(ctx, "/api/list.json", query)
	if err != nil {
		return nil, err
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode list response: %w", err)
	}
	switch resp.Status {
	case statusOK, statusNoData:
	case statusRateLimit:
		return nil, ErrRateLimited
	default:
		return nil, &APIError{Status: resp.Status, Message: resp.Message}
	}
	return &resp, nil
}

// doRequest performs a GET with bounded retries. Transport failures and 5xx
// responses back off exponentially; 4xx responses fail immediately.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}

	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			lastErr = fmt.Errorf("dart HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("dart HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return body, nil
	}
	return nil, lastErr
}

func parseReceiptDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("20060102", raw, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}
