package krx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Client struct {
	host       string
	httpClient *http.Client
	// downloadClient carries the longer timeout used for the full symbol
	// master download.
	downloadClient *http.Client
}

func NewClient(httpClient, downloadClient *http.Client, host string) *Client {
	if host == "" {
		host = "https://kind.krx.co.kr"
	}
	host = strings.TrimRight(host, "/")
	if downloadClient == nil {
		downloadClient = httpClient
	}
	return &Client{
		host:           host,
		httpClient:     httpClient,
		downloadClient: downloadClient,
	}
}

// Listing is one row of the symbol master download.
type Listing struct {
	Symbol   string `json:"short_code"`
	Name     string `json:"corp_name"`
	Market   string `json:"market"`
	CorpCode string `json:"corp_code"`
	Delisted bool   `json:"delisted"`
}

// Candle is one day of OHLCV for a symbol.
type Candle struct {
	Date   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

type candleRow struct {
	Date   string          `json:"trd_dd"`
	Open   decimal.Decimal `json:"opnprc"`
	High   decimal.Decimal `json:"hgprc"`
	Low    decimal.Decimal `json:"lwprc"`
	Close  decimal.Decimal `json:"clsprc"`
	Volume int64           `json:"acc_trdvol"`
}

// DownloadListings fetches the full symbol master. The payload is a few MB,
// hence the dedicated download client with its longer timeout.
func (c *Client) DownloadListings(ctx context.Context) ([]Listing, error) {
	body, err := c.doRequest(ctx, c.downloadClient, "/corpgeneral/corpList.json", nil)
	if err != nil {
		return nil, err
	}
	var out []Listing
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode listings: %w", err)
	}
	return out, nil
}

// Candles fetches daily OHLCV rows for one symbol over an inclusive date
// range, oldest first.
func (c *Client) Candles(ctx context.Context, symbol string, from, to time.Time) ([]Candle, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	query := url.Values{}
	query.Set("isu_cd", symbol)
	query.Set("bgn_dd", from.Format("20060102"))
	query.Set("end_dd", to.Format("20060102"))

	body, err := c.doRequest(ctx, c.httpClient, "/marketdata/daily.json", query)
	if err != nil {
		return nil, err
	}
	var rows []candleRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode candles: %w", err)
	}

	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		loc = time.UTC
	}
	out := make([]Candle, 0, len(rows))
	for _, row := range rows {
		date, err := time.ParseInLocation("20060102", strings.TrimSpace(row.Date), loc)
		if err != nil {
			continue
		}
		out = append(out, Candle{
			Date:   date,
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: row.Volume,
		})
	}
	return out, nil
}

// LatestCandle returns the most recent daily candle inside a two-week
// lookback, or nil when the symbol has not traded.
func (c *Client) LatestCandle(ctx context.Context, symbol string) (*Candle, error) {
	now := time.Now()
	candles, err := c.Candles(ctx, symbol, now.AddDate(0, 0, -14), now)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, nil
	}
	latest := candles[len(candles)-1]
	return &latest, nil
}

func (c *Client) doRequest(ctx context.Context, client *http.Client, path string, query url.Values) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("krx HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
