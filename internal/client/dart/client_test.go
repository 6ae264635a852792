package dart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func listServer(t *testing.T, pages map[int]string) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/api/list.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("crtfc_key") != "test-key" {
			t.Errorf("missing api key")
		}
		page := 1
		fmt.Sscanf(r.URL.Query().Get("page_no"), "%d", &page)
		body, ok := pages[page]
		if !ok {
			body = `{"status":"013","message":"no data"}`
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func listWindow() (time.Time, time.Time) {
	to := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	return to.AddDate(0, 0, -7), to
}

func TestListFilings_PagesNewestFirst(t *testing.T) {
	srv, calls := listServer(t, map[int]string{
		1: `{"status":"000","page_no":1,"total_page":2,"list":[
			{"rcept_no":"20260210000300","corp_code":"c1","corp_name":"A","stock_code":"005930","report_nm":"보고서3","rcept_dt":"20260210"},
			{"rcept_no":"20260210000200","corp_code":"c2","corp_name":"B","stock_code":"000660","report_nm":"보고서2","rcept_dt":"20260210"}]}`,
		2: `{"status":"000","page_no":2,"total_page":2,"list":[
			{"rcept_no":"20260209000100","corp_code":"c3","corp_name":"C","stock_code":"","report_nm":"보고서1","rcept_dt":"20260209"}]}`,
	})

	c := NewClient(srv.Client(), srv.URL, "test-key")
	from, to := listWindow()
	filings, err := c.ListFilings(context.Background(), ListParams{From: from, To: to})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(filings) != 3 {
		t.Fatalf("got %d filings, want 3", len(filings))
	}
	if filings[0].ReceiptNo != "20260210000300" || filings[2].ReceiptNo != "20260209000100" {
		t.Fatalf("unexpected order: %v", filings)
	}
	if *calls != 2 {
		t.Fatalf("calls=%d want 2", *calls)
	}
	if filings[0].SourceURL() != "https://dart.fss.or.kr/dsaf001/main.do?rcpNo=20260210000300" {
		t.Fatalf("source url = %q", filings[0].SourceURL())
	}
}

func TestListFilings_WatermarkShortCircuits(t *testing.T) {
	srv, calls := listServer(t, map[int]string{
		1: `{"status":"000","page_no":1,"total_page":3,"list":[
			{"rcept_no":"20260210000300","corp_code":"c1","corp_name":"A","stock_code":"005930","report_nm":"보고서3","rcept_dt":"20260210"},
			{"rcept_no":"20260210000200","corp_code":"c2","corp_name":"B","stock_code":"000660","report_nm":"보고서2","rcept_dt":"20260210"}]}`,
	})

	c := NewClient(srv.Client(), srv.URL, "test-key")
	from, to := listWindow()
	filings, err := c.ListFilings(context.Background(), ListParams{
		From: from, To: to, Watermark: "20260210000200",
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(filings) != 1 || filings[0].ReceiptNo != "20260210000300" {
		t.Fatalf("got %v, want only the filing above the watermark", filings)
	}
	if *calls != 1 {
		t.Fatalf("calls=%d want 1: paging must stop at the watermark", *calls)
	}
}

func TestListFilings_NoDataIsEmpty(t *testing.T) {
	srv, _ := listServer(t, map[int]string{
		1: `{"status":"013","message":"조회된 데이타가 없습니다."}`,
	})

	c := NewClient(srv.Client(), srv.URL, "test-key")
	from, to := listWindow()
	filings, err := c.ListFilings(context.Background(), ListParams{From: from, To: to})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(filings) != 0 {
		t.Fatalf("got %d filings, want 0", len(filings))
	}
}

func TestListFilings_RateLimit(t *testing.T) {
	srv, _ := listServer(t, map[int]string{
		1: `{"status":"020","message":"사용한도를 초과하였습니다."}`,
	})

	c := NewClient(srv.Client(), srv.URL, "test-key")
	from, to := listWindow()
	_, err := c.ListFilings(context.Background(), ListParams{From: from, To: to})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err=%v want ErrRateLimited", err)
	}
}

func TestListFilings_APIError(t *testing.T) {
	srv, _ := listServer(t, map[int]string{
		1: `{"status":"010","message":"등록되지 않은 키입니다."}`,
	})

	c := NewClient(srv.Client(), srv.URL, "test-key")
	from, to := listWindow()
	_, err := c.ListFilings(context.Background(), ListParams{From: from, To: to})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != "010" {
		t.Fatalf("err=%v want APIError 010", err)
	}
}

func TestDoRequest_RetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"status":"013","message":"no data"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "test-key")
	from, to := listWindow()
	filings, err := c.ListFilings(context.Background(), ListParams{From: from, To: to})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(filings) != 0 {
		t.Fatalf("got %d filings", len(filings))
	}
	if attempts != 3 {
		t.Fatalf("attempts=%d want 3", attempts)
	}
}

func TestParseReceiptDate(t *testing.T) {
	got := parseReceiptDate("20260210")
	if got.Year() != 2026 || got.Month() != time.February || got.Day() != 10 {
		t.Fatalf("got %v", got)
	}
	if !parseReceiptDate("garbage").IsZero() {
		t.Fatalf("bad input should yield zero time")
	}
}

func TestNormalizeReportType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"[기재정정]주요사항보고서", "주요사항보고서"},
		{"[첨부추가] 사업보고서 (2025.12)", "사업보고서 (2025.12)"},
		{"주요사항보고서", "주요사항보고서"},
		{"  분기보고서  ", "분기보고서"},
		{"[기재정정]", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeReportType(tt.in); got != tt.want {
			t.Fatalf("NormalizeReportType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
