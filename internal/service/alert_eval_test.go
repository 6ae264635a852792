package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stockwatch/internal/models"
)

func decPtr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func strPtr(v string) *string { return &v }

func pricedSymbol(repo *stubRepo, symbol string, closes ...string) {
	day := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	rows := make([]models.DailyPrice, 0, len(closes))
	for i, c := range closes {
		rows = append(rows, models.DailyPrice{
			Symbol:    symbol,
			TradeDate: day.AddDate(0, 0, -i),
			Close:     decimal.RequireFromString(c),
		})
	}
	repo.prices[symbol] = rows
}

func alertUser(repo *stubRepo, userID uint64) {
	repo.users[userID] = models.User{
		ID:             userID,
		TelegramChatID: chatPtr(int64(1000 + userID)),
		NotifyTelegram: true,
	}
}

func TestAlertEval_TargetPriceGTE(t *testing.T) {
	repo := newStubRepo()
	alertUser(repo, 1)
	pricedSymbol(repo, "005930", "70500", "69000")
	repo.alerts = []models.PriceAlert{{
		ID: 1, UserID: 1, Symbol: "005930", IsActive: true,
		TargetPrice: decPtr("70000"), Condition: models.ConditionGTE,
	}}
	bus := &stubBus{}
	svc := &AlertEvalService{Repo: repo, Bus: bus}

	result, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if result.Triggered != 1 || result.Notified != 1 {
		t.Fatalf("triggered=%d notified=%d want 1/1", result.Triggered, result.Notified)
	}
	want := "🔔 가격 알림: 005930\n현재가 70500원이 목표가 70000(gte)에 도달했습니다."
	if bus.sent[0].Text != want {
		t.Fatalf("message=%q want %q", bus.sent[0].Text, want)
	}
}

func TestAlertEval_TargetPriceLTENotReached(t *testing.T) {
	repo := newStubRepo()
	alertUser(repo, 1)
	pricedSymbol(repo, "005930", "70500", "69000")
	repo.alerts = []models.PriceAlert{{
		ID: 1, UserID: 1, Symbol: "005930", IsActive: true,
		TargetPrice: decPtr("70000"), Condition: models.ConditionLTE,
	}}
	bus := &stubBus{}
	svc := &AlertEvalService{Repo: repo, Bus: bus}

	result, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if result.Triggered != 0 || len(bus.sent) != 0 {
		t.Fatalf("lte alert at 70000 must not trigger at close 70500")
	}
}

func TestAlertEval_ChangePercentUp(t *testing.T) {
	repo := newStubRepo()
	alertUser(repo, 1)
	pricedSymbol(repo, "000660", "110000", "100000") // +10%
	repo.alerts = []models.PriceAlert{{
		ID: 1, UserID: 1, Symbol: "000660", IsActive: true,
		ChangePercent: decPtr("5"), ChangeType: models.ChangeUp,
	}}
	bus := &stubBus{}
	svc := &AlertEvalService{Repo: repo, Bus: bus}

	result, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if result.Triggered != 1 {
		t.Fatalf("triggered=%d want 1", result.Triggered)
	}
	want := "🔔 가격 알림: 000660\n등락률 10.00%가 기준 5%(up)에 도달했습니다."
	if bus.sent[0].Text != want {
		t.Fatalf("message=%q want %q", bus.sent[0].Text, want)
	}
}

func TestAlertEval_ChangePercentDown(t *testing.T) {
	repo := newStubRepo()
	alertUser(repo, 1)
	pricedSymbol(repo, "000660", "94000", "100000") // -6%
	repo.alerts = []models.PriceAlert{{
		ID: 1, UserID: 1, Symbol: "000660", IsActive: true,
		ChangePercent: decPtr("5"), ChangeType: models.ChangeDown,
	}}
	bus := &stubBus{}
	svc := &AlertEvalService{Repo: repo, Bus: bus}

	result, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if result.Triggered != 1 {
		t.Fatalf("triggered=%d want 1", result.Triggered)
	}
}

func TestAlertEval_ZeroPriorCloseDoesNotDivide(t *testing.T) {
	repo := newStubRepo()
	alertUser(repo, 1)
	pricedSymbol(repo, "000660", "5000", "0")
	repo.alerts = []models.PriceAlert{{
		ID: 1, UserID: 1, Symbol: "000660", IsActive: true,
		ChangePercent: decPtr("1"), ChangeType: models.ChangeUp,
	}}
	svc := &AlertEvalService{Repo: repo, Bus: &stubBus{}}

	result, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if result.Triggered != 0 {
		t.Fatalf("zero prior close must pin change rate to zero")
	}
}

func TestAlertEval_SingleRowHasNoChangeRate(t *testing.T) {
	repo := newStubRepo()
	alertUser(repo, 1)
	pricedSymbol(repo, "000660", "110000")
	repo.alerts = []models.PriceAlert{{
		ID: 1, UserID: 1, Symbol: "000660", IsActive: true,
		ChangePercent: decPtr("1"), ChangeType: models.ChangeUp,
	}}
	svc := &AlertEvalService{Repo: repo, Bus: &stubBus{}}

	result, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if result.Triggered != 0 {
		t.Fatalf("percent alert must not trigger with one trading day of data")
	}
}

func TestAlertEval_GroupsBySymbol(t *testing.T) {
	repo := newStubRepo()
	alertUser(repo, 1)
	alertUser(repo, 2)
	alertUser(repo, 3)
	pricedSymbol(repo, "005930", "70500", "69000")
	pricedSymbol(repo, "000660", "180000", "175000")
	repo.alerts = []models.PriceAlert{
		{ID: 1, UserID: 1, Symbol: "005930", IsActive: true, TargetPrice: decPtr("70000"), Condition: models.ConditionGTE},
		{ID: 2, UserID: 2, Symbol: "000660", IsActive: true, TargetPrice: decPtr("200000"), Condition: models.ConditionGTE},
		{ID: 3, UserID: 3, Symbol: "005930", IsActive: true, TargetPrice: decPtr("71000"), Condition: models.ConditionGTE},
	}
	svc := &AlertEvalService{Repo: repo, Bus: &stubBus{}}

	result, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if result.Alerts != 3 || result.Symbols != 2 {
		t.Fatalf("alerts=%d symbols=%d want 3/2", result.Alerts, result.Symbols)
	}
	if len(repo.priceLookups) != 2 {
		t.Fatalf("price lookups=%d want one per symbol", len(repo.priceLookups))
	}
}

func TestAlertEval_OneShotDeactivatesBeforeFanOut(t *testing.T) {
	repo := newStubRepo()
	pricedSymbol(repo, "005930", "70500", "69000")
	// User is missing on purpose: fan-out fails but the alert must still
	// be disarmed.
	repo.alerts = []models.PriceAlert{{
		ID: 1, UserID: 99, Symbol: "005930", IsActive: true,
		TargetPrice: decPtr("70000"), Condition: models.ConditionGTE,
	}}
	bus := &stubBus{}
	svc := &AlertEvalService{Repo: repo, Bus: bus}

	result, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if result.Triggered != 1 || result.Notified != 0 {
		t.Fatalf("triggered=%d notified=%d want 1/0", result.Triggered, result.Notified)
	}
	if len(repo.deactivated) != 1 || repo.deactivated[0] != 1 {
		t.Fatalf("deactivated=%v want [1]", repo.deactivated)
	}
	if repo.txCount != 1 {
		t.Fatalf("txCount=%d want one deactivation transaction", repo.txCount)
	}

	// A second sweep sees no active alerts.
	result, err = svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if result.Alerts != 0 || result.Triggered != 0 {
		t.Fatalf("one-shot alert re-fired: %+v", result)
	}
}

func TestAlertEval_RepeatingAlertStaysActive(t *testing.T) {
	repo := newStubRepo()
	alertUser(repo, 1)
	pricedSymbol(repo, "005930", "70500", "69000")
	repo.alerts = []models.PriceAlert{{
		ID: 1, UserID: 1, Symbol: "005930", IsActive: true,
		TargetPrice: decPtr("70000"), Condition: models.ConditionGTE,
		RepeatInterval: strPtr("1d"),
	}}
	svc := &AlertEvalService{Repo: repo, Bus: &stubBus{}}

	if _, err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(repo.deactivated) != 0 {
		t.Fatalf("repeating alert must not be deactivated")
	}
	result, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if result.Triggered != 1 {
		t.Fatalf("repeating alert should trigger again, got %+v", result)
	}
}

func TestAlertEval_DisclosureOnlyNeverTriggers(t *testing.T) {
	repo := newStubRepo()
	alertUser(repo, 1)
	pricedSymbol(repo, "005930", "70500", "69000")
	repo.alerts = []models.PriceAlert{{
		ID: 1, UserID: 1, Symbol: "005930", IsActive: true,
		NotifyOnDisclosure: true,
	}}
	svc := &AlertEvalService{Repo: repo, Bus: &stubBus{}}

	result, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if result.Triggered != 0 {
		t.Fatalf("disclosure-only alert triggered in price sweep")
	}
}

func TestAlertEval_FailingSymbolDoesNotAbortSweep(t *testing.T) {
	repo := newStubRepo()
	repo.failPriceFor = "005930"
	alertUser(repo, 1)
	alertUser(repo, 2)
	pricedSymbol(repo, "000660", "180000", "175000")
	repo.alerts = []models.PriceAlert{
		{ID: 1, UserID: 1, Symbol: "005930", IsActive: true, TargetPrice: decPtr("1"), Condition: models.ConditionGTE},
		{ID: 2, UserID: 2, Symbol: "000660", IsActive: true, TargetPrice: decPtr("170000"), Condition: models.ConditionGTE},
	}
	bus := &stubBus{}
	svc := &AlertEvalService{Repo: repo, Bus: bus}

	result, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if result.Triggered != 1 || result.Notified != 1 {
		t.Fatalf("triggered=%d notified=%d want 1/1 from the healthy symbol", result.Triggered, result.Notified)
	}
	if len(repo.deactivated) != 1 || repo.deactivated[0] != 2 {
		t.Fatalf("deactivated=%v want only the healthy symbol's alert", repo.deactivated)
	}
}

func TestAlertEval_MissingPriceDataSkipsSymbol(t *testing.T) {
	repo := newStubRepo()
	alertUser(repo, 1)
	alertUser(repo, 2)
	pricedSymbol(repo, "000660", "180000", "175000")
	repo.alerts = []models.PriceAlert{
		{ID: 1, UserID: 1, Symbol: "005930", IsActive: true, TargetPrice: decPtr("1"), Condition: models.ConditionGTE},
		{ID: 2, UserID: 2, Symbol: "000660", IsActive: true, TargetPrice: decPtr("170000"), Condition: models.ConditionGTE},
	}
	svc := &AlertEvalService{Repo: repo, Bus: &stubBus{}}

	result, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if result.Triggered != 1 {
		t.Fatalf("sweep must continue past a symbol without prices, got %+v", result)
	}
}
