package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"stockwatch/internal/models"
	"stockwatch/internal/notify"
	"stockwatch/internal/repository"
)

// AlertEvalService sweeps every active alert once per minute. Alerts are
// grouped by symbol so each symbol's price is read once, and each symbol
// commits independently so one bad symbol cannot poison the sweep.
type AlertEvalService struct {
	Repo   repository.Repository
	Bus    notify.Publisher
	Logger *zap.Logger
}

type EvalResult struct {
	Alerts    int
	Symbols   int
	Triggered int
	Notified  int
}

// symbolQuote is the two-row price view for one symbol. ChangeRate is nil
// until two trading days of data exist.
type symbolQuote struct {
	Current    decimal.Decimal
	PriorClose *decimal.Decimal
	ChangeRate *decimal.Decimal
}

func (s *AlertEvalService) RunOnce(ctx context.Context) (EvalResult, error) {
	result := EvalResult{}
	if s == nil || s.Repo == nil {
		return result, errors.New("alert evaluator not configured")
	}

	alerts, err := s.Repo.ListActivePriceAlerts(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to load active alerts: %w", err)
	}
	result.Alerts = len(alerts)

	grouped := groupBySymbol(alerts)
	result.Symbols = len(grouped.order)

	for _, symbol := range grouped.order {
		triggered, notified, err := s.evaluateSymbol(ctx, symbol, grouped.bySymbol[symbol])
		if err != nil {
			if s.Logger != nil {
				s.Logger.Error("symbol evaluation failed, continuing sweep",
					zap.String("symbol", symbol), zap.Error(err))
			}
			continue
		}
		result.Triggered += triggered
		result.Notified += notified
	}

	if s.Logger != nil {
		s.Logger.Info("alert sweep complete",
			zap.Int("alerts", result.Alerts),
			zap.Int("symbols", result.Symbols),
			zap.Int("triggered", result.Triggered),
			zap.Int("notified", result.Notified),
		)
	}
	return result, nil
}

func (s *AlertEvalService) evaluateSymbol(ctx context.Context, symbol string, alerts []models.PriceAlert) (int, int, error) {
	quote, err := s.loadQuote(ctx, symbol)
	if err != nil {
		return 0, 0, err
	}
	if quote == nil {
		if s.Logger != nil {
			s.Logger.Warn("no price data for symbol, skipping", zap.String("symbol", symbol))
		}
		return 0, 0, nil
	}

	triggered := make([]models.PriceAlert, 0, len(alerts))
	for _, alert := range alerts {
		if s.shouldTrigger(alert, *quote) {
			triggered = append(triggered, alert)
		}
	}
	if len(triggered) == 0 {
		return 0, 0, nil
	}

	// One-shot deactivation commits per symbol, before fan-out: a
	// notification failure must not re-arm an already-fired alert.
	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		for _, alert := range triggered {
			if !alert.OneShot() {
				continue
			}
			if err := s.Repo.DeactivatePriceAlertTx(ctx, tx, alert.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to deactivate one-shot alerts: %w", err)
	}

	notified := 0
	broadcaster := &notify.Broadcaster{Bus: s.Bus}
	for _, alert := range triggered {
		user, err := s.Repo.GetUserByID(ctx, alert.UserID)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("alert user missing", zap.Uint64("user_id", alert.UserID), zap.Error(err))
			}
			continue
		}
		text := composeAlertMessage(alert, *quote)
		notified += broadcaster.SendToUsers(ctx, []notify.UserTarget{{
			Targets:     user.ChannelTargets(),
			Preferences: user.ChannelPreferences(),
		}}, text)
	}
	return len(triggered), notified, nil
}

// loadQuote reads the two newest daily rows. Zero rows yields nil; one row
// yields a quote with no change rate; prior close of zero pins the rate to
// zero instead of dividing.
func (s *AlertEvalService) loadQuote(ctx context.Context, symbol string) (*symbolQuote, error) {
	prices, err := s.Repo.ListRecentDailyPrices(ctx, symbol, 2)
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, nil
	}
	quote := &symbolQuote{Current: prices[0].Close}
	if len(prices) >= 2 {
		prior := prices[1].Close
		quote.PriorClose = &prior
		rate := decimal.Zero
		if !prior.IsZero() {
			rate = quote.Current.Sub(prior).Div(prior).Mul(decimal.NewFromInt(100))
		}
		quote.ChangeRate = &rate
	}
	return quote, nil
}

func (s *AlertEvalService) shouldTrigger(alert models.PriceAlert, quote symbolQuote) bool {
	if alert.TargetPrice != nil {
		switch alert.Condition {
		case models.ConditionGTE:
			if quote.Current.GreaterThanOrEqual(*alert.TargetPrice) {
				return true
			}
		case models.ConditionLTE:
			if quote.Current.LessThanOrEqual(*alert.TargetPrice) {
				return true
			}
		}
	}
	if alert.ChangePercent != nil && quote.ChangeRate != nil {
		switch alert.ChangeType {
		case models.ChangeUp:
			if quote.ChangeRate.GreaterThanOrEqual(*alert.ChangePercent) {
				return true
			}
		case models.ChangeDown:
			if quote.ChangeRate.LessThanOrEqual(alert.ChangePercent.Neg()) {
				return true
			}
		}
	}
	// Disclosure-only alerts are the poller's business, never the sweep's.
	return false
}

func composeAlertMessage(alert models.PriceAlert, quote symbolQuote) string {
	if alert.TargetPrice != nil && targetReached(alert, quote) {
		return fmt.Sprintf("🔔 가격 알림: %s\n현재가 %s원이 목표가 %s(%s)에 도달했습니다.",
			alert.Symbol, quote.Current.String(), alert.TargetPrice.String(), alert.Condition)
	}
	rate := decimal.Zero
	if quote.ChangeRate != nil {
		rate = *quote.ChangeRate
	}
	percent := decimal.Zero
	if alert.ChangePercent != nil {
		percent = *alert.ChangePercent
	}
	return fmt.Sprintf("🔔 가격 알림: %s\n등락률 %s%%가 기준 %s%%(%s)에 도달했습니다.",
		alert.Symbol, rate.StringFixed(2), percent.String(), alert.ChangeType)
}

func targetReached(alert models.PriceAlert, quote symbolQuote) bool {
	switch alert.Condition {
	case models.ConditionGTE:
		return quote.Current.GreaterThanOrEqual(*alert.TargetPrice)
	case models.ConditionLTE:
		return quote.Current.LessThanOrEqual(*alert.TargetPrice)
	default:
		return false
	}
}

type alertGroups struct {
	order    []string
	bySymbol map[string][]models.PriceAlert
}

func groupBySymbol(alerts []models.PriceAlert) alertGroups {
	g := alertGroups{bySymbol: map[string][]models.PriceAlert{}}
	for _, a := range alerts {
		if _, ok := g.bySymbol[a.Symbol]; !ok {
			g.order = append(g.order, a.Symbol)
		}
		g.bySymbol[a.Symbol] = append(g.bySymbol[a.Symbol], a)
	}
	return g
}
