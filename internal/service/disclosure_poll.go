package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"stockwatch/internal/client/dart"
	"stockwatch/internal/models"
	"stockwatch/internal/notify"
	"stockwatch/internal/repository"
)

// DisclosureFeed is the slice of the DART client the poller consumes.
type DisclosureFeed interface {
	ListFilings(ctx context.Context, params dart.ListParams) ([]dart.Filing, error)
}

// DisclosurePollService incrementally ingests new regulatory filings,
// persists each exactly once, and fans notifications out to subscribers.
// The watermark row in system_configs is the ingestion cursor; it only
// moves forward.
type DisclosurePollService struct {
	Repo   repository.Repository
	Feed   DisclosureFeed
	Bus    notify.Publisher
	Logger *zap.Logger

	AdminChatID int64
	WindowDays  int
	PageLimit   int
	MaxPages    int // testing hook, 0 means no cap
}

type PollResult struct {
	Discovered int
	Inserted   int
	Notified   int
	Watermark  string
	FirstRun   bool
}

func (s *DisclosurePollService) RunOnce(ctx context.Context) (PollResult, error) {
	result := PollResult{}
	if s == nil || s.Repo == nil || s.Feed == nil {
		return result, errors.New("disclosure poller not configured")
	}

	watermark := ""
	cfg, err := s.Repo.GetSystemConfig(ctx, models.ConfigKeyLastCheckedRceptNo)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		result.FirstRun = true
	case err != nil:
		return result, fmt.Errorf("failed to read watermark: %w", err)
	default:
		watermark = cfg.Value
	}

	windowDays := s.WindowDays
	if windowDays <= 0 {
		windowDays = 7
	}
	now := time.Now()
	filings, err := s.Feed.ListFilings(ctx, dart.ListParams{
		From:      now.AddDate(0, 0, -windowDays),
		To:        now,
		Watermark: watermark,
		PageLimit: s.PageLimit,
		MaxPages:  s.MaxPages,
	})
	if err != nil {
		if errors.Is(err, dart.ErrRateLimited) {
			// Quota resets the next day; the watermark stays put so the
			// next run retries the same range.
			s.logError("disclosure feed quota exhausted", err)
			return result, err
		}
		s.logError("disclosure feed request failed", err)
		return result, err
	}
	result.Discovered = len(filings)

	inserted, newWatermark, err := s.ingest(ctx, watermark, filings)
	if err != nil {
		return result, err
	}
	result.Inserted = len(inserted)
	result.Watermark = newWatermark

	// Cold start persists and sets the cursor but stays silent: fanning out
	// a whole window of old filings would be a notification storm.
	if !result.FirstRun {
		result.Notified = s.fanOut(ctx, inserted)
	}

	s.publishSummary(ctx, result)
	if s.Logger != nil {
		s.Logger.Info("disclosure poll complete",
			zap.Int("discovered", result.Discovered),
			zap.Int("inserted", result.Inserted),
			zap.Int("notified", result.Notified),
			zap.String("watermark", result.Watermark),
			zap.Bool("first_run", result.FirstRun),
		)
	}
	return result, nil
}

// ingest deduplicates candidates against the store, bulk-inserts the rest,
// and advances the watermark — all in one transaction. It returns the rows
// actually inserted, newest first.
func (s *DisclosurePollService) ingest(ctx context.Context, watermark string, filings []dart.Filing) ([]models.Disclosure, string, error) {
	if len(filings) == 0 {
		return nil, watermark, nil
	}

	receiptNos := make([]string, 0, len(filings))
	maxReceipt := watermark
	for _, f := range filings {
		receiptNos = append(receiptNos, f.ReceiptNo)
		if f.ReceiptNo > maxReceipt {
			maxReceipt = f.ReceiptNo
		}
	}

	existing, err := s.Repo.ListExistingReceiptNos(ctx, receiptNos)
	if err != nil {
		return nil, watermark, fmt.Errorf("failed to check existing receipts: %w", err)
	}
	seen := make(map[string]struct{}, len(existing))
	for _, no := range existing {
		seen[no] = struct{}{}
	}

	rows := make([]models.Disclosure, 0, len(filings))
	for _, f := range filings {
		if _, ok := seen[f.ReceiptNo]; ok {
			continue
		}
		var symbol *string
		if f.StockCode != "" {
			code := f.StockCode
			symbol = &code
		}
		raw, _ := json.Marshal(map[string]string{
			"rcept_no":   f.ReceiptNo,
			"corp_code":  f.CorpCode,
			"corp_name":  f.CorpName,
			"stock_code": f.StockCode,
			"report_nm":  f.Title,
			"rcept_dt":   f.DisclosedAt.Format("20060102"),
		})
		rows = append(rows, models.Disclosure{
			ReceiptNo:   f.ReceiptNo,
			Symbol:      symbol,
			CorpCode:    f.CorpCode,
			CorpName:    f.CorpName,
			Title:       f.Title,
			Type:        dart.NormalizeReportType(f.Title),
			DisclosedAt: f.DisclosedAt,
			SourceURL:   f.SourceURL(),
			Raw:         datatypes.JSON(raw),
		})
	}

	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.Repo.InsertDisclosuresTx(ctx, tx, rows); err != nil {
			return err
		}
		if maxReceipt != watermark {
			return s.Repo.SaveSystemConfigTx(ctx, tx, models.ConfigKeyLastCheckedRceptNo, maxReceipt)
		}
		return nil
	})
	if err != nil {
		return nil, watermark, fmt.Errorf("disclosure ingest failed: %w", err)
	}
	return rows, maxReceipt, nil
}

// fanOut publishes per-subscriber notifications, newest filing first.
// Per-recipient failures are swallowed; ingestion has already committed.
func (s *DisclosurePollService) fanOut(ctx context.Context, rows []models.Disclosure) int {
	if s.Bus == nil {
		return 0
	}
	broadcaster := &notify.Broadcaster{Bus: s.Bus}
	names := s.issuerNames(ctx, rows)
	notified := 0
	for _, d := range rows {
		if d.Symbol == nil {
			continue
		}
		subs, err := s.Repo.ListDisclosureSubscribers(ctx, *d.Symbol)
		if err != nil {
			s.logError("failed to load disclosure subscribers", err, zap.String("symbol", *d.Symbol))
			continue
		}
		if len(subs) == 0 {
			continue
		}
		userIDs := make([]uint64, 0, len(subs))
		for _, a := range subs {
			userIDs = append(userIDs, a.UserID)
		}
		users, err := s.Repo.ListUsersByIDs(ctx, userIDs)
		if err != nil {
			s.logError("failed to load subscriber users", err, zap.String("symbol", *d.Symbol))
			continue
		}

		text := composeDisclosureMessage(d, names)
		targets := make([]notify.UserTarget, 0, len(users))
		for _, u := range users {
			targets = append(targets, notify.UserTarget{
				Targets:     u.ChannelTargets(),
				Preferences: u.ChannelPreferences(),
			})
		}
		notified += broadcaster.SendToUsers(ctx, targets, text)
	}
	return notified
}

// issuerNames resolves display names for every listed symbol in one batch
// query. A lookup failure only degrades the message to the feed's corp
// name, never blocks the fan-out.
func (s *DisclosurePollService) issuerNames(ctx context.Context, rows []models.Disclosure) map[string]string {
	seen := map[string]struct{}{}
	symbols := make([]string, 0, len(rows))
	for _, d := range rows {
		if d.Symbol == nil {
			continue
		}
		if _, ok := seen[*d.Symbol]; ok {
			continue
		}
		seen[*d.Symbol] = struct{}{}
		symbols = append(symbols, *d.Symbol)
	}
	if len(symbols) == 0 {
		return nil
	}
	masters, err := s.Repo.ListStockMastersBySymbols(ctx, symbols)
	if err != nil {
		s.logError("failed to resolve issuer names", err)
		return nil
	}
	names := make(map[string]string, len(masters))
	for _, m := range masters {
		names[m.Symbol] = m.Name
	}
	return names
}

func composeDisclosureMessage(d models.Disclosure, names map[string]string) string {
	issuer := d.CorpName
	if issuer == "" {
		issuer = d.CorpCode
	}
	if d.Symbol != nil {
		if name, ok := names[*d.Symbol]; ok && name != "" {
			issuer = name
		}
	}
	return fmt.Sprintf("📢 공시 알림: %s\n%s\n공시일: %s\n%s",
		issuer,
		d.Title,
		d.DisclosedAt.Format("2006-01-02"),
		d.SourceURL,
	)
}

func (s *DisclosurePollService) publishSummary(ctx context.Context, result PollResult) {
	if s.Bus == nil || s.AdminChatID == 0 {
		return
	}
	text := fmt.Sprintf("📋 공시 수집 완료\n발견 %d건 / 저장 %d건 / 알림 %d건",
		result.Discovered, result.Inserted, result.Notified)
	s.Bus.Publish(ctx, notify.Envelope{ChatID: s.AdminChatID, Text: text})
}

func (s *DisclosurePollService) logError(msg string, err error, fields ...zap.Field) {
	if s == nil || s.Logger == nil {
		return
	}
	s.Logger.Error(msg, append(fields, zap.Error(err))...)
}
