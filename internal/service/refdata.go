package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"stockwatch/internal/client/krx"
	"stockwatch/internal/models"
	"stockwatch/internal/repository"
)

// ReferenceFeed is the slice of the KRX client the refresher consumes.
type ReferenceFeed interface {
	DownloadListings(ctx context.Context) ([]krx.Listing, error)
	Candles(ctx context.Context, symbol string, from, to time.Time) ([]krx.Candle, error)
	LatestCandle(ctx context.Context, symbol string) (*krx.Candle, error)
}

// RefDataService owns the reference-data jobs: the daily symbol master
// upsert, the daily OHLCV refresh, and the operator-triggered historical
// backfill.
type RefDataService struct {
	Repo   repository.Repository
	Feed   ReferenceFeed
	Logger *zap.Logger
}

// RefreshSymbolMaster downloads the full registry and upserts every row.
// Rows are never hard-deleted; delisted issues keep their row with the
// flag set.
func (s *RefDataService) RefreshSymbolMaster(ctx context.Context) (int, error) {
	if s == nil || s.Repo == nil || s.Feed == nil {
		return 0, errors.New("refdata service not configured")
	}
	listings, err := s.Feed.DownloadListings(ctx)
	if err != nil {
		return 0, fmt.Errorf("symbol master download failed: %w", err)
	}

	rows := make([]models.StockMaster, 0, len(listings))
	for _, l := range listings {
		if l.Symbol == "" {
			continue
		}
		rows = append(rows, models.StockMaster{
			Symbol:     l.Symbol,
			Name:       l.Name,
			Market:     l.Market,
			CorpCode:   l.CorpCode,
			IsDelisted: l.Delisted,
		})
	}
	err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		return s.Repo.UpsertStockMastersTx(ctx, tx, rows)
	})
	if err != nil {
		return 0, fmt.Errorf("symbol master upsert failed: %w", err)
	}
	if s.Logger != nil {
		s.Logger.Info("symbol master refreshed", zap.Int("rows", len(rows)))
	}
	return len(rows), nil
}

// RefreshDailyPrices fetches the latest candle for every symbol referenced
// by a watchlist entry or an active alert. Per-symbol failures are logged
// and skipped; the job reports how many symbols it updated.
func (s *RefDataService) RefreshDailyPrices(ctx context.Context) (int, error) {
	if s == nil || s.Repo == nil || s.Feed == nil {
		return 0, errors.New("refdata service not configured")
	}
	symbols, err := s.Repo.ListReferencedSymbols(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list referenced symbols: %w", err)
	}

	updated := 0
	for _, symbol := range symbols {
		candle, err := s.Feed.LatestCandle(ctx, symbol)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("daily price fetch failed", zap.String("symbol", symbol), zap.Error(err))
			}
			continue
		}
		if candle == nil {
			continue
		}
		row := candleToRow(symbol, *candle)
		err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
			return s.Repo.UpsertDailyPricesTx(ctx, tx, []models.DailyPrice{row})
		})
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("daily price upsert failed", zap.String("symbol", symbol), zap.Error(err))
			}
			continue
		}
		updated++
	}
	if s.Logger != nil {
		s.Logger.Info("daily prices refreshed", zap.Int("symbols", len(symbols)), zap.Int("updated", updated))
	}
	return updated, nil
}

// BackfillHistoricalPrices loads the full candle range for one symbol, or
// for every referenced symbol when none is given. Long runs are cancelled
// only by killing the job process.
func (s *RefDataService) BackfillHistoricalPrices(ctx context.Context, from, to time.Time, symbol *string) (int, error) {
	if s == nil || s.Repo == nil || s.Feed == nil {
		return 0, errors.New("refdata service not configured")
	}
	var symbols []string
	if symbol != nil && *symbol != "" {
		symbols = []string{*symbol}
	} else {
		var err error
		symbols, err = s.Repo.ListReferencedSymbols(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to list referenced symbols: %w", err)
		}
	}

	total := 0
	for _, sym := range symbols {
		candles, err := s.Feed.Candles(ctx, sym, from, to)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("historical fetch failed", zap.String("symbol", sym), zap.Error(err))
			}
			continue
		}
		rows := make([]models.DailyPrice, 0, len(candles))
		for _, c := range candles {
			rows = append(rows, candleToRow(sym, c))
		}
		err = s.Repo.InTx(ctx, func(tx *gorm.DB) error {
			return s.Repo.UpsertDailyPricesTx(ctx, tx, rows)
		})
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("historical upsert failed", zap.String("symbol", sym), zap.Error(err))
			}
			continue
		}
		total += len(rows)
	}
	if s.Logger != nil {
		s.Logger.Info("historical backfill complete",
			zap.Int("symbols", len(symbols)),
			zap.Int("rows", total),
			zap.String("from", from.Format("2006-01-02")),
			zap.String("to", to.Format("2006-01-02")),
		)
	}
	return total, nil
}

func candleToRow(symbol string, c krx.Candle) models.DailyPrice {
	return models.DailyPrice{
		Symbol:    symbol,
		TradeDate: c.Date,
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
	}
}
