package service

import (
	"context"
	"errors"
	"sync"

	"gorm.io/gorm"

	"stockwatch/internal/models"
	"stockwatch/internal/notify"
	"stockwatch/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository.
// Each test populates only the slices it needs.
type stubRepo struct {
	users       map[uint64]models.User
	masters     map[string]models.StockMaster
	prices      map[string][]models.DailyPrice // newest first
	disclosures []models.Disclosure
	alerts      []models.PriceAlert
	configs     map[string]string

	priceLookups  []string
	masterBatches int
	deactivated   []uint64
	watchSymbols  []string
	txCount       int
	failTx        error
	failSubLookup error
	failPriceFor  string
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		users:   map[uint64]models.User{},
		masters: map[string]models.StockMaster{},
		prices:  map[string][]models.DailyPrice{},
		configs: map[string]string{},
	}
}

func (s *stubRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.failTx != nil {
		return s.failTx
	}
	s.txCount++
	return fn(nil)
}

func (s *stubRepo) GetUserByID(ctx context.Context, id uint64) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (s *stubRepo) ListUsersByIDs(ctx context.Context, ids []uint64) ([]models.User, error) {
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *stubRepo) UpsertStockMastersTx(ctx context.Context, tx *gorm.DB, items []models.StockMaster) error {
	for _, m := range items {
		s.masters[m.Symbol] = m
	}
	return nil
}

func (s *stubRepo) ListStockMastersBySymbols(ctx context.Context, symbols []string) ([]models.StockMaster, error) {
	s.masterBatches++
	out := make([]models.StockMaster, 0, len(symbols))
	for _, sym := range symbols {
		if m, ok := s.masters[sym]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *stubRepo) UpsertDailyPricesTx(ctx context.Context, tx *gorm.DB, items []models.DailyPrice) error {
	for _, p := range items {
		s.prices[p.Symbol] = append([]models.DailyPrice{p}, s.prices[p.Symbol]...)
	}
	return nil
}

func (s *stubRepo) ListRecentDailyPrices(ctx context.Context, symbol string, limit int) ([]models.DailyPrice, error) {
	s.priceLookups = append(s.priceLookups, symbol)
	if symbol == s.failPriceFor {
		return nil, errors.New("read timeout")
	}
	rows := s.prices[symbol]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *stubRepo) ListExistingReceiptNos(ctx context.Context, receiptNos []string) ([]string, error) {
	have := map[string]struct{}{}
	for _, d := range s.disclosures {
		have[d.ReceiptNo] = struct{}{}
	}
	var out []string
	for _, no := range receiptNos {
		if _, ok := have[no]; ok {
			out = append(out, no)
		}
	}
	return out, nil
}

func (s *stubRepo) InsertDisclosuresTx(ctx context.Context, tx *gorm.DB, items []models.Disclosure) error {
	s.disclosures = append(s.disclosures, items...)
	return nil
}

func (s *stubRepo) CreatePriceAlert(ctx context.Context, item *models.PriceAlert) error {
	item.ID = uint64(len(s.alerts) + 1)
	s.alerts = append(s.alerts, *item)
	return nil
}

func (s *stubRepo) ListActivePriceAlerts(ctx context.Context) ([]models.PriceAlert, error) {
	var out []models.PriceAlert
	for _, a := range s.alerts {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubRepo) ListDisclosureSubscribers(ctx context.Context, symbol string) ([]models.PriceAlert, error) {
	if s.failSubLookup != nil {
		return nil, s.failSubLookup
	}
	var out []models.PriceAlert
	for _, a := range s.alerts {
		if a.IsActive && a.NotifyOnDisclosure && a.Symbol == symbol {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubRepo) DeactivatePriceAlertTx(ctx context.Context, tx *gorm.DB, id uint64) error {
	s.deactivated = append(s.deactivated, id)
	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts[i].IsActive = false
		}
	}
	return nil
}

func (s *stubRepo) GetSystemConfig(ctx context.Context, key string) (*models.SystemConfig, error) {
	v, ok := s.configs[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &models.SystemConfig{Key: key, Value: v}, nil
}

func (s *stubRepo) SaveSystemConfigTx(ctx context.Context, tx *gorm.DB, key, value string) error {
	s.configs[key] = value
	return nil
}

func (s *stubRepo) ListReferencedSymbols(ctx context.Context) ([]string, error) {
	return s.watchSymbols, nil
}

// stubBus records every published envelope.
type stubBus struct {
	mu   sync.Mutex
	sent []notify.Envelope
}

func (b *stubBus) Publish(ctx context.Context, env notify.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, env)
}
