package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"stockwatch/internal/notify"
)

// Job names. These are the task identifiers passed to the child process.
const (
	JobRefreshSymbolMaster = "refresh_symbol_master"
	JobRefreshDailyPrices  = "refresh_daily_prices"
	JobPollDisclosures     = "poll_disclosures"
	JobEvaluatePriceAlerts = "evaluate_price_alerts"
	JobHistoricalPrices    = "update_historical_prices"
)

// ErrJobNotFound is returned by Trigger for an unknown job id.
var ErrJobNotFound = errors.New("job not found")

// JobStatus is one row of the control API's job listing.
type JobStatus struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Trigger   string    `json:"trigger"`
	NextRunAt time.Time `json:"next_run_at"`
}

type jobEntry struct {
	id      int
	name    string
	trigger string
	entryID cron.EntryID
}

// Scheduler owns the job table. Every tick spawns a fresh child process for
// the handler; the scheduler itself only tracks completions and reports
// them on the notification bus.
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	spawner Spawner
	bus     notify.Publisher

	grace time.Duration

	mu       sync.Mutex
	jobs     []jobEntry
	nextID   int
	handles  map[Handle]struct{}
	draining bool
	inflight sync.WaitGroup
}

func New(logger *zap.Logger, spawner Spawner, bus notify.Publisher, grace time.Duration) *Scheduler {
	if grace <= 0 {
		grace = 30 * time.Second
	}
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger,
		spawner: spawner,
		bus:     bus,
		grace:   grace,
		nextID:  1,
		handles: map[Handle]struct{}{},
	}
}

// Register adds a named job with a cron trigger spec. Registration order
// fixes the job ids exposed by the control API.
func (s *Scheduler) Register(name, spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	entryID, err := s.cron.AddFunc(spec, func() {
		s.launch(name, nil, nil)
	})
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", name, err)
	}
	s.nextID++
	s.jobs = append(s.jobs, jobEntry{id: id, name: name, trigger: spec, entryID: entryID})
	if s.logger != nil {
		s.logger.Info("job registered", zap.Int("id", id), zap.String("name", name), zap.String("trigger", spec))
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	if s.logger != nil {
		s.logger.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
	}
}

// Jobs lists each registered job with its next scheduled run.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		entry := s.cron.Entry(j.entryID)
		out = append(out, JobStatus{
			ID:        j.id,
			Name:      j.name,
			Trigger:   j.trigger,
			NextRunAt: entry.Next,
		})
	}
	return out
}

// Running reports whether the scheduler accepts triggers.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.draining
}

// Trigger runs a job now, out of schedule. A chat id attaches operator
// feedback: the child's completion status is published to that chat.
func (s *Scheduler) Trigger(jobID int, chatID *int64) error {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return errors.New("scheduler is shutting down")
	}
	var name string
	for _, j := range s.jobs {
		if j.id == jobID {
			name = j.name
			break
		}
	}
	s.mu.Unlock()

	if name == "" {
		return ErrJobNotFound
	}
	go s.launch(name, chatID, nil)
	return nil
}

// TriggerHistoricalBackfill spawns the one-shot historical price backfill.
// It is not part of the job table; cancellation means killing the child.
func (s *Scheduler) TriggerHistoricalBackfill(chatID int64, startDate, endDate string, symbol *string) error {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return errors.New("scheduler is shutting down")
	}
	s.mu.Unlock()

	args := []string{"--start-date", startDate, "--end-date", endDate}
	if symbol != nil && *symbol != "" {
		args = append(args, "--symbol", *symbol)
	}
	go s.launch(JobHistoricalPrices, &chatID, args)
	return nil
}

func (s *Scheduler) launch(name string, chatID *int64, extraArgs []string) {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		if s.logger != nil {
			s.logger.Warn("skipping job launch during shutdown", zap.String("job", name))
		}
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	args := extraArgs
	if chatID != nil {
		args = append(args, "--chat-id", strconv.FormatInt(*chatID, 10))
	}

	started := time.Now()
	handle, err := s.spawner.Spawn(name, args)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("job spawn failed", zap.String("job", name), zap.Error(err))
		}
		s.reportCompletion(name, chatID, started, err)
		return
	}

	s.mu.Lock()
	s.handles[handle] = struct{}{}
	s.mu.Unlock()

	err = handle.Wait()

	s.mu.Lock()
	delete(s.handles, handle)
	s.mu.Unlock()

	if err != nil {
		if s.logger != nil {
			s.logger.Error("job process failed", zap.String("job", name), zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		}
	} else if s.logger != nil {
		s.logger.Info("job process finished", zap.String("job", name), zap.Duration("elapsed", time.Since(started)))
	}
	s.reportCompletion(name, chatID, started, err)
}

// reportCompletion publishes the per-job completion message when the run
// was operator-triggered. A crashed child stays scheduled; a missed tick is
// not made up.
func (s *Scheduler) reportCompletion(name string, chatID *int64, started time.Time, err error) {
	if chatID == nil || s.bus == nil {
		return
	}
	elapsed := time.Since(started).Seconds()
	var text string
	if err != nil {
		text = fmt.Sprintf("❌ 작업 실패: %s (%.1f초)\n%v", name, elapsed, err)
	} else {
		text = fmt.Sprintf("✅ 작업 완료: %s (%.1f초)", name, elapsed)
	}
	s.bus.Publish(context.Background(), notify.Envelope{ChatID: *chatID, Text: text})
}

// Shutdown stops accepting triggers, waits for in-flight children up to the
// grace window, then terminates survivors.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.grace):
		s.mu.Lock()
		survivors := make([]Handle, 0, len(s.handles))
		for h := range s.handles {
			survivors = append(survivors, h)
		}
		s.mu.Unlock()
		if s.logger != nil {
			s.logger.Warn("terminating jobs still running after grace window", zap.Int("count", len(survivors)))
		}
		for _, h := range survivors {
			_ = h.Terminate()
		}
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			for _, h := range survivors {
				_ = h.Kill()
			}
		}
	}
	if s.logger != nil {
		s.logger.Info("scheduler stopped")
	}
}
