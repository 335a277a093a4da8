package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"AlphaSentinel/internal/analysis"
	"AlphaSentinel/internal/model"
	"AlphaSentinel/internal/notifier"
)

// Refresher recomputes an analysis bypassing the cache.
type Refresher interface {
	Refresh(ctx context.Context, companyName string) *analysis.Result
}

// Pruner drops expired cache entries.
type Pruner interface {
	Prune(ctx context.Context) (int64, error)
}

// Sender delivers a message; nil disables notifications.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron      *cron.Cron
	Refresher Refresher
	Pruner    Pruner
	Sender    Sender
	Watchlist []string
	Ctx       context.Context
	log       zerolog.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, ref Refresher, pruner Pruner, sender Sender, watchlist []string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Refresher: ref,
		Pruner:    pruner,
		Sender:    sender,
		Watchlist: watchlist,
		Ctx:       ctx,
		log:       log.With().Str("component", "scheduler").Logger(),
	}
}

// RegisterAll registers the prune task and, when a watchlist and schedule
// are configured, the refresh task.
func (s *Scheduler) RegisterAll(pruneCron, refreshCron string) error {
	if s.Pruner != nil && pruneCron != "" {
		if _, err := s.Cron.AddFunc(pruneCron, s.pruneTask); err != nil {
			return fmt.Errorf("register prune task: %w", err)
		}
	}
	if len(s.Watchlist) > 0 && refreshCron != "" {
		if _, err := s.Cron.AddFunc(refreshCron, s.refreshTask); err != nil {
			return fmt.Errorf("register refresh task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunRefreshNow executes the watchlist refresh immediately and returns the
// reports produced.
func (s *Scheduler) RunRefreshNow() []*model.AnalysisReport {
	return s.refresh()
}

func (s *Scheduler) pruneTask() {
	n, err := s.Pruner.Prune(s.Ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("cache prune failed")
		return
	}
	s.log.Info().Int64("removed", n).Msg("cache pruned")
}

func (s *Scheduler) refreshTask() {
	s.refresh()
}

func (s *Scheduler) refresh() []*model.AnalysisReport {
	s.log.Info().Int("companies", len(s.Watchlist)).Msg("running watchlist refresh")
	reports := make([]*model.AnalysisReport, 0, len(s.Watchlist))
	for _, company := range s.Watchlist {
		if s.Ctx.Err() != nil {
			break
		}
		res := s.Refresher.Refresh(s.Ctx, company)
		if !res.OK() {
			s.log.Warn().Str("company", company).Str("kind", string(res.Err.Kind)).Str("error", res.Err.Error).Msg("watchlist refresh failed")
			continue
		}
		reports = append(reports, res.Report)
	}
	s.trySend(notifier.FormatDigest(reports))
	return reports
}

func (s *Scheduler) trySend(text string) {
	if s.Sender == nil {
		return
	}
	if err := s.Sender.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.log.Error().Err(err).Msg("send notification failed")
	}
}
