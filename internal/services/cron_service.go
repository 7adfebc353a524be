package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// HoldReleaser cancels pending reservations whose hold has lapsed
type HoldReleaser interface {
	ReleaseStaleHolds(ctx context.Context, before time.Time) (int64, error)
}

// CronService manages scheduled background jobs
type CronService struct {
	cron   *cron.Cron
	holds  HoldReleaser
	logger *logrus.Logger
	now    func() time.Time
}

// NewCronService creates a new CronService
func NewCronService(holds HoldReleaser, logger *logrus.Logger) *CronService {
	return &CronService{
		// second minute hour day month weekday
		cron:   cron.New(cron.WithSeconds()),
		holds:  holds,
		logger: logger,
		now:    time.Now,
	}
}

// Start schedules the hold expiry job. An empty schedule leaves it disabled.
func (s *CronService) Start(holdExpirySchedule string) error {
	if holdExpirySchedule == "" {
		s.logger.Info("Hold expiry job disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(holdExpirySchedule, s.expireHoldsJob); err != nil {
		return fmt.Errorf("failed to schedule hold expiry job: %w", err)
	}

	s.cron.Start()
	s.logger.WithField("schedule", holdExpirySchedule).Info("Cron service started")
	return nil
}

// Stop waits for running jobs to finish
func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Cron service stopped")
}

// expireHoldsJob releases capacity held by reservations that were never paid
func (s *CronService) expireHoldsJob() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	start := s.now()
	cutoff := start.Add(-PendingHoldWindow)
	released, err := s.holds.ReleaseStaleHolds(ctx, cutoff)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Hold expiry failed")
		return
	}

	entry := s.logger.WithFields(logrus.Fields{
		"released": released,
		"cutoff":   cutoff.Format(time.RFC3339),
		"duration": time.Since(start).String(),
	})
	if released > 0 {
		entry.Info("[CRON] Expired pending reservation holds")
	} else {
		entry.Debug("[CRON] No stale holds")
	}
}
