package scheduler

import (
	"context"
	"time"

	"medication_reminder_bot/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SweepScheduler runs the missed-dose SMS sweep on a cron schedule.
type SweepScheduler struct {
	cronEngine *cron.Cron
	sweeper    app.Sweeper
	logger     *logrus.Entry
	spec       string
	timeout    time.Duration
}

func NewSweepScheduler(sweeper app.Sweeper, logger *logrus.Entry, spec string) *SweepScheduler {
	return &SweepScheduler{
		cronEngine: cron.New(cron.WithLocation(time.Local)), // Use server's local time for cron
		sweeper:    sweeper,
		logger:     logger.WithField("component", "scheduler"),
		spec:       spec, // e.g. "*/5 * * * *"
		timeout:    2 * time.Minute,
	}
}

// Start registers the sweep job and starts the cron engine.
func (s *SweepScheduler) Start() error {
	if _, err := s.cronEngine.AddFunc(s.spec, s.runSweep); err != nil {
		return err
	}
	s.cronEngine.Start()
	s.logger.WithField("spec", s.spec).Info("SMS sweep scheduler started")
	return nil
}

func (s *SweepScheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.logger.Debug("Cron job triggered for SMS sweep")
	report, err := s.sweeper.Sweep(ctx, time.Now())
	if err != nil {
		s.logger.WithError(err).Error("SMS sweep failed")
		return
	}
	if report.Breaches > 0 {
		s.logger.WithFields(logrus.Fields{
			"breaches": report.Breaches,
			"sent":     report.Sent,
			"failed":   report.Failed,
		}).Info("SMS sweep alerted family contacts")
	}
}

// Stop waits for a running sweep to finish.
func (s *SweepScheduler) Stop() {
	s.logger.Info("Stopping SMS sweep scheduler...")
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.logger.Info("SMS sweep scheduler stopped")
}
