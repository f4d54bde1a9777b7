package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"medication_reminder_bot/internal/domain/contact"
	"medication_reminder_bot/internal/domain/schedule"
	"medication_reminder_bot/internal/domain/user"
	"medication_reminder_bot/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const sweepTemplate = "{user} has missed {count} doses of {medicine} ({dosage}). Please check on them."

// SweepConfig bounds which breaches a sweep considers.
type SweepConfig struct {
	Window           time.Duration // Look-back from now over scheduled times
	DefaultThreshold int           // Used when a profile has no threshold
}

func DefaultSweepConfig() SweepConfig {
	return SweepConfig{Window: 5 * time.Minute, DefaultThreshold: user.DefaultMissedReminderThreshold}
}

// AlertMarker remembers which breaches were already alerted. Mark returns false when
// the breach at this missed count was marked before.
type AlertMarker interface {
	Mark(ctx context.Context, scheduleID uuid.UUID, missedCount int) (bool, error)
}

// SweepReport summarizes one sweep run.
type SweepReport struct {
	Users      int
	Breaches   int
	Suppressed int // Breaches skipped by the alert marker
	FanoutResult
	UserErrors int
}

// ThresholdSweeper alerts family contacts about doses missed at least threshold times.
type ThresholdSweeper struct {
	users     user.Repository
	contacts  contact.Repository
	schedules schedule.Repository
	marker    AlertMarker
	fanout    *smsFanout
	cfg       SweepConfig
	logger    *logrus.Entry
}

// NewThresholdSweeper builds a sweeper; marker may be nil to re-alert on every run.
func NewThresholdSweeper(deps SMSDeps, schedules schedule.Repository, marker AlertMarker, cfg SweepConfig, logger *logrus.Entry) *ThresholdSweeper {
	logger = logger.WithField("component", "sms_sweep")
	return &ThresholdSweeper{
		users:     deps.Users,
		contacts:  deps.Contacts,
		schedules: schedules,
		marker:    marker,
		fanout:    newFanout(deps, "sweep", logger),
		cfg:       cfg,
		logger:    logger,
	}
}

// Sweep fails only when the user list cannot be read; per-user failures are counted.
func (s *ThresholdSweeper) Sweep(ctx context.Context, now time.Time) (report SweepReport, err error) {
	defer func() { metrics.RecordSweep(err) }()

	profiles, err := s.users.ListSMSEnabled(ctx)
	if err != nil {
		return SweepReport{}, fmt.Errorf("failed to list SMS-enabled users: %w", err)
	}
	report.Users = len(profiles)

	from := now.Add(-s.cfg.Window)
	for _, p := range profiles {
		if err := s.sweepUser(ctx, p, from, now, &report); err != nil {
			report.UserErrors++
			s.logger.WithError(err).WithField("user_id", p.ID).Error("Sweep failed for user")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"users":      report.Users,
		"breaches":   report.Breaches,
		"suppressed": report.Suppressed,
		"sent":       report.Sent,
		"failed":     report.Failed,
	}).Info("SMS sweep finished")
	return report, nil
}

func (s *ThresholdSweeper) sweepUser(ctx context.Context, p *user.Profile, from, to time.Time, report *SweepReport) error {
	breaches, err := s.schedules.ListBreaches(ctx, p.ID, from, to, p.Threshold(s.cfg.DefaultThreshold))
	if err != nil {
		return fmt.Errorf("failed to list breaches: %w", err)
	}
	if len(breaches) == 0 {
		return nil
	}

	contacts, err := s.contacts.ListByUser(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("failed to list contacts: %w", err)
	}
	if len(contacts) == 0 {
		return nil
	}

	for _, b := range breaches {
		report.Breaches++
		if s.marker != nil {
			fresh, err := s.marker.Mark(ctx, b.ScheduleID, b.MissedCount)
			if err != nil {
				// Marker errors fall through to sending.
				s.logger.WithError(err).WithField("schedule_id", b.ScheduleID).Warn("Alert marker unavailable")
			} else if !fresh {
				report.Suppressed++
				continue
			}
		}

		body := strings.NewReplacer(
			"{user}", p.Name,
			"{count}", strconv.Itoa(b.MissedCount),
			"{medicine}", b.MedicineName,
			"{dosage}", b.Dosage,
		).Replace(sweepTemplate)
		report.add(s.fanout.send(ctx, p.ID, contacts, body))
	}
	return nil
}
