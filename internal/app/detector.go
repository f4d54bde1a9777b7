// internal/app/detector.go
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"medication_reminder_bot/internal/domain/schedule"
	"medication_reminder_bot/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DetectorConfig sets the notification windows around a dose's scheduled time.
type DetectorConfig struct {
	PreWindow        time.Duration // Heads-up span before the dose
	DueWindow        time.Duration // Active reminding span after the dose, inclusive
	MaxAnnouncements int           // Due-window speech events per item per session
	// PreWindowPreempts lets a heads-up replace a different item already holding the slot.
	PreWindowPreempts bool
}

func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		PreWindow:         1 * time.Minute,
		DueWindow:         5 * time.Minute,
		MaxAnnouncements:  3,
		PreWindowPreempts: true,
	}
}

// announcer is the presenter side the detector drives.
type announcer interface {
	announceHeadsUp(ctx context.Context, r ActiveReminder)
	announceDue(ctx context.Context, r ActiveReminder, firstAdoption bool)
	showQuietly(ctx context.Context, r ActiveReminder)
}

// Detector decides once per tick which pending dose, if any, owns the active slot.
type Detector struct {
	userID    uuid.UUID
	schedules schedule.Repository
	slot      *Slot
	presenter announcer
	cfg       DetectorConfig
	logger    *logrus.Entry

	mu        sync.Mutex
	announced map[uuid.UUID]int // Due announcements per item for the life of the session
}

func NewDetector(userID uuid.UUID, schedules schedule.Repository, slot *Slot, presenter announcer, cfg DetectorConfig, logger *logrus.Entry) *Detector {
	return &Detector{
		userID:    userID,
		schedules: schedules,
		slot:      slot,
		presenter: presenter,
		cfg:       cfg,
		logger:    logger.WithField("component", "detector"),
		announced: make(map[uuid.UUID]int),
	}
}

// Tick fetches today's schedule and updates the active slot. A fetch error leaves
// the slot untouched; the next tick retries.
func (d *Detector) Tick(ctx context.Context, now time.Time) error {
	items, err := d.schedules.ListToday(ctx, d.userID, now)
	if err != nil {
		metrics.RecordTickFailure()
		d.logger.WithError(err).Error("Failed to fetch today's schedule, skipping tick")
		return fmt.Errorf("failed to list today's schedule: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	adoptedThisTick := false
	for _, item := range items {
		if !item.IsPending() {
			continue
		}

		scheduled := item.ScheduledTime
		current, hasCurrent := d.slot.Get()
		sameItem := hasCurrent && current.Item.ID == item.ID

		switch {
		case inPreWindow(now, scheduled, d.cfg.PreWindow):
			if sameItem {
				continue
			}
			if hasCurrent && (!d.cfg.PreWindowPreempts || adoptedThisTick) {
				continue
			}
			r := ActiveReminder{Item: *item, Phase: PhaseHeadsUp, AdoptedAt: now}
			d.slot.Set(r)
			adoptedThisTick = true
			d.logger.WithFields(logrus.Fields{"schedule_id": item.ID, "medicine": item.MedicineName}).Info("Heads-up reminder adopted")
			d.presenter.announceHeadsUp(ctx, r)

		case inDueWindow(now, scheduled, d.cfg.DueWindow):
			if hasCurrent && !sameItem {
				continue
			}
			count := d.announced[item.ID]
			if sameItem {
				count = max(count, current.Announcements)
			}
			if sameItem && count >= d.cfg.MaxAnnouncements {
				continue
			}
			r := current
			if !hasCurrent {
				r = ActiveReminder{AdoptedAt: now}
				adoptedThisTick = true
			}
			r.Item = *item
			r.Phase = PhaseDue

			// An item that already used up its announcements comes back silent.
			if count >= d.cfg.MaxAnnouncements {
				r.Announcements = count
				d.slot.Set(r)
				d.logger.WithFields(logrus.Fields{"schedule_id": item.ID, "medicine": item.MedicineName}).Info("Due reminder re-adopted without announcement")
				d.presenter.showQuietly(ctx, r)
				continue
			}

			count++
			d.announced[item.ID] = count
			r.Announcements = count
			d.slot.Set(r)
			d.logger.WithFields(logrus.Fields{
				"schedule_id":   item.ID,
				"medicine":      item.MedicineName,
				"announcements": r.Announcements,
			}).Info("Due reminder announced")
			d.presenter.announceDue(ctx, r, !hasCurrent)
		}
	}
	return nil
}

// inPreWindow reports now ∈ [scheduled−pre, scheduled).
func inPreWindow(now, scheduled time.Time, pre time.Duration) bool {
	return !now.Before(scheduled.Add(-pre)) && now.Before(scheduled)
}

// inDueWindow reports now ∈ [scheduled, scheduled+due].
func inDueWindow(now, scheduled time.Time, due time.Duration) bool {
	return !now.Before(scheduled) && !now.After(scheduled.Add(due))
}
