package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"medication_reminder_bot/internal/domain/contact"
	"medication_reminder_bot/internal/domain/sms"
	"medication_reminder_bot/internal/domain/user"
	idb "medication_reminder_bot/internal/infra/database"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Escalator alerts family contacts right after a dismissal.
type Escalator interface {
	NotifyDismissal(ctx context.Context, userID uuid.UUID, medicineName, dosage string) error
}

const instantTemplate = "{user} has dismissed a reminder for {medicine} ({dosage}). Please check on them."

// SMSDeps wires the SMS paths to their stores and provider.
type SMSDeps struct {
	Users      user.Repository
	Contacts   contact.Repository
	Gateway    sms.Gateway
	Logs       sms.LogRepository
	FromNumber string
	Now        func() time.Time
}

// InstantEscalator sends one SMS per family contact when a reminder is dismissed.
type InstantEscalator struct {
	users    user.Repository
	contacts contact.Repository
	fanout   *smsFanout
	logger   *logrus.Entry
}

func NewInstantEscalator(deps SMSDeps, logger *logrus.Entry) *InstantEscalator {
	logger = logger.WithField("component", "instant_escalation")
	return &InstantEscalator{
		users:    deps.Users,
		contacts: deps.Contacts,
		fanout:   newFanout(deps, "instant", logger),
		logger:   logger,
	}
}

func newFanout(deps SMSDeps, path string, logger *logrus.Entry) *smsFanout {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &smsFanout{
		gateway: deps.Gateway,
		logs:    deps.Logs,
		from:    deps.FromNumber,
		path:    path,
		now:     now,
		logger:  logger,
	}
}

// NotifyDismissal is a no-op for unknown users, users with SMS disabled and users
// without contacts. Individual send failures are logged, not returned.
func (e *InstantEscalator) NotifyDismissal(ctx context.Context, userID uuid.UUID, medicineName, dosage string) error {
	_, err := e.Dispatch(ctx, userID, medicineName, dosage)
	return err
}

// Dispatch is NotifyDismissal that also reports per-contact outcomes.
func (e *InstantEscalator) Dispatch(ctx context.Context, userID uuid.UUID, medicineName, dosage string) (FanoutResult, error) {
	log := e.logger.WithFields(logrus.Fields{"user_id": userID, "medicine": medicineName})

	profile, err := e.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, idb.ErrUserNotFound) {
			log.Warn("Profile not found, skipping instant SMS")
			return FanoutResult{}, nil
		}
		return FanoutResult{}, fmt.Errorf("failed to load profile: %w", err)
	}
	if !profile.SMSNotificationsEnabled {
		log.Debug("SMS notifications disabled, skipping instant SMS")
		return FanoutResult{}, nil
	}

	contacts, err := e.contacts.ListByUser(ctx, userID)
	if err != nil {
		return FanoutResult{}, fmt.Errorf("failed to list contacts: %w", err)
	}
	if len(contacts) == 0 {
		log.Info("No family contacts, skipping instant SMS")
		return FanoutResult{}, nil
	}

	body := strings.NewReplacer(
		"{user}", profile.Name,
		"{medicine}", medicineName,
		"{dosage}", dosage,
	).Replace(instantTemplate)

	res := e.fanout.send(ctx, userID, contacts, body)
	log.WithFields(logrus.Fields{"sent": res.Sent, "failed": res.Failed}).Info("Instant SMS escalation finished")
	return res, nil
}
