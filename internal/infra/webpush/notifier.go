// Package webpush raises the reminder system notification on the user's registered browsers.
package webpush

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"medication_reminder_bot/internal/app"
	"medication_reminder_bot/internal/domain/push"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Config struct {
	PublicKey  string
	PrivateKey string
	Subscriber string
	TTL        int // Seconds the push service keeps an undelivered message
}

// sendFunc matches webpush.SendNotificationWithContext.
type sendFunc func(ctx context.Context, message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error)

type Notifier struct {
	subs   push.Repository
	cfg    Config
	send   sendFunc
	logger *logrus.Entry
}

func NewNotifier(subs push.Repository, cfg Config, logger *logrus.Entry) *Notifier {
	if cfg.TTL == 0 {
		cfg.TTL = 300
	}
	return &Notifier{
		subs:   subs,
		cfg:    cfg,
		send:   webpush.SendNotificationWithContext,
		logger: logger.WithField("component", "webpush"),
	}
}

// Notify pushes to every subscription of the user. Gone subscriptions are deleted.
// The error joins failures of the remaining endpoints.
func (n *Notifier) Notify(ctx context.Context, userID uuid.UUID, msg app.SystemNotification) error {
	subs, err := n.subs.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list push subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode push payload: %w", err)
	}

	var errs []error
	for _, s := range subs {
		if err := n.pushOne(ctx, s, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *Notifier) pushOne(ctx context.Context, s *push.Subscription, payload []byte) error {
	log := n.logger.WithFields(logrus.Fields{"user_id": s.UserID, "subscription_id": s.ID})

	resp, err := n.send(ctx, payload, &webpush.Subscription{
		Endpoint: s.Endpoint,
		Keys:     webpush.Keys{Auth: s.Auth, P256dh: s.P256dh},
	}, &webpush.Options{
		Subscriber:      n.cfg.Subscriber,
		VAPIDPublicKey:  n.cfg.PublicKey,
		VAPIDPrivateKey: n.cfg.PrivateKey,
		TTL:             n.cfg.TTL,
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		return fmt.Errorf("push to %s: %w", s.ID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		if err := n.subs.Delete(ctx, s.ID); err != nil {
			log.WithError(err).Warn("Failed to delete expired push subscription")
		} else {
			log.Info("Deleted expired push subscription")
		}
		return nil
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push to %s: status %d: %s", s.ID, resp.StatusCode, body)
	}
	return nil
}
