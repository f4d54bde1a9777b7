package app

import (
	"context"
	"time"

	"medication_reminder_bot/internal/domain/contact"
	"medication_reminder_bot/internal/domain/sms"
	"medication_reminder_bot/internal/infra/metrics"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// smsFanout sends one body to every contact with a phone number and logs each attempt.
type smsFanout struct {
	gateway sms.Gateway
	logs    sms.LogRepository
	from    string
	path    string // metrics label: "instant" or "sweep"
	now     func() time.Time
	logger  *logrus.Entry
}

// FanoutResult counts per-contact outcomes of one fan-out.
type FanoutResult struct {
	Sent    int
	Failed  int
	Skipped int // Contacts without a phone number
}

func (r *FanoutResult) add(o FanoutResult) {
	r.Sent += o.Sent
	r.Failed += o.Failed
	r.Skipped += o.Skipped
}

// send never stops on a failed contact; every attempt gets its own log row.
func (f *smsFanout) send(ctx context.Context, userID uuid.UUID, contacts []*contact.Contact, body string) FanoutResult {
	var res FanoutResult
	for _, c := range contacts {
		log := f.logger.WithFields(logrus.Fields{"user_id": userID, "contact_id": c.ID})
		if !c.HasPhone() {
			res.Skipped++
			continue
		}

		entry := &sms.Log{
			ID:            uuid.New(),
			UserID:        userID,
			Message:       body,
			FamilySMSType: sms.FamilyNotification,
			CreatedAt:     f.now(),
		}

		result, err := f.gateway.Send(ctx, c.Phone, f.from, body)
		if err != nil {
			log.WithError(err).Error("Failed to send family SMS")
			entry.Status = sms.StatusFailed
			entry.ProviderResponse = encodeResponse(map[string]string{"error": err.Error()})
			res.Failed++
		} else {
			log.WithField("sid", result.SID).Info("Family SMS sent")
			entry.Status = sms.StatusSent
			entry.ProviderResponse = encodeResponse(providerPayload(result))
			res.Sent++
		}
		metrics.RecordSMS(f.path, string(entry.Status))

		if err := f.logs.Create(ctx, entry); err != nil {
			log.WithError(err).Error("Failed to write SMS log")
		}
	}
	return res
}

func providerPayload(r *sms.DeliveryResult) any {
	if r == nil {
		return nil
	}
	if r.Raw != nil {
		return r.Raw
	}
	return map[string]string{"sid": r.SID, "status": r.Status}
}

func encodeResponse(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{"error":"unencodable provider response"}`
	}
	return string(b)
}
