package sms

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus is the outcome recorded for one SMS attempt.
type DeliveryStatus string

const (
	StatusSent   DeliveryStatus = "sent"
	StatusFailed DeliveryStatus = "failed"
)

// FamilyNotification tags messages sent to a user's family contacts.
const FamilyNotification = "family_notification"

// Log corresponds to the 'sms_logs' table.
type Log struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	Message          string
	Status           DeliveryStatus
	FamilySMSType    string
	ProviderResponse string
	CreatedAt        time.Time
}

type LogRepository interface {
	Create(ctx context.Context, l *Log) error
}
