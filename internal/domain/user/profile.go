package user

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DefaultMissedReminderThreshold applies when a profile has no threshold configured.
const DefaultMissedReminderThreshold = 3

// Profile is the part of a user account the reminder core reads.
type Profile struct {
	ID                      uuid.UUID
	Name                    string
	Phone                   sql.NullString
	SMSNotificationsEnabled bool
	MissedReminderThreshold int
	TelegramChatID          sql.NullInt64 // Chat the reminder session renders into
	CreatedAt               time.Time
}

// Threshold returns the configured threshold or the given fallback.
func (p *Profile) Threshold(fallback int) int {
	if p.MissedReminderThreshold > 0 {
		return p.MissedReminderThreshold
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultMissedReminderThreshold
}
