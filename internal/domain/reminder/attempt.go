package reminder

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Attempt counts how many times a schedule item was missed, snoozed or dismissed.
// Corresponds to the 'reminder_attempts' table, unique on (schedule_id, user_id).
type Attempt struct {
	ID           uuid.UUID
	ScheduleID   uuid.UUID
	UserID       uuid.UUID
	MedicineID   uuid.UUID
	MissedCount  int
	LastMissedAt sql.NullTime
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
