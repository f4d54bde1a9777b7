// internal/domain/schedule/item.go
package schedule

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status is the persisted state of one dose instance.
type Status string

const (
	StatusPending Status = "pending"
	StatusTaken   Status = "taken"
	StatusMissed  Status = "missed"
)

// Item is one concrete dose of a medicine on a specific day and time.
// Corresponds to the 'schedule' table.
type Item struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	MedicineID    uuid.UUID
	MedicineName  string
	Dosage        string
	ScheduledTime time.Time
	Status        Status
	TakenTime     sql.NullTime // Set only while Status is taken
	CreatedAt     time.Time
}

// IsPending reports whether the item still awaits a user decision.
func (i *Item) IsPending() bool {
	return i.Status == StatusPending
}

// Breach is a schedule item whose reminder attempt counter reached the user's threshold.
type Breach struct {
	ScheduleID    uuid.UUID
	MedicineName  string
	Dosage        string
	ScheduledTime time.Time
	MissedCount   int
}
