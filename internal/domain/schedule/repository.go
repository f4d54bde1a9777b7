package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the operations the reminder core needs from the schedule store.
type Repository interface {
	// ListToday returns the user's items for the calendar day containing now,
	// sorted by scheduled time ascending.
	ListToday(ctx context.Context, userID uuid.UUID, now time.Time) ([]*Item, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	MarkTaken(ctx context.Context, id uuid.UUID, takenAt time.Time) error
	MarkMissed(ctx context.Context, id uuid.UUID) error
	// ListBreaches returns items scheduled within [from, to] whose missed counter is at least threshold.
	ListBreaches(ctx context.Context, userID uuid.UUID, from, to time.Time, threshold int) ([]*Breach, error)
}
