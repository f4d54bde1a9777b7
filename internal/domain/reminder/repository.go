package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository tracks missed counters per schedule item.
type Repository interface {
	// Increment adds exactly one to the counter, creating the row on first miss.
	Increment(ctx context.Context, scheduleID, medicineID, userID uuid.UUID, at time.Time) error
	// Reset sets the counter back to zero. Idempotent.
	Reset(ctx context.Context, scheduleID, userID uuid.UUID) error
	Get(ctx context.Context, scheduleID, userID uuid.UUID) (*Attempt, error)
}
