package push

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Subscription is a browser push endpoint registered by the PWA.
type Subscription struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Endpoint  string
	Auth      string
	P256dh    string
	CreatedAt time.Time
}

// Repository gives the notifier read access to subscriptions; registration lives elsewhere.
type Repository interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Subscription, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
