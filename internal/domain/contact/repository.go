package contact

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// ListByUser returns the user's contacts, primary first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Contact, error)
}
