package user

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines read access to user profiles plus Telegram linking.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	GetByTelegramChatID(ctx context.Context, chatID int64) (*Profile, error)
	ListSMSEnabled(ctx context.Context) ([]*Profile, error)
	ListLinked(ctx context.Context) ([]*Profile, error) // Profiles with a Telegram chat
	LinkTelegramChat(ctx context.Context, id uuid.UUID, chatID int64) error
}
