package database

import (
	"context"
	"database/sql"
	"fmt"

	"medication_reminder_bot/internal/domain/push"

	"github.com/google/uuid"
)

type PostgresPushSubscriptionRepository struct {
	db *sql.DB
}

func NewPostgresPushSubscriptionRepository(db *sql.DB) *PostgresPushSubscriptionRepository {
	return &PostgresPushSubscriptionRepository{db: db}
}

func (r *PostgresPushSubscriptionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*push.Subscription, error) {
	query := `SELECT id, user_id, endpoint, auth, p256dh, created_at
               FROM push_subscriptions WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing push subscriptions: %w", err)
	}
	defer rows.Close()

	subs := make([]*push.Subscription, 0)
	for rows.Next() {
		s := &push.Subscription{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.Endpoint, &s.Auth, &s.P256dh, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning push subscription: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating push subscriptions: %w", err)
	}
	return subs, nil
}

func (r *PostgresPushSubscriptionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting push subscription: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}
