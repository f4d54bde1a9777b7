package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"medication_reminder_bot/internal/domain/reminder"

	"github.com/google/uuid"
)

type PostgresReminderAttemptRepository struct {
	db *sql.DB
}

func NewPostgresReminderAttemptRepository(db *sql.DB) *PostgresReminderAttemptRepository {
	return &PostgresReminderAttemptRepository{db: db}
}

// Increment inserts the first miss or bumps the existing counter by one.
func (r *PostgresReminderAttemptRepository) Increment(ctx context.Context, scheduleID, medicineID, userID uuid.UUID, at time.Time) error {
	query := `INSERT INTO reminder_attempts (id, user_id, medicine_id, schedule_id, missed_count, last_missed_at)
               VALUES ($1, $2, $3, $4, 1, $5)
               ON CONFLICT (schedule_id, user_id) DO UPDATE
               SET missed_count = reminder_attempts.missed_count + 1,
                   last_missed_at = EXCLUDED.last_missed_at,
                   updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, uuid.New(), userID, medicineID, scheduleID, at); err != nil {
		return fmt.Errorf("error incrementing reminder attempt: %w", err)
	}
	return nil
}

// Reset zeroes the counter. A missing row is not an error.
func (r *PostgresReminderAttemptRepository) Reset(ctx context.Context, scheduleID, userID uuid.UUID) error {
	query := `UPDATE reminder_attempts
               SET missed_count = 0, last_missed_at = NULL, updated_at = NOW()
               WHERE schedule_id = $1 AND user_id = $2`
	if _, err := r.db.ExecContext(ctx, query, scheduleID, userID); err != nil {
		return fmt.Errorf("error resetting reminder attempt: %w", err)
	}
	return nil
}

func (r *PostgresReminderAttemptRepository) Get(ctx context.Context, scheduleID, userID uuid.UUID) (*reminder.Attempt, error) {
	query := `SELECT id, schedule_id, user_id, medicine_id, missed_count, last_missed_at, created_at, updated_at
               FROM reminder_attempts WHERE schedule_id = $1 AND user_id = $2`
	a := &reminder.Attempt{}
	err := r.db.QueryRowContext(ctx, query, scheduleID, userID).Scan(
		&a.ID, &a.ScheduleID, &a.UserID, &a.MedicineID, &a.MissedCount, &a.LastMissedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("error getting reminder attempt: %w", err)
	}
	return a, nil
}
