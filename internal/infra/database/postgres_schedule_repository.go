// internal/infra/database/postgres_schedule_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"medication_reminder_bot/internal/domain/schedule"

	"github.com/google/uuid"
)

const scheduleColumns = `id, user_id, medicine_id, medicine_name, dosage, scheduled_time, status, taken_time, created_at`

type PostgresScheduleRepository struct {
	db *sql.DB
}

func NewPostgresScheduleRepository(db *sql.DB) *PostgresScheduleRepository {
	return &PostgresScheduleRepository{db: db}
}

func scanScheduleItem(row interface{ Scan(...any) error }) (*schedule.Item, error) {
	item := &schedule.Item{}
	err := row.Scan(&item.ID, &item.UserID, &item.MedicineID, &item.MedicineName, &item.Dosage,
		&item.ScheduledTime, &item.Status, &item.TakenTime, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ListToday returns the user's items for the local calendar day of now, earliest first.
func (r *PostgresScheduleRepository) ListToday(ctx context.Context, userID uuid.UUID, now time.Time) ([]*schedule.Item, error) {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	endOfDay := startOfDay.AddDate(0, 0, 1)

	query := `SELECT ` + scheduleColumns + `
               FROM schedule
               WHERE user_id = $1 AND scheduled_time >= $2 AND scheduled_time < $3
               ORDER BY scheduled_time ASC`
	rows, err := r.db.QueryContext(ctx, query, userID, startOfDay, endOfDay)
	if err != nil {
		return nil, fmt.Errorf("error querying today's schedule: %w", err)
	}
	defer rows.Close()

	items := make([]*schedule.Item, 0)
	for rows.Next() {
		item, err := scanScheduleItem(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning schedule row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedule rows: %w", err)
	}
	return items, nil
}

func (r *PostgresScheduleRepository) GetByID(ctx context.Context, id uuid.UUID) (*schedule.Item, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedule WHERE id = $1`
	item, err := scanScheduleItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrScheduleItemNotFound
		}
		return nil, fmt.Errorf("error getting schedule item by ID: %w", err)
	}
	return item, nil
}

func (r *PostgresScheduleRepository) MarkTaken(ctx context.Context, id uuid.UUID, takenAt time.Time) error {
	query := `UPDATE schedule SET status = $1, taken_time = $2 WHERE id = $3`
	return r.updateStatus(ctx, query, schedule.StatusTaken, takenAt, id)
}

func (r *PostgresScheduleRepository) MarkMissed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE schedule SET status = $1, taken_time = NULL WHERE id = $2`
	return r.updateStatus(ctx, query, schedule.StatusMissed, id)
}

func (r *PostgresScheduleRepository) updateStatus(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error updating schedule status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if affected == 0 {
		return ErrScheduleItemNotFound
	}
	return nil
}

func (r *PostgresScheduleRepository) ListBreaches(ctx context.Context, userID uuid.UUID, from, to time.Time, threshold int) ([]*schedule.Breach, error) {
	query := `SELECT s.id, s.medicine_name, s.dosage, s.scheduled_time, ra.missed_count
               FROM schedule s
               JOIN reminder_attempts ra ON ra.schedule_id = s.id AND ra.user_id = s.user_id
               WHERE s.user_id = $1
                 AND s.scheduled_time >= $2
                 AND s.scheduled_time <= $3
                 AND ra.missed_count >= $4
               ORDER BY s.scheduled_time ASC`
	rows, err := r.db.QueryContext(ctx, query, userID, from, to, threshold)
	if err != nil {
		return nil, fmt.Errorf("error querying breached schedule items: %w", err)
	}
	defer rows.Close()

	breaches := make([]*schedule.Breach, 0)
	for rows.Next() {
		b := &schedule.Breach{}
		if err := rows.Scan(&b.ScheduleID, &b.MedicineName, &b.Dosage, &b.ScheduledTime, &b.MissedCount); err != nil {
			return nil, fmt.Errorf("error scanning breach row: %w", err)
		}
		breaches = append(breaches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating breach rows: %w", err)
	}
	return breaches, nil
}
