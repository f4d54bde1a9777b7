package database

import (
	"context"
	"database/sql"
	"fmt"

	"medication_reminder_bot/internal/domain/user"

	"github.com/google/uuid"
)

const profileColumns = `id, name, phone, sms_notifications_enabled, COALESCE(missed_reminder_threshold, 0), telegram_chat_id, created_at`

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func scanProfile(row interface{ Scan(...any) error }) (*user.Profile, error) {
	p := &user.Profile{}
	err := row.Scan(&p.ID, &p.Name, &p.Phone, &p.SMSNotificationsEnabled, &p.MissedReminderThreshold, &p.TelegramChatID, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*user.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE id = $1`
	p, err := scanProfile(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error getting user profile by ID: %w", err)
	}
	return p, nil
}

func (r *PostgresUserRepository) GetByTelegramChatID(ctx context.Context, chatID int64) (*user.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE telegram_chat_id = $1`
	p, err := scanProfile(r.db.QueryRowContext(ctx, query, chatID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error getting user profile by Telegram chat: %w", err)
	}
	return p, nil
}

func (r *PostgresUserRepository) ListSMSEnabled(ctx context.Context) ([]*user.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE sms_notifications_enabled = TRUE ORDER BY created_at`
	return r.list(ctx, query, "SMS-enabled")
}

func (r *PostgresUserRepository) ListLinked(ctx context.Context) ([]*user.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE telegram_chat_id IS NOT NULL ORDER BY created_at`
	return r.list(ctx, query, "linked")
}

func (r *PostgresUserRepository) list(ctx context.Context, query, kind string) ([]*user.Profile, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing %s profiles: %w", kind, err)
	}
	defer rows.Close()

	profiles := make([]*user.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning %s profile: %w", kind, err)
		}
		profiles = append(profiles, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s profiles: %w", kind, err)
	}
	return profiles, nil
}

func (r *PostgresUserRepository) LinkTelegramChat(ctx context.Context, id uuid.UUID, chatID int64) error {
	query := `UPDATE user_profiles SET telegram_chat_id = $1 WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, chatID, id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateTelegramChat
		}
		return fmt.Errorf("error linking Telegram chat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}
