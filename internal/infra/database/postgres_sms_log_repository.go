package database

import (
	"context"
	"database/sql"
	"fmt"

	"medication_reminder_bot/internal/domain/sms"

	"github.com/google/uuid"
)

type PostgresSMSLogRepository struct {
	db *sql.DB
}

func NewPostgresSMSLogRepository(db *sql.DB) *PostgresSMSLogRepository {
	return &PostgresSMSLogRepository{db: db}
}

func (r *PostgresSMSLogRepository) Create(ctx context.Context, l *sms.Log) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	query := `INSERT INTO sms_logs (id, user_id, message, status, family_sms_type, provider_response)
               VALUES ($1, $2, $3, $4, $5, $6)
               RETURNING created_at`
	familyType := sql.NullString{String: l.FamilySMSType, Valid: l.FamilySMSType != ""}
	err := r.db.QueryRowContext(ctx, query, l.ID, l.UserID, l.Message, l.Status, familyType, l.ProviderResponse).Scan(&l.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating sms log: %w", err)
	}
	return nil
}
