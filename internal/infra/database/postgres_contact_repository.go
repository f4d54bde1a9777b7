package database

import (
	"context"
	"database/sql"
	"fmt"

	"medication_reminder_bot/internal/domain/contact"

	"github.com/google/uuid"
)

type PostgresContactRepository struct {
	db *sql.DB
}

func NewPostgresContactRepository(db *sql.DB) *PostgresContactRepository {
	return &PostgresContactRepository{db: db}
}

func (r *PostgresContactRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*contact.Contact, error) {
	query := `SELECT id, user_id, name, COALESCE(phone, ''), email, relationship, is_primary, created_at
               FROM contacts WHERE user_id = $1 ORDER BY is_primary DESC, created_at`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]*contact.Contact, 0)
	for rows.Next() {
		c := &contact.Contact{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Phone, &c.Email, &c.Relationship, &c.Primary, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contacts: %w", err)
	}
	return contacts, nil
}
