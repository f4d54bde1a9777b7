package contact

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Contact is a family member who receives escalation SMS. At most two per user.
type Contact struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Name         string
	Phone        string
	Email        sql.NullString
	Relationship sql.NullString
	Primary      bool
	CreatedAt    time.Time
}

// HasPhone reports whether an SMS can be addressed to the contact.
func (c *Contact) HasPhone() bool {
	return c.Phone != ""
}
