package model

import (
	"time"

	"github.com/google/uuid"
)

// User carries the delivery-relevant slice of an account.
// NotificationsEnabled gates all routing; LastDigestSent drives the digest
// cadence and is advanced only when a digest actually goes out.
type User struct {
	ID                   uuid.UUID `json:"id" db:"id"`
	Email                string    `json:"email" db:"email"`
	Name                 string    `json:"name" db:"name"`
	NotificationsEnabled bool      `json:"notifications_enabled" db:"notifications_enabled"`
	LastDigestSent       time.Time `json:"last_digest_sent" db:"last_digest_sent"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
}
