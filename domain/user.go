package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an account holder. PasswordHash is an argon2id PHC string and
// never leaves the repository/service layers.
type User struct {
	ID           uuid.UUID
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}
