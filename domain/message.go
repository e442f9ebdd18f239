// Package domain contains core concepts of the messaging system.
// This file defines Message records. No runtime, network, or UI logic
// should be added here.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is one immutable chat entry. Within a chat, Seq is strictly
// increasing, dense, and assigned exactly once.
type Message struct {
	ID        uuid.UUID
	ChatID    uuid.UUID
	SenderID  uuid.UUID
	Seq       uint64
	Body      string
	CreatedAt time.Time
}
