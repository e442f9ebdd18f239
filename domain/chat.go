// Package domain contains core concepts of the messaging system.
// This file defines Chat and Participant entities and their invariants.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type ChatKind string

const (
	KindDirect ChatKind = "direct"
	KindGroup  ChatKind = "group"
)

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Chat is a conversation scope. Direct chats join exactly two users and
// carry no name; group chats carry a name and an admin (the creator).
type Chat struct {
	ID        uuid.UUID
	Kind      ChatKind
	Name      string
	CreatorID uuid.UUID
	CreatedAt time.Time
}

// Participant ties a user to a chat. A connection may only attach to chats
// where its user is an active participant.
type Participant struct {
	ChatID   uuid.UUID
	UserID   uuid.UUID
	Role     Role
	JoinedAt time.Time
}
